package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/rag/llm"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

type llmClient struct {
	client    *genai.Client
	modelName string
}

var logger *logger_i.Logger
var geminiClient *llmClient
var once sync.Once

func GetGeminiClient(ctx context.Context, modelName string, apikey string) llm.Provider {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_gemini")
		newGeminiClient(ctx, modelName, apikey)
	})

	if geminiClient == nil {
		return nil
	}
	return &llmClient{client: geminiClient.client, modelName: geminiClient.modelName}
}

func newGeminiClient(ctx context.Context, modelName string, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Gemini client:", "error", err)
		return
	}
	geminiClient = &llmClient{client: c, modelName: modelName}
	logger.Info("Gemini client created", "model", modelName)
	go closeClient(ctx, geminiClient)
}

func (c *llmClient) Generate(ctx context.Context, req llm.Request) (string, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	instruction := config.ModelContext
	if req.ResponseTemplate != "" {
		instruction += "\nRespond in this shape: " + req.ResponseTemplate
	}
	if len(req.SafetyRules) > 0 {
		instruction += "\nHard rules:\n- " + strings.Join(req.SafetyRules, "\n- ")
	}

	userPrompt := fmt.Sprintf("Context:\n%s\n\nUser Question: %s",
		strings.Join(req.ContextBlocks, "\n\n"), req.Query)

	temperature := config.ModelTemperature
	result, err := c.client.Models.GenerateContent(
		ctx,
		c.modelName,
		genai.Text(userPrompt),
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
			Temperature:       &temperature,
		},
	)
	if err != nil {
		log.Error("Gemini generation failed", "error", err)
		return "", err
	}
	if result == nil {
		return "", errors.New("empty generation response")
	}
	return result.Text(), nil
}

func closeClient(ctx context.Context, llm *llmClient) {
	<-ctx.Done()
	logger.Info("Closing Gemini client")
	llm.client = nil
	llm.modelName = ""
}
