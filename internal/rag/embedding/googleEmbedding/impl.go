package googleEmbedding

import (
	"context"
	"errors"
	"sync"
	"time"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/akolanti/RagAPI/internal/adapter/utils"
	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/rag/embedding"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var dimension int32 = config.EmbeddingOutputDimensionality

type client struct {
	genAi *genai.Client
	model string
}

func GetGoogleEmbeddingClient(ctx context.Context, modelName string, apikey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		newGoogleEmbedder(ctx, modelName, apikey)
	})

	//if init still fails
	if embeddingClient == nil {
		return nil
	}
	return &client{genAi: embeddingClient.genAi, model: embeddingClient.model}
}

func newGoogleEmbedder(ctx context.Context, modelName string, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Google Embedding client:", "error", err)
		return
	}
	embeddingClient = &client{genAi: c, model: modelName}
	logger.Info("Google Embedding client created", "model", modelName)
	go closeClient(ctx, embeddingClient)
}

func closeClient(ctx context.Context, embeddingClient *client) {
	<-ctx.Done()
	logger.Info("Closing Google Embedding client")
	embeddingClient.genAi = nil
	embeddingClient.model = ""
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	result, err := c.doCall(ctx, genai.Text(query))
	if err != nil {
		log.Error("Error getting Embedding from Google", "error", err.Error())
		return nil, err
	}
	if len(result.Embeddings) == 0 {
		return nil, errors.New("empty embedding response")
	}
	return result.Embeddings[0].Values, nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error) {
	log := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "chunks", len(chunks))

	if isHugeDataSet {
		return c.batchJobEmbedding(ctx, chunks, log)
	}

	res, err := c.doCall(ctx, getContent(chunks))
	if err != nil || res == nil {
		if isRateLimited(err) {
			time.Sleep(5 * time.Second)
			log.Debug("Rate limited, retrying once")
			res, err = c.doCall(ctx, getContent(chunks))
		}
		if err != nil {
			log.Error("Error getting Embeddings from Google", "error", err)
			return nil, err
		}
	}

	vectors := make([][]float32, 0, len(res.Embeddings))
	for _, r := range res.Embeddings {
		vectors = append(vectors, r.Values)
	}
	return vectors, nil
}

// batchJobEmbedding goes through the async batch API, for corpora too large
// to inline in one request.
func (c *client) batchJobEmbedding(ctx context.Context, chunks []string, log *logger_i.Logger) ([][]float32, error) {
	source := genai.EmbeddingsBatchJobSource{
		InlinedRequests: &genai.EmbedContentBatch{
			Config:   &genai.EmbedContentConfig{OutputDimensionality: &dimension},
			Contents: getContent(chunks),
		},
	}
	jobName := utils.GetNewUUID()
	log = log.With("batchJobName", jobName)

	_, err := c.genAi.Batches.CreateEmbeddings(ctx, &c.model, &source, &genai.CreateEmbeddingsBatchJobConfig{DisplayName: jobName})
	if err != nil {
		log.Error("Error creating batch embedding job", "error", err)
		return nil, err
	}

	job, err := c.pollBatchJob(ctx, jobName, log)
	if err != nil {
		return nil, err
	}

	responses := job.Dest.InlinedEmbedContentResponses
	vectors := make([][]float32, 0, len(responses))
	for _, r := range responses {
		if r == nil || r.Error != nil || r.Response == nil || r.Response.Embedding == nil {
			log.Error("batch embedding item failed", "item", r)
			vectors = append(vectors, nil)
			continue
		}
		vectors = append(vectors, r.Response.Embedding.Values)
	}
	return vectors, nil
}

func (c *client) pollBatchJob(ctx context.Context, jobName string, log *logger_i.Logger) (*genai.BatchJob, error) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			job, err := c.genAi.Batches.Get(ctx, jobName, nil)
			if err != nil {
				log.Error("Error getting batch job", "error", err)
				continue
			}
			switch job.State {
			case "JOB_STATE_SUCCEEDED":
				return job, nil
			case "JOB_STATE_FAILED", "JOB_STATE_CANCELLED", "JOB_STATE_EXPIRED", "JOB_STATE_PARTIALLY_SUCCEEDED":
				return nil, errors.New("batch embedding job ended in state " + string(job.State))
			}
		}
	}
}

func (c *client) doCall(ctx context.Context, content []*genai.Content) (*genai.EmbedContentResponse, error) {
	return c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{
		OutputDimensionality: &dimension,
		TaskType:             "RETRIEVAL_DOCUMENT",
	})
}

func getContent(chunks []string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(chunks))
	for _, chunk := range chunks {
		contents = append(contents, &genai.Content{Parts: []*genai.Part{{Text: chunk}}})
	}
	return contents
}

func isRateLimited(err error) bool {
	if s, ok := status.FromError(err); ok {
		return s.Code() == codes.ResourceExhausted
	}
	return false
}
