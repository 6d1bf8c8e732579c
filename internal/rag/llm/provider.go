package llm

import "context"

// Request carries everything the model needs for one grounded answer.
type Request struct {
	Query string
	// ContextBlocks are the retrieved chunks rendered as source-tagged text,
	// in rank order.
	ContextBlocks []string
	// ResponseTemplate and SafetyRules come from the resolved persona policy.
	ResponseTemplate string
	SafetyRules      []string
}

type Provider interface {
	Generate(ctx context.Context, req Request) (string, error)
}
