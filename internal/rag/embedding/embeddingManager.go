package embedding

import "context"

// Embedder vectorizes queries and document chunks. BatchEmbedding keeps the
// input order; result[i] belongs to chunks[i]. isHugeDataSet routes the call
// through the provider's async batch API instead of the inline one.
type Embedder interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, error)
	BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error)
}
