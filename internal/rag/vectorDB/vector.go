package vectorDB

import (
	"context"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

// Writer is the ingestion-facing side of the vector index. The pipeline
// mirrors every chunk write and delete here so the index never drifts from
// the content store.
type Writer interface {
	UpsertChunks(ctx context.Context, doc commonModels.Document, source commonModels.Source, grants []commonModels.ACLGrant, chunks []commonModels.Chunk, vectors [][]float32) error
	DeleteChunks(ctx context.Context, chunkIds []string) error
	DeleteDocument(ctx context.Context, docId string) error
}
