package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/metrics"
	"github.com/akolanti/RagAPI/internal/policy"
	"github.com/akolanti/RagAPI/internal/rag/embedding"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

// Hit is one ranked chunk with its similarity score in [0, 1].
type Hit struct {
	commonModels.Candidate
	Score float64
}

// VectorIndex answers similarity queries over chunks the requester is allowed
// to see. Implementations own the authorization filter: a chunk whose document
// carries no matching grant must never appear in the result, regardless of
// score.
type VectorIndex interface {
	Query(ctx context.Context, tenantId string, r commonModels.Requester, sourceTypes []commonModels.ConnectorType, vector []float32, limit int) ([]Hit, error)
}

// Engine embeds the query and ranks authorized chunks against it under the
// persona policy's top_k and confidence floor.
type Engine struct {
	embedder embedding.Embedder
	index    VectorIndex
	logger   *logger_i.Logger
}

func NewEngine(embedder embedding.Embedder, index VectorIndex) *Engine {
	return &Engine{
		embedder: embedder,
		index:    index,
		logger:   logger_i.NewLogger("Retrieval"),
	}
}

// Retrieve returns at most pol.TopK hits at or above pol.MinConfidence,
// best first. Ties are broken toward the fresher document, then the smaller
// document id. An empty result is a valid outcome, not an error.
func (e *Engine) Retrieve(ctx context.Context, tenantId string, r commonModels.Requester, query string, pol policy.Policy) ([]Hit, error) {
	vector, err := e.embedder.GetEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// over-fetch so the confidence floor cannot starve top_k
	hits, err := e.index.Query(ctx, tenantId, r, pol.RetrievalFilters, vector, pol.TopK*4)
	if err != nil {
		return nil, fmt.Errorf("querying index: %w", err)
	}
	metrics.RecordRetrievalCandidates(len(hits))

	kept := hits[:0]
	for _, hit := range hits {
		if hit.Score >= pol.MinConfidence {
			kept = append(kept, hit)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		if !kept[i].DocUpdatedAt.Equal(kept[j].DocUpdatedAt) {
			return kept[i].DocUpdatedAt.After(kept[j].DocUpdatedAt)
		}
		return kept[i].DocumentId < kept[j].DocumentId
	})

	if len(kept) > pol.TopK {
		kept = kept[:pol.TopK]
	}
	e.logger.Debug("retrieval complete", "persona", pol.Persona, "hits", len(kept))
	return kept, nil
}

// Candidates strips scores for callers that only need the chunks, in rank
// order.
func Candidates(hits []Hit) []commonModels.Candidate {
	out := make([]commonModels.Candidate, len(hits))
	for i, h := range hits {
		out[i] = h.Candidate
	}
	return out
}
