package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

// StoreIndex scores every authorized candidate exactly, with no approximate
// index in between. The content store applies the grant filter before any
// candidate reaches scoring. Suits tests and small corpora.
type StoreIndex struct {
	store commonModels.ContentStore
}

func NewStoreIndex(store commonModels.ContentStore) *StoreIndex {
	return &StoreIndex{store: store}
}

func (idx *StoreIndex) Query(ctx context.Context, tenantId string, r commonModels.Requester, sourceTypes []commonModels.ConnectorType, vector []float32, limit int) ([]Hit, error) {
	candidates, err := idx.store.AuthorizedCandidates(ctx, tenantId, r, sourceTypes)
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, Hit{Candidate: c, Score: cosineSimilarity(vector, c.Vector)})
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
