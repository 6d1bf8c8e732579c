package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/akolanti/RagAPI/internal/cache"
	"github.com/akolanti/RagAPI/internal/data/store"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/ingest"
	"github.com/akolanti/RagAPI/internal/policy"
	"github.com/akolanti/RagAPI/internal/rag/retrieval"
)

// End-to-end flows over the in-memory stores: a real policy engine, the real
// ingestion pipeline and retrieval ranking, with only the embedder and the
// model stubbed.

type staticEmbedder struct {
	calls int
}

func (e *staticEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (e *staticEmbedder) BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error) {
	e.calls++
	vectors := make([][]float32, len(chunks))
	for i := range chunks {
		vectors[i] = []float32{1, 0}
	}
	return vectors, nil
}

type seedConnector struct {
	docs []ingest.SourceDocument
}

func (c *seedConnector) Fetch(ctx context.Context, source commonModels.Source, cursor string) ([]ingest.SourceDocument, string, error) {
	return c.docs, "", nil
}

func salesPolicyEngine() *policy.Engine {
	ttl := 300
	topK := 5
	minConf := 0.2
	noCit := false
	return policy.NewEngine(&policy.Config{
		Personas: map[string]policy.Rule{
			"sales": {
				CacheTTLSeconds:    &ttl,
				TopK:               &topK,
				MinConfidence:      &minConf,
				AllowCitationsOnly: &noCit,
			},
		},
	})
}

type stack struct {
	svc      Service
	content  *store.InMemoryContentStore
	pipeline *ingest.Pipeline
	embedder *staticEmbedder
	provider *mockProvider
}

func newStack(t *testing.T, docs []ingest.SourceDocument) *stack {
	t.Helper()
	ctx := context.Background()

	content := store.InitInMemoryContentStore()
	if err := content.SaveSource(ctx, commonModels.Source{
		Id: "src-1", TenantId: "t-1", ConnectorType: commonModels.ConnectorUpload,
		Name: "quarterly uploads", Status: commonModels.SourceActive,
	}); err != nil {
		t.Fatal(err)
	}

	embedder := &staticEmbedder{}
	pipeline := ingest.NewPipeline(content, embedder, nil, map[commonModels.ConnectorType]ingest.Connector{
		commonModels.ConnectorUpload: &seedConnector{docs: docs},
	})

	provider := &mockProvider{}
	svc := InitService(ServiceConfig{
		Policies:    salesPolicyEngine(),
		Retriever:   retrieval.NewEngine(embedder, retrieval.NewStoreIndex(content)),
		LLMProvider: provider,
		AnswerCache: cache.NewTiered("answer", cache.NewMemoryCache(), nil),
		ToolCache:   cache.NewTiered("tool", cache.NewMemoryCache(), nil),
		Tools:       &mockToolRunner{},
		Facts:       content,
		Audit:       store.InitInMemoryAuditStore(),
	})

	return &stack{svc: svc, content: content, pipeline: pipeline, embedder: embedder, provider: provider}
}

func publicGrant() []commonModels.ACLGrant {
	return []commonModels.ACLGrant{
		{PrincipalType: commonModels.PrincipalPublic, PrincipalId: commonModels.PublicPrincipalId},
	}
}

func salesAsk() AskRequest {
	return AskRequest{
		TenantId:  "t-1",
		Requester: commonModels.Requester{UserId: "u-rep"},
		Persona:   "sales",
		Query:     "Summarize pipeline and risk",
	}
}

func TestScenario_PublicDocumentIsCited(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, []ingest.SourceDocument{{
		ExternalId: "doc-acme",
		Title:      "Q3 Pipeline Review",
		Text:       "ACME expansion is strong in enterprise segment.",
		ACL:        publicGrant(),
	}})

	if err := s.pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}

	resp, err := s.svc.Ask(ctx, salesAsk())
	if err != nil {
		t.Fatal(err)
	}
	if s.provider.Calls != 1 {
		t.Fatalf("expected one generation call, got %d", s.provider.Calls)
	}

	doc, found, _ := s.content.GetDocument(ctx, "src-1", "doc-acme")
	if !found {
		t.Fatal("document did not land")
	}
	cited := false
	for _, c := range resp.Citations {
		if c.DocumentId == doc.Id {
			cited = true
		}
	}
	if !cited {
		t.Fatalf("answer must cite the visible document, got %+v", resp.Citations)
	}
}

func TestScenario_RevokedGrantDropsTheCitation(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, []ingest.SourceDocument{{
		ExternalId: "doc-acme",
		Title:      "Q3 Pipeline Review",
		Text:       "ACME expansion is strong in enterprise segment.",
		ACL:        publicGrant(),
	}})

	if err := s.pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}

	before, err := s.svc.Ask(ctx, salesAsk())
	if err != nil {
		t.Fatal(err)
	}
	if len(before.Citations) == 0 {
		t.Fatal("baseline answer should cite the document")
	}

	doc, _, _ := s.content.GetDocument(ctx, "src-1", "doc-acme")
	if err := s.content.ReplaceACL(ctx, doc.Id, nil); err != nil {
		t.Fatal(err)
	}

	after, err := s.svc.Ask(ctx, salesAsk())
	if err != nil {
		t.Fatal(err)
	}
	if len(after.Citations) != 0 {
		t.Fatalf("revoked document still cited: %+v", after.Citations)
	}
	if after.CacheHit {
		t.Fatal("the revoked view must not be served from the pre-revocation cache entry")
	}
	if strings.Contains(after.Answer, "ACME expansion") {
		t.Fatalf("revoked content leaked into the answer: %q", after.Answer)
	}
}

func TestScenario_UnchangedResyncLeavesChunksAlone(t *testing.T) {
	ctx := context.Background()
	s := newStack(t, []ingest.SourceDocument{{
		ExternalId: "doc-acme",
		Title:      "Q3 Pipeline Review",
		Text:       "ACME expansion is strong in enterprise segment.",
		ACL:        publicGrant(),
	}})

	if err := s.pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}
	doc, _, _ := s.content.GetDocument(ctx, "src-1", "doc-acme")
	firstChunks, _ := s.content.ChunksByDocument(ctx, doc.Id)
	embedCallsAfterFirst := s.embedder.calls

	if err := s.pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}
	secondChunks, _ := s.content.ChunksByDocument(ctx, doc.Id)

	if len(secondChunks) != len(firstChunks) {
		t.Fatalf("chunk count moved on unchanged resync: %d vs %d", len(firstChunks), len(secondChunks))
	}
	for i := range firstChunks {
		if secondChunks[i].TextHash != firstChunks[i].TextHash {
			t.Errorf("text hash at position %d changed on unchanged resync", i)
		}
	}
	if s.embedder.calls != embedCallsAfterFirst {
		t.Fatalf("unchanged resync must not embed anything, calls went %d -> %d", embedCallsAfterFirst, s.embedder.calls)
	}
}
