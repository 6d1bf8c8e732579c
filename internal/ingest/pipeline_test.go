package ingest

import (
	"context"
	"testing"

	"github.com/akolanti/RagAPI/internal/data/store"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

type countingEmbedder struct {
	calls      int
	textsTotal int
}

func (m *countingEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	m.calls++
	m.textsTotal++
	return []float32{1, 0}, nil
}

func (m *countingEmbedder) BatchEmbedding(ctx context.Context, chunks []string, isHugeDataSet bool) ([][]float32, error) {
	m.calls++
	m.textsTotal += len(chunks)
	vectors := make([][]float32, len(chunks))
	for i := range chunks {
		vectors[i] = []float32{float32(len(chunks[i])), 1}
	}
	return vectors, nil
}

type fakeConnector struct {
	docs   []SourceDocument
	cursor string
}

func (f *fakeConnector) Fetch(ctx context.Context, source commonModels.Source, cursor string) ([]SourceDocument, string, error) {
	next := f.cursor
	if next == "" {
		next = cursor
	}
	return f.docs, next, nil
}

func newPipelineFixture(t *testing.T, connector Connector) (*Pipeline, *store.InMemoryContentStore, *countingEmbedder) {
	t.Helper()
	contentStore := store.InitInMemoryContentStore()
	if err := contentStore.SaveSource(context.Background(), commonModels.Source{
		Id: "src-1", TenantId: "t1", ConnectorType: commonModels.ConnectorUpload,
		Name: "handbook", Status: commonModels.SourceActive,
	}); err != nil {
		t.Fatal(err)
	}
	embedder := &countingEmbedder{}
	pipeline := NewPipeline(contentStore, embedder, nil, map[commonModels.ConnectorType]Connector{
		commonModels.ConnectorUpload: connector,
	})
	return pipeline, contentStore, embedder
}

func handbook(text string) SourceDocument {
	return SourceDocument{
		ExternalId:   "doc-1",
		Title:        "Handbook",
		CanonicalURL: "upload://src-1",
		Text:         text,
		ACL: []commonModels.ACLGrant{
			{PrincipalType: commonModels.PrincipalPublic, PrincipalId: commonModels.PublicPrincipalId},
		},
	}
}

func TestProcessSource_RerunWithoutChangesEmbedsNothing(t *testing.T) {
	ctx := context.Background()
	connector := &fakeConnector{docs: []SourceDocument{handbook("# A\nalpha\n# B\nbeta")}}
	pipeline, contentStore, embedder := newPipelineFixture(t, connector)

	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}
	firstRunTexts := embedder.textsTotal
	if firstRunTexts != 2 {
		t.Fatalf("expected 2 chunks embedded on first run, got %d", firstRunTexts)
	}

	doc, found, err := contentStore.GetDocument(ctx, "src-1", "doc-1")
	if err != nil || !found {
		t.Fatalf("document missing after ingest: %v", err)
	}
	firstUpdated := doc.UpdatedAt

	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}
	if embedder.textsTotal != firstRunTexts {
		t.Errorf("unchanged re-run must not embed, got %d extra texts", embedder.textsTotal-firstRunTexts)
	}

	doc, _, _ = contentStore.GetDocument(ctx, "src-1", "doc-1")
	if !doc.UpdatedAt.Equal(firstUpdated) {
		t.Error("unchanged re-run must not rewrite the document")
	}
}

func TestProcessSource_OnlyChangedChunksReEmbed(t *testing.T) {
	ctx := context.Background()
	connector := &fakeConnector{docs: []SourceDocument{handbook("# A\nalpha\n# B\nbeta\n# C\ngamma")}}
	pipeline, contentStore, embedder := newPipelineFixture(t, connector)

	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}
	if embedder.textsTotal != 3 {
		t.Fatalf("expected 3 chunks embedded, got %d", embedder.textsTotal)
	}

	doc, _, _ := contentStore.GetDocument(ctx, "src-1", "doc-1")
	before, _ := contentStore.ChunksByDocument(ctx, doc.Id)
	idByPos := make(map[int]string)
	for _, c := range before {
		idByPos[c.Position] = c.Id
	}

	// edit only the middle section
	connector.docs = []SourceDocument{handbook("# A\nalpha\n# B\nbeta revised\n# C\ngamma")}
	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}
	if embedder.textsTotal != 4 {
		t.Errorf("expected exactly 1 re-embed, got %d total texts", embedder.textsTotal)
	}

	after, _ := contentStore.ChunksByDocument(ctx, doc.Id)
	if len(after) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(after))
	}
	for _, c := range after {
		if c.Position != 1 && c.Id != idByPos[c.Position] {
			t.Errorf("unchanged chunk at position %d must keep its identity", c.Position)
		}
	}
	if after[1].Text != "beta revised" {
		t.Errorf("changed chunk text not updated: %q", after[1].Text)
	}
}

func TestProcessSource_ShrinkingDocumentDeletesTrailingChunks(t *testing.T) {
	ctx := context.Background()
	connector := &fakeConnector{docs: []SourceDocument{handbook("# A\nalpha\n# B\nbeta\n# C\ngamma")}}
	pipeline, contentStore, _ := newPipelineFixture(t, connector)

	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}

	connector.docs = []SourceDocument{handbook("# A\nalpha")}
	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}

	doc, _, _ := contentStore.GetDocument(ctx, "src-1", "doc-1")
	chunks, _ := contentStore.ChunksByDocument(ctx, doc.Id)
	if len(chunks) != 1 {
		t.Errorf("expected trailing chunks deleted, got %d chunks", len(chunks))
	}
}

func TestProcessSource_ACLChangesApplyOnReingest(t *testing.T) {
	ctx := context.Background()
	docV1 := handbook("# A\nalpha")
	connector := &fakeConnector{docs: []SourceDocument{docV1}}
	pipeline, contentStore, _ := newPipelineFixture(t, connector)

	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}

	docV2 := docV1
	docV2.Text = "# A\nalpha updated"
	docV2.ACL = []commonModels.ACLGrant{{PrincipalType: commonModels.PrincipalGroup, PrincipalId: "g-eng"}}
	connector.docs = []SourceDocument{docV2}
	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}

	doc, _, _ := contentStore.GetDocument(ctx, "src-1", "doc-1")
	grants, _ := contentStore.ACLForDocument(ctx, doc.Id)
	if len(grants) != 1 || grants[0].PrincipalId != "g-eng" {
		t.Errorf("expected replaced grant set, got %v", grants)
	}
}

func TestProcessSource_CursorAdvancesOnlyOnSuccess(t *testing.T) {
	ctx := context.Background()
	connector := &fakeConnector{docs: []SourceDocument{handbook("# A\nalpha")}, cursor: "2026-08-01T00:00:00Z"}
	pipeline, contentStore, _ := newPipelineFixture(t, connector)

	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}
	cursor, found, _ := contentStore.Cursor(ctx, "src-1")
	if !found || cursor.Value != "2026-08-01T00:00:00Z" {
		t.Errorf("cursor not persisted: %v found=%v", cursor, found)
	}
}

func TestProcessSource_ExtractsFactsFromChunks(t *testing.T) {
	ctx := context.Background()
	connector := &fakeConnector{docs: []SourceDocument{handbook("# Resilience\nDisaster recovery targets an RTO of two hours.\n# Security\nMFA is required for every account.")}}
	pipeline, contentStore, _ := newPipelineFixture(t, connector)

	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}

	requester := commonModels.Requester{UserId: "u-1"}
	hits, err := contentStore.AuthorizedFacts(ctx, "t1", requester, []string{"resilience.rto", "security.mfa"})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected both facts extracted, got %+v", hits)
	}
	for _, hit := range hits {
		if hit.ChunkId == "" || hit.DocumentId == "" {
			t.Errorf("fact must point at its chunk and document: %+v", hit)
		}
	}

	// rerun replaces, never accumulates
	if err := pipeline.ProcessSource(ctx, "src-1"); err != nil {
		t.Fatal(err)
	}
	hits, _ = contentStore.AuthorizedFacts(ctx, "t1", requester, []string{"resilience.rto", "security.mfa"})
	if len(hits) != 2 {
		t.Fatalf("rerun must not duplicate facts, got %d", len(hits))
	}
}

func TestProcessSource_UnknownSource(t *testing.T) {
	pipeline, _, _ := newPipelineFixture(t, &fakeConnector{})
	err := pipeline.ProcessSource(context.Background(), "no-such-source")
	if err != ErrSourceNotFound {
		t.Errorf("expected ErrSourceNotFound, got %v", err)
	}
}
