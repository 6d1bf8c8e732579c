package rag

import (
	"context"
	"strings"
	"testing"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

type mockFactSource struct {
	Calls  int
	Keys   []string
	OnLook func(keys []string) ([]commonModels.FactHit, error)
}

func (m *mockFactSource) AuthorizedFacts(ctx context.Context, tenantId string, r commonModels.Requester, keys []string) ([]commonModels.FactHit, error) {
	m.Calls++
	m.Keys = keys
	if m.OnLook != nil {
		return m.OnLook(keys)
	}
	return nil, nil
}

func factHit(id, docId, key, value string, confidence float64) commonModels.FactHit {
	return commonModels.FactHit{
		Fact: commonModels.Fact{
			Id:         id,
			TenantId:   "t-1",
			DocumentId: docId,
			ChunkId:    "chunk-" + id,
			Key:        key,
			Value:      value,
			Confidence: confidence,
		},
		Title: "Doc " + docId,
	}
}

func newFactFixture(source *mockFactSource) *fixture {
	f := newFixture(nil)
	svc := f.svc.(*service)
	svc.factSource = source
	return f
}

func TestAsk_FactShapedQueryAnsweredWithoutModel(t *testing.T) {
	source := &mockFactSource{
		OnLook: func(keys []string) ([]commonModels.FactHit, error) {
			return []commonModels.FactHit{
				factHit("f1", "doc-1", "resilience.rto", "Disaster recovery targets an RTO of two hours.", 0.92),
			}, nil
		},
	}
	f := newFactFixture(source)

	resp, err := f.svc.Ask(context.Background(), askReq("What RTO do we commit to?"))
	if err != nil {
		t.Fatal(err)
	}
	if !resp.FactBased {
		t.Fatal("fact-shaped question should produce a fact answer")
	}
	if f.provider.Calls != 0 || f.retriever.Calls != 0 {
		t.Fatalf("fact answers must not touch the model or the retriever: provider=%d retriever=%d", f.provider.Calls, f.retriever.Calls)
	}
	if !strings.Contains(resp.Answer, "RTO of two hours") {
		t.Errorf("answer should quote the fact, got %q", resp.Answer)
	}
	if len(resp.Citations) != 1 || resp.Citations[0].DocumentId != "doc-1" {
		t.Fatalf("fact answer must cite its document, got %+v", resp.Citations)
	}
	if len(source.Keys) != 1 || source.Keys[0] != "resilience.rto" {
		t.Fatalf("lookup should carry the keys the question asked for, got %v", source.Keys)
	}
}

func TestAsk_BestFactPerKeyWins(t *testing.T) {
	source := &mockFactSource{
		OnLook: func(keys []string) ([]commonModels.FactHit, error) {
			// confidence-first store order
			return []commonModels.FactHit{
				factHit("f1", "doc-1", "security.mfa", "MFA is required for every workforce account.", 0.9),
				factHit("f2", "doc-2", "security.mfa", "MFA rollout is planned.", 0.5),
			}, nil
		},
	}
	f := newFactFixture(source)

	resp, err := f.svc.Ask(context.Background(), askReq("Do we enforce MFA?"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(resp.Answer, "rollout is planned") {
		t.Errorf("lower-confidence duplicate must be dropped, got %q", resp.Answer)
	}
	if len(resp.Citations) != 1 {
		t.Fatalf("only the winning fact's document should be cited, got %+v", resp.Citations)
	}
}

func TestAsk_InsufficientFactCoverageFallsBackToRetrieval(t *testing.T) {
	source := &mockFactSource{
		OnLook: func(keys []string) ([]commonModels.FactHit, error) {
			// one of three requested keys answerable: below the coverage bar
			return []commonModels.FactHit{
				factHit("f1", "doc-1", "resilience.rto", "RTO is two hours.", 0.92),
			}, nil
		},
	}
	f := newFactFixture(source)

	resp, err := f.svc.Ask(context.Background(), askReq("What are the RTO, RPO and backup arrangements?"))
	if err != nil {
		t.Fatal(err)
	}
	if resp.FactBased {
		t.Fatal("partial coverage must not produce a fact answer")
	}
	if f.retriever.Calls != 1 {
		t.Fatalf("fall-through must reach retrieval, calls=%d", f.retriever.Calls)
	}
}

func TestAsk_SecondFactQueryServedFromCache(t *testing.T) {
	source := &mockFactSource{
		OnLook: func(keys []string) ([]commonModels.FactHit, error) {
			return []commonModels.FactHit{
				factHit("f1", "doc-1", "resilience.rto", "RTO is two hours.", 0.92),
			}, nil
		},
	}
	f := newFactFixture(source)

	first, err := f.svc.Ask(context.Background(), askReq("What is our RTO?"))
	if err != nil {
		t.Fatal(err)
	}
	if first.CacheHit {
		t.Fatal("first fact answer cannot be a cache hit")
	}

	second, err := f.svc.Ask(context.Background(), askReq("  what IS our rto? "))
	if err != nil {
		t.Fatal(err)
	}
	if !second.CacheHit || !second.FactBased {
		t.Fatalf("normalized repeat should hit the fact cache: %+v", second)
	}
	if second.Answer != first.Answer {
		t.Error("cached fact answer must match the original")
	}
}

func TestAsk_FactCacheBoundToVisibleFactSet(t *testing.T) {
	// Two requesters see different fact sets for the same question; the
	// second must not be served the first one's cached answer.
	restricted := false
	source := &mockFactSource{
		OnLook: func(keys []string) ([]commonModels.FactHit, error) {
			if restricted {
				return []commonModels.FactHit{
					factHit("f2", "doc-2", "resilience.rto", "Public RTO statement.", 0.7),
				}, nil
			}
			return []commonModels.FactHit{
				factHit("f1", "doc-1", "resilience.rto", "Internal RTO is thirty minutes.", 0.95),
			}, nil
		},
	}
	f := newFactFixture(source)

	insider, err := f.svc.Ask(context.Background(), askReq("What is our RTO?"))
	if err != nil {
		t.Fatal(err)
	}

	restricted = true
	outsider, err := f.svc.Ask(context.Background(), askReq("What is our RTO?"))
	if err != nil {
		t.Fatal(err)
	}
	if outsider.CacheHit {
		t.Fatal("a different visible fact set must not share a cache entry")
	}
	if strings.Contains(outsider.Answer, "thirty minutes") {
		t.Fatalf("restricted requester leaked the internal fact: %q vs %q", outsider.Answer, insider.Answer)
	}
}
