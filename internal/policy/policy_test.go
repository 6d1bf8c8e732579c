package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

func TestResolve_UnknownPersonaWithoutDefaults(t *testing.T) {
	engine := NewEngine(&Config{Personas: map[string]Rule{"sales": {}}})

	if _, err := engine.Resolve("nonexistent"); !errors.Is(err, ErrUnknownPersona) {
		t.Fatalf("expected ErrUnknownPersona, got %v", err)
	}
	if _, err := engine.Resolve("sales"); err != nil {
		t.Fatalf("known persona must resolve: %v", err)
	}
}

func TestResolve_DefaultsSatisfyUnknownKeys(t *testing.T) {
	engine := NewEngine(&Config{
		Personas: map[string]Rule{},
		Defaults: &Defaults{TopK: 4, CacheTTLSeconds: 120},
	})

	p, err := engine.Resolve("brand-new-persona")
	if err != nil {
		t.Fatalf("defaults should satisfy any key: %v", err)
	}
	if p.TopK != 4 || p.CacheTTL != 120*time.Second {
		t.Fatalf("defaults not applied: %+v", p)
	}
}

func TestResolve_RuleOverridesDefaultOverridesFallback(t *testing.T) {
	topK := 12
	minConf := 0.55
	template := "Rule template."
	engine := NewEngine(&Config{
		Personas: map[string]Rule{
			"engineering": {
				TopK:             &topK,
				MinConfidence:    &minConf,
				ResponseTemplate: &template,
				RetrievalFilters: []string{"github", "upload"},
			},
			"quiet": {},
		},
		Defaults: &Defaults{
			TopK:             6,
			ResponseTemplate: "Default template.",
			SafetyRules:      []string{"no_pii"},
		},
	})

	p, err := engine.Resolve("engineering")
	if err != nil {
		t.Fatal(err)
	}
	if p.TopK != 12 || p.MinConfidence != 0.55 || p.ResponseTemplate != "Rule template." {
		t.Fatalf("rule values must win: %+v", p)
	}
	if len(p.RetrievalFilters) != 2 || p.RetrievalFilters[0] != commonModels.ConnectorGithub {
		t.Fatalf("retrieval filters not converted: %v", p.RetrievalFilters)
	}
	if len(p.SafetyRules) != 1 {
		t.Fatalf("defaults must fill silent fields: %v", p.SafetyRules)
	}

	quiet, err := engine.Resolve("quiet")
	if err != nil {
		t.Fatal(err)
	}
	if quiet.TopK != 6 || quiet.ResponseTemplate != "Default template." {
		t.Fatalf("silent rule should inherit defaults: %+v", quiet)
	}
	// Fallbacks cover what neither layer sets.
	if quiet.MinConfidence != fallbackMinConfidence || quiet.CitationsOnlyThreshold != fallbackCitationsOnlyThreshold {
		t.Fatalf("hardcoded fallbacks missing: %+v", quiet)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	engine := NewEngine(BuiltinConfig())

	first, err := engine.Resolve("sales")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		again, err := engine.Resolve("sales")
		if err != nil {
			t.Fatal(err)
		}
		if again.TopK != first.TopK || again.CacheTTL != first.CacheTTL || again.ResponseTemplate != first.ResponseTemplate {
			t.Fatalf("resolution must be deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestReload_InvalidatesMemoizedPolicies(t *testing.T) {
	topK := 3
	engine := NewEngine(&Config{Personas: map[string]Rule{"sales": {TopK: &topK}}})

	before, err := engine.Resolve("sales")
	if err != nil {
		t.Fatal(err)
	}
	if before.TopK != 3 {
		t.Fatalf("unexpected TopK %d", before.TopK)
	}

	newTopK := 9
	engine.Reload(&Config{Personas: map[string]Rule{"sales": {TopK: &newTopK}}})

	after, err := engine.Resolve("sales")
	if err != nil {
		t.Fatal(err)
	}
	if after.TopK != 9 {
		t.Fatalf("reload must drop memoized policy, got TopK %d", after.TopK)
	}
}

func TestResolve_StaleMemoEntryIgnoredAfterReload(t *testing.T) {
	topK := 3
	engine := NewEngine(&Config{Personas: map[string]Rule{"sales": {TopK: &topK}}})

	stale, err := engine.Resolve("sales")
	if err != nil {
		t.Fatal(err)
	}

	newTopK := 9
	engine.Reload(&Config{Personas: map[string]Rule{"sales": {TopK: &newTopK}}})

	// A resolve that raced the reload can land its memo write after the
	// purge; the entry carries the old generation and must not be served.
	engine.resolved.Add("sales", memoEntry{policy: stale, gen: 0})

	after, err := engine.Resolve("sales")
	if err != nil {
		t.Fatal(err)
	}
	if after.TopK != 9 {
		t.Fatalf("stale memo entry served after reload, got TopK %d", after.TopK)
	}
}

func TestToolAllowed(t *testing.T) {
	p := Policy{ToolAllowlist: []string{"salesforce_summary"}}
	if !p.ToolAllowed("salesforce_summary") {
		t.Fatal("allowlisted tool rejected")
	}
	if p.ToolAllowed("github_docs_lookup") {
		t.Fatal("non-allowlisted tool accepted")
	}
	if (Policy{}).ToolAllowed("anything") {
		t.Fatal("empty allowlist must deny")
	}
}

func TestLoadConfig_MissingFileUsesBuiltins(t *testing.T) {
	cfg, err := LoadConfig("does-not-exist.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := cfg.Personas["sales"]; !ok {
		t.Fatal("builtin personas missing")
	}
	if cfg.Defaults == nil {
		t.Fatal("builtin defaults missing")
	}
}
