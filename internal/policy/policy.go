package policy

import (
	"errors"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

// ErrUnknownPersona is a request-level rejection, not a system fault.
var ErrUnknownPersona = errors.New("unknown persona")

// Policy is the fully resolved answer-shaping bundle for one persona.
type Policy struct {
	Persona                string
	RetrievalFilters       []commonModels.ConnectorType
	ToolAllowlist          []string
	ResponseTemplate       string
	SafetyRules            []string
	CacheTTL               time.Duration
	TopK                   int
	MinConfidence          float64
	CitationsOnlyThreshold float64
	AllowCitationsOnly     bool
}

func (p Policy) ToolAllowed(name string) bool {
	for _, t := range p.ToolAllowlist {
		if t == name {
			return true
		}
	}
	return false
}

// Rule is one persona's partial configuration. Nil fields fall back to the
// config defaults; resolution order is rule -> default -> hardcoded fallback.
type Rule struct {
	RetrievalFilters       []string `mapstructure:"retrieval_filters"`
	ToolAllowlist          []string `mapstructure:"tool_allowlist"`
	ResponseTemplate       *string  `mapstructure:"response_template"`
	SafetyRules            []string `mapstructure:"safety_rules"`
	CacheTTLSeconds        *int     `mapstructure:"cache_ttl_seconds"`
	TopK                   *int     `mapstructure:"top_k"`
	MinConfidence          *float64 `mapstructure:"min_confidence"`
	CitationsOnlyThreshold *float64 `mapstructure:"citations_only_threshold"`
	AllowCitationsOnly     *bool    `mapstructure:"allow_citations_only"`
}

// Defaults hold the persona_defaults values applied when a rule is silent.
type Defaults struct {
	ToolAllowlist          []string `mapstructure:"tool_allowlist"`
	ResponseTemplate       string   `mapstructure:"response_template"`
	SafetyRules            []string `mapstructure:"safety_rules"`
	CacheTTLSeconds        int      `mapstructure:"cache_ttl_seconds"`
	TopK                   int      `mapstructure:"top_k"`
	MinConfidence          float64  `mapstructure:"min_confidence"`
	CitationsOnlyThreshold float64  `mapstructure:"citations_only_threshold"`
	AllowCitationsOnly     bool     `mapstructure:"allow_citations_only"`
}

// Config is an explicit object loaded once at startup and passed by
// reference; there is no module-level mutable policy state.
type Config struct {
	Personas map[string]Rule `mapstructure:"personas"`
	Defaults *Defaults       `mapstructure:"defaults"`
}

const (
	fallbackCacheTTL               = 300 * time.Second
	fallbackTopK                   = 8
	fallbackMinConfidence          = 0.4
	fallbackCitationsOnlyThreshold = 0.9
	fallbackTemplate               = "Grounded answer with citations."
)

// Engine resolves persona keys. Resolution is deterministic and
// side-effect-free, so resolved policies are memoized per process; Reload is
// the only invalidation signal. Memo entries carry the generation of the
// config they were resolved against, so a resolve racing a Reload can never
// re-insert a pre-reload policy that outlives the Purge.
type Engine struct {
	mu       sync.RWMutex
	cfg      *Config
	gen      uint64
	resolved *lru.Cache[string, memoEntry]
	logger   *logger_i.Logger
}

type memoEntry struct {
	policy Policy
	gen    uint64
}

func NewEngine(cfg *Config) *Engine {
	cache, _ := lru.New[string, memoEntry](128)
	return &Engine{
		cfg:      cfg,
		resolved: cache,
		logger:   logger_i.NewLogger("PolicyEngine"),
	}
}

func (e *Engine) Resolve(personaKey string) (Policy, error) {
	e.mu.RLock()
	cfg, gen := e.cfg, e.gen
	e.mu.RUnlock()

	if entry, ok := e.resolved.Get(personaKey); ok && entry.gen == gen {
		return entry.policy, nil
	}

	rule, hasRule := cfg.Personas[personaKey]
	if !hasRule && cfg.Defaults == nil {
		return Policy{}, ErrUnknownPersona
	}

	p := resolve(personaKey, rule, cfg.Defaults)
	e.resolved.Add(personaKey, memoEntry{policy: p, gen: gen})
	return p, nil
}

// Reload swaps the configuration and drops every memoized policy. The
// generation bump makes any entry resolved against the old config stale even
// if an in-flight Resolve adds it back after the Purge.
func (e *Engine) Reload(cfg *Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.gen++
	e.mu.Unlock()
	e.resolved.Purge()
	e.logger.Info("Persona policy configuration reloaded")
}

func resolve(key string, rule Rule, defaults *Defaults) Policy {
	p := Policy{
		Persona:                key,
		CacheTTL:               fallbackCacheTTL,
		TopK:                   fallbackTopK,
		MinConfidence:          fallbackMinConfidence,
		CitationsOnlyThreshold: fallbackCitationsOnlyThreshold,
		ResponseTemplate:       fallbackTemplate,
	}

	if defaults != nil {
		p.ToolAllowlist = defaults.ToolAllowlist
		p.SafetyRules = defaults.SafetyRules
		p.AllowCitationsOnly = defaults.AllowCitationsOnly
		if defaults.ResponseTemplate != "" {
			p.ResponseTemplate = defaults.ResponseTemplate
		}
		if defaults.CacheTTLSeconds > 0 {
			p.CacheTTL = time.Duration(defaults.CacheTTLSeconds) * time.Second
		}
		if defaults.TopK > 0 {
			p.TopK = defaults.TopK
		}
		if defaults.MinConfidence > 0 {
			p.MinConfidence = defaults.MinConfidence
		}
		if defaults.CitationsOnlyThreshold > 0 {
			p.CitationsOnlyThreshold = defaults.CitationsOnlyThreshold
		}
	}

	for _, f := range rule.RetrievalFilters {
		p.RetrievalFilters = append(p.RetrievalFilters, commonModels.ConnectorType(f))
	}
	if rule.ToolAllowlist != nil {
		p.ToolAllowlist = rule.ToolAllowlist
	}
	if rule.SafetyRules != nil {
		p.SafetyRules = rule.SafetyRules
	}
	if rule.ResponseTemplate != nil {
		p.ResponseTemplate = *rule.ResponseTemplate
	}
	if rule.CacheTTLSeconds != nil {
		p.CacheTTL = time.Duration(*rule.CacheTTLSeconds) * time.Second
	}
	if rule.TopK != nil {
		p.TopK = *rule.TopK
	}
	if rule.MinConfidence != nil {
		p.MinConfidence = *rule.MinConfidence
	}
	if rule.CitationsOnlyThreshold != nil {
		p.CitationsOnlyThreshold = *rule.CitationsOnlyThreshold
	}
	if rule.AllowCitationsOnly != nil {
		p.AllowCitationsOnly = *rule.AllowCitationsOnly
	}

	return p
}
