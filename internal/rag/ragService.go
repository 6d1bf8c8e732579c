package rag

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/sony/gobreaker"

	"github.com/akolanti/RagAPI/internal/cache"
	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/facts"
	"github.com/akolanti/RagAPI/internal/policy"
	"github.com/akolanti/RagAPI/internal/rag/llm"
	"github.com/akolanti/RagAPI/internal/rag/retrieval"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

/*
ARCHITECTURE NOTE: OPAQUE INTERFACE PATTERN
---------------------------------------------------------

1. Service (Interface):
  - Real work happens down low bruh
  - This is the PUBLIC contract.
  - It defines the "behavior" (what a handler can ask for).
  - We expose this to keep the HTTP layer decoupled from our specific logic.

2. service (Private Struct):
  - down low stuff
  - This is the PRIVATE implementation.
  - It holds the "state" (caches, the LLM client, the retriever).
  - It is lowercase to prevent external packages from accessing our
    internal dependencies directly.

3. Pointer Receiver (*service):
  - By defining methods on (*service), the struct IMPLICITLY satisfies
    the Service interface.
  - if it quacks like a duck, -it's a duck (Duck Typing)

4. Dependency Injection (InitService):
  - This constructor links the private struct to the public interface.
  - It allows us to swap real caches and LLMs for mocks during testing
    without changing the handler code.
*/

var (
	// ErrToolNotAllowed is a persona-policy rejection, not a system fault.
	ErrToolNotAllowed = errors.New("tool not allowed for persona")
	// ErrGenerationUnavailable surfaces when the model circuit is open and
	// the persona does not permit a citations-only fallback.
	ErrGenerationUnavailable = errors.New("generation temporarily unavailable")
)

// noContextAnswer is returned when retrieval finds nothing the requester is
// allowed to see. Never cached: visibility can change with the next sync.
const noContextAnswer = "I could not find any accessible documents relevant to your question."

type AskRequest struct {
	TenantId  string
	Requester commonModels.Requester
	Persona   string
	Query     string
}

type Citation struct {
	DocumentId   string  `json:"document_id"`
	ChunkId      string  `json:"chunk_id"`
	Title        string  `json:"title"`
	CanonicalURL string  `json:"canonical_url"`
	HeadingPath  string  `json:"heading_path"`
	Position     int     `json:"position"`
	Score        float64 `json:"score"`
}

type AskResponse struct {
	Answer        string
	Citations     []Citation
	Persona       string
	CacheHit      bool
	CitationsOnly bool
	FactBased     bool
}

type ToolRequest struct {
	TenantId  string
	Requester commonModels.Requester
	Persona   string
	Tool      string
	Args      map[string]string
}

type ToolResponse struct {
	Output   string
	CacheHit bool
}

// Retriever is satisfied by retrieval.Engine; an interface so tests can
// record calls without a real index.
type Retriever interface {
	Retrieve(ctx context.Context, tenantId string, r commonModels.Requester, query string, pol policy.Policy) ([]retrieval.Hit, error)
}

// ToolRunner executes one named tool. The controller only invokes it after
// the persona allowlist and the tool cache both had their say.
type ToolRunner interface {
	Run(ctx context.Context, tool string, args map[string]string) (string, error)
}

// FactSource is satisfied by the content store. Optional: a nil source skips
// the fact-first path entirely.
type FactSource interface {
	AuthorizedFacts(ctx context.Context, tenantId string, r commonModels.Requester, keys []string) ([]commonModels.FactHit, error)
}

// Service - handlers only call this; they don't need to know the llm or the caches
type Service interface {
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
	RunTool(ctx context.Context, req ToolRequest) (ToolResponse, error)
}

type service struct {
	policies    *policy.Engine
	retriever   Retriever
	llmProvider llm.Provider
	answerCache *cache.Tiered
	toolCache   *cache.Tiered
	tools       ToolRunner
	factSource  FactSource
	factRules   []facts.Rule
	audit       commonModels.AuditStore
	breaker     *gobreaker.CircuitBreaker
	logger      *logger_i.Logger
}

type ServiceConfig struct {
	Policies    *policy.Engine
	Retriever   Retriever
	LLMProvider llm.Provider
	AnswerCache *cache.Tiered
	ToolCache   *cache.Tiered
	Tools       ToolRunner
	Facts       FactSource
	Audit       commonModels.AuditStore
}

// InitService constructor
func InitService(cfg ServiceConfig) Service {
	logger := logger_i.NewLogger("Ask Service :")

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm-generation",
		MaxRequests: 1,
		Timeout:     config.GenerationBreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.GenerationBreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &service{
		policies:    cfg.Policies,
		retriever:   cfg.Retriever,
		llmProvider: cfg.LLMProvider,
		answerCache: cfg.AnswerCache,
		toolCache:   cfg.ToolCache,
		tools:       cfg.Tools,
		factSource:  cfg.Facts,
		factRules:   facts.DefaultRules(),
		audit:       cfg.Audit,
		breaker:     breaker,
		logger:      logger,
	}
}

// cachedAnswer is the serialized form stored in the answer cache.
type cachedAnswer struct {
	Answer        string     `json:"answer"`
	Citations     []Citation `json:"citations"`
	CitationsOnly bool       `json:"citations_only"`
	FactBased     bool       `json:"fact_based,omitempty"`
}

func (s *service) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	inMethodLogger := s.requestLogger(ctx, req.TenantId, req.Persona)

	pol, err := s.policies.Resolve(req.Persona)
	if err != nil {
		return AskResponse{}, err
	}

	// Fact-shaped questions are answered from extracted facts without
	// touching the retriever or the model; anything short of full coverage
	// falls through to the normal path.
	if resp, answered := s.tryFactAnswer(ctx, pol, req); answered {
		return resp, nil
	}

	hits, err := s.executeRetrievalStep(ctx, pol, req)
	if err != nil {
		inMethodLogger.Error("Retrieval failed", "error", err)
		return AskResponse{}, err
	}

	// The cache key binds the answer to the exact context the requester is
	// allowed to see, so a cache hit can never leak across ACL boundaries.
	contextHash := cache.ContextHash(retrieval.Candidates(hits))
	answerKey := cache.AnswerKey(pol.Persona, req.Query, contextHash)

	if value, found := s.answerCache.Get(ctx, answerKey); found {
		var stored cachedAnswer
		if err := json.Unmarshal([]byte(value), &stored); err == nil {
			s.appendAudit(ctx, req.TenantId, req.Requester.UserId, "ask", "cache_hit persona="+pol.Persona)
			return AskResponse{
				Answer:        stored.Answer,
				Citations:     stored.Citations,
				Persona:       pol.Persona,
				CacheHit:      true,
				CitationsOnly: stored.CitationsOnly,
				FactBased:     stored.FactBased,
			}, nil
		}
		inMethodLogger.Warn("Discarding undecodable cache entry", "key", answerKey)
	}

	if len(hits) == 0 {
		s.appendAudit(ctx, req.TenantId, req.Requester.UserId, "ask", "no_context persona="+pol.Persona)
		return AskResponse{Answer: noContextAnswer, Persona: pol.Persona}, nil
	}

	citations := buildCitations(hits)
	citationsOnly := pol.AllowCitationsOnly && hits[0].Score >= pol.CitationsOnlyThreshold

	var answer string
	if citationsOnly {
		answer = citationsOnlyAnswer(hits)
	} else {
		answer, err = s.executeGenerationStep(ctx, pol, req.Query, hits)
		if err != nil {
			if isBreakerOpen(err) && pol.AllowCitationsOnly {
				inMethodLogger.Warn("Model circuit open, degrading to citations only")
				answer = citationsOnlyAnswer(hits)
				citationsOnly = true
			} else if isBreakerOpen(err) {
				return AskResponse{}, ErrGenerationUnavailable
			} else {
				inMethodLogger.Error("Generation failed", "error", err)
				return AskResponse{}, err
			}
		}
	}

	payload, err := json.Marshal(cachedAnswer{Answer: answer, Citations: citations, CitationsOnly: citationsOnly})
	if err == nil {
		s.answerCache.Put(ctx, answerKey, string(payload), pol.CacheTTL)
	}

	s.appendAudit(ctx, req.TenantId, req.Requester.UserId, "ask", "generated persona="+pol.Persona)

	return AskResponse{
		Answer:        answer,
		Citations:     citations,
		Persona:       pol.Persona,
		CitationsOnly: citationsOnly,
	}, nil
}

func (s *service) RunTool(ctx context.Context, req ToolRequest) (ToolResponse, error) {
	inMethodLogger := s.requestLogger(ctx, req.TenantId, req.Persona)

	pol, err := s.policies.Resolve(req.Persona)
	if err != nil {
		return ToolResponse{}, err
	}
	if !pol.ToolAllowed(req.Tool) {
		s.appendAudit(ctx, req.TenantId, req.Requester.UserId, "tool_denied", req.Tool+" persona="+pol.Persona)
		return ToolResponse{}, ErrToolNotAllowed
	}

	toolKey := cache.ToolKey(req.Tool, req.Args)
	if value, found := s.toolCache.Get(ctx, toolKey); found {
		return ToolResponse{Output: value, CacheHit: true}, nil
	}

	start := time.Now()
	output, err := s.tools.Run(ctx, req.Tool, req.Args)
	if err != nil {
		inMethodLogger.Error("Tool execution failed", "tool", req.Tool, "error", err)
		return ToolResponse{}, err
	}
	inMethodLogger.Info("Tool executed", "tool", req.Tool, "duration", time.Since(start))

	s.toolCache.Put(ctx, toolKey, output, pol.CacheTTL)
	s.appendAudit(ctx, req.TenantId, req.Requester.UserId, "tool_run", req.Tool+" persona="+pol.Persona)

	return ToolResponse{Output: output}, nil
}
