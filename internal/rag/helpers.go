package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/akolanti/RagAPI/internal/adapter/utils"
	"github.com/akolanti/RagAPI/internal/cache"
	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/facts"
	"github.com/akolanti/RagAPI/internal/metrics"
	"github.com/akolanti/RagAPI/internal/policy"
	"github.com/akolanti/RagAPI/internal/rag/llm"
	"github.com/akolanti/RagAPI/internal/rag/retrieval"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

func (s *service) executeRetrievalStep(ctx context.Context, pol policy.Policy, req AskRequest) ([]retrieval.Hit, error) {
	retrievalCtx, cancel := context.WithTimeout(ctx, config.RetrievalTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("retrieval", time.Since(start)) }()

	return s.retriever.Retrieve(retrievalCtx, req.TenantId, req.Requester, req.Query, pol)
}

func (s *service) executeGenerationStep(ctx context.Context, pol policy.Policy, query string, hits []retrieval.Hit) (string, error) {
	generationCtx, cancel := context.WithTimeout(ctx, config.GenerationTimeout)
	defer cancel()

	start := time.Now()
	defer func() { metrics.CaptureExecutionMetrics("llm_generation", time.Since(start)) }()

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.llmProvider.Generate(generationCtx, llm.Request{
			Query:            query,
			ContextBlocks:    contextBlocks(hits),
			ResponseTemplate: pol.ResponseTemplate,
			SafetyRules:      pol.SafetyRules,
		})
	})
	if err != nil {
		return "", err
	}
	return result.(string), nil
}

func isBreakerOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// contextBlocks renders hits in rank order, tagged so the model can cite
// the source it used.
func contextBlocks(hits []retrieval.Hit) []string {
	blocks := make([]string, 0, len(hits))
	for i, hit := range hits {
		var b strings.Builder
		fmt.Fprintf(&b, "Source [%d]: %s", i+1, hit.Title)
		if hit.Chunk.HeadingPath != "" {
			fmt.Fprintf(&b, " > %s", hit.Chunk.HeadingPath)
		}
		b.WriteString("\n")
		b.WriteString(hit.Chunk.Text)
		blocks = append(blocks, b.String())
	}
	return blocks
}

func buildCitations(hits []retrieval.Hit) []Citation {
	citations := make([]Citation, 0, len(hits))
	for _, hit := range hits {
		citations = append(citations, Citation{
			DocumentId:   hit.DocumentId,
			ChunkId:      hit.Chunk.Id,
			Title:        hit.Title,
			CanonicalURL: hit.CanonicalURL,
			HeadingPath:  hit.Chunk.HeadingPath,
			Position:     hit.Chunk.Position,
			Score:        hit.Score,
		})
	}
	return citations
}

// citationsOnlyAnswer quotes the top passages verbatim instead of calling
// the model. Used when the best match clears the persona threshold, or as a
// degraded answer while the model circuit is open.
func citationsOnlyAnswer(hits []retrieval.Hit) string {
	var b strings.Builder
	b.WriteString("The following excerpts answer your question directly:\n")
	for i, hit := range hits {
		fmt.Fprintf(&b, "\n[%d] %s", i+1, hit.Title)
		if hit.Chunk.HeadingPath != "" {
			fmt.Fprintf(&b, " > %s", hit.Chunk.HeadingPath)
		}
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(hit.Chunk.Text))
		b.WriteString("\n")
	}
	return b.String()
}

// factCoverage is the share of requested fact keys that must be answerable
// before a fact-first answer replaces retrieval.
const factCoverage = 0.6

// tryFactAnswer serves fact-shaped questions straight from the fact store.
// The cache key is bound to the authorization-filtered fact set, so a hit can
// never leak a fact the requester was not allowed to see.
func (s *service) tryFactAnswer(ctx context.Context, pol policy.Policy, req AskRequest) (AskResponse, bool) {
	if s.factSource == nil {
		return AskResponse{}, false
	}
	keys := facts.KeysForQuery(req.Query, s.factRules)
	if len(keys) == 0 {
		return AskResponse{}, false
	}

	hits, err := s.factSource.AuthorizedFacts(ctx, req.TenantId, req.Requester, keys)
	if err != nil {
		s.requestLogger(ctx, req.TenantId, pol.Persona).Warn("Fact lookup failed, falling back to retrieval", "error", err)
		return AskResponse{}, false
	}

	// hits arrive confidence-first; keep the best fact per key
	var top []commonModels.FactHit
	covered := make(map[string]bool, len(keys))
	for _, hit := range hits {
		if covered[hit.Key] {
			continue
		}
		covered[hit.Key] = true
		top = append(top, hit)
	}
	if float64(len(covered)) < factCoverage*float64(len(keys)) {
		return AskResponse{}, false
	}

	factKey := cache.FactKey(pol.Persona, req.Query, cache.FactsHash(top))
	if value, found := s.answerCache.Get(ctx, factKey); found {
		var stored cachedAnswer
		if err := json.Unmarshal([]byte(value), &stored); err == nil {
			s.appendAudit(ctx, req.TenantId, req.Requester.UserId, "ask", "fact_cache_hit persona="+pol.Persona)
			return AskResponse{
				Answer:    stored.Answer,
				Citations: stored.Citations,
				Persona:   pol.Persona,
				CacheHit:  true,
				FactBased: true,
			}, true
		}
	}

	answer := factAnswer(top)
	citations := factCitations(top)

	payload, err := json.Marshal(cachedAnswer{Answer: answer, Citations: citations, FactBased: true})
	if err == nil {
		s.answerCache.Put(ctx, factKey, string(payload), pol.CacheTTL)
	}
	s.appendAudit(ctx, req.TenantId, req.Requester.UserId, "ask", "fact_answer persona="+pol.Persona)

	return AskResponse{
		Answer:    answer,
		Citations: citations,
		Persona:   pol.Persona,
		FactBased: true,
	}, true
}

func factAnswer(top []commonModels.FactHit) string {
	var b strings.Builder
	b.WriteString("Here is what the documentation states directly:\n")
	for _, hit := range top {
		fmt.Fprintf(&b, "\n- %s", strings.TrimSpace(hit.Value))
	}
	return b.String()
}

// factCitations cites each distinct source document once.
func factCitations(top []commonModels.FactHit) []Citation {
	seen := make(map[string]bool, len(top))
	var citations []Citation
	for _, hit := range top {
		if seen[hit.DocumentId] {
			continue
		}
		seen[hit.DocumentId] = true
		citations = append(citations, Citation{
			DocumentId:   hit.DocumentId,
			ChunkId:      hit.ChunkId,
			Title:        hit.Title,
			CanonicalURL: hit.CanonicalURL,
			Score:        hit.Confidence,
		})
	}
	return citations
}

func (s *service) requestLogger(ctx context.Context, tenantId string, persona string) *logger_i.Logger {
	traceId, _ := ctx.Value(config.TRACE_ID_KEY).(string)
	return s.logger.With("traceId", traceId, "tenantId", tenantId, "persona", persona)
}

// appendAudit is best-effort; a failed audit write never fails the request.
func (s *service) appendAudit(ctx context.Context, tenantId string, userId string, action string, detail string) {
	if s.audit == nil {
		return
	}
	entry := commonModels.AuditEntry{
		Id:          utils.GetNewUUID(),
		TenantId:    tenantId,
		ActorUserId: userId,
		Action:      action,
		Detail:      detail,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		s.logger.Warn("Audit append failed", "action", action, "error", err)
	}
}
