package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

// keyVersion is baked into every cache key; bumping it invalidates all
// entries at once after a prompt or ranking change.
const keyVersion = "v1"

// NormalizeQuery folds trivially different phrasings of the same question
// onto one key: trim, lowercase, collapse runs of whitespace.
func NormalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(query))), " ")
}

// ContextHash fingerprints the retrieved context: one line per chunk in rank
// order, each line binding the chunk id to the hash of its text at retrieval
// time. Any re-ingestion that changes a chunk's text changes the hash.
func ContextHash(chunks []commonModels.Candidate) string {
	h := sha256.New()
	for _, c := range chunks {
		fmt.Fprintf(h, "%s:%s\n", c.Chunk.Id, c.Chunk.TextHash)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// AnswerKey identifies a cached answer. Persona is part of the key: the same
// question under a different persona is a different answer.
func AnswerKey(persona string, query string, contextHash string) string {
	sum := sha256.Sum256([]byte(keyVersion + ":" + persona + ":" + NormalizeQuery(query) + ":" + contextHash))
	return "answer:" + hex.EncodeToString(sum[:])
}

// FactsHash fingerprints the authorization-filtered fact set backing a fact
// answer; like ContextHash it binds the cached answer to exactly what the
// requester was allowed to see.
func FactsHash(hits []commonModels.FactHit) string {
	h := sha256.New()
	for _, hit := range hits {
		fmt.Fprintf(h, "%s:%s\n", hit.Id, hit.Value)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// FactKey identifies a cached fact-first answer.
func FactKey(persona string, query string, factsHash string) string {
	sum := sha256.Sum256([]byte(keyVersion + ":" + persona + ":" + NormalizeQuery(query) + ":" + factsHash))
	return "fact:" + hex.EncodeToString(sum[:])
}

// ToolKey identifies a cached tool result by tool name and its canonicalized
// arguments. Map iteration order must not affect the key, so args are folded
// into sorted key=value lines.
func ToolKey(tool string, args map[string]string) string {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	fmt.Fprintf(h, "%s:%s\n", keyVersion, tool)
	for _, name := range names {
		fmt.Fprintf(h, "%s=%s\n", name, args[name])
	}
	return "tool:" + hex.EncodeToString(h.Sum(nil))
}
