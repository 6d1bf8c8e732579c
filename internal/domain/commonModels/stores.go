package commonModels

import "context"

// ContentStore is the chunk/embedding/ACL store. The ingestion pipeline is its
// only writer; retrieval only reads through AuthorizedCandidates.
type ContentStore interface {
	GetSource(ctx context.Context, id string) (Source, bool, error)
	SaveSource(ctx context.Context, source Source) error

	GetDocument(ctx context.Context, sourceId string, externalId string) (Document, bool, error)
	SaveDocument(ctx context.Context, doc Document) error
	DeleteDocument(ctx context.Context, docId string) error

	ChunksByDocument(ctx context.Context, docId string) ([]Chunk, error)
	// UpsertChunk writes the chunk and its embedding together. The pair is
	// atomic: a reader never observes a chunk whose vector is from older text.
	UpsertChunk(ctx context.Context, chunk Chunk, emb Embedding) error
	DeleteChunksAfter(ctx context.Context, docId string, lastPosition int) error
	EmbeddingsByDocument(ctx context.Context, docId string) (map[string]Embedding, error)

	ReplaceACL(ctx context.Context, docId string, grants []ACLGrant) error
	ACLForDocument(ctx context.Context, docId string) ([]ACLGrant, error)

	// AuthorizedCandidates returns every chunk in the tenant whose document
	// carries at least one grant matching the requester. The ACL predicate is
	// applied here, before any ranking sees a candidate.
	AuthorizedCandidates(ctx context.Context, tenantId string, r Requester, sourceTypes []ConnectorType) ([]Candidate, error)

	// ReplaceFacts swaps the full fact set for one document; facts are
	// derived state and re-extracted whenever the document lands.
	ReplaceFacts(ctx context.Context, docId string, facts []Fact) error
	// AuthorizedFacts returns facts for the requested keys from documents the
	// requester can see, highest confidence first. Same grant predicate as
	// AuthorizedCandidates.
	AuthorizedFacts(ctx context.Context, tenantId string, r Requester, keys []string) ([]FactHit, error)

	Cursor(ctx context.Context, sourceId string) (SourceCursor, bool, error)
	SaveCursor(ctx context.Context, cursor SourceCursor) error
}

// IdentityStore resolves the requesting identity for ACL evaluation.
type IdentityStore interface {
	GetUser(ctx context.Context, tenantId string, userId string) (User, bool, error)
	GroupIdsForUser(ctx context.Context, userId string) ([]string, error)
}

// AuditStore is append-only; entries are never mutated.
type AuditStore interface {
	Append(ctx context.Context, entry AuditEntry) error
}

type FeedbackStore interface {
	Save(ctx context.Context, fb Feedback) error
}
