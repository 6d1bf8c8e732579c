package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/akolanti/RagAPI/internal/adapter/utils"
	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/facts"
	"github.com/akolanti/RagAPI/internal/metrics"
	"github.com/akolanti/RagAPI/internal/rag/embedding"
	"github.com/akolanti/RagAPI/internal/rag/vectorDB"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

var (
	ErrSourceNotFound       = errors.New("source not found")
	ErrSourceDisabled       = errors.New("source is disabled")
	ErrUnsupportedConnector = errors.New("no connector for source type")
)

// Pipeline turns source content into chunks, embeddings and grants. Runs are
// idempotent: unchanged documents are fingerprint-matched and skipped without
// a single embedding call, and a re-run after a crash converges on the same
// state.
type Pipeline struct {
	store      commonModels.ContentStore
	embedder   embedding.Embedder
	index      vectorDB.Writer
	connectors map[commonModels.ConnectorType]Connector
	factRules  []facts.Rule
	logger     *logger_i.Logger
}

// NewPipeline wires the pipeline. index may be nil when no external vector
// index is configured; retrieval then scores against the content store
// directly.
func NewPipeline(store commonModels.ContentStore, embedder embedding.Embedder, index vectorDB.Writer, connectors map[commonModels.ConnectorType]Connector) *Pipeline {
	return &Pipeline{
		store:      store,
		embedder:   embedder,
		index:      index,
		connectors: connectors,
		factRules:  facts.DefaultRules(),
		logger:     logger_i.NewLogger("Ingest Pipeline"),
	}
}

// ProcessSource runs one sync: fetch changed documents from the cursor,
// upsert each, then advance the cursor. The cursor moves only after every
// document landed, so a failed run is re-read in full next time.
func (p *Pipeline) ProcessSource(ctx context.Context, sourceId string) error {
	log := p.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "sourceId", sourceId)

	source, found, err := p.store.GetSource(ctx, sourceId)
	if err != nil {
		return err
	}
	if !found {
		return ErrSourceNotFound
	}
	if source.Status != commonModels.SourceActive {
		return ErrSourceDisabled
	}

	connector, ok := p.connectors[source.ConnectorType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedConnector, source.ConnectorType)
	}

	cursor, _, err := p.store.Cursor(ctx, sourceId)
	if err != nil {
		return err
	}

	docs, nextCursor, err := connector.Fetch(ctx, source, cursor.Value)
	if err != nil {
		return fmt.Errorf("fetching source: %w", err)
	}
	log.Info("fetched documents", "changed", len(docs))

	for _, doc := range docs {
		if err := p.UpsertDocument(ctx, source, doc); err != nil {
			return fmt.Errorf("upserting document %s: %w", doc.ExternalId, err)
		}
	}

	if nextCursor != "" && nextCursor != cursor.Value {
		err = p.store.SaveCursor(ctx, commonModels.SourceCursor{
			SourceId:  sourceId,
			Value:     nextCursor,
			UpdatedAt: time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("saving cursor: %w", err)
		}
	}
	return nil
}

// UpsertDocument lands one document: whole-document fingerprint first, then a
// per-chunk diff where only chunks whose text hash moved are re-embedded.
// Chunk identity is (document, position).
func (p *Pipeline) UpsertDocument(ctx context.Context, source commonModels.Source, sd SourceDocument) error {
	log := p.logger.With("traceId", ctx.Value(config.TRACE_ID_KEY), "externalId", sd.ExternalId)

	contentHash := HashText(sd.Text)
	doc, found, err := p.store.GetDocument(ctx, source.Id, sd.ExternalId)
	if err != nil {
		return err
	}

	if found && doc.ContentHash == contentHash {
		chunks, err := p.store.ChunksByDocument(ctx, doc.Id)
		if err != nil {
			return err
		}
		for range chunks {
			metrics.RecordEmbedding("skipped")
		}
		log.Debug("document unchanged, skipping", "chunks", len(chunks))
		return nil
	}

	if !found {
		doc = commonModels.Document{
			Id:         utils.GetNewUUID(),
			SourceId:   source.Id,
			TenantId:   source.TenantId,
			ExternalId: sd.ExternalId,
		}
	}
	doc.Title = sd.Title
	doc.CanonicalURL = sd.CanonicalURL
	doc.ContentHash = contentHash
	doc.UpdatedAt = time.Now().UTC()

	if err := p.store.SaveDocument(ctx, doc); err != nil {
		return err
	}
	if err := p.store.ReplaceACL(ctx, doc.Id, sd.ACL); err != nil {
		return err
	}

	existing, err := p.store.ChunksByDocument(ctx, doc.Id)
	if err != nil {
		return err
	}
	existingByPos := make(map[int]commonModels.Chunk, len(existing))
	for _, c := range existing {
		existingByPos[c.Position] = c
	}

	sections := SplitByHeading(sd.Text, config.MaxChunkChars)

	// first pass: decide which positions actually changed
	var changed []commonModels.Chunk
	var changedTexts []string
	for i, section := range sections {
		textHash := HashText(section.Text)
		if prior, ok := existingByPos[i]; ok && prior.TextHash == textHash {
			metrics.RecordEmbedding("skipped")
			continue
		}

		chunk := commonModels.Chunk{
			Id:          utils.GetNewUUID(),
			DocumentId:  doc.Id,
			Position:    i,
			HeadingPath: section.Heading,
			Text:        section.Text,
			TextHash:    textHash,
		}
		if prior, ok := existingByPos[i]; ok {
			chunk.Id = prior.Id
		}
		changed = append(changed, chunk)
		changedTexts = append(changedTexts, section.Text)
	}

	if len(changed) > 0 {
		vectors, err := p.embedWithRetry(ctx, changedTexts)
		if err != nil {
			return fmt.Errorf("embedding chunks: %w", err)
		}
		if len(vectors) != len(changed) {
			return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(changed))
		}
		for i, chunk := range changed {
			emb := commonModels.Embedding{
				ChunkId: chunk.Id,
				Model:   config.GoogleEmbeddingModel,
				Vector:  vectors[i],
			}
			if err := p.store.UpsertChunk(ctx, chunk, emb); err != nil {
				return err
			}
			metrics.RecordEmbedding("computed")
		}
	}

	// chunks past the new tail are gone from the document
	var removedIds []string
	for _, c := range existing {
		if c.Position >= len(sections) {
			removedIds = append(removedIds, c.Id)
		}
	}
	if err := p.store.DeleteChunksAfter(ctx, doc.Id, len(sections)-1); err != nil {
		return err
	}

	if err := p.refreshFacts(ctx, doc); err != nil {
		return fmt.Errorf("extracting facts: %w", err)
	}

	log.Info("document landed", "chunks", len(sections), "embedded", len(changed), "removed", len(removedIds))
	return p.mirrorToIndex(ctx, doc, source, sd.ACL, removedIds)
}

// refreshFacts re-derives the document's fact rows from its current chunks.
// Derived state only; a full replace keeps reruns idempotent.
func (p *Pipeline) refreshFacts(ctx context.Context, doc commonModels.Document) error {
	chunks, err := p.store.ChunksByDocument(ctx, doc.Id)
	if err != nil {
		return err
	}

	best := make(map[string]commonModels.Fact)
	var order []string
	for _, chunk := range chunks {
		for _, extracted := range facts.Extract(chunk.Text, p.factRules) {
			prior, seen := best[extracted.Key]
			if seen && prior.Confidence >= extracted.Confidence {
				continue
			}
			if !seen {
				order = append(order, extracted.Key)
			}
			best[extracted.Key] = commonModels.Fact{
				Id:         utils.GetNewUUID(),
				TenantId:   doc.TenantId,
				DocumentId: doc.Id,
				ChunkId:    chunk.Id,
				Key:        extracted.Key,
				Value:      extracted.Value,
				Confidence: extracted.Confidence,
			}
		}
	}

	out := make([]commonModels.Fact, 0, len(best))
	for _, key := range order {
		out = append(out, best[key])
	}
	return p.store.ReplaceFacts(ctx, doc.Id, out)
}

// mirrorToIndex rewrites the document's points so the external index carries
// the current text, grants and recency payload even for chunks whose vectors
// did not change.
func (p *Pipeline) mirrorToIndex(ctx context.Context, doc commonModels.Document, source commonModels.Source, grants []commonModels.ACLGrant, removedIds []string) error {
	if p.index == nil {
		return nil
	}

	chunks, err := p.store.ChunksByDocument(ctx, doc.Id)
	if err != nil {
		return err
	}
	embeddings, err := p.store.EmbeddingsByDocument(ctx, doc.Id)
	if err != nil {
		return err
	}

	vectors := make([][]float32, len(chunks))
	for i, chunk := range chunks {
		emb, ok := embeddings[chunk.Id]
		if !ok {
			return fmt.Errorf("chunk %s has no embedding", chunk.Id)
		}
		vectors[i] = emb.Vector
	}

	if err := p.index.UpsertChunks(ctx, doc, source, grants, chunks, vectors); err != nil {
		return fmt.Errorf("mirroring chunks to index: %w", err)
	}
	if err := p.index.DeleteChunks(ctx, removedIds); err != nil {
		return fmt.Errorf("removing stale index points: %w", err)
	}
	return nil
}

func (p *Pipeline) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32
	operation := func() error {
		var err error
		vectors, err = p.embedder.BatchEmbedding(ctx, texts, false)
		return err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = config.EmbeddingMaxElapsedTime
	err := backoff.Retry(operation, backoff.WithContext(policy, ctx))
	return vectors, err
}
