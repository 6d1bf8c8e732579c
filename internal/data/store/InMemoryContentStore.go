package store

import (
	"context"
	"sort"
	"sync"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

// InMemoryContentStore backs tests and single-node deployments. It keeps the
// same visibility rule as the SQL store: AuthorizedCandidates never returns a
// chunk whose document has no grant matching the requester.
type InMemoryContentStore struct {
	mu         *sync.RWMutex
	sources    map[string]commonModels.Source
	documents  map[string]commonModels.Document
	docByExtId map[string]string //sourceId+"/"+externalId -> docId
	chunks     map[string][]commonModels.Chunk
	embeddings map[string]commonModels.Embedding
	acl        map[string][]commonModels.ACLGrant
	facts      map[string][]commonModels.Fact
	cursors    map[string]commonModels.SourceCursor
}

func InitInMemoryContentStore() *InMemoryContentStore {
	return &InMemoryContentStore{
		mu:         new(sync.RWMutex),
		sources:    make(map[string]commonModels.Source),
		documents:  make(map[string]commonModels.Document),
		docByExtId: make(map[string]string),
		chunks:     make(map[string][]commonModels.Chunk),
		embeddings: make(map[string]commonModels.Embedding),
		acl:        make(map[string][]commonModels.ACLGrant),
		facts:      make(map[string][]commonModels.Fact),
		cursors:    make(map[string]commonModels.SourceCursor),
	}
}

func docKey(sourceId, externalId string) string {
	return sourceId + "/" + externalId
}

func (s *InMemoryContentStore) GetSource(ctx context.Context, id string) (commonModels.Source, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, found := s.sources[id]
	return src, found, nil
}

func (s *InMemoryContentStore) SaveSource(ctx context.Context, source commonModels.Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[source.Id] = source
	return nil
}

func (s *InMemoryContentStore) GetDocument(ctx context.Context, sourceId string, externalId string) (commonModels.Document, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docId, found := s.docByExtId[docKey(sourceId, externalId)]
	if !found {
		return commonModels.Document{}, false, nil
	}
	doc, found := s.documents[docId]
	return doc, found, nil
}

func (s *InMemoryContentStore) SaveDocument(ctx context.Context, doc commonModels.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents[doc.Id] = doc
	s.docByExtId[docKey(doc.SourceId, doc.ExternalId)] = doc.Id
	return nil
}

func (s *InMemoryContentStore) DeleteDocument(ctx context.Context, docId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, found := s.documents[docId]
	if !found {
		return nil
	}
	delete(s.docByExtId, docKey(doc.SourceId, doc.ExternalId))
	delete(s.documents, docId)
	for _, chunk := range s.chunks[docId] {
		delete(s.embeddings, chunk.Id)
	}
	delete(s.chunks, docId)
	delete(s.acl, docId)
	delete(s.facts, docId)
	return nil
}

func (s *InMemoryContentStore) ChunksByDocument(ctx context.Context, docId string) ([]commonModels.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	chunks := make([]commonModels.Chunk, len(s.chunks[docId]))
	copy(chunks, s.chunks[docId])
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Position < chunks[j].Position })
	return chunks, nil
}

func (s *InMemoryContentStore) UpsertChunk(ctx context.Context, chunk commonModels.Chunk, emb commonModels.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing := s.chunks[chunk.DocumentId]
	replaced := false
	for i, c := range existing {
		if c.Position == chunk.Position {
			delete(s.embeddings, c.Id)
			existing[i] = chunk
			replaced = true
			break
		}
	}
	if !replaced {
		existing = append(existing, chunk)
	}
	s.chunks[chunk.DocumentId] = existing
	s.embeddings[chunk.Id] = emb
	return nil
}

func (s *InMemoryContentStore) DeleteChunksAfter(ctx context.Context, docId string, lastPosition int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[docId][:0]
	for _, chunk := range s.chunks[docId] {
		if chunk.Position > lastPosition {
			delete(s.embeddings, chunk.Id)
			continue
		}
		kept = append(kept, chunk)
	}
	s.chunks[docId] = kept
	return nil
}

func (s *InMemoryContentStore) EmbeddingsByDocument(ctx context.Context, docId string) (map[string]commonModels.Embedding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]commonModels.Embedding)
	for _, chunk := range s.chunks[docId] {
		if emb, found := s.embeddings[chunk.Id]; found {
			out[chunk.Id] = emb
		}
	}
	return out, nil
}

func (s *InMemoryContentStore) ReplaceACL(ctx context.Context, docId string, grants []commonModels.ACLGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]commonModels.ACLGrant, len(grants))
	copy(copied, grants)
	s.acl[docId] = copied
	return nil
}

func (s *InMemoryContentStore) ACLForDocument(ctx context.Context, docId string) ([]commonModels.ACLGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	grants := make([]commonModels.ACLGrant, len(s.acl[docId]))
	copy(grants, s.acl[docId])
	return grants, nil
}

func (s *InMemoryContentStore) AuthorizedCandidates(ctx context.Context, tenantId string, r commonModels.Requester, sourceTypes []commonModels.ConnectorType) ([]commonModels.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeAllowed := func(t commonModels.ConnectorType) bool {
		if len(sourceTypes) == 0 {
			return true
		}
		for _, allowed := range sourceTypes {
			if allowed == t {
				return true
			}
		}
		return false
	}

	var candidates []commonModels.Candidate
	for docId, doc := range s.documents {
		if doc.TenantId != tenantId {
			continue
		}
		source, found := s.sources[doc.SourceId]
		if !found || source.Status != commonModels.SourceActive || !typeAllowed(source.ConnectorType) {
			continue
		}
		if !commonModels.VisibleTo(s.acl[docId], r) {
			continue
		}
		for _, chunk := range s.chunks[docId] {
			emb, found := s.embeddings[chunk.Id]
			if !found {
				continue
			}
			candidates = append(candidates, commonModels.Candidate{
				Chunk:        chunk,
				DocumentId:   doc.Id,
				SourceId:     doc.SourceId,
				Title:        doc.Title,
				CanonicalURL: doc.CanonicalURL,
				DocUpdatedAt: doc.UpdatedAt,
				Vector:       emb.Vector,
			})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].DocumentId != candidates[j].DocumentId {
			return candidates[i].DocumentId < candidates[j].DocumentId
		}
		return candidates[i].Chunk.Position < candidates[j].Chunk.Position
	})
	return candidates, nil
}

func (s *InMemoryContentStore) ReplaceFacts(ctx context.Context, docId string, facts []commonModels.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]commonModels.Fact, len(facts))
	copy(copied, facts)
	s.facts[docId] = copied
	return nil
}

func (s *InMemoryContentStore) AuthorizedFacts(ctx context.Context, tenantId string, r commonModels.Requester, keys []string) ([]commonModels.FactHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	var hits []commonModels.FactHit
	for docId, doc := range s.documents {
		if doc.TenantId != tenantId {
			continue
		}
		source, found := s.sources[doc.SourceId]
		if !found || source.Status != commonModels.SourceActive {
			continue
		}
		if !commonModels.VisibleTo(s.acl[docId], r) {
			continue
		}
		for _, fact := range s.facts[docId] {
			if !wanted[fact.Key] {
				continue
			}
			hits = append(hits, commonModels.FactHit{
				Fact:         fact,
				Title:        doc.Title,
				CanonicalURL: doc.CanonicalURL,
			})
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Confidence != hits[j].Confidence {
			return hits[i].Confidence > hits[j].Confidence
		}
		return hits[i].Id < hits[j].Id
	})
	return hits, nil
}

func (s *InMemoryContentStore) Cursor(ctx context.Context, sourceId string) (commonModels.SourceCursor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cursor, found := s.cursors[sourceId]
	return cursor, found, nil
}

func (s *InMemoryContentStore) SaveCursor(ctx context.Context, cursor commonModels.SourceCursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursor.SourceId] = cursor
	return nil
}
