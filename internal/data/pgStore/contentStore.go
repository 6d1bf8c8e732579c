package pgStore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/lib/pq"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

type sourceRow struct {
	Id            string `db:"id"`
	WorkspaceId   string `db:"workspace_id"`
	TenantId      string `db:"tenant_id"`
	ConnectorType string `db:"connector_type"`
	Name          string `db:"name"`
	Config        []byte `db:"config"`
	Status        string `db:"status"`
}

func (s *Store) GetSource(ctx context.Context, id string) (commonModels.Source, bool, error) {
	var row sourceRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM sources WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return commonModels.Source{}, false, nil
	} else if err != nil {
		return commonModels.Source{}, false, err
	}

	source := commonModels.Source{
		Id:            row.Id,
		WorkspaceId:   row.WorkspaceId,
		TenantId:      row.TenantId,
		ConnectorType: commonModels.ConnectorType(row.ConnectorType),
		Name:          row.Name,
		Status:        commonModels.SourceStatus(row.Status),
	}
	if err = json.Unmarshal(row.Config, &source.Config); err != nil {
		return commonModels.Source{}, false, err
	}
	return source, true, nil
}

func (s *Store) SaveSource(ctx context.Context, source commonModels.Source) error {
	cfg, err := json.Marshal(source.Config)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sources (id, workspace_id, tenant_id, connector_type, name, config, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, config = EXCLUDED.config, status = EXCLUDED.status`,
		source.Id, source.WorkspaceId, source.TenantId, source.ConnectorType, source.Name, cfg, source.Status)
	return err
}

func (s *Store) GetDocument(ctx context.Context, sourceId string, externalId string) (commonModels.Document, bool, error) {
	var doc commonModels.Document
	err := s.db.GetContext(ctx, &doc,
		`SELECT * FROM documents WHERE source_id = $1 AND external_id = $2`, sourceId, externalId)
	if errors.Is(err, sql.ErrNoRows) {
		return commonModels.Document{}, false, nil
	}
	return doc, err == nil, err
}

func (s *Store) SaveDocument(ctx context.Context, doc commonModels.Document) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, source_id, tenant_id, external_id, title, canonical_url, content_hash, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title, canonical_url = EXCLUDED.canonical_url,
			content_hash = EXCLUDED.content_hash, updated_at = EXCLUDED.updated_at`,
		doc.Id, doc.SourceId, doc.TenantId, doc.ExternalId, doc.Title, doc.CanonicalURL, doc.ContentHash, doc.UpdatedAt)
	return err
}

func (s *Store) DeleteDocument(ctx context.Context, docId string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, docId)
	return err
}

func (s *Store) ChunksByDocument(ctx context.Context, docId string) ([]commonModels.Chunk, error) {
	var chunks []commonModels.Chunk
	err := s.db.SelectContext(ctx, &chunks,
		`SELECT * FROM chunks WHERE document_id = $1 ORDER BY position`, docId)
	return chunks, err
}

// UpsertChunk writes chunk and embedding in one transaction so a reader never
// pairs new text with an old vector.
func (s *Store) UpsertChunk(ctx context.Context, chunk commonModels.Chunk, emb commonModels.Embedding) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO chunks (id, document_id, position, heading_path, text, text_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (document_id, position) DO UPDATE SET
			id = EXCLUDED.id, heading_path = EXCLUDED.heading_path,
			text = EXCLUDED.text, text_hash = EXCLUDED.text_hash`,
		chunk.Id, chunk.DocumentId, chunk.Position, chunk.HeadingPath, chunk.Text, chunk.TextHash)
	if err != nil {
		return err
	}

	vector := make([]float64, len(emb.Vector))
	for i, v := range emb.Vector {
		vector[i] = float64(v)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO embeddings (chunk_id, model, vector)
		VALUES ($1, $2, $3)
		ON CONFLICT (chunk_id) DO UPDATE SET model = EXCLUDED.model, vector = EXCLUDED.vector`,
		emb.ChunkId, emb.Model, pq.Array(vector))
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) DeleteChunksAfter(ctx context.Context, docId string, lastPosition int) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM chunks WHERE document_id = $1 AND position > $2`, docId, lastPosition)
	return err
}

func (s *Store) EmbeddingsByDocument(ctx context.Context, docId string) (map[string]commonModels.Embedding, error) {
	var rows []struct {
		ChunkId string          `db:"chunk_id"`
		Model   string          `db:"model"`
		Vector  pq.Float64Array `db:"vector"`
	}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT e.chunk_id, e.model, e.vector
		FROM embeddings e JOIN chunks c ON c.id = e.chunk_id
		WHERE c.document_id = $1`, docId)
	if err != nil {
		return nil, err
	}

	out := make(map[string]commonModels.Embedding, len(rows))
	for _, row := range rows {
		vector := make([]float32, len(row.Vector))
		for i, v := range row.Vector {
			vector[i] = float32(v)
		}
		out[row.ChunkId] = commonModels.Embedding{ChunkId: row.ChunkId, Model: row.Model, Vector: vector}
	}
	return out, nil
}

func (s *Store) ReplaceACL(ctx context.Context, docId string, grants []commonModels.ACLGrant) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM document_acl WHERE document_id = $1`, docId); err != nil {
		return err
	}
	for _, g := range grants {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO document_acl (document_id, principal_type, principal_id)
			VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			docId, g.PrincipalType, g.PrincipalId)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ACLForDocument(ctx context.Context, docId string) ([]commonModels.ACLGrant, error) {
	var grants []commonModels.ACLGrant
	err := s.db.SelectContext(ctx, &grants,
		`SELECT principal_type, principal_id FROM document_acl WHERE document_id = $1`, docId)
	return grants, err
}

type candidateRow struct {
	ChunkId      string          `db:"chunk_id"`
	DocumentId   string          `db:"document_id"`
	Position     int             `db:"position"`
	HeadingPath  string          `db:"heading_path"`
	Text         string          `db:"text"`
	TextHash     string          `db:"text_hash"`
	SourceId     string          `db:"source_id"`
	Title        string          `db:"title"`
	CanonicalURL string          `db:"canonical_url"`
	UpdatedAt    time.Time       `db:"updated_at"`
	Vector       pq.Float64Array `db:"vector"`
}

// AuthorizedCandidates applies the grant predicate inside the query, so an
// unauthorized chunk never reaches ranking.
func (s *Store) AuthorizedCandidates(ctx context.Context, tenantId string, r commonModels.Requester, sourceTypes []commonModels.ConnectorType) ([]commonModels.Candidate, error) {
	types := make([]string, len(sourceTypes))
	for i, t := range sourceTypes {
		types[i] = string(t)
	}
	groupIds := r.GroupIds
	if groupIds == nil {
		groupIds = []string{}
	}

	var rows []candidateRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT c.id AS chunk_id, c.document_id, c.position, c.heading_path, c.text, c.text_hash,
		       d.source_id, d.title, d.canonical_url, d.updated_at, e.vector
		FROM chunks c
		JOIN embeddings e ON e.chunk_id = c.id
		JOIN documents d ON d.id = c.document_id
		JOIN sources s ON s.id = d.source_id
		WHERE d.tenant_id = $1
		  AND s.status = 'active'
		  AND (cardinality($2::text[]) = 0 OR s.connector_type = ANY($2))
		  AND EXISTS (
			SELECT 1 FROM document_acl a
			WHERE a.document_id = d.id
			  AND ((a.principal_type = 'public' AND a.principal_id = 'all')
			    OR (a.principal_type = 'user'  AND a.principal_id = $3)
			    OR (a.principal_type = 'email' AND a.principal_id = $4)
			    OR (a.principal_type = 'group' AND a.principal_id = ANY($5)))
		  )
		ORDER BY c.document_id, c.position`,
		tenantId, pq.Array(types), r.UserId, r.Email, pq.Array(groupIds))
	if err != nil {
		return nil, err
	}

	candidates := make([]commonModels.Candidate, 0, len(rows))
	for _, row := range rows {
		vector := make([]float32, len(row.Vector))
		for i, v := range row.Vector {
			vector[i] = float32(v)
		}
		candidates = append(candidates, commonModels.Candidate{
			Chunk: commonModels.Chunk{
				Id:          row.ChunkId,
				DocumentId:  row.DocumentId,
				Position:    row.Position,
				HeadingPath: row.HeadingPath,
				Text:        row.Text,
				TextHash:    row.TextHash,
			},
			DocumentId:   row.DocumentId,
			SourceId:     row.SourceId,
			Title:        row.Title,
			CanonicalURL: row.CanonicalURL,
			DocUpdatedAt: row.UpdatedAt,
			Vector:       vector,
		})
	}
	return candidates, nil
}

func (s *Store) ReplaceFacts(ctx context.Context, docId string, facts []commonModels.Fact) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, `DELETE FROM facts WHERE document_id = $1`, docId); err != nil {
		return err
	}
	for _, f := range facts {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO facts (id, tenant_id, document_id, chunk_id, fact_key, fact_value, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			f.Id, f.TenantId, f.DocumentId, f.ChunkId, f.Key, f.Value, f.Confidence)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// AuthorizedFacts applies the same grant predicate as AuthorizedCandidates;
// an unauthorized fact never leaves the query.
func (s *Store) AuthorizedFacts(ctx context.Context, tenantId string, r commonModels.Requester, keys []string) ([]commonModels.FactHit, error) {
	groupIds := r.GroupIds
	if groupIds == nil {
		groupIds = []string{}
	}

	var hits []commonModels.FactHit
	err := s.db.SelectContext(ctx, &hits, `
		SELECT f.id, f.tenant_id, f.document_id, f.chunk_id, f.fact_key, f.fact_value, f.confidence,
		       d.title, d.canonical_url
		FROM facts f
		JOIN documents d ON d.id = f.document_id
		JOIN sources s ON s.id = d.source_id
		WHERE f.tenant_id = $1
		  AND s.status = 'active'
		  AND f.fact_key = ANY($2)
		  AND EXISTS (
			SELECT 1 FROM document_acl a
			WHERE a.document_id = d.id
			  AND ((a.principal_type = 'public' AND a.principal_id = 'all')
			    OR (a.principal_type = 'user'  AND a.principal_id = $3)
			    OR (a.principal_type = 'email' AND a.principal_id = $4)
			    OR (a.principal_type = 'group' AND a.principal_id = ANY($5)))
		  )
		ORDER BY f.confidence DESC, f.id`,
		tenantId, pq.Array(keys), r.UserId, r.Email, pq.Array(groupIds))
	return hits, err
}

func (s *Store) Cursor(ctx context.Context, sourceId string) (commonModels.SourceCursor, bool, error) {
	var cursor commonModels.SourceCursor
	err := s.db.GetContext(ctx, &cursor,
		`SELECT * FROM source_cursors WHERE source_id = $1`, sourceId)
	if errors.Is(err, sql.ErrNoRows) {
		return commonModels.SourceCursor{}, false, nil
	}
	return cursor, err == nil, err
}

func (s *Store) SaveCursor(ctx context.Context, cursor commonModels.SourceCursor) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_cursors (source_id, cursor_value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id) DO UPDATE SET cursor_value = EXCLUDED.cursor_value, updated_at = EXCLUDED.updated_at`,
		cursor.SourceId, cursor.Value, cursor.UpdatedAt)
	return err
}
