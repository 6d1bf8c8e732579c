package qdrantDB

import (
	"context"
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"

	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/rag/retrieval"
)

// Query runs the similarity search with the authorization filter inside the
// qdrant query itself: a point is only scored when its acl payload shares a
// key with the requester, so unauthorized chunks never reach ranking.
func (db *ClientHolder) Query(ctx context.Context, tenantId string, r commonModels.Requester, sourceTypes []commonModels.ConnectorType, vector []float32, limit int) ([]retrieval.Hit, error) {
	loggr := logger.With("traceId", ctx.Value(config.TRACE_ID_KEY))

	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         queryFilter(tenantId, r, sourceTypes),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Error querying Qdrant: ", "error:", err)
		return nil, err
	}

	hits := make([]retrieval.Hit, 0, len(result))
	for _, point := range result {
		payload := point.Payload
		hits = append(hits, retrieval.Hit{
			Candidate: commonModels.Candidate{
				Chunk: commonModels.Chunk{
					Id:          payload["chunk_id"].GetStringValue(),
					DocumentId:  payload["document_id"].GetStringValue(),
					Position:    int(payload["position"].GetIntegerValue()),
					HeadingPath: payload["heading_path"].GetStringValue(),
					Text:        payload["text"].GetStringValue(),
					TextHash:    payload["text_hash"].GetStringValue(),
				},
				DocumentId:   payload["document_id"].GetStringValue(),
				SourceId:     payload["source_id"].GetStringValue(),
				Title:        payload["title"].GetStringValue(),
				CanonicalURL: payload["canonical_url"].GetStringValue(),
				DocUpdatedAt: time.Unix(payload["doc_updated_at"].GetIntegerValue(), 0).UTC(),
			},
			Score: float64(point.Score),
		})
	}

	loggr.Debug("qdrant query complete", "hits", len(hits))
	return hits, nil
}

// queryFilter mirrors the SQL path's visibility predicate: tenant, grant
// overlap and an active source, with the connector filter when the persona
// narrows source types.
func queryFilter(tenantId string, r commonModels.Requester, sourceTypes []commonModels.ConnectorType) *qdrant.Filter {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{
			qdrant.NewMatch("tenant_id", tenantId),
			qdrant.NewMatch("source_status", string(commonModels.SourceActive)),
			qdrant.NewMatchKeywords("acl", r.PrincipalKeys()...),
		},
	}
	if len(sourceTypes) > 0 {
		types := make([]string, len(sourceTypes))
		for i, t := range sourceTypes {
			types[i] = string(t)
		}
		filter.Must = append(filter.Must, qdrant.NewMatchKeywords("connector_type", types...))
	}
	return filter
}

// UpsertChunks mirrors a document's chunks into the index, carrying the full
// grant set so later queries can filter without touching the content store.
func (db *ClientHolder) UpsertChunks(ctx context.Context, doc commonModels.Document, source commonModels.Source, grants []commonModels.ACLGrant, chunks []commonModels.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("mismatch: got %d chunks but %d vectors", len(chunks), len(vectors))
	}

	aclKeys := make([]any, len(grants))
	for i, g := range grants {
		aclKeys[i] = g.Key()
	}

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, chunk := range chunks {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.Id),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]any{
				"chunk_id":       chunk.Id,
				"document_id":    doc.Id,
				"position":       chunk.Position,
				"heading_path":   chunk.HeadingPath,
				"text":           chunk.Text,
				"text_hash":      chunk.TextHash,
				"source_id":      doc.SourceId,
				"tenant_id":      doc.TenantId,
				"title":          doc.Title,
				"canonical_url":  doc.CanonicalURL,
				"doc_updated_at": doc.UpdatedAt.Unix(),
				"connector_type": string(source.ConnectorType),
				"source_status":  string(source.Status),
				"acl":            aclKeys,
			}),
		}
	}

	_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collectionName,
		Points:         points,
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (db *ClientHolder) DeleteChunks(ctx context.Context, chunkIds []string) error {
	if len(chunkIds) == 0 {
		return nil
	}
	ids := make([]*qdrant.PointId, len(chunkIds))
	for i, id := range chunkIds {
		ids[i] = qdrant.NewID(id)
	}
	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Points:         qdrant.NewPointsSelector(ids...),
		Wait:           qdrant.PtrOf(true),
	})
	return err
}

func (db *ClientHolder) DeleteDocument(ctx context.Context, docId string) error {
	_, err := db.QObj.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collectionName,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("document_id", docId)},
		}),
		Wait: qdrant.PtrOf(true),
	})
	return err
}
