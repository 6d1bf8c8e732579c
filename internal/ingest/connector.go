package ingest

import (
	"context"

	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

// SourceDocument is one document as a connector hands it to the pipeline,
// before chunking or fingerprinting.
type SourceDocument struct {
	ExternalId   string
	Title        string
	CanonicalURL string
	Text         string
	ACL          []commonModels.ACLGrant
}

// Connector pulls documents from one source type. Fetch returns only
// documents changed since the cursor, plus the cursor value to persist when
// the whole run succeeds. Connectors must be safe to re-run with the same
// cursor: the pipeline's fingerprint diff absorbs duplicates.
type Connector interface {
	Fetch(ctx context.Context, source commonModels.Source, cursor string) ([]SourceDocument, string, error)
}

// defaultACL is applied when a source configures no grants: visible to
// everyone in the tenant.
func defaultACL(configured []commonModels.ACLGrant) []commonModels.ACLGrant {
	if len(configured) > 0 {
		return configured
	}
	return []commonModels.ACLGrant{{
		PrincipalType: commonModels.PrincipalPublic,
		PrincipalId:   commonModels.PublicPrincipalId,
	}}
}
