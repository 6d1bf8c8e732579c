package commonModels

import (
	"time"
)

type ConnectorType string
type PrincipalType string
type SourceStatus string

const (
	ConnectorUpload ConnectorType = "upload"
	ConnectorDrive  ConnectorType = "drive"
	ConnectorNotion ConnectorType = "notion"
	ConnectorGithub ConnectorType = "github"

	PrincipalUser   PrincipalType = "user"
	PrincipalEmail  PrincipalType = "email"
	PrincipalGroup  PrincipalType = "group"
	PrincipalPublic PrincipalType = "public"

	//the public marker grant is always (public, "all")
	PublicPrincipalId = "all"

	SourceActive   SourceStatus = "active"
	SourceDisabled SourceStatus = "disabled"
)

type Tenant struct {
	Id        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Workspace struct {
	Id       string `json:"id" db:"id"`
	TenantId string `json:"tenant_id" db:"tenant_id"`
	Name     string `json:"name" db:"name"`
}

type User struct {
	Id          string `json:"id" db:"id"`
	TenantId    string `json:"tenant_id" db:"tenant_id"`
	Email       string `json:"email" db:"email"`
	DisplayName string `json:"display_name" db:"display_name"`
	IsActive    bool   `json:"is_active" db:"is_active"`
}

// UserIdentity links a user to one external provider account.
// (provider, provider_user_id) is unique across the tenant.
type UserIdentity struct {
	Id             string `json:"id" db:"id"`
	UserId         string `json:"user_id" db:"user_id"`
	Provider       string `json:"provider" db:"provider"`
	ProviderUserId string `json:"provider_user_id" db:"provider_user_id"`
}

type Group struct {
	Id              string `json:"id" db:"id"`
	TenantId        string `json:"tenant_id" db:"tenant_id"`
	ExternalGroupId string `json:"external_group_id" db:"external_group_id"`
	Name            string `json:"name" db:"name"`
}

type GroupMembership struct {
	GroupId string `json:"group_id" db:"group_id"`
	UserId  string `json:"user_id" db:"user_id"`
}

// ACLGrant is one visibility grant on a document.
type ACLGrant struct {
	PrincipalType PrincipalType `json:"principal_type" db:"principal_type"`
	PrincipalId   string        `json:"principal_id" db:"principal_id"`
}

// Requester is the resolved identity a retrieval call runs as.
type Requester struct {
	UserId   string
	Email    string
	GroupIds []string
}

// Matches reports whether this grant makes a document visible to the requester.
func (g ACLGrant) Matches(r Requester) bool {
	switch g.PrincipalType {
	case PrincipalPublic:
		return g.PrincipalId == PublicPrincipalId
	case PrincipalUser:
		return g.PrincipalId == r.UserId
	case PrincipalEmail:
		return g.PrincipalId == r.Email
	case PrincipalGroup:
		for _, id := range r.GroupIds {
			if id == g.PrincipalId {
				return true
			}
		}
	}
	return false
}

// Key flattens a grant to one "type:id" string for index payload filters.
func (g ACLGrant) Key() string {
	return string(g.PrincipalType) + ":" + g.PrincipalId
}

// PrincipalKeys lists every grant key that makes a document visible to the
// requester, in the same "type:id" form as ACLGrant.Key.
func (r Requester) PrincipalKeys() []string {
	keys := []string{
		string(PrincipalPublic) + ":" + PublicPrincipalId,
		string(PrincipalUser) + ":" + r.UserId,
		string(PrincipalEmail) + ":" + r.Email,
	}
	for _, id := range r.GroupIds {
		keys = append(keys, string(PrincipalGroup)+":"+id)
	}
	return keys
}

// VisibleTo is the ACL predicate: OR over all grants, no grants means invisible.
func VisibleTo(grants []ACLGrant, r Requester) bool {
	for _, g := range grants {
		if g.Matches(r) {
			return true
		}
	}
	return false
}

type SourceConfig struct {
	//upload connector
	Text         string `json:"text,omitempty"`
	FilePath     string `json:"file_path,omitempty"`
	ExternalId   string `json:"external_id,omitempty"`
	Title        string `json:"title,omitempty"`
	CanonicalURL string `json:"canonical_url,omitempty"`

	//pull connectors
	FolderIds []string `json:"folder_ids,omitempty"`

	ACL []ACLGrant `json:"acl,omitempty"`
}

type Source struct {
	Id            string        `json:"id" db:"id"`
	WorkspaceId   string        `json:"workspace_id" db:"workspace_id"`
	TenantId      string        `json:"tenant_id" db:"tenant_id"`
	ConnectorType ConnectorType `json:"connector_type" db:"connector_type"`
	Name          string        `json:"name" db:"name"`
	Config        SourceConfig  `json:"config"`
	Status        SourceStatus  `json:"status" db:"status"`
}

type Document struct {
	Id           string    `json:"id" db:"id"`
	SourceId     string    `json:"source_id" db:"source_id"`
	TenantId     string    `json:"tenant_id" db:"tenant_id"`
	ExternalId   string    `json:"external_id" db:"external_id"`
	Title        string    `json:"title" db:"title"`
	CanonicalURL string    `json:"canonical_url" db:"canonical_url"`
	ContentHash  string    `json:"content_hash" db:"content_hash"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Chunk identity is (DocumentId, Position).
type Chunk struct {
	Id          string `json:"id" db:"id"`
	DocumentId  string `json:"document_id" db:"document_id"`
	Position    int    `json:"position" db:"position"`
	HeadingPath string `json:"heading_path" db:"heading_path"`
	Text        string `json:"text" db:"text"`
	TextHash    string `json:"text_hash" db:"text_hash"`
}

type Embedding struct {
	ChunkId string    `json:"chunk_id" db:"chunk_id"`
	Model   string    `json:"model" db:"model"`
	Vector  []float32 `json:"vector"`
}

// Fact is one durable statement extracted from a chunk at ingestion time,
// addressable by a dotted key. Facts inherit the visibility of the document
// they came from.
type Fact struct {
	Id         string  `json:"id" db:"id"`
	TenantId   string  `json:"tenant_id" db:"tenant_id"`
	DocumentId string  `json:"document_id" db:"document_id"`
	ChunkId    string  `json:"chunk_id" db:"chunk_id"`
	Key        string  `json:"fact_key" db:"fact_key"`
	Value      string  `json:"fact_value" db:"fact_value"`
	Confidence float64 `json:"confidence" db:"confidence"`
}

// FactHit pairs a fact with the document metadata a citation needs.
type FactHit struct {
	Fact
	Title        string `db:"title"`
	CanonicalURL string `db:"canonical_url"`
}

// SourceCursor is the incremental-sync bookmark, advanced only on job success.
type SourceCursor struct {
	SourceId  string    `json:"source_id" db:"source_id"`
	Value     string    `json:"cursor_value" db:"cursor_value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Candidate is an authorization-filtered retrieval candidate: the chunk,
// the document metadata needed for citations and tie-breaks, and its vector.
type Candidate struct {
	Chunk        Chunk
	DocumentId   string
	SourceId     string
	Title        string
	CanonicalURL string
	DocUpdatedAt time.Time
	Vector       []float32
}

type AuditEntry struct {
	Id          string    `json:"id" db:"id"`
	TenantId    string    `json:"tenant_id" db:"tenant_id"`
	ActorUserId string    `json:"actor_user_id" db:"actor_user_id"`
	Action      string    `json:"action" db:"action"`
	Detail      string    `json:"detail" db:"detail"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

type Feedback struct {
	Id        string    `json:"id" db:"id"`
	UserId    string    `json:"user_id" db:"user_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
