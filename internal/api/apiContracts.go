package api

import "time"

type ErrorResponse struct {
	Code    int    `json:"code" example:"404"`
	Message string `json:"message" example:"Job not found"`
}

type Citation struct {
	DocumentId   string  `json:"document_id"`
	ChunkId      string  `json:"chunk_id"`
	Title        string  `json:"title"`
	CanonicalURL string  `json:"canonical_url,omitempty"`
	HeadingPath  string  `json:"heading_path,omitempty"`
	Position     int     `json:"position"`
	Score        float64 `json:"score"`
}

type AskResponse struct {
	Answer        string     `json:"answer"`
	Citations     []Citation `json:"citations"`
	Persona       string     `json:"persona"`
	CacheHit      bool       `json:"cache_hit"`
	CitationsOnly bool       `json:"citations_only"`
	FactBased     bool       `json:"fact_based"`
}

type ToolResponse struct {
	Output   string `json:"output"`
	CacheHit bool   `json:"cache_hit"`
}

type SyncJobResponse struct {
	Id          string     `json:"id" example:"job_cz109"`
	SourceId    string     `json:"source_id"`
	Type        string     `json:"type" example:"sync_drive"`
	Status      string     `json:"status" example:"queued"`
	Error       string     `json:"error,omitempty"`
	Attempt     int        `json:"attempt"`
	CreatedTime time.Time  `json:"created_time"`
	EndTime     *time.Time `json:"end_time,omitempty"`
}

type InitSyncResponse struct {
	JobId     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

type CreateSourceResponse struct {
	SourceId string `json:"source_id"`
	JobId    string `json:"job_id"`
}

// requests---------------------

type AskRequest struct {
	TenantId string `json:"tenant_id" validate:"required"`
	UserId   string `json:"user_id" validate:"required"`
	Persona  string `json:"persona" validate:"required"`
	Query    string `json:"query" validate:"required"`
}

type ToolRunRequest struct {
	TenantId string            `json:"tenant_id" validate:"required"`
	UserId   string            `json:"user_id" validate:"required"`
	Persona  string            `json:"persona" validate:"required"`
	Tool     string            `json:"tool" validate:"required"`
	Args     map[string]string `json:"args,omitempty"`
}

type FeedbackRequest struct {
	UserId  string `json:"user_id" validate:"required"`
	Rating  int    `json:"rating" validate:"required"`
	Comment string `json:"comment,omitempty"`
}
