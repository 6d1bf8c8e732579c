package adapter

import (
	"fmt"

	"github.com/akolanti/RagAPI/internal/api"
	"github.com/akolanti/RagAPI/internal/domain/jobModel"
	"github.com/akolanti/RagAPI/internal/rag"
)

func ToSyncJobResponse(job jobModel.SyncJob) api.SyncJobResponse {
	resp := api.SyncJobResponse{
		Id:          job.Id,
		SourceId:    job.SourceId,
		Type:        string(job.JobType),
		Status:      string(job.Status),
		Error:       job.Error,
		Attempt:     job.Attempt,
		CreatedTime: job.CreatedTime,
	}
	if !job.EndTime.IsZero() {
		end := job.EndTime
		resp.EndTime = &end
	}
	return resp
}

func ToInitSyncResponse(job jobModel.SyncJob) api.InitSyncResponse {
	return api.InitSyncResponse{
		JobId:     job.Id,
		Status:    string(job.Status),
		StatusURL: fmt.Sprintf("jobs/%s", job.Id),
	}
}

func ToAskResponse(resp rag.AskResponse) api.AskResponse {
	citations := make([]api.Citation, 0, len(resp.Citations))
	for _, c := range resp.Citations {
		citations = append(citations, api.Citation{
			DocumentId:   c.DocumentId,
			ChunkId:      c.ChunkId,
			Title:        c.Title,
			CanonicalURL: c.CanonicalURL,
			HeadingPath:  c.HeadingPath,
			Position:     c.Position,
			Score:        c.Score,
		})
	}
	return api.AskResponse{
		Answer:        resp.Answer,
		Citations:     citations,
		Persona:       resp.Persona,
		CacheHit:      resp.CacheHit,
		CitationsOnly: resp.CitationsOnly,
		FactBased:     resp.FactBased,
	}
}

func ToToolResponse(resp rag.ToolResponse) api.ToolResponse {
	return api.ToolResponse{Output: resp.Output, CacheHit: resp.CacheHit}
}

func BadRequest(message string, code int) api.ErrorResponse {
	return api.ErrorResponse{Code: code, Message: message}
}
