package handlers

import (
	"errors"
	"net/http"
	"sync"

	"github.com/akolanti/RagAPI/internal/adapter"
	"github.com/akolanti/RagAPI/internal/adapter/utils"
	"github.com/akolanti/RagAPI/internal/api"
	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/rag"
	"github.com/akolanti/RagAPI/internal/syncjob"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

var (
	handlerInstance *serviceHandler //private singleton
	once            sync.Once
	logJH           *logger_i.Logger
)

type serviceHandler struct {
	askService rag.Service
	syncs      syncjob.Service
	content    commonModels.ContentStore
	identity   commonModels.IdentityStore
	feedback   commonModels.FeedbackStore
}

type HandlerConfig struct {
	AskService    rag.Service
	SyncService   syncjob.Service
	ContentStore  commonModels.ContentStore
	IdentityStore commonModels.IdentityStore
	FeedbackStore commonModels.FeedbackStore
}

func InitHandlers(cfg HandlerConfig) {
	once.Do(func() {
		handlerInstance = &serviceHandler{
			askService: cfg.AskService,
			syncs:      cfg.SyncService,
			content:    cfg.ContentStore,
			identity:   cfg.IdentityStore,
			feedback:   cfg.FeedbackStore,
		}

		logJH = logger_i.NewLogger("JobHandler")
		logRH = logger_i.NewLogger("RequestHandler")
		logJH.Info("Starting request handlers")
	})
}

// SyncSourceHandler godoc
// @Summary      Trigger a source sync
// @Description  Enqueues an incremental sync job for the source. Only one job per source can be active; a second trigger returns the running job.
// @Tags         Ingestion
// @Produce      json
// @Param        id   path      string  true  "Source ID"
// @Success      202  {object}  api.InitSyncResponse  "Sync job enqueued"
// @Failure      404  {object}  api.ErrorResponse     "Source not found"
// @Failure      409  {object}  api.InitSyncResponse  "A job for this source is already active"
// @Router       /sources/{id}/sync [post]
func SyncSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logJH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	sourceId := utils.GetChiURLParam(r, "id")
	if sourceId == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "source id is required")
		return
	}

	source, found, err := handlerInstance.content.GetSource(r.Context(), sourceId)
	if err != nil {
		logJH.Error("Source lookup failed", "sourceId", sourceId, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Source lookup failed")
		return
	}
	if !found {
		WriteErrorResponse(w, http.StatusNotFound, "Source not found")
		return
	}

	job, err := handlerInstance.syncs.Enqueue(r.Context(), sourceId, syncjob.JobTypeForConnector(source.ConnectorType))
	if errors.Is(err, syncjob.ErrJobAlreadyActive) {
		// The caller gets the live job so it can poll instead of retrying.
		writeJsonResponse(w, http.StatusConflict, adapter.ToInitSyncResponse(job))
		return
	}
	if err != nil {
		logJH.Error("Enqueue failed", "sourceId", sourceId, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Could not enqueue sync job")
		return
	}

	writeJsonResponse(w, http.StatusAccepted, adapter.ToInitSyncResponse(job))
}

// GetJobStatusHandler godoc
// @Summary      Get sync job status
// @Description  Retrieves the current status of a sync job using its ID.
// @Tags         Job Status
// @Produce      json
// @Param        id   path      string  true  "Job ID"
// @Success      200  {object}  api.SyncJobResponse  "The current status of the job"
// @Failure      404  {object}  api.ErrorResponse    "Job not found"
// @Router       /jobs/{id} [get]
func GetJobStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logJH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	idString := utils.GetChiURLParam(r, "id")
	logJH.Debug("Get Status Request:", "URL path", r.URL.Path)

	if idString == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "job id is required")
		return
	}

	job, found := handlerInstance.syncs.Get(r.Context(), idString)
	if !found {
		WriteErrorResponse(w, http.StatusNotFound, "Job not found")
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToSyncJobResponse(job))
}

func enqueueUpload(r *http.Request, w http.ResponseWriter, source commonModels.Source) {
	if err := handlerInstance.content.SaveSource(r.Context(), source); err != nil {
		logJH.Error("Could not save source", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Storage error")
		return
	}

	job, err := handlerInstance.syncs.Enqueue(r.Context(), source.Id, syncjob.JobTypeForConnector(source.ConnectorType))
	if err != nil {
		logJH.Error("Could not enqueue ingest job", "sourceId", source.Id, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Could not enqueue ingest job")
		return
	}

	traceId, _ := r.Context().Value(config.TRACE_ID_KEY).(string)
	logJH.Info("Upload source created", "traceId", traceId, "sourceId", source.Id, "jobId", job.Id)
	writeJsonResponse(w, http.StatusAccepted, api.CreateSourceResponse{SourceId: source.Id, JobId: job.Id})
}
