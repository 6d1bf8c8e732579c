package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/RagAPI/internal/adapter"
	"github.com/akolanti/RagAPI/internal/adapter/utils"
	"github.com/akolanti/RagAPI/internal/api"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
	"github.com/akolanti/RagAPI/internal/policy"
	"github.com/akolanti/RagAPI/internal/rag"
	"github.com/akolanti/RagAPI/pkg/logger_i"
)

var logRH *logger_i.Logger

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	return
}

// AskHandler godoc
// @Summary      Ask a grounded question
// @Description  Retrieves chunks the requester is allowed to see, answers from cache when possible, and otherwise generates a cited answer under the persona's policy.
// @Tags         Ask
// @Accept       json
// @Produce      json
// @Param        request  body      api.AskRequest  true  "Tenant, requester, persona and query"
// @Success      200      {object}  api.AskResponse    "Grounded answer with citations"
// @Failure      400      {object}  api.ErrorResponse  "Invalid request data or unknown persona"
// @Failure      503      {object}  api.ErrorResponse  "Generation temporarily unavailable"
// @Router       /ask [post]
func AskHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", request.RemoteAddr)
		return
	}

	var requestData api.AskRequest
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			logRH.Error("Couldn't close the Ask handler reader :", err)
		}
	}(request.Body)
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || !validateAskRequest(requestData) {
		logRH.Warn("Bad Ask Request: ", "error:", err, "request data:", requestData)
		WriteErrorResponse(w, http.StatusBadRequest, "Bad Request")
		return
	}

	requester := resolveRequester(request.Context(), requestData.TenantId, requestData.UserId)
	resp, err := handlerInstance.askService.Ask(request.Context(), rag.AskRequest{
		TenantId:  requestData.TenantId,
		Requester: requester,
		Persona:   requestData.Persona,
		Query:     requestData.Query,
	})
	if err != nil {
		writeAskError(w, err)
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToAskResponse(resp))
}

// RunToolHandler godoc
// @Summary      Run a persona-allowed tool
// @Description  Executes a named tool if the persona's allowlist permits it. Results are cached by tool name and arguments.
// @Tags         Ask
// @Accept       json
// @Produce      json
// @Param        request  body      api.ToolRunRequest  true  "Tool name and arguments"
// @Success      200      {object}  api.ToolResponse   "Tool output"
// @Failure      400      {object}  api.ErrorResponse  "Invalid request data or unknown persona"
// @Failure      403      {object}  api.ErrorResponse  "Tool not in the persona allowlist"
// @Router       /tools/run [post]
func RunToolHandler(w http.ResponseWriter, request *http.Request) {
	if !validateContext(request.Context()) {
		logRH.Warn("Invalid Context by request ", request.RemoteAddr)
		return
	}

	var requestData api.ToolRunRequest
	defer request.Body.Close()
	if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || requestData.Tool == "" || requestData.Persona == "" {
		logRH.Warn("Bad Tool Request: ", "error:", err, "request data:", requestData)
		WriteErrorResponse(w, http.StatusBadRequest, "Bad Request")
		return
	}

	requester := resolveRequester(request.Context(), requestData.TenantId, requestData.UserId)
	resp, err := handlerInstance.askService.RunTool(request.Context(), rag.ToolRequest{
		TenantId:  requestData.TenantId,
		Requester: requester,
		Persona:   requestData.Persona,
		Tool:      requestData.Tool,
		Args:      requestData.Args,
	})
	if errors.Is(err, rag.ErrToolNotAllowed) {
		WriteErrorResponse(w, http.StatusForbidden, "Tool not allowed for persona")
		return
	}
	if err != nil {
		writeAskError(w, err)
		return
	}

	writeJsonResponse(w, http.StatusOK, adapter.ToToolResponse(resp))
}

// PostSourceHandler handles the uploading of PDF or DOCX documents for ingestion.
// @Summary      Upload a document as a new source
// @Description  Receives a file via multipart/form-data, saves it to a temporary directory, registers an upload source, and queues an ingestion job.
// @Tags         Ingestion
// @Accept       multipart/form-data
// @Produce      json
// @Param        tenant_id      formData  string  true   "Owning tenant"
// @Param        document_name  formData  string  true   "The display name of the document"
// @Param        acl_groups     formData  string  false  "Comma-separated group IDs allowed to read the document; empty means public"
// @Param        document       formData  file    true   "The PDF or DOCX file to upload"
// @Success      202  {object}  api.CreateSourceResponse  "Accepted - returns source_id and job_id"
// @Failure      400  {object}  api.ErrorResponse "Bad Request - Missing fields or file too large"
// @Failure      500  {object}  api.ErrorResponse "Internal Server Error - Storage or Write Error"
// @Router       /sources [post]
func PostSourceHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	targetDir, errString := getTargetDirectory()
	if errString != "" {
		logRH.Error("Couldn't get target directory :", "err", errString)
		WriteErrorResponse(w, http.StatusInternalServerError, errString)
		return
	}

	const maxUploadSize = 32 << 20 //32mb
	err := r.ParseMultipartForm(maxUploadSize)
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "File too large or bad request")
		return
	}

	tenantId := r.FormValue("tenant_id")
	docName := r.FormValue("document_name")
	if tenantId == "" || docName == "" {
		WriteErrorResponse(w, http.StatusBadRequest, "tenant_id and document_name are required")
		return
	}

	fileReader, fileMetadata, err := r.FormFile("document")
	if err != nil {
		WriteErrorResponse(w, http.StatusBadRequest, "Could not retrieve file")
		return
	}
	defer fileReader.Close()

	filename := fmt.Sprintf("%d-%s", time.Now().UnixNano(), fileMetadata.Filename)
	tempFilePath := filepath.Join(targetDir, filename)
	destinationFileWriter, err := os.Create(tempFilePath)
	if err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, "Storage error")
		return
	}
	defer destinationFileWriter.Close()

	if _, err := io.Copy(destinationFileWriter, fileReader); err != nil {
		WriteErrorResponse(w, http.StatusInternalServerError, "Write error")
		return
	}

	source := commonModels.Source{
		Id:            utils.GetNewUUID(),
		TenantId:      tenantId,
		ConnectorType: commonModels.ConnectorUpload,
		Name:          docName,
		Status:        commonModels.SourceActive,
		Config: commonModels.SourceConfig{
			FilePath: tempFilePath,
			Title:    docName,
			ACL:      uploadACL(r.FormValue("acl_groups")),
		},
	}
	enqueueUpload(r, w, source)
}

// FeedbackHandler godoc
// @Summary      Submit answer feedback
// @Description  Stores a rating and optional comment for a previously returned answer.
// @Tags         Feedback
// @Accept       json
// @Produce      json
// @Param        request  body  api.FeedbackRequest  true  "Rating between 1 and 5"
// @Success      204  "Feedback stored"
// @Failure      400  {object}  api.ErrorResponse  "Invalid request data"
// @Router       /feedback [post]
func FeedbackHandler(w http.ResponseWriter, r *http.Request) {
	if !validateContext(r.Context()) {
		logRH.Warn("Invalid Context by request ", r.RemoteAddr)
		return
	}

	var requestData api.FeedbackRequest
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil || requestData.UserId == "" || requestData.Rating < 1 || requestData.Rating > 5 {
		logRH.Warn("Bad Feedback Request: ", "error:", err)
		WriteErrorResponse(w, http.StatusBadRequest, "Bad Request")
		return
	}

	fb := commonModels.Feedback{
		Id:        utils.GetNewUUID(),
		UserId:    requestData.UserId,
		Rating:    requestData.Rating,
		Comment:   requestData.Comment,
		CreatedAt: time.Now().UTC(),
	}
	if err := handlerInstance.feedback.Save(r.Context(), fb); err != nil {
		logRH.Error("Could not save feedback", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Storage error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func validateAskRequest(req api.AskRequest) bool {
	return req.TenantId != "" && req.UserId != "" && req.Persona != "" && strings.TrimSpace(req.Query) != ""
}

func writeAskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, policy.ErrUnknownPersona):
		WriteErrorResponse(w, http.StatusBadRequest, "Unknown persona")
	case errors.Is(err, rag.ErrGenerationUnavailable):
		WriteErrorResponse(w, http.StatusServiceUnavailable, "Generation temporarily unavailable")
	default:
		logRH.Error("Request failed", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}

func uploadACL(groupsCSV string) []commonModels.ACLGrant {
	if strings.TrimSpace(groupsCSV) == "" {
		return nil // connector defaults to public
	}
	var grants []commonModels.ACLGrant
	for _, g := range strings.Split(groupsCSV, ",") {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		grants = append(grants, commonModels.ACLGrant{
			PrincipalType: commonModels.PrincipalGroup,
			PrincipalId:   g,
		})
	}
	return grants
}
