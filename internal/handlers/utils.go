package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"github.com/akolanti/RagAPI/internal/adapter"
	"github.com/akolanti/RagAPI/internal/config"
	"github.com/akolanti/RagAPI/internal/domain/commonModels"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response: %v", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, message string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(message, httpCode))
}

func validateContext(ctx context.Context) bool {
	logRH.With("traceId:", ctx.Value(config.TRACE_ID_KEY).(string))
	if ctx.Err() != nil {
		logRH.Warn("context error", ctx.Err())
		return false
	}

	select {
	case <-ctx.Done():
		logRH.Warn("context cancelled")
		return false
	default:
		return true

	}
}

// resolveRequester expands a user id into the principals the ACL filter
// matches against. An unknown user still gets a requester, but one that can
// only see public documents.
func resolveRequester(ctx context.Context, tenantId string, userId string) commonModels.Requester {
	requester := commonModels.Requester{UserId: userId}
	if handlerInstance == nil || handlerInstance.identity == nil {
		return requester
	}

	user, found, err := handlerInstance.identity.GetUser(ctx, tenantId, userId)
	if err != nil {
		logRH.Warn("Identity lookup failed", "userId", userId, "error", err)
		return requester
	}
	if found {
		requester.Email = user.Email
	}

	groups, err := handlerInstance.identity.GroupIdsForUser(ctx, userId)
	if err != nil {
		logRH.Warn("Group lookup failed", "userId", userId, "error", err)
		return requester
	}
	requester.GroupIds = groups
	return requester
}

func getTargetDirectory() (string, string) {
	root, err := os.Getwd()
	if err != nil {
		return "", "Storage Error"
	}

	targetDir := filepath.Join(root, "temporary_data")
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return "", "Storage Error"
	}
	return targetDir, ""
}
