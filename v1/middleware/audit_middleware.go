package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/itops-console/console-backend/v1/models"
	authutils "github.com/itops-console/console-backend/v1/utils"
)

// auditLogger receives audit records. Tests replace it to capture output.
var auditLogger = slog.Default

// LogAudit emits a structured audit record for a console write operation
func LogAudit(r *http.Request, resource models.ResourceType, resourceID *string, status models.AuditStatus) {
	// Only log write operations (POST, PUT, PATCH, DELETE)
	if !isWriteOperation(r.Method) {
		return
	}

	eventAction := determineEventType(r.Method)
	if eventAction == "" {
		return
	}

	actorID, actorEmail, actorRole := "anonymous", "", ""
	if user, err := authutils.GetAuthenticatedUser(r.Context()); err == nil {
		actorID = user.UserID
		actorEmail = user.Email
		actorRole = string(user.Role)
	}

	attrs := []any{
		"event_type", "MANAGEMENT_EVENT",
		"event_action", eventAction,
		"status", string(status),
		"resource", string(resource),
		"actor_id", actorID,
		"actor_email", actorEmail,
		"actor_role", actorRole,
		"client_ip", authutils.GetRequestIP(r),
		"path", r.URL.Path,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	}
	if resourceID != nil {
		attrs = append(attrs, "resource_id", *resourceID)
	}

	auditLogger().Info("audit", attrs...)
}

// Helper functions
func isWriteOperation(method string) bool {
	return method == http.MethodPost || method == http.MethodPut || method == http.MethodPatch || method == http.MethodDelete
}

func determineEventType(method string) string {
	switch method {
	case http.MethodPost:
		return "CREATE"
	case http.MethodPut, http.MethodPatch:
		return "UPDATE"
	case http.MethodDelete:
		return "DELETE"
	default:
		return ""
	}
}
