package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/itops-console/console-backend/shared/utils"
	"github.com/itops-console/console-backend/v1/middleware"
	"github.com/itops-console/console-backend/v1/models"
	"github.com/itops-console/console-backend/v1/services"
	"github.com/itops-console/console-backend/v1/store"
	authutils "github.com/itops-console/console-backend/v1/utils"
	"gorm.io/gorm"
)

// maxImportBytes caps the size of an uploaded device list
const maxImportBytes = 10 << 20

// V1Handler handles all V1 API routes
type V1Handler struct {
	consolidator services.UserConsolidator
	ticketService *services.TicketService
	csvService    *services.CSVService
	// syncer is nil when no directory provider is configured
	syncer services.Syncer
}

// NewV1Handler creates a new V1 handler backed by db
func NewV1Handler(db *gorm.DB, syncer services.Syncer, opts ...services.ConsolidationOption) *V1Handler {
	gormStore := store.NewGormStore(db)
	consolidator := services.NewConsolidationService(gormStore, opts...)

	return &V1Handler{
		consolidator:  consolidator,
		ticketService: services.NewTicketService(db),
		csvService:    services.NewCSVService(consolidator, gormStore),
		syncer:        syncer,
	}
}

// SetupV1Routes configures all V1 API routes
func (h *V1Handler) SetupV1Routes(mux *http.ServeMux) {
	// Consolidated user routes
	mux.Handle("/api/v1/users/consolidated", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleConsolidatedUsers)))
	mux.Handle("/api/v1/users/consolidated/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleConsolidatedUsers)))

	// Device import
	mux.Handle("/api/v1/devices/import", utils.PanicRecoveryMiddleware(
		middleware.RequireRoles(models.RoleAdmin)(http.HandlerFunc(h.handleDeviceImport))))

	// Directory sync
	mux.Handle("/api/v1/directory/sync", utils.PanicRecoveryMiddleware(
		middleware.RequireRoles(models.RoleAdmin)(http.HandlerFunc(h.handleDirectorySync))))

	// Ticket routes
	mux.Handle("/api/v1/tickets", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleTickets)))
	mux.Handle("/api/v1/tickets/", utils.PanicRecoveryMiddleware(http.HandlerFunc(h.handleTickets)))
}

// handleConsolidatedUsers handles consolidated user routes
func (h *V1Handler) handleConsolidatedUsers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/users/consolidated"), "/")
	switch path {
	case "":
		h.getConsolidatedUser(w, r)
	case "all":
		h.getAllConsolidatedUsers(w, r)
	case "export":
		h.exportConsolidatedUsers(w, r)
	default:
		utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
	}
}

func (h *V1Handler) getConsolidatedUser(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	email := r.URL.Query().Get("email")

	user, err := h.consolidator.Consolidate(r.Context(), id, email)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingIdentityKey):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrIdentityLookup):
			utils.RespondWithError(w, http.StatusBadGateway, "User directory is unavailable")
		default:
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to consolidate user")
		}
		return
	}
	if user == nil {
		utils.RespondWithError(w, http.StatusNotFound, "User not found")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, user)
}

func (h *V1Handler) getAllConsolidatedUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.consolidator.ConsolidateAll(r.Context())
	if err != nil {
		slog.Error("Failed to consolidate users", "error", err)
		utils.RespondWithError(w, http.StatusBadGateway, "User directory is unavailable")
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.CreateCollectionResponse(users, len(users)))
}

func (h *V1Handler) exportConsolidatedUsers(w http.ResponseWriter, r *http.Request) {
	// Buffer the export so a failure can still produce a JSON error
	var buf bytes.Buffer
	if _, err := h.csvService.ExportConsolidatedUsers(r.Context(), &buf); err != nil {
		slog.Error("Failed to export consolidated users", "error", err)
		utils.RespondWithError(w, http.StatusBadGateway, "User directory is unavailable")
		return
	}

	filename := fmt.Sprintf("consolidated-users-%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Warn("Failed to write export response", "error", err)
	}
}

// handleDeviceImport accepts a CSV device list either as a multipart "file"
// field or as the raw request body
func (h *V1Handler) handleDeviceImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)

	var body io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			utils.RespondWithError(w, http.StatusBadRequest, "Missing file field")
			return
		}
		defer file.Close()
		body = file
	}

	result, err := h.csvService.ImportManualDevices(r.Context(), body)
	if err != nil {
		middleware.LogAudit(r, models.ResourceTypeManualDevices, nil, models.AuditStatusFailure)

		var vErr *services.ValidationError
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &vErr):
			utils.RespondWithError(w, http.StatusBadRequest, err.Error())
		case errors.As(err, &maxErr):
			utils.RespondWithError(w, http.StatusRequestEntityTooLarge, "Import file is too large")
		default:
			slog.Error("Failed to import manual devices", "error", err)
			utils.RespondWithError(w, http.StatusInternalServerError, "Failed to import devices")
		}
		return
	}

	middleware.LogAudit(r, models.ResourceTypeManualDevices, nil, models.AuditStatusSuccess)
	utils.RespondWithJSON(w, http.StatusOK, result)
}

func (h *V1Handler) handleDirectorySync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if h.syncer == nil {
		utils.RespondWithError(w, http.StatusServiceUnavailable, "Directory sync is not configured")
		return
	}

	result, err := h.syncer.Sync(r.Context())
	if err != nil {
		middleware.LogAudit(r, models.ResourceTypeDirectorySync, nil, models.AuditStatusFailure)
		slog.Error("Directory sync failed", "error", err)
		utils.RespondWithError(w, http.StatusBadGateway, "Directory sync failed")
		return
	}

	middleware.LogAudit(r, models.ResourceTypeDirectorySync, nil, models.AuditStatusSuccess)
	utils.RespondWithJSON(w, http.StatusOK, result)
}

// handleTickets handles ticket-related routes
func (h *V1Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/tickets")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	// Handle collection endpoint: GET /api/v1/tickets and POST /api/v1/tickets
	if len(parts) == 1 && parts[0] == "" {
		switch r.Method {
		case http.MethodGet:
			h.listTickets(w, r)
		case http.MethodPost:
			h.createTicket(w, r)
		default:
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
		return
	}

	ticketID := parts[0]

	// GET /api/v1/tickets/:ticketId
	if len(parts) == 1 {
		if r.Method != http.MethodGet {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.getTicket(w, r, ticketID)
		return
	}

	// PUT /api/v1/tickets/:ticketId/status
	if len(parts) == 2 && parts[1] == "status" {
		if r.Method != http.MethodPut {
			utils.RespondWithError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h.updateTicketStatus(w, r, ticketID)
		return
	}

	utils.RespondWithError(w, http.StatusNotFound, "Endpoint not found")
}

func (h *V1Handler) listTickets(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	requester := r.URL.Query().Get("requester")

	tickets, err := h.ticketService.ListTickets(r.Context(), status, requester)
	if err != nil {
		h.respondWithTicketError(w, err)
		return
	}

	utils.RespondWithJSON(w, http.StatusOK, utils.CreateCollectionResponse(tickets, len(tickets)))
}

func (h *V1Handler) createTicket(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTicketRequest
	if err := utils.ParseJSONRequest(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Default the requester to the caller
	if req.RequesterEmail == "" {
		if user, err := authutils.GetAuthenticatedUser(r.Context()); err == nil {
			req.RequesterEmail = user.Email
		}
	}

	ticket, err := h.ticketService.CreateTicket(r.Context(), &req)
	if err != nil {
		middleware.LogAudit(r, models.ResourceTypeTickets, nil, models.AuditStatusFailure)
		h.respondWithTicketError(w, err)
		return
	}

	middleware.LogAudit(r, models.ResourceTypeTickets, &ticket.TicketID, models.AuditStatusSuccess)
	utils.RespondWithJSON(w, http.StatusCreated, ticket)
}

func (h *V1Handler) getTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	ticket, err := h.ticketService.GetTicket(r.Context(), ticketID)
	if err != nil {
		h.respondWithTicketError(w, err)
		return
	}
	utils.RespondWithJSON(w, http.StatusOK, ticket)
}

func (h *V1Handler) updateTicketStatus(w http.ResponseWriter, r *http.Request, ticketID string) {
	if _, err := authutils.RequireAnyRole(r, models.RoleAdmin, models.RoleTechnician); err != nil {
		utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
		return
	}

	var req models.UpdateTicketStatusRequest
	if err := utils.ParseJSONRequest(r, &req); err != nil {
		utils.RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ticket, err := h.ticketService.UpdateTicketStatus(r.Context(), ticketID, &req)
	if err != nil {
		middleware.LogAudit(r, models.ResourceTypeTickets, &ticketID, models.AuditStatusFailure)
		h.respondWithTicketError(w, err)
		return
	}

	middleware.LogAudit(r, models.ResourceTypeTickets, &ticketID, models.AuditStatusSuccess)
	utils.RespondWithJSON(w, http.StatusOK, ticket)
}

// respondWithTicketError maps ticket service errors to HTTP status codes
func (h *V1Handler) respondWithTicketError(w http.ResponseWriter, err error) {
	var vErr *services.ValidationError
	switch {
	case errors.As(err, &vErr):
		utils.RespondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrTicketNotFound):
		utils.RespondWithError(w, http.StatusNotFound, "Ticket not found")
	case errors.Is(err, services.ErrInvalidTransition):
		utils.RespondWithError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("Ticket operation failed", "error", err)
		utils.RespondWithError(w, http.StatusInternalServerError, "Internal server error")
	}
}
