package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/itops-console/console-backend/v1/models"
	"gorm.io/gorm"
)

var (
	// ErrTicketNotFound is returned when no ticket has the requested id
	ErrTicketNotFound = errors.New("ticket not found")
	// ErrInvalidTransition is returned when a status change is not allowed
	// from the ticket's current status
	ErrInvalidTransition = errors.New("invalid ticket status transition")
)

// requestValidator is shared by every service; validator caches struct
// metadata and is safe for concurrent use
var requestValidator = validator.New()

// ValidationError reports a request that failed field validation
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + strings.Join(e.Fields, "; ")
}

// validateStruct runs validator tags on v and flattens the failures
func validateStruct(v interface{}) error {
	err := requestValidator.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			fields = append(fields, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return &ValidationError{Fields: fields}
}

// TicketService handles help-desk ticket operations
type TicketService struct {
	db *gorm.DB
}

// NewTicketService creates a new ticket service
func NewTicketService(db *gorm.DB) *TicketService {
	return &TicketService{db: db}
}

// CreateTicket opens a new ticket
func (s *TicketService) CreateTicket(ctx context.Context, req *models.CreateTicketRequest) (*models.Ticket, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	priority := req.Priority
	if priority == "" {
		priority = models.TicketPriorityMedium
	}

	ticket := models.Ticket{
		TicketID:       "tkt_" + uuid.New().String(),
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Status:         models.TicketStatusOpen,
		Priority:       priority,
		RequesterEmail: strings.ToLower(strings.TrimSpace(req.RequesterEmail)),
		AssigneeEmail:  req.AssigneeEmail,
	}

	if err := s.db.WithContext(ctx).Create(&ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	slog.Info("Ticket created", "ticketID", ticket.TicketID, "priority", ticket.Priority)
	return &ticket, nil
}

// GetTicket fetches a ticket by id
func (s *TicketService) GetTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := s.db.WithContext(ctx).First(&ticket, "ticket_id = ?", ticketID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTicketNotFound
		}
		return nil, fmt.Errorf("failed to get ticket: %w", err)
	}
	return &ticket, nil
}

// ListTickets returns tickets newest first, optionally filtered by status
// and requester email
func (s *TicketService) ListTickets(ctx context.Context, status, requester string) ([]models.Ticket, error) {
	query := s.db.WithContext(ctx).Model(&models.Ticket{})

	if status != "" {
		if !models.TicketStatus(status).IsValid() {
			return nil, &ValidationError{Fields: []string{fmt.Sprintf("status %q is not a ticket status", status)}}
		}
		query = query.Where("status = ?", status)
	}
	if requester != "" {
		query = query.Where("LOWER(requester_email) = ?", strings.ToLower(strings.TrimSpace(requester)))
	}

	var tickets []models.Ticket
	if err := query.Order("created_at DESC, ticket_id").Find(&tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

// UpdateTicketStatus moves a ticket to a new status. Entering resolved or
// closed stamps resolved_at; reopening clears it.
func (s *TicketService) UpdateTicketStatus(ctx context.Context, ticketID string, req *models.UpdateTicketStatusRequest) (*models.Ticket, error) {
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	ticket, err := s.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}

	if !ticket.Status.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, ticket.Status, req.Status)
	}

	previous := ticket.Status
	ticket.Status = req.Status
	if req.AssigneeEmail != nil {
		ticket.AssigneeEmail = req.AssigneeEmail
	}
	switch {
	case req.Status.IsFinished():
		now := time.Now()
		ticket.ResolvedAt = &now
	case previous.IsFinished():
		ticket.ResolvedAt = nil
	}

	if err := s.db.WithContext(ctx).Save(ticket).Error; err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}

	slog.Info("Ticket status updated", "ticketID", ticket.TicketID, "from", previous, "to", ticket.Status)
	return ticket, nil
}
