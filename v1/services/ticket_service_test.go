package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/itops-console/console-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestTicket(t *testing.T, svc *TicketService, title, requester string) *models.Ticket {
	ticket, err := svc.CreateTicket(context.Background(), &models.CreateTicketRequest{
		Title:          title,
		RequesterEmail: requester,
	})
	require.NoError(t, err)
	return ticket
}

func TestTicketService_CreateTicket(t *testing.T) {
	db := RequireTestDB(t)
	svc := NewTicketService(db)

	t.Run("Success", func(t *testing.T) {
		ticket, err := svc.CreateTicket(context.Background(), &models.CreateTicketRequest{
			Title:          "  VPN drops every hour ",
			Description:    "Started after the client update",
			Priority:       models.TicketPriorityHigh,
			RequesterEmail: "Ada@Example.com",
		})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(ticket.TicketID, "tkt_"))
		assert.Equal(t, "VPN drops every hour", ticket.Title)
		assert.Equal(t, models.TicketStatusOpen, ticket.Status)
		assert.Equal(t, models.TicketPriorityHigh, ticket.Priority)
		assert.Equal(t, "ada@example.com", ticket.RequesterEmail)
		assert.Nil(t, ticket.ResolvedAt)
	})

	t.Run("DefaultPriority", func(t *testing.T) {
		ticket := createTestTicket(t, svc, "Printer jam", "bob@example.com")
		assert.Equal(t, models.TicketPriorityMedium, ticket.Priority)
	})

	t.Run("ValidationFailures", func(t *testing.T) {
		tests := []struct {
			name string
			req  models.CreateTicketRequest
		}{
			{"MissingTitle", models.CreateTicketRequest{RequesterEmail: "a@example.com"}},
			{"BadEmail", models.CreateTicketRequest{Title: "x", RequesterEmail: "not-an-email"}},
			{"BadPriority", models.CreateTicketRequest{Title: "x", RequesterEmail: "a@example.com", Priority: "urgent"}},
			{"TitleTooLong", models.CreateTicketRequest{Title: strings.Repeat("x", models.MaxTitleLength+1), RequesterEmail: "a@example.com"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				ticket, err := svc.CreateTicket(context.Background(), &tt.req)
				assert.Nil(t, ticket)
				var vErr *ValidationError
				assert.True(t, errors.As(err, &vErr))
			})
		}
	})
}

func TestTicketService_GetTicket(t *testing.T) {
	db := RequireTestDB(t)
	svc := NewTicketService(db)
	created := createTestTicket(t, svc, "New laptop", "ada@example.com")

	got, err := svc.GetTicket(context.Background(), created.TicketID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, got.Title)

	_, err = svc.GetTicket(context.Background(), "tkt_missing")
	assert.ErrorIs(t, err, ErrTicketNotFound)
}

func TestTicketService_ListTickets(t *testing.T) {
	db := RequireTestDB(t)
	svc := NewTicketService(db)
	ctx := context.Background()

	first := createTestTicket(t, svc, "One", "ada@example.com")
	createTestTicket(t, svc, "Two", "bob@example.com")
	createTestTicket(t, svc, "Three", "ada@example.com")

	_, err := svc.UpdateTicketStatus(ctx, first.TicketID, &models.UpdateTicketStatusRequest{Status: models.TicketStatusInProgress})
	require.NoError(t, err)

	all, err := svc.ListTickets(ctx, "", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	mine, err := svc.ListTickets(ctx, "", "ADA@example.com")
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	open, err := svc.ListTickets(ctx, string(models.TicketStatusOpen), "ada@example.com")
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "Three", open[0].Title)

	_, err = svc.ListTickets(ctx, "pending", "")
	var vErr *ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestTicketService_UpdateTicketStatus(t *testing.T) {
	db := RequireTestDB(t)
	svc := NewTicketService(db)
	ctx := context.Background()

	t.Run("Lifecycle", func(t *testing.T) {
		ticket := createTestTicket(t, svc, "Reset MFA", "ada@example.com")
		assignee := "tech@example.com"

		updated, err := svc.UpdateTicketStatus(ctx, ticket.TicketID, &models.UpdateTicketStatusRequest{
			Status:        models.TicketStatusInProgress,
			AssigneeEmail: &assignee,
		})
		require.NoError(t, err)
		assert.Equal(t, models.TicketStatusInProgress, updated.Status)
		require.NotNil(t, updated.AssigneeEmail)
		assert.Equal(t, assignee, *updated.AssigneeEmail)
		assert.Nil(t, updated.ResolvedAt)

		updated, err = svc.UpdateTicketStatus(ctx, ticket.TicketID, &models.UpdateTicketStatusRequest{Status: models.TicketStatusResolved})
		require.NoError(t, err)
		require.NotNil(t, updated.ResolvedAt)
		assert.WithinDuration(t, time.Now(), *updated.ResolvedAt, 5*time.Second)

		// Reopen clears the resolution time
		updated, err = svc.UpdateTicketStatus(ctx, ticket.TicketID, &models.UpdateTicketStatusRequest{Status: models.TicketStatusInProgress})
		require.NoError(t, err)
		assert.Nil(t, updated.ResolvedAt)

		updated, err = svc.UpdateTicketStatus(ctx, ticket.TicketID, &models.UpdateTicketStatusRequest{Status: models.TicketStatusClosed})
		require.NoError(t, err)
		assert.NotNil(t, updated.ResolvedAt)

		stored, err := svc.GetTicket(ctx, ticket.TicketID)
		require.NoError(t, err)
		assert.Equal(t, models.TicketStatusClosed, stored.Status)
		assert.NotNil(t, stored.ResolvedAt)
	})

	t.Run("ClosedIsTerminal", func(t *testing.T) {
		ticket := createTestTicket(t, svc, "Old request", "ada@example.com")
		_, err := svc.UpdateTicketStatus(ctx, ticket.TicketID, &models.UpdateTicketStatusRequest{Status: models.TicketStatusClosed})
		require.NoError(t, err)

		_, err = svc.UpdateTicketStatus(ctx, ticket.TicketID, &models.UpdateTicketStatusRequest{Status: models.TicketStatusOpen})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("OpenCannotResolveDirectly", func(t *testing.T) {
		ticket := createTestTicket(t, svc, "Skip ahead", "ada@example.com")
		_, err := svc.UpdateTicketStatus(ctx, ticket.TicketID, &models.UpdateTicketStatusRequest{Status: models.TicketStatusResolved})
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})

	t.Run("UnknownStatus", func(t *testing.T) {
		ticket := createTestTicket(t, svc, "Bad status", "ada@example.com")
		_, err := svc.UpdateTicketStatus(ctx, ticket.TicketID, &models.UpdateTicketStatusRequest{Status: "archived"})
		var vErr *ValidationError
		assert.True(t, errors.As(err, &vErr))
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := svc.UpdateTicketStatus(ctx, "tkt_nope", &models.UpdateTicketStatusRequest{Status: models.TicketStatusClosed})
		assert.ErrorIs(t, err, ErrTicketNotFound)
	})
}

func TestTicketService_CreateTicket_DatabaseError(t *testing.T) {
	db, mock, cleanup := setupMockDB(t)
	defer cleanup()

	mock.ExpectQuery(`INSERT INTO "tickets"`).WillReturnError(errors.New("disk full"))

	svc := NewTicketService(db)
	ticket, err := svc.CreateTicket(context.Background(), &models.CreateTicketRequest{
		Title:          "Broken",
		RequesterEmail: "ada@example.com",
	})
	assert.Nil(t, ticket)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create ticket")
}
