package models

import "time"

// TicketStatus is the lifecycle state of a support ticket
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// ticketTransitions lists the statuses reachable from each status
var ticketTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress, TicketStatusClosed},
	TicketStatusInProgress: {TicketStatusResolved, TicketStatusClosed, TicketStatusOpen},
	TicketStatusResolved:   {TicketStatusClosed, TicketStatusInProgress},
	TicketStatusClosed:     {},
}

// IsValid reports whether s is a known status
func (s TicketStatus) IsValid() bool {
	_, ok := ticketTransitions[s]
	return ok
}

// CanTransitionTo reports whether a ticket in status s may move to next
func (s TicketStatus) CanTransitionTo(next TicketStatus) bool {
	for _, allowed := range ticketTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsFinished reports whether s counts as a resolution
func (s TicketStatus) IsFinished() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority orders tickets for triage
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Ticket is a help-desk request
type Ticket struct {
	TicketID       string         `gorm:"primarykey;column:ticket_id" json:"ticketId"`
	Title          string         `gorm:"column:title;not null" json:"title"`
	Description    string         `gorm:"column:description" json:"description"`
	Status         TicketStatus   `gorm:"column:status;not null;index" json:"status"`
	Priority       TicketPriority `gorm:"column:priority;not null" json:"priority"`
	RequesterEmail string         `gorm:"column:requester_email;not null;index" json:"requesterEmail"`
	AssigneeEmail  *string        `gorm:"column:assignee_email" json:"assigneeEmail,omitempty"`
	ResolvedAt     *time.Time     `gorm:"column:resolved_at" json:"resolvedAt,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (Ticket) TableName() string {
	return "tickets"
}
