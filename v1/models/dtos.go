package models

// Request/Response DTOs for V1 API endpoints

// CreateTicketRequest is the payload for opening a ticket
type CreateTicketRequest struct {
	Title          string         `json:"title" validate:"required,max=255"`
	Description    string         `json:"description" validate:"max=4000"`
	Priority       TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	RequesterEmail string         `json:"requesterEmail" validate:"required,email,max=320"`
	AssigneeEmail  *string        `json:"assigneeEmail,omitempty" validate:"omitempty,email,max=320"`
}

// UpdateTicketStatusRequest moves a ticket through its lifecycle
type UpdateTicketStatusRequest struct {
	Status        TicketStatus `json:"status" validate:"required,oneof=open in_progress resolved closed"`
	AssigneeEmail *string      `json:"assigneeEmail,omitempty" validate:"omitempty,email,max=320"`
}

// ManualDeviceRow is one parsed row of a manual device import
type ManualDeviceRow struct {
	UserEmail    string `validate:"required,email"`
	SerialNumber string `validate:"required,max=128"`
	DeviceName   string `validate:"max=255"`
	DeviceType   string `validate:"max=64"`
	Model        string `validate:"max=255"`
	Manufacturer string `validate:"max=255"`
	Status       string `validate:"max=64"`
}

// ImportRowError describes a rejected import row. Line is 1-based and counts
// the header.
type ImportRowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportResult summarises a CSV import
type ImportResult struct {
	Imported int              `json:"imported"`
	Skipped  int              `json:"skipped"`
	Errors   []ImportRowError `json:"errors"`
}

// SyncResult summarises one directory sync run
type SyncResult struct {
	UsersSynced   int    `json:"usersSynced"`
	DevicesSynced int    `json:"devicesSynced"`
	DevicesFailed int    `json:"devicesFailed"`
	StartedAt     string `json:"startedAt"`
	FinishedAt    string `json:"finishedAt"`
}
