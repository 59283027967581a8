package models

// Record sources. These names appear in consolidated output and identify the
// table a value was read from.
const (
	SourceMasterUserList    = "master_user_list"
	SourceDirectoryUsers    = "directory_users"
	SourceUserProfiles      = "user_profiles"
	SourceHardwareInventory = "hardware_inventory"
	SourceDeviceAssignments = "device_assignments"
	SourceManualDevices     = "manual_devices"
	SourceUserCredentials   = "user_credentials"
	SourceDepartmentMatch   = "department_match"
)

// ServiceType identifies the remote-access service a credential belongs to
type ServiceType string

const (
	ServiceTypeVPN ServiceType = "VPN"
	ServiceTypeRDP ServiceType = "RDP"
)

// Confidence ranks how trustworthy a branch assignment is
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Rank orders confidences so that a lower value sorts first.
// Unknown values rank after low.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 0
	case ConfidenceMedium:
		return 1
	case ConfidenceLow:
		return 2
	default:
		return 3
	}
}

// Role represents console user roles carried in the access token
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleTechnician Role = "technician"
	RoleViewer     Role = "viewer"
)

// AuditStatus represents the status of audit events
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusFailure AuditStatus = "failure"
)

// ResourceType represents different resource types for auditing
type ResourceType string

const (
	ResourceTypeTickets       ResourceType = "TICKETS"
	ResourceTypeManualDevices ResourceType = "MANUAL-DEVICES"
	ResourceTypeDirectorySync ResourceType = "DIRECTORY-SYNC"
)

// Field length constraints
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 4000
	MaxEmailLength       = 320 // RFC 3696
)
