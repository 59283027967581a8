package models

import "time"

// UserCredential is a VPN or RDP account issued to a user
type UserCredential struct {
	ID          uint        `gorm:"primarykey;autoIncrement;column:id" json:"id"`
	Email       string      `gorm:"column:email;not null;index" json:"email"`
	Username    string      `gorm:"column:username;not null" json:"username"`
	ServiceType ServiceType `gorm:"column:service_type;not null" json:"serviceType"`
	Notes       string      `gorm:"column:notes" json:"notes"`
	BaseModel
}

// TableName sets the table name for GORM
func (UserCredential) TableName() string {
	return "user_credentials"
}

// DeviceDetails are the descriptive columns shared by every device table
type DeviceDetails struct {
	DeviceName   string `gorm:"column:device_name" json:"deviceName"`
	DeviceType   string `gorm:"column:device_type" json:"deviceType"`
	Model        string `gorm:"column:model" json:"model"`
	Manufacturer string `gorm:"column:manufacturer" json:"manufacturer"`
	Status       string `gorm:"column:status" json:"status"`
}

// HardwareAsset is a row of the hardware inventory, populated from the device
// management sync. Ownership is recorded by email and by UPN since the two
// differ for some tenants.
type HardwareAsset struct {
	SerialNumber  string        `gorm:"primarykey;column:serial_number" json:"serialNumber"`
	ExternalID    string        `gorm:"column:external_id;index" json:"externalId,omitempty"`
	AssignedEmail string        `gorm:"column:assigned_email;index" json:"assignedEmail"`
	AssignedUPN   string        `gorm:"column:assigned_upn;index" json:"assignedUpn"`
	BranchID      *string       `gorm:"column:branch_id" json:"branchId,omitempty"`
	DeviceDetails `gorm:"embedded"`
	LastSyncedAt  *time.Time `gorm:"column:last_synced_at" json:"lastSyncedAt,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (HardwareAsset) TableName() string {
	return "hardware_inventory"
}

// DeviceAssignment tracks the hand-over history of a device
type DeviceAssignment struct {
	ID            uint   `gorm:"primarykey;autoIncrement;column:id" json:"id"`
	UserEmail     string `gorm:"column:user_email;not null;index" json:"userEmail"`
	SerialNumber  string `gorm:"column:serial_number;index" json:"serialNumber"`
	DeviceDetails `gorm:"embedded"`
	IsCurrent     bool       `gorm:"column:is_current;not null" json:"isCurrent"`
	AssignedAt    *time.Time `gorm:"column:assigned_at" json:"assignedAt,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (DeviceAssignment) TableName() string {
	return "device_assignments"
}

// ManualDevice is a device recorded by hand, usually via CSV import
type ManualDevice struct {
	SerialNumber  string `gorm:"primarykey;column:serial_number" json:"serialNumber"`
	UserEmail     string `gorm:"column:user_email;not null;index" json:"userEmail"`
	DeviceDetails `gorm:"embedded"`
	IsActive      bool `gorm:"column:is_active;not null" json:"isActive"`
	BaseModel
}

// TableName sets the table name for GORM
func (ManualDevice) TableName() string {
	return "manual_devices"
}
