package models

import "time"

// MasterUser is the authoritative, manually curated user list
type MasterUser struct {
	ID                string  `gorm:"primarykey;column:id" json:"id"`
	DisplayName       string  `gorm:"column:display_name;not null" json:"displayName"`
	Email             string  `gorm:"column:email;index" json:"email"`
	UserPrincipalName string  `gorm:"column:user_principal_name" json:"userPrincipalName"`
	JobTitle          string  `gorm:"column:job_title" json:"jobTitle"`
	Department        string  `gorm:"column:department" json:"department"`
	AccountEnabled    bool    `gorm:"column:account_enabled;not null" json:"accountEnabled"`
	IsActive          bool    `gorm:"column:is_active;not null;index" json:"isActive"`
	BranchID          *string `gorm:"column:branch_id" json:"branchId,omitempty"`
	VPNUsername       *string `gorm:"column:vpn_username" json:"vpnUsername,omitempty"`
	RDPUsername       *string `gorm:"column:rdp_username" json:"rdpUsername,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (MasterUser) TableName() string {
	return "master_user_list"
}

// DirectoryUser is a user mirrored from the cloud directory by the sync job
type DirectoryUser struct {
	ID                string     `gorm:"primarykey;column:id" json:"id"`
	DisplayName       string     `gorm:"column:display_name" json:"displayName"`
	Mail              string     `gorm:"column:mail;index" json:"mail"`
	UserPrincipalName string     `gorm:"column:user_principal_name;index" json:"userPrincipalName"`
	JobTitle          string     `gorm:"column:job_title" json:"jobTitle"`
	Department        string     `gorm:"column:department" json:"department"`
	AccountEnabled    bool       `gorm:"column:account_enabled;not null" json:"accountEnabled"`
	LastSyncedAt      *time.Time `gorm:"column:last_synced_at" json:"lastSyncedAt,omitempty"`
	BaseModel
}

// TableName sets the table name for GORM
func (DirectoryUser) TableName() string {
	return "directory_users"
}

// UserProfile holds per-user settings maintained in the console, including the
// branch an administrator assigned explicitly
type UserProfile struct {
	Email    string  `gorm:"primarykey;column:email" json:"email"`
	BranchID *string `gorm:"column:branch_id" json:"branchId,omitempty"`
	Phone    string  `gorm:"column:phone" json:"phone"`
	BaseModel
}

// TableName sets the table name for GORM
func (UserProfile) TableName() string {
	return "user_profiles"
}

// Branch is a physical office
type Branch struct {
	BranchID string `gorm:"primarykey;column:branch_id" json:"branchId"`
	Name     string `gorm:"column:name;not null" json:"name"`
	Location string `gorm:"column:location" json:"location"`
	BaseModel
}

// TableName sets the table name for GORM
func (Branch) TableName() string {
	return "branches"
}
