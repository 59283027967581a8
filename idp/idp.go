package idp

import (
	"context"
	"time"
)

// ProviderType names a supported directory backend
type ProviderType string

const (
	ProviderMicrosoftGraph ProviderType = "microsoft-graph"
)

// DirectoryProvider lists the users and managed devices held by a cloud
// directory
type DirectoryProvider interface {
	UserLister
	DeviceLister
}

type UserLister interface {
	ListUsers(ctx context.Context) ([]DirectoryUserInfo, error)
}

type DeviceLister interface {
	ListManagedDevices(ctx context.Context) ([]ManagedDeviceInfo, error)
}

type DirectoryUserInfo struct {
	Id                string
	DisplayName       string
	Mail              string
	UserPrincipalName string
	JobTitle          string
	Department        string
	AccountEnabled    bool
}

type ManagedDeviceInfo struct {
	Id                string
	DeviceName        string
	SerialNumber      string
	UserPrincipalName string
	EmailAddress      string
	Model             string
	Manufacturer      string
	OperatingSystem   string
	ComplianceState   string
	LastSyncDateTime  *time.Time
}
