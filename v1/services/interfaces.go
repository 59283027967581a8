package services

import (
	"context"

	"github.com/itops-console/console-backend/v1/models"
)

// UserDataStore is the read side of the record stores merged by the
// consolidator. Single-row lookups return (nil, nil) when nothing matches.
type UserDataStore interface {
	FindMasterUserByID(ctx context.Context, id string) (*models.MasterUser, error)
	FindMasterUserByEmail(ctx context.Context, email string) (*models.MasterUser, error)
	FindDirectoryUserByID(ctx context.Context, id string) (*models.DirectoryUser, error)
	FindDirectoryUserByEmail(ctx context.Context, email string) (*models.DirectoryUser, error)
	ListActiveMasterUsers(ctx context.Context) ([]models.MasterUser, error)
	ListEnabledDirectoryUsers(ctx context.Context) ([]models.DirectoryUser, error)

	FindBranch(ctx context.Context, branchID string) (*models.Branch, error)
	FindBranchByName(ctx context.Context, name string) (*models.Branch, error)
	FindUserProfile(ctx context.Context, email string) (*models.UserProfile, error)

	ListCredentials(ctx context.Context, email string) ([]models.UserCredential, error)

	ListHardwareAssets(ctx context.Context, email, upn string) ([]models.HardwareAsset, error)
	ListCurrentAssignments(ctx context.Context, email string) ([]models.DeviceAssignment, error)
	ListActiveManualDevices(ctx context.Context, email string) ([]models.ManualDevice, error)
}

// DirectoryWriter persists records pulled from the cloud directory
type DirectoryWriter interface {
	UpsertDirectoryUsers(ctx context.Context, users []models.DirectoryUser) error
	UpsertHardwareAssets(ctx context.Context, assets []models.HardwareAsset) error
}

// ManualDeviceWriter persists hand-recorded devices
type ManualDeviceWriter interface {
	UpsertManualDevices(ctx context.Context, devices []models.ManualDevice) error
}

// UserConsolidator produces consolidated user views
type UserConsolidator interface {
	Consolidate(ctx context.Context, id, email string) (*models.ConsolidatedUserData, error)
	ConsolidateAll(ctx context.Context) ([]models.ConsolidatedUserData, error)
}
