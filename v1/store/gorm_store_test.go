package store

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	v1 "github.com/itops-console/console-backend/v1"
	"github.com/itops-console/console-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func strPtr(s string) *string { return &s }

func setupStoreTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(v1.AllModels()...))
	return db
}

func setupStoreMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:       sqlDB,
		DriverName: "postgres",
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestGormStore_MasterUserLookups(t *testing.T) {
	db := setupStoreTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.MasterUser{
		ID: "u-1", DisplayName: "Ada", Email: "Ada@Example.com", IsActive: true, AccountEnabled: true,
	}).Error)
	require.NoError(t, db.Create(&models.MasterUser{
		ID: "u-2", DisplayName: "Bob", Email: "bob@example.com", IsActive: false,
	}).Error)

	t.Run("ByID", func(t *testing.T) {
		user, err := s.FindMasterUserByID(ctx, "u-1")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "Ada", user.DisplayName)
	})

	t.Run("ByIDMissing", func(t *testing.T) {
		user, err := s.FindMasterUserByID(ctx, "nope")
		assert.NoError(t, err)
		assert.Nil(t, user)
	})

	t.Run("ByEmailIgnoresCase", func(t *testing.T) {
		user, err := s.FindMasterUserByEmail(ctx, "  ada@EXAMPLE.com ")
		require.NoError(t, err)
		require.NotNil(t, user)
		assert.Equal(t, "u-1", user.ID)
	})

	t.Run("ListActive", func(t *testing.T) {
		users, err := s.ListActiveMasterUsers(ctx)
		require.NoError(t, err)
		require.Len(t, users, 1)
		assert.Equal(t, "u-1", users[0].ID)
	})
}

func TestGormStore_DirectoryLookups(t *testing.T) {
	db := setupStoreTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	require.NoError(t, s.UpsertDirectoryUsers(ctx, []models.DirectoryUser{
		{ID: "d-1", DisplayName: "Lin", Mail: "", UserPrincipalName: "Lin@corp.example.com", AccountEnabled: true},
		{ID: "d-2", DisplayName: "Off", Mail: "off@example.com", AccountEnabled: false},
	}))

	user, err := s.FindDirectoryUserByEmail(ctx, "lin@corp.example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "d-1", user.ID)
	assert.NotNil(t, user.LastSyncedAt)

	user, err = s.FindDirectoryUserByID(ctx, "d-2")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.False(t, user.AccountEnabled)

	enabled, err := s.ListEnabledDirectoryUsers(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	assert.Equal(t, "d-1", enabled[0].ID)

	// Upsert refreshes existing rows
	require.NoError(t, s.UpsertDirectoryUsers(ctx, []models.DirectoryUser{
		{ID: "d-2", DisplayName: "Back", Mail: "off@example.com", AccountEnabled: true},
	}))
	enabled, err = s.ListEnabledDirectoryUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, enabled, 2)
}

func TestGormStore_BranchAndProfile(t *testing.T) {
	db := setupStoreTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.Branch{BranchID: "br-1", Name: "Head Office"}).Error)
	require.NoError(t, db.Create(&models.UserProfile{Email: "ada@example.com", BranchID: strPtr("br-1")}).Error)

	branch, err := s.FindBranch(ctx, "br-1")
	require.NoError(t, err)
	require.NotNil(t, branch)
	assert.Equal(t, "Head Office", branch.Name)

	branch, err = s.FindBranchByName(ctx, " head office ")
	require.NoError(t, err)
	require.NotNil(t, branch)
	assert.Equal(t, "br-1", branch.BranchID)

	branch, err = s.FindBranchByName(ctx, "Nowhere")
	require.NoError(t, err)
	assert.Nil(t, branch)

	profile, err := s.FindUserProfile(ctx, "ADA@example.com")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "br-1", *profile.BranchID)
}

func TestGormStore_ListCredentials(t *testing.T) {
	db := setupStoreTestDB(t)
	s := NewGormStore(db)

	require.NoError(t, db.Create(&[]models.UserCredential{
		{Email: "ada@example.com", Username: "ada.vpn", ServiceType: models.ServiceTypeVPN},
		{Email: "ada@example.com", Username: "ada.ssh", ServiceType: "SSH"},
		{Email: "Ada@example.com", Username: "ada.rdp", ServiceType: models.ServiceTypeRDP},
		{Email: "bob@example.com", Username: "bob.vpn", ServiceType: models.ServiceTypeVPN},
	}).Error)

	creds, err := s.ListCredentials(context.Background(), "ada@example.com")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "ada.vpn", creds[0].Username)
	assert.Equal(t, "ada.rdp", creds[1].Username)
}

func TestGormStore_ListCredentialsIgnoresServiceTypeCase(t *testing.T) {
	db := setupStoreTestDB(t)
	s := NewGormStore(db)

	require.NoError(t, db.Create(&[]models.UserCredential{
		{Email: "a@x.com", Username: "avpn", ServiceType: "vpn"},
		{Email: "a@x.com", Username: "ardp", ServiceType: "Rdp"},
		{Email: "a@x.com", Username: "assh", ServiceType: "ssh"},
	}).Error)

	creds, err := s.ListCredentials(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "avpn", creds[0].Username)
	assert.Equal(t, "ardp", creds[1].Username)
}

func TestGormStore_Devices(t *testing.T) {
	db := setupStoreTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	require.NoError(t, s.UpsertHardwareAssets(ctx, []models.HardwareAsset{
		{SerialNumber: "SN-1", AssignedEmail: "ada@example.com", DeviceDetails: models.DeviceDetails{DeviceName: "laptop"}},
		{SerialNumber: "SN-2", AssignedUPN: "ada@corp.example.com", DeviceDetails: models.DeviceDetails{DeviceName: "tablet"}},
		{SerialNumber: "SN-3", AssignedEmail: "bob@example.com"},
	}))
	require.NoError(t, db.Create(&[]models.DeviceAssignment{
		{UserEmail: "ada@example.com", SerialNumber: "SN-4", IsCurrent: true},
		{UserEmail: "ada@example.com", SerialNumber: "SN-5", IsCurrent: false},
	}).Error)
	require.NoError(t, s.UpsertManualDevices(ctx, []models.ManualDevice{
		{SerialNumber: "SN-6", UserEmail: "ada@example.com", IsActive: true},
		{SerialNumber: "SN-7", UserEmail: "ada@example.com", IsActive: false},
	}))

	assets, err := s.ListHardwareAssets(ctx, "ada@example.com", "ada@corp.example.com")
	require.NoError(t, err)
	assert.Len(t, assets, 2)

	assets, err = s.ListHardwareAssets(ctx, "ada@example.com", "")
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, "SN-1", assets[0].SerialNumber)

	assignments, err := s.ListCurrentAssignments(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, "SN-4", assignments[0].SerialNumber)

	manual, err := s.ListActiveManualDevices(ctx, "ada@example.com")
	require.NoError(t, err)
	require.Len(t, manual, 1)
	assert.Equal(t, "SN-6", manual[0].SerialNumber)
}

func TestGormStore_UpsertHardwareAssetsKeepsBranch(t *testing.T) {
	db := setupStoreTestDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&models.HardwareAsset{
		SerialNumber: "SN-1", AssignedEmail: "old@example.com", BranchID: strPtr("br-1"),
	}).Error)

	require.NoError(t, s.UpsertHardwareAssets(ctx, []models.HardwareAsset{
		{SerialNumber: "SN-1", AssignedEmail: "new@example.com", DeviceDetails: models.DeviceDetails{Status: "compliant"}},
	}))

	var asset models.HardwareAsset
	require.NoError(t, db.First(&asset, "serial_number = ?", "SN-1").Error)
	assert.Equal(t, "new@example.com", asset.AssignedEmail)
	assert.Equal(t, "compliant", asset.Status)
	require.NotNil(t, asset.BranchID)
	assert.Equal(t, "br-1", *asset.BranchID)
	assert.NotNil(t, asset.LastSyncedAt)
}

func TestGormStore_EmptyUpsertsAreNoops(t *testing.T) {
	db, mock := setupStoreMockDB(t)
	s := NewGormStore(db)
	ctx := context.Background()

	assert.NoError(t, s.UpsertDirectoryUsers(ctx, nil))
	assert.NoError(t, s.UpsertHardwareAssets(ctx, nil))
	assert.NoError(t, s.UpsertManualDevices(ctx, []models.ManualDevice{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_WrapsBackendErrors(t *testing.T) {
	db, mock := setupStoreMockDB(t)
	s := NewGormStore(db)
	backendErr := errors.New("connection reset by peer")

	mock.ExpectQuery(`SELECT \* FROM "master_user_list"`).WillReturnError(backendErr)

	user, err := s.FindMasterUserByID(context.Background(), "u-1")
	assert.Nil(t, user)
	require.Error(t, err)
	assert.ErrorIs(t, err, backendErr)
	assert.Contains(t, err.Error(), "failed to query master user by id")
	assert.NoError(t, mock.ExpectationsWereMet())
}
