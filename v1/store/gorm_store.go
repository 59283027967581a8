package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/itops-console/console-backend/v1/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore reads and writes the console tables through GORM.
// Single-row lookups return (nil, nil) when no row matches; an error always
// means the backend failed.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GormStore
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// findOne returns the first row of q, or nil when q matches nothing
func findOne[T any](q *gorm.DB) (*T, error) {
	var rows []T
	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// FindMasterUserByID looks up the master list by primary key
func (s *GormStore) FindMasterUserByID(ctx context.Context, id string) (*models.MasterUser, error) {
	user, err := findOne[models.MasterUser](s.db.WithContext(ctx).Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to query master user by id: %w", err)
	}
	return user, nil
}

// FindMasterUserByEmail looks up the master list by email, ignoring case
func (s *GormStore) FindMasterUserByEmail(ctx context.Context, email string) (*models.MasterUser, error) {
	user, err := findOne[models.MasterUser](s.db.WithContext(ctx).
		Where("LOWER(email) = ?", normalizeEmail(email)).
		Order("id"))
	if err != nil {
		return nil, fmt.Errorf("failed to query master user by email: %w", err)
	}
	return user, nil
}

// FindDirectoryUserByID looks up the synced directory by object id
func (s *GormStore) FindDirectoryUserByID(ctx context.Context, id string) (*models.DirectoryUser, error) {
	user, err := findOne[models.DirectoryUser](s.db.WithContext(ctx).Where("id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("failed to query directory user by id: %w", err)
	}
	return user, nil
}

// FindDirectoryUserByEmail matches the directory on mail or UPN, ignoring case
func (s *GormStore) FindDirectoryUserByEmail(ctx context.Context, email string) (*models.DirectoryUser, error) {
	email = normalizeEmail(email)
	user, err := findOne[models.DirectoryUser](s.db.WithContext(ctx).
		Where("LOWER(mail) = ? OR LOWER(user_principal_name) = ?", email, email).
		Order("id"))
	if err != nil {
		return nil, fmt.Errorf("failed to query directory user by email: %w", err)
	}
	return user, nil
}

// ListActiveMasterUsers returns every active master list entry
func (s *GormStore) ListActiveMasterUsers(ctx context.Context) ([]models.MasterUser, error) {
	var users []models.MasterUser
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Order("display_name, id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list active master users: %w", err)
	}
	return users, nil
}

// ListEnabledDirectoryUsers returns every enabled directory account
func (s *GormStore) ListEnabledDirectoryUsers(ctx context.Context) ([]models.DirectoryUser, error) {
	var users []models.DirectoryUser
	if err := s.db.WithContext(ctx).Where("account_enabled = ?", true).Order("display_name, id").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list enabled directory users: %w", err)
	}
	return users, nil
}

// FindBranch looks up a branch by id
func (s *GormStore) FindBranch(ctx context.Context, branchID string) (*models.Branch, error) {
	branch, err := findOne[models.Branch](s.db.WithContext(ctx).Where("branch_id = ?", branchID))
	if err != nil {
		return nil, fmt.Errorf("failed to query branch: %w", err)
	}
	return branch, nil
}

// FindBranchByName looks up a branch by name, ignoring case and surrounding spaces
func (s *GormStore) FindBranchByName(ctx context.Context, name string) (*models.Branch, error) {
	branch, err := findOne[models.Branch](s.db.WithContext(ctx).
		Where("LOWER(name) = ?", strings.ToLower(strings.TrimSpace(name))).
		Order("branch_id"))
	if err != nil {
		return nil, fmt.Errorf("failed to query branch by name: %w", err)
	}
	return branch, nil
}

// FindUserProfile looks up the console profile for an email
func (s *GormStore) FindUserProfile(ctx context.Context, email string) (*models.UserProfile, error) {
	profile, err := findOne[models.UserProfile](s.db.WithContext(ctx).Where("LOWER(email) = ?", normalizeEmail(email)))
	if err != nil {
		return nil, fmt.Errorf("failed to query user profile: %w", err)
	}
	return profile, nil
}

// ListCredentials returns the VPN and RDP credentials recorded for an email,
// oldest first. Service types match regardless of case.
func (s *GormStore) ListCredentials(ctx context.Context, email string) ([]models.UserCredential, error) {
	var creds []models.UserCredential
	err := s.db.WithContext(ctx).
		Where("LOWER(email) = ?", normalizeEmail(email)).
		Where("UPPER(service_type) IN ?", []string{string(models.ServiceTypeVPN), string(models.ServiceTypeRDP)}).
		Order("id").
		Find(&creds).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	return creds, nil
}

// ListHardwareAssets returns inventory rows owned by the email or the UPN
func (s *GormStore) ListHardwareAssets(ctx context.Context, email, upn string) ([]models.HardwareAsset, error) {
	email = normalizeEmail(email)
	upn = normalizeEmail(upn)
	if upn == "" {
		upn = email
	}
	if email == "" {
		email = upn
	}

	var assets []models.HardwareAsset
	err := s.db.WithContext(ctx).
		Where("LOWER(assigned_email) = ? OR LOWER(assigned_upn) = ?", email, upn).
		Order("created_at, serial_number").
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list hardware assets: %w", err)
	}
	return assets, nil
}

// ListCurrentAssignments returns the device assignments currently held by an email
func (s *GormStore) ListCurrentAssignments(ctx context.Context, email string) ([]models.DeviceAssignment, error) {
	var assignments []models.DeviceAssignment
	err := s.db.WithContext(ctx).
		Where("LOWER(user_email) = ? AND is_current = ?", normalizeEmail(email), true).
		Order("id").
		Find(&assignments).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list device assignments: %w", err)
	}
	return assignments, nil
}

// ListActiveManualDevices returns active hand-recorded devices for an email
func (s *GormStore) ListActiveManualDevices(ctx context.Context, email string) ([]models.ManualDevice, error) {
	var devices []models.ManualDevice
	err := s.db.WithContext(ctx).
		Where("LOWER(user_email) = ? AND is_active = ?", normalizeEmail(email), true).
		Order("created_at, serial_number").
		Find(&devices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list manual devices: %w", err)
	}
	return devices, nil
}

// UpsertDirectoryUsers inserts or refreshes directory users keyed by id
func (s *GormStore) UpsertDirectoryUsers(ctx context.Context, users []models.DirectoryUser) error {
	if len(users) == 0 {
		return nil
	}
	now := time.Now()
	for i := range users {
		users[i].LastSyncedAt = &now
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"display_name", "mail", "user_principal_name", "job_title",
			"department", "account_enabled", "last_synced_at", "updated_at",
		}),
	}).CreateInBatches(&users, 100).Error
	if err != nil {
		return fmt.Errorf("failed to upsert directory users: %w", err)
	}
	return nil
}

// UpsertHardwareAssets inserts or refreshes inventory rows keyed by serial number.
// branch_id is left untouched on conflict since it is curated by hand.
func (s *GormStore) UpsertHardwareAssets(ctx context.Context, assets []models.HardwareAsset) error {
	if len(assets) == 0 {
		return nil
	}
	now := time.Now()
	for i := range assets {
		assets[i].LastSyncedAt = &now
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "serial_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"external_id", "assigned_email", "assigned_upn", "device_name", "device_type",
			"model", "manufacturer", "status", "last_synced_at", "updated_at",
		}),
	}).CreateInBatches(&assets, 100).Error
	if err != nil {
		return fmt.Errorf("failed to upsert hardware assets: %w", err)
	}
	return nil
}

// UpsertManualDevices inserts or replaces manual devices keyed by serial number
func (s *GormStore) UpsertManualDevices(ctx context.Context, devices []models.ManualDevice) error {
	if len(devices) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "serial_number"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_email", "device_name", "device_type", "model",
			"manufacturer", "status", "is_active", "updated_at",
		}),
	}).CreateInBatches(&devices, 100).Error
	if err != nil {
		return fmt.Errorf("failed to upsert manual devices: %w", err)
	}
	return nil
}
