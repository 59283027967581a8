package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/itops-console/console-backend/idp"
	"github.com/itops-console/console-backend/v1/models"
)

// DirectorySyncService mirrors cloud directory users and managed devices
// into the local tables the consolidator reads
type DirectorySyncService struct {
	provider idp.DirectoryProvider
	writer   DirectoryWriter

	// mu keeps a manual sync from overlapping the background one
	mu sync.Mutex
}

// NewDirectorySyncService creates a new directory sync service
func NewDirectorySyncService(provider idp.DirectoryProvider, writer DirectoryWriter) *DirectorySyncService {
	return &DirectorySyncService{provider: provider, writer: writer}
}

// Sync pulls users and devices from the directory and upserts them. A user
// listing failure aborts the run; devices without a serial number are
// counted as failed and skipped.
func (s *DirectorySyncService) Sync(ctx context.Context) (*models.SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := time.Now()
	result := &models.SyncResult{StartedAt: started.UTC().Format(time.RFC3339)}

	users, err := s.provider.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list directory users: %w", err)
	}

	records := make([]models.DirectoryUser, 0, len(users))
	for _, u := range users {
		if u.Id == "" {
			continue
		}
		records = append(records, models.DirectoryUser{
			ID:                u.Id,
			DisplayName:       u.DisplayName,
			Mail:              strings.TrimSpace(u.Mail),
			UserPrincipalName: strings.TrimSpace(u.UserPrincipalName),
			JobTitle:          u.JobTitle,
			Department:        u.Department,
			AccountEnabled:    u.AccountEnabled,
		})
	}
	if err := s.writer.UpsertDirectoryUsers(ctx, records); err != nil {
		return nil, err
	}
	result.UsersSynced = len(records)

	devices, err := s.provider.ListManagedDevices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list managed devices: %w", err)
	}

	assets := make([]models.HardwareAsset, 0, len(devices))
	seen := make(map[string]bool, len(devices))
	for _, d := range devices {
		serial := strings.TrimSpace(d.SerialNumber)
		key := strings.ToUpper(serial)
		if serial == "" || seen[key] {
			result.DevicesFailed++
			slog.Debug("Skipping managed device", "deviceID", d.Id, "serialNumber", serial)
			continue
		}
		seen[key] = true
		assets = append(assets, models.HardwareAsset{
			SerialNumber:  serial,
			ExternalID:    d.Id,
			AssignedEmail: strings.TrimSpace(d.EmailAddress),
			AssignedUPN:   strings.TrimSpace(d.UserPrincipalName),
			DeviceDetails: models.DeviceDetails{
				DeviceName:   d.DeviceName,
				DeviceType:   d.OperatingSystem,
				Model:        d.Model,
				Manufacturer: d.Manufacturer,
				Status:       d.ComplianceState,
			},
		})
	}
	if err := s.writer.UpsertHardwareAssets(ctx, assets); err != nil {
		return nil, err
	}
	result.DevicesSynced = len(assets)
	result.FinishedAt = time.Now().UTC().Format(time.RFC3339)

	slog.Info("Directory sync completed",
		"usersSynced", result.UsersSynced,
		"devicesSynced", result.DevicesSynced,
		"devicesFailed", result.DevicesFailed,
		"duration", time.Since(started))
	return result, nil
}
