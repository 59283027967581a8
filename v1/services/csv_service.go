package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/itops-console/console-backend/v1/models"
)

// ExportHeader is the column layout of the consolidated user export
var ExportHeader = []string{"id", "display_name", "email", "department", "branch", "credentials", "device_count"}

// ImportHeader is the column layout expected by the manual device import
var ImportHeader = []string{"user_email", "serial_number", "device_name", "device_type", "model", "manufacturer", "status"}

// inactiveStatuses mark imported devices that no longer count as assigned
var inactiveStatuses = map[string]bool{
	"retired":  true,
	"inactive": true,
	"disposed": true,
}

// CSVService exports consolidated users and imports hand-kept device lists
type CSVService struct {
	consolidator UserConsolidator
	devices      ManualDeviceWriter
}

// NewCSVService creates a new CSV service
func NewCSVService(consolidator UserConsolidator, devices ManualDeviceWriter) *CSVService {
	return &CSVService{consolidator: consolidator, devices: devices}
}

// ExportConsolidatedUsers writes every consolidated user to w as CSV
func (s *CSVService) ExportConsolidatedUsers(ctx context.Context, w io.Writer) (int, error) {
	users, err := s.consolidator.ConsolidateAll(ctx)
	if err != nil {
		return 0, err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeader); err != nil {
		return 0, fmt.Errorf("failed to write header: %w", err)
	}
	for i := range users {
		u := &users[i]
		row := []string{
			u.ID,
			u.DisplayName,
			u.Email,
			u.Department,
			u.BranchDisplayName(),
			u.CredentialSummary(),
			strconv.Itoa(len(u.Devices)),
		}
		if err := cw.Write(row); err != nil {
			return 0, fmt.Errorf("failed to write row for user %s: %w", u.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush export: %w", err)
	}
	return len(users), nil
}

// ImportManualDevices reads a device list from r and upserts it into the
// manual device table. Rows that fail validation are reported in the result
// and skipped; only a malformed header or a storage failure aborts.
func (s *CSVService) ImportManualDevices(ctx context.Context, r io.Reader) (*models.ImportResult, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &ValidationError{Fields: []string{"file is empty"}}
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	result := &models.ImportResult{Errors: []models.ImportRowError{}}
	var devices []models.ManualDevice
	seen := make(map[string]int)

	for line := 2; ; line++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportRowError{Line: line, Message: err.Error()})
			continue
		}
		if isBlank(record) {
			continue
		}

		row := columns.row(record)
		if err := validateStruct(&row); err != nil {
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportRowError{Line: line, Message: err.Error()})
			continue
		}

		key := strings.ToUpper(row.SerialNumber)
		if first, dup := seen[key]; dup {
			result.Skipped++
			result.Errors = append(result.Errors, models.ImportRowError{
				Line:    line,
				Message: fmt.Sprintf("duplicate serial number %s, first seen on line %d", row.SerialNumber, first),
			})
			continue
		}
		seen[key] = line

		devices = append(devices, models.ManualDevice{
			SerialNumber: row.SerialNumber,
			UserEmail:    strings.ToLower(row.UserEmail),
			DeviceDetails: models.DeviceDetails{
				DeviceName:   row.DeviceName,
				DeviceType:   row.DeviceType,
				Model:        row.Model,
				Manufacturer: row.Manufacturer,
				Status:       row.Status,
			},
			IsActive: !inactiveStatuses[strings.ToLower(row.Status)],
		})
	}

	if err := s.devices.UpsertManualDevices(ctx, devices); err != nil {
		return nil, err
	}
	result.Imported = len(devices)

	slog.Info("Manual device import completed", "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

// columnIndex maps import column names to their position in the file
type columnIndex map[string]int

func mapColumns(header []string) (columnIndex, error) {
	columns := make(columnIndex, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		columns[name] = i
	}
	var missing []string
	for _, name := range ImportHeader[:2] {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &ValidationError{Fields: []string{"missing required columns: " + strings.Join(missing, ", ")}}
	}
	return columns, nil
}

func (c columnIndex) get(record []string, name string) string {
	i, ok := c[name]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (c columnIndex) row(record []string) models.ManualDeviceRow {
	return models.ManualDeviceRow{
		UserEmail:    c.get(record, "user_email"),
		SerialNumber: c.get(record, "serial_number"),
		DeviceName:   c.get(record, "device_name"),
		DeviceType:   c.get(record, "device_type"),
		Model:        c.get(record, "model"),
		Manufacturer: c.get(record, "manufacturer"),
		Status:       c.get(record, "status"),
	}
}

func isBlank(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
