package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/itops-console/console-backend/v1/models"
	"github.com/itops-console/console-backend/v1/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConsolidator struct {
	users []models.ConsolidatedUserData
	err   error
}

func (s *stubConsolidator) Consolidate(ctx context.Context, id, email string) (*models.ConsolidatedUserData, error) {
	return nil, errors.New("not implemented")
}

func (s *stubConsolidator) ConsolidateAll(ctx context.Context) ([]models.ConsolidatedUserData, error) {
	return s.users, s.err
}

type recordingDeviceWriter struct {
	devices []models.ManualDevice
	err     error
}

func (r *recordingDeviceWriter) UpsertManualDevices(ctx context.Context, devices []models.ManualDevice) error {
	r.devices = append(r.devices, devices...)
	return r.err
}

func TestCSVService_ExportConsolidatedUsers(t *testing.T) {
	consolidator := &stubConsolidator{users: []models.ConsolidatedUserData{
		{
			ID: "u-1", DisplayName: "Lovelace, Ada", Email: "ada@example.com", Department: "Finance",
			Branch:         &models.BranchAssignment{BranchID: "br-1", BranchName: "Headquarters"},
			VPNCredentials: []models.Credential{{Username: "ada.vpn"}},
			Devices:        []models.Device{{SerialNumber: "SN-1"}, {SerialNumber: "SN-2"}},
		},
		{ID: "u-2", DisplayName: "Lin", Email: "lin@example.com"},
	}}

	var buf bytes.Buffer
	n, err := NewCSVService(consolidator, nil).ExportConsolidatedUsers(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, ExportHeader, records[0])
	assert.Equal(t, []string{"u-1", "Lovelace, Ada", "ada@example.com", "Finance", "Headquarters", "VPN: ada.vpn", "2"}, records[1])
	assert.Equal(t, []string{"u-2", "Lin", "lin@example.com", "", "Unassigned", "No credentials", "0"}, records[2])
}

func TestCSVService_ExportConsolidatedUsers_Error(t *testing.T) {
	consolidator := &stubConsolidator{err: errors.New("enumeration failed")}

	var buf bytes.Buffer
	_, err := NewCSVService(consolidator, nil).ExportConsolidatedUsers(context.Background(), &buf)
	assert.Error(t, err)
	assert.Empty(t, buf.String())
}

func TestCSVService_ImportManualDevices(t *testing.T) {
	input := strings.Join([]string{
		"user_email,serial_number,device_name,device_type,model,manufacturer,status",
		"Ada@Example.com,SN-1,ADA-PHONE,phone,Pixel 8,Google,active",
		"not-an-email,SN-2,,,,,",
		"lin@example.com,,LIN-LT,laptop,,,",
		"",
		"lin@example.com,SN-3,LIN-OLD,laptop,,,retired",
		"bob@example.com,sn-1,BOB-PHONE,phone,,,",
	}, "\n")

	writer := &recordingDeviceWriter{}
	result, err := NewCSVService(nil, writer).ImportManualDevices(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, 2, result.Imported)
	assert.Equal(t, 3, result.Skipped)
	require.Len(t, result.Errors, 3)
	assert.Equal(t, 3, result.Errors[0].Line)
	assert.Contains(t, result.Errors[0].Message, "UserEmail")
	assert.Contains(t, result.Errors[1].Message, "SerialNumber")
	assert.Contains(t, result.Errors[2].Message, "duplicate serial number")

	require.Len(t, writer.devices, 2)
	assert.Equal(t, "SN-1", writer.devices[0].SerialNumber)
	assert.Equal(t, "ada@example.com", writer.devices[0].UserEmail)
	assert.Equal(t, "Pixel 8", writer.devices[0].Model)
	assert.True(t, writer.devices[0].IsActive)
	assert.Equal(t, "SN-3", writer.devices[1].SerialNumber)
	assert.False(t, writer.devices[1].IsActive)
}

func TestCSVService_ImportManualDevices_ReorderedColumns(t *testing.T) {
	input := "Serial_Number, User_Email\nSN-9,ada@example.com\n"

	writer := &recordingDeviceWriter{}
	result, err := NewCSVService(nil, writer).ImportManualDevices(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)
	require.Len(t, writer.devices, 1)
	assert.Equal(t, "SN-9", writer.devices[0].SerialNumber)
	assert.Equal(t, "ada@example.com", writer.devices[0].UserEmail)
}

func TestCSVService_ImportManualDevices_BadHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"MissingSerial", "user_email,device_name\nada@example.com,phone\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &recordingDeviceWriter{}
			result, err := NewCSVService(nil, writer).ImportManualDevices(context.Background(), strings.NewReader(tt.input))
			assert.Nil(t, result)
			var vErr *ValidationError
			assert.True(t, errors.As(err, &vErr))
			assert.Empty(t, writer.devices)
		})
	}
}

func TestCSVService_ImportManualDevices_StoreFailure(t *testing.T) {
	writer := &recordingDeviceWriter{err: errors.New("failed to upsert manual devices: timeout")}
	input := "user_email,serial_number\nada@example.com,SN-1\n"

	result, err := NewCSVService(nil, writer).ImportManualDevices(context.Background(), strings.NewReader(input))
	assert.Nil(t, result)
	assert.Error(t, err)
}

func TestCSVService_ImportFeedsConsolidation(t *testing.T) {
	db := RequireTestDB(t)
	gormStore := store.NewGormStore(db)
	require.NoError(t, db.Create(&models.MasterUser{ID: "u-1", DisplayName: "Ada", Email: "ada@example.com", IsActive: true}).Error)

	consolidator := NewConsolidationService(gormStore)
	svc := NewCSVService(consolidator, gormStore)

	input := "user_email,serial_number,device_name\nada@example.com,SN-1,ADA-PHONE\n"
	result, err := svc.ImportManualDevices(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Imported)

	var buf bytes.Buffer
	n, err := svc.ExportConsolidatedUsers(context.Background(), &buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, buf.String(), "u-1,Ada,ada@example.com,,Unassigned,No credentials,1")
}
