package utils

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/itops-console/console-backend/v1/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{"Valid", "Bearer abc.def", "abc.def", false},
		{"Missing", "", "", true},
		{"WrongScheme", "Basic dXNlcjpwYXNz", "", true},
		{"EmptyToken", "Bearer    ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			got, err := ExtractBearerToken(req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRequireAnyRole(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	_, err := RequireAnyRole(req, models.RoleAdmin)
	assert.Error(t, err)

	user := &models.AuthenticatedUser{UserID: "u-1", Role: models.RoleTechnician}
	req = req.WithContext(SetAuthenticatedUser(context.Background(), user))

	got, err := RequireAnyRole(req, models.RoleAdmin, models.RoleTechnician)
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)

	_, err = RequireAnyRole(req, models.RoleAdmin)
	assert.ErrorContains(t, err, "admin")
}

func TestGetRequestIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:51234"
	assert.Equal(t, "10.0.0.5", GetRequestIP(req))

	req.Header.Set("X-Real-IP", "192.168.1.9")
	assert.Equal(t, "192.168.1.9", GetRequestIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", GetRequestIP(req))
}

func TestGetRequestIP_Fallbacks(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       string
	}{
		{"IPv6Peer", "[2001:db8::1]:443", "", "2001:db8::1"},
		{"PeerWithoutPort", "10.0.0.8", "", "10.0.0.8"},
		{"BlankForwardedHop", "10.0.0.5:51234", " , 198.51.100.2", "10.0.0.5"},
		{"NoPeer", "", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, GetRequestIP(req))
		})
	}
}
