package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/itops-console/console-backend/idp"
	"github.com/itops-console/console-backend/monitoring"
)

const (
	userSelect   = "id,displayName,mail,userPrincipalName,jobTitle,department,accountEnabled"
	deviceSelect = "id,deviceName,serialNumber,userPrincipalName,emailAddress,model,manufacturer,operatingSystem,complianceState,lastSyncDateTime"
	pageSize     = 999

	// maxPages stops a misbehaving nextLink chain
	maxPages = 1000
)

type UserResponseBody struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
	JobTitle          string `json:"jobTitle"`
	Department        string `json:"department"`
	AccountEnabled    bool   `json:"accountEnabled"`
}

type ManagedDeviceResponseBody struct {
	ID                string     `json:"id"`
	DeviceName        string     `json:"deviceName"`
	SerialNumber      string     `json:"serialNumber"`
	UserPrincipalName string     `json:"userPrincipalName"`
	EmailAddress      string     `json:"emailAddress"`
	Model             string     `json:"model"`
	Manufacturer      string     `json:"manufacturer"`
	OperatingSystem   string     `json:"operatingSystem"`
	ComplianceState   string     `json:"complianceState"`
	LastSyncDateTime  *time.Time `json:"lastSyncDateTime"`
}

// page is one page of a Graph collection response
type page[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

// getAll follows @odata.nextLink from link until the collection is exhausted
func getAll[T any](ctx context.Context, c *Client, link string) ([]T, error) {
	var items []T
	for pages := 0; link != ""; pages++ {
		if pages >= maxPages {
			return nil, fmt.Errorf("too many pages, stopped after %d", maxPages)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		res, err := c.Client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("failed to send request: %w", err)
		}

		body, err := io.ReadAll(res.Body)
		res.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		if res.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status code: %d, body: %s", res.StatusCode, string(body))
		}

		var p page[T]
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		items = append(items, p.Value...)
		if p.NextLink != "" {
			if err := c.checkNextLink(p.NextLink); err != nil {
				return nil, err
			}
		}
		link = p.NextLink
	}
	return items, nil
}

// checkNextLink keeps the bearer token on the configured Graph host
func (c *Client) checkNextLink(link string) error {
	next, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("invalid nextLink: %w", err)
	}
	base, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if !strings.EqualFold(next.Scheme, base.Scheme) || !strings.EqualFold(next.Host, base.Host) {
		return fmt.Errorf("nextLink host %q does not match %q", next.Host, base.Host)
	}
	return nil
}

func (c *Client) ListUsers(ctx context.Context) ([]idp.DirectoryUserInfo, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1.0/users?$select=%s&$top=%d", c.BaseURL, userSelect, pageSize)

	bodies, err := getAll[UserResponseBody](ctx, c, endpoint)
	monitoring.RecordExternalCall(ctx, "microsoft-graph", "list_users", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	users := make([]idp.DirectoryUserInfo, 0, len(bodies))
	for _, b := range bodies {
		users = append(users, idp.DirectoryUserInfo{
			Id:                b.ID,
			DisplayName:       b.DisplayName,
			Mail:              b.Mail,
			UserPrincipalName: b.UserPrincipalName,
			JobTitle:          b.JobTitle,
			Department:        b.Department,
			AccountEnabled:    b.AccountEnabled,
		})
	}
	return users, nil
}

func (c *Client) ListManagedDevices(ctx context.Context) ([]idp.ManagedDeviceInfo, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1.0/deviceManagement/managedDevices?$select=%s&$top=%d", c.BaseURL, deviceSelect, pageSize)

	bodies, err := getAll[ManagedDeviceResponseBody](ctx, c, endpoint)
	monitoring.RecordExternalCall(ctx, "microsoft-graph", "list_managed_devices", time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("failed to list managed devices: %w", err)
	}

	devices := make([]idp.ManagedDeviceInfo, 0, len(bodies))
	for _, b := range bodies {
		devices = append(devices, idp.ManagedDeviceInfo{
			Id:                b.ID,
			DeviceName:        b.DeviceName,
			SerialNumber:      b.SerialNumber,
			UserPrincipalName: b.UserPrincipalName,
			EmailAddress:      b.EmailAddress,
			Model:             b.Model,
			Manufacturer:      b.Manufacturer,
			OperatingSystem:   b.OperatingSystem,
			ComplianceState:   b.ComplianceState,
			LastSyncDateTime:  b.LastSyncDateTime,
		})
	}
	return devices, nil
}
