package models

import (
	"fmt"
	"strings"
)

// BranchAssignment is one candidate branch for a user together with where it
// came from and how much it is trusted
type BranchAssignment struct {
	BranchID   string     `json:"branchId"`
	BranchName string     `json:"branchName"`
	Source     string     `json:"source"`
	Confidence Confidence `json:"confidence"`
}

// Credential is a remote-access account attached to a consolidated user
type Credential struct {
	Username    string      `json:"username"`
	ServiceType ServiceType `json:"serviceType"`
	Notes       string      `json:"notes,omitempty"`
	Source      string      `json:"source"`
}

// Device is a piece of hardware attached to a consolidated user
type Device struct {
	SerialNumber string `json:"serialNumber"`
	DeviceName   string `json:"deviceName"`
	DeviceType   string `json:"deviceType"`
	Model        string `json:"model"`
	Manufacturer string `json:"manufacturer"`
	Status       string `json:"status"`
	Source       string `json:"source"`
}

// ConsolidatedUserData is the merged view of a user across every record store.
// It is built fresh for each request and never persisted.
type ConsolidatedUserData struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Email             string `json:"email"`
	UserPrincipalName string `json:"userPrincipalName"`
	JobTitle          string `json:"jobTitle"`
	Department        string `json:"department"`
	AccountEnabled    bool   `json:"accountEnabled"`

	Sources          []string           `json:"sources"`
	Branch           *BranchAssignment  `json:"branch"`
	AllBranchSources []BranchAssignment `json:"allBranchSources"`
	VPNCredentials   []Credential       `json:"vpnCredentials"`
	RDPCredentials   []Credential       `json:"rdpCredentials"`
	Devices          []Device           `json:"devices"`
}

// CredentialSummary renders the user's credentials as a single line, for
// example "VPN: jdoe, RDP: jdoe-adm"
func (u *ConsolidatedUserData) CredentialSummary() string {
	var parts []string
	if len(u.VPNCredentials) > 0 {
		parts = append(parts, fmt.Sprintf("VPN: %s", joinUsernames(u.VPNCredentials)))
	}
	if len(u.RDPCredentials) > 0 {
		parts = append(parts, fmt.Sprintf("RDP: %s", joinUsernames(u.RDPCredentials)))
	}
	if len(parts) == 0 {
		return "No credentials"
	}
	return strings.Join(parts, ", ")
}

// BranchDisplayName returns the name of the selected branch, or "Unassigned"
func (u *ConsolidatedUserData) BranchDisplayName() string {
	if u.Branch == nil {
		return "Unassigned"
	}
	if u.Branch.BranchName != "" {
		return u.Branch.BranchName
	}
	return u.Branch.BranchID
}

// HasCredentials reports whether the user holds any VPN or RDP account
func (u *ConsolidatedUserData) HasCredentials() bool {
	return len(u.VPNCredentials) > 0 || len(u.RDPCredentials) > 0
}

// Usernames flattens VPN then RDP usernames, dropping repeats
func (u *ConsolidatedUserData) Usernames() []string {
	seen := make(map[string]bool)
	names := make([]string, 0, len(u.VPNCredentials)+len(u.RDPCredentials))
	for _, creds := range [][]Credential{u.VPNCredentials, u.RDPCredentials} {
		for _, c := range creds {
			if seen[c.Username] {
				continue
			}
			seen[c.Username] = true
			names = append(names, c.Username)
		}
	}
	return names
}

func joinUsernames(creds []Credential) string {
	names := make([]string, len(creds))
	for i, c := range creds {
		names[i] = c.Username
	}
	return strings.Join(names, "/")
}
