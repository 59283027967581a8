package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/itops-console/console-backend/monitoring"
	"github.com/itops-console/console-backend/v1/models"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrMissingIdentityKey is returned when neither an id nor an email is given
	ErrMissingIdentityKey = errors.New("either id or email must be provided")
	// ErrIdentityLookup wraps backend failures while resolving the base identity
	ErrIdentityLookup = errors.New("identity lookup failed")
)

// Facet names used in logs and metrics
const (
	facetBranch      = "branch"
	facetCredentials = "credentials"
	facetDevices     = "devices"
)

// ConsolidationService merges a user's identity, branch, credentials and
// devices from every record store into one view
type ConsolidationService struct {
	store            UserDataStore
	concurrencyLimit int
}

// ConsolidationOption configures a ConsolidationService
type ConsolidationOption func(*ConsolidationService)

// WithConcurrencyLimit bounds how many users ConsolidateAll processes at once.
// Zero or a negative value means no bound.
func WithConcurrencyLimit(limit int) ConsolidationOption {
	return func(s *ConsolidationService) {
		s.concurrencyLimit = limit
	}
}

// NewConsolidationService creates a new consolidation service
func NewConsolidationService(store UserDataStore, opts ...ConsolidationOption) *ConsolidationService {
	s := &ConsolidationService{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// baseIdentity is the identity record the rest of the view hangs off
type baseIdentity struct {
	id                string
	displayName       string
	email             string
	userPrincipalName string
	jobTitle          string
	department        string
	accountEnabled    bool
	source            string

	// Only set for master list records
	branchID    *string
	vpnUsername *string
	rdpUsername *string
}

func identityFromMaster(u *models.MasterUser) *baseIdentity {
	return &baseIdentity{
		id:                u.ID,
		displayName:       u.DisplayName,
		email:             u.Email,
		userPrincipalName: u.UserPrincipalName,
		jobTitle:          u.JobTitle,
		department:        u.Department,
		accountEnabled:    u.AccountEnabled,
		source:            models.SourceMasterUserList,
		branchID:          u.BranchID,
		vpnUsername:       u.VPNUsername,
		rdpUsername:       u.RDPUsername,
	}
}

func identityFromDirectory(u *models.DirectoryUser) *baseIdentity {
	return &baseIdentity{
		id:                u.ID,
		displayName:       u.DisplayName,
		email:             u.Mail,
		userPrincipalName: u.UserPrincipalName,
		jobTitle:          u.JobTitle,
		department:        u.Department,
		accountEnabled:    u.AccountEnabled,
		source:            models.SourceDirectoryUsers,
	}
}

// Consolidate builds the merged view for the user identified by id or email.
// It returns (nil, nil) when no identity record matches. Enrichment failures
// only empty the affected collection; a backend failure while resolving the
// identity itself is returned wrapped in ErrIdentityLookup.
func (s *ConsolidationService) Consolidate(ctx context.Context, id, email string) (*models.ConsolidatedUserData, error) {
	id = strings.TrimSpace(id)
	email = strings.TrimSpace(email)
	if id == "" && email == "" {
		return nil, ErrMissingIdentityKey
	}

	start := time.Now()
	base, err := s.resolveIdentity(ctx, id, email)
	if err != nil {
		monitoring.RecordConsolidation(ctx, "error", time.Since(start))
		slog.Error("Failed to resolve user identity", "id", id, "email", email, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrIdentityLookup, err)
	}
	if base == nil {
		monitoring.RecordConsolidation(ctx, "not_found", time.Since(start))
		slog.Debug("No identity record found", "id", id, "email", email)
		return nil, nil
	}

	lookupEmail := base.email
	if lookupEmail == "" {
		lookupEmail = email
	}

	var (
		branches []models.BranchAssignment
		vpn, rdp []models.Credential
		devices  []models.Device
	)

	// The facets only share the resolved identity, so they run side by side.
	// Each one logs its own failures and never reports an error to the group.
	var g errgroup.Group
	g.Go(func() error {
		branches = s.resolveBranches(ctx, base, lookupEmail)
		return nil
	})
	g.Go(func() error {
		vpn, rdp = s.resolveCredentials(ctx, base, lookupEmail)
		return nil
	})
	g.Go(func() error {
		devices = s.resolveDevices(ctx, lookupEmail, base.userPrincipalName)
		return nil
	})
	_ = g.Wait()

	result := &models.ConsolidatedUserData{
		ID:                base.id,
		DisplayName:       base.displayName,
		Email:             lookupEmail,
		UserPrincipalName: base.userPrincipalName,
		JobTitle:          base.jobTitle,
		Department:        base.department,
		AccountEnabled:    base.accountEnabled,
		Sources:           []string{base.source},
		Branch:            selectBestBranch(branches),
		AllBranchSources:  branches,
		VPNCredentials:    vpn,
		RDPCredentials:    rdp,
		Devices:           devices,
	}

	monitoring.RecordConsolidation(ctx, "found", time.Since(start))
	return result, nil
}

// resolveIdentity walks the identity sources in priority order and stops at
// the first hit: master by id, directory by id, master by email, directory by
// email
func (s *ConsolidationService) resolveIdentity(ctx context.Context, id, email string) (*baseIdentity, error) {
	if id != "" {
		master, err := s.store.FindMasterUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if master != nil {
			return identityFromMaster(master), nil
		}

		dir, err := s.store.FindDirectoryUserByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if dir != nil {
			return identityFromDirectory(dir), nil
		}
	}

	if email != "" {
		master, err := s.store.FindMasterUserByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if master != nil {
			return identityFromMaster(master), nil
		}

		dir, err := s.store.FindDirectoryUserByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		if dir != nil {
			return identityFromDirectory(dir), nil
		}
	}

	return nil, nil
}

// facetFailed logs and counts an enrichment lookup that degraded to empty
func facetFailed(ctx context.Context, facet, lookup, email string, err error) {
	monitoring.RecordFacetFailure(ctx, facet)
	slog.Warn("Enrichment lookup failed, continuing without it",
		"facet", facet,
		"lookup", lookup,
		"email", email,
		"error", err)
}

// resolveBranches collects branch candidates in discovery order. Each lookup
// is independent and a failing one is skipped.
func (s *ConsolidationService) resolveBranches(ctx context.Context, base *baseIdentity, email string) []models.BranchAssignment {
	candidates := make([]models.BranchAssignment, 0, 4)

	if base.branchID != nil && *base.branchID != "" {
		candidates = append(candidates, models.BranchAssignment{
			BranchID:   *base.branchID,
			BranchName: s.branchName(ctx, *base.branchID, email),
			Source:     base.source,
			Confidence: models.ConfidenceHigh,
		})
	}

	if email != "" {
		profile, err := s.store.FindUserProfile(ctx, email)
		if err != nil {
			facetFailed(ctx, facetBranch, models.SourceUserProfiles, email, err)
		} else if profile != nil && profile.BranchID != nil && *profile.BranchID != "" {
			candidates = append(candidates, models.BranchAssignment{
				BranchID:   *profile.BranchID,
				BranchName: s.branchName(ctx, *profile.BranchID, email),
				Source:     models.SourceUserProfiles,
				Confidence: models.ConfidenceHigh,
			})
		}
	}

	if email != "" || base.userPrincipalName != "" {
		assets, err := s.store.ListHardwareAssets(ctx, email, base.userPrincipalName)
		if err != nil {
			facetFailed(ctx, facetBranch, models.SourceHardwareInventory, email, err)
		}
		for _, asset := range assets {
			if asset.BranchID == nil || *asset.BranchID == "" {
				continue
			}
			candidates = append(candidates, models.BranchAssignment{
				BranchID:   *asset.BranchID,
				BranchName: s.branchName(ctx, *asset.BranchID, email),
				Source:     models.SourceHardwareInventory,
				Confidence: models.ConfidenceMedium,
			})
			break
		}
	}

	if base.department != "" {
		branch, err := s.store.FindBranchByName(ctx, base.department)
		if err != nil {
			facetFailed(ctx, facetBranch, models.SourceDepartmentMatch, email, err)
		} else if branch != nil {
			candidates = append(candidates, models.BranchAssignment{
				BranchID:   branch.BranchID,
				BranchName: branch.Name,
				Source:     models.SourceDepartmentMatch,
				Confidence: models.ConfidenceLow,
			})
		}
	}

	return dedupeBranches(candidates)
}

// branchName resolves a branch id to its display name, or "" if unknown
func (s *ConsolidationService) branchName(ctx context.Context, branchID, email string) string {
	branch, err := s.store.FindBranch(ctx, branchID)
	if err != nil {
		facetFailed(ctx, facetBranch, "branches", email, err)
		return ""
	}
	if branch == nil {
		return ""
	}
	return branch.Name
}

// dedupeBranches drops candidates repeating an earlier (branch, source) pair
func dedupeBranches(candidates []models.BranchAssignment) []models.BranchAssignment {
	seen := make(map[string]bool, len(candidates))
	out := make([]models.BranchAssignment, 0, len(candidates))
	for _, c := range candidates {
		key := c.BranchID + "|" + c.Source
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// selectBestBranch picks the most trusted candidate. The sort is stable, so
// candidates of equal confidence keep their discovery order and the first
// one found wins.
func selectBestBranch(candidates []models.BranchAssignment) *models.BranchAssignment {
	if len(candidates) == 0 {
		return nil
	}
	ranked := make([]models.BranchAssignment, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence.Rank() < ranked[j].Confidence.Rank()
	})
	best := ranked[0]
	return &best
}

// resolveCredentials merges the credential store with the usernames carried
// on the base record. Store rows come first so they win on a repeated
// (username, service type) pair.
func (s *ConsolidationService) resolveCredentials(ctx context.Context, base *baseIdentity, email string) (vpn, rdp []models.Credential) {
	var stored []models.UserCredential
	if email != "" {
		var err error
		stored, err = s.store.ListCredentials(ctx, email)
		if err != nil {
			facetFailed(ctx, facetCredentials, models.SourceUserCredentials, email, err)
			stored = nil
		}
	}
	return mergeCredentials(stored, base)
}

func mergeCredentials(stored []models.UserCredential, base *baseIdentity) (vpn, rdp []models.Credential) {
	vpn = make([]models.Credential, 0)
	rdp = make([]models.Credential, 0)
	seen := make(map[string]bool)

	add := func(c models.Credential) {
		c.Username = strings.TrimSpace(c.Username)
		if c.Username == "" {
			return
		}
		key := string(c.ServiceType) + "|" + c.Username
		if seen[key] {
			return
		}
		switch c.ServiceType {
		case models.ServiceTypeVPN:
			vpn = append(vpn, c)
		case models.ServiceTypeRDP:
			rdp = append(rdp, c)
		default:
			return
		}
		seen[key] = true
	}

	for _, row := range stored {
		add(models.Credential{
			Username:    row.Username,
			ServiceType: models.ServiceType(strings.ToUpper(string(row.ServiceType))),
			Notes:       row.Notes,
			Source:      models.SourceUserCredentials,
		})
	}

	if base.vpnUsername != nil {
		add(models.Credential{Username: *base.vpnUsername, ServiceType: models.ServiceTypeVPN, Source: base.source})
	}
	if base.rdpUsername != nil {
		add(models.Credential{Username: *base.rdpUsername, ServiceType: models.ServiceTypeRDP, Source: base.source})
	}

	return vpn, rdp
}

// resolveDevices merges hardware inventory, current assignments and active
// manual devices, in that order of precedence
func (s *ConsolidationService) resolveDevices(ctx context.Context, email, upn string) []models.Device {
	var (
		assets      []models.HardwareAsset
		assignments []models.DeviceAssignment
		manual      []models.ManualDevice
		err         error
	)

	if email != "" || upn != "" {
		if assets, err = s.store.ListHardwareAssets(ctx, email, upn); err != nil {
			facetFailed(ctx, facetDevices, models.SourceHardwareInventory, email, err)
			assets = nil
		}
	}
	if email != "" {
		if assignments, err = s.store.ListCurrentAssignments(ctx, email); err != nil {
			facetFailed(ctx, facetDevices, models.SourceDeviceAssignments, email, err)
			assignments = nil
		}
		if manual, err = s.store.ListActiveManualDevices(ctx, email); err != nil {
			facetFailed(ctx, facetDevices, models.SourceManualDevices, email, err)
			manual = nil
		}
	}

	return mergeDevices(assets, assignments, manual)
}

func deviceFrom(serial string, d models.DeviceDetails, source string) models.Device {
	return models.Device{
		SerialNumber: strings.TrimSpace(serial),
		DeviceName:   d.DeviceName,
		DeviceType:   d.DeviceType,
		Model:        d.Model,
		Manufacturer: d.Manufacturer,
		Status:       d.Status,
		Source:       source,
	}
}

func mergeDevices(assets []models.HardwareAsset, assignments []models.DeviceAssignment, manual []models.ManualDevice) []models.Device {
	devices := make([]models.Device, 0, len(assets)+len(assignments)+len(manual))
	seen := make(map[string]bool)

	// Serial numbers compare case-insensitively. Devices without one cannot
	// collide and are always kept.
	add := func(d models.Device) {
		if d.SerialNumber != "" {
			key := strings.ToUpper(d.SerialNumber)
			if seen[key] {
				return
			}
			seen[key] = true
		}
		devices = append(devices, d)
	}

	for _, a := range assets {
		add(deviceFrom(a.SerialNumber, a.DeviceDetails, models.SourceHardwareInventory))
	}
	for _, a := range assignments {
		add(deviceFrom(a.SerialNumber, a.DeviceDetails, models.SourceDeviceAssignments))
	}
	for _, m := range manual {
		add(deviceFrom(m.SerialNumber, m.DeviceDetails, models.SourceManualDevices))
	}
	return devices
}

// identityKey is the lookup key for one user during a bulk consolidation
type identityKey struct {
	id    string
	email string
}

// ConsolidateAll consolidates every active user. Users come from the master
// list, or from the directory when the master list has no active entries.
// Users that resolve to nothing or fail are left out of the result; the
// result keeps enumeration order.
func (s *ConsolidationService) ConsolidateAll(ctx context.Context) ([]models.ConsolidatedUserData, error) {
	keys, err := s.listIdentityKeys(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*models.ConsolidatedUserData, len(keys))

	var g errgroup.Group
	if s.concurrencyLimit > 0 {
		g.SetLimit(s.concurrencyLimit)
	}
	for i, key := range keys {
		g.Go(func() error {
			user, err := s.Consolidate(ctx, key.id, key.email)
			if err != nil {
				slog.Warn("Skipping user that failed to consolidate", "id", key.id, "email", key.email, "error", err)
				return nil
			}
			results[i] = user
			return nil
		})
	}
	_ = g.Wait()

	users := make([]models.ConsolidatedUserData, 0, len(keys))
	for _, user := range results {
		if user != nil {
			users = append(users, *user)
		}
	}

	slog.Info("Consolidated users", "requested", len(keys), "returned", len(users))
	return users, nil
}

func (s *ConsolidationService) listIdentityKeys(ctx context.Context) ([]identityKey, error) {
	masters, err := s.store.ListActiveMasterUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate master users: %w", err)
	}
	if len(masters) > 0 {
		keys := make([]identityKey, len(masters))
		for i, m := range masters {
			keys[i] = identityKey{id: m.ID, email: m.Email}
		}
		return keys, nil
	}

	dirUsers, err := s.store.ListEnabledDirectoryUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate directory users: %w", err)
	}
	keys := make([]identityKey, len(dirUsers))
	for i, d := range dirUsers {
		keys[i] = identityKey{id: d.ID, email: d.Mail}
	}
	return keys, nil
}
