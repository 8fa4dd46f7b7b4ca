// internal/services/admin_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/licensehub/license-server/internal/models"
	"github.com/licensehub/license-server/internal/utils"
)

// recentActivationsLimit is the number of bindings shown on the dashboard.
const recentActivationsLimit = 10

type AdminService struct {
	licenses *LicenseRegistry
	ledger   *DomainLedger
	audit    AuditSink
	now      func() time.Time
}

type DashboardStats struct {
	Stats             models.LicenseStats `json:"stats"`
	RecentActivations []models.Activation `json:"recent_activations"`
}

type IssueLicenseRequest struct {
	LicenseKey string  `json:"license_key" validate:"omitempty,license_key"`
	MaxDomains int     `json:"max_domains" validate:"required,min=1"`
	ExpireAt   string  `json:"expire_at" validate:"required"`
	Notes      *string `json:"notes" validate:"omitempty,max=2000"`
}

type UpdateLicenseRequest struct {
	MaxDomains *int                  `json:"max_domains" validate:"omitempty,min=1"`
	ExpireAt   *string               `json:"expire_at"`
	Status     *models.LicenseStatus `json:"status" validate:"omitempty,oneof=active suspended"`
	Notes      *string               `json:"notes" validate:"omitempty,max=2000"`
}

type ExtendLicenseRequest struct {
	ExpireAt string `json:"expire_at" validate:"required"`
}

func NewAdminService(licenses *LicenseRegistry, ledger *DomainLedger, audit AuditSink) *AdminService {
	if audit == nil {
		audit = MultiAuditSink{}
	}
	return &AdminService{
		licenses: licenses,
		ledger:   ledger,
		audit:    audit,
		now:      time.Now,
	}
}

func (s *AdminService) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	now := s.now()

	total, err := s.licenses.Count(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.licenses.CountUsable(ctx, now)
	if err != nil {
		return nil, err
	}
	suspended, err := s.licenses.CountByStatus(ctx, models.LicenseStatusSuspended)
	if err != nil {
		return nil, err
	}
	expired, err := s.licenses.CountExpired(ctx, now)
	if err != nil {
		return nil, err
	}

	recent, err := s.ledger.LatestActivations(ctx, recentActivationsLimit)
	if err != nil {
		return nil, err
	}

	return &DashboardStats{
		Stats: models.LicenseStats{
			Total:     total,
			Active:    active,
			Suspended: suspended,
			Expired:   expired,
		},
		RecentActivations: recent,
	}, nil
}

// ListLicenses pages through licenses newest first. A search term switches to
// a key substring match capped at one page, so the total is the match count.
func (s *AdminService) ListLicenses(ctx context.Context, params utils.PaginationParams) ([]models.LicenseWithUsage, int64, error) {
	params = utils.NormalizePagination(params)

	var (
		licenses []models.License
		total    int64
		err      error
	)
	if params.Search != "" {
		licenses, err = s.licenses.Search(ctx, params.Search, params.Limit)
		total = int64(len(licenses))
	} else {
		licenses, err = s.licenses.List(ctx, params.Limit, params.Offset())
		if err == nil {
			total, err = s.licenses.Count(ctx)
		}
	}
	if err != nil {
		return nil, 0, err
	}

	ids := make([]uuid.UUID, len(licenses))
	for i := range licenses {
		ids[i] = licenses[i].ID
	}
	counts, err := s.ledger.CountsForLicenses(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	now := s.now()
	result := make([]models.LicenseWithUsage, len(licenses))
	for i, license := range licenses {
		result[i] = models.LicenseWithUsage{
			License:     license,
			DomainCount: counts[license.ID],
			Expired:     license.IsExpired(now),
		}
	}
	return result, total, nil
}

// GetLicense returns a license with its bindings, newest first.
func (s *AdminService) GetLicense(ctx context.Context, id uuid.UUID) (*models.LicenseWithUsage, error) {
	license, err := s.licenses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	domains, err := s.ledger.ListForLicense(ctx, id)
	if err != nil {
		return nil, err
	}
	license.Domains = domains

	return &models.LicenseWithUsage{
		License:     *license,
		DomainCount: int64(len(domains)),
		Expired:     license.IsExpired(s.now()),
	}, nil
}

// NewLicenseKey pre-generates a key for the create form. It is not reserved.
func (s *AdminService) NewLicenseKey() (string, error) {
	return s.licenses.generateKey()
}

func (s *AdminService) IssueLicense(ctx context.Context, req IssueLicenseRequest) (*models.License, error) {
	expireAt, err := parseExpiry(req.ExpireAt)
	if err != nil {
		return nil, err
	}

	license, _, err := s.licenses.Issue(ctx, IssueParams{
		Key:        req.LicenseKey,
		MaxDomains: req.MaxDomains,
		ExpireAt:   expireAt,
		Notes:      req.Notes,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, EventLicenseCreated, license.LicenseKey, map[string]interface{}{
		"max_domains": license.MaxDomains,
		"expire_at":   utils.FormatDate(license.ExpireAt),
	})
	return license, nil
}

func (s *AdminService) Suspend(ctx context.Context, id uuid.UUID) (*models.License, error) {
	return s.setStatus(ctx, id, models.LicenseStatusSuspended, EventLicenseSuspended)
}

// Reactivate restores the active status. An expired license stays unusable
// until its expiry is extended.
func (s *AdminService) Reactivate(ctx context.Context, id uuid.UUID) (*models.License, error) {
	return s.setStatus(ctx, id, models.LicenseStatusActive, EventLicenseReactivated)
}

func (s *AdminService) setStatus(ctx context.Context, id uuid.UUID, status models.LicenseStatus, event string) (*models.License, error) {
	if err := s.licenses.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	license, err := s.licenses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, event, license.LicenseKey, nil)
	return license, nil
}

// ExtendExpiry replaces expire_at. Earlier dates are accepted as well.
func (s *AdminService) ExtendExpiry(ctx context.Context, id uuid.UUID, rawExpireAt string) (*models.License, error) {
	expireAt, err := parseExpiry(rawExpireAt)
	if err != nil {
		return nil, err
	}
	if err := s.licenses.SetExpiry(ctx, id, expireAt); err != nil {
		return nil, err
	}
	license, err := s.licenses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.record(ctx, EventLicenseExtended, license.LicenseKey, map[string]interface{}{
		"expire_at": utils.FormatDate(license.ExpireAt),
	})
	return license, nil
}

func (s *AdminService) UpdateLicense(ctx context.Context, id uuid.UUID, req UpdateLicenseRequest) (*models.License, error) {
	update := models.LicenseUpdate{
		MaxDomains: req.MaxDomains,
		Status:     req.Status,
		Notes:      req.Notes,
	}
	if req.ExpireAt != nil {
		expireAt, err := parseExpiry(*req.ExpireAt)
		if err != nil {
			return nil, err
		}
		update.ExpireAt = &expireAt
	}

	if err := s.licenses.Update(ctx, id, update); err != nil {
		return nil, err
	}
	license, err := s.licenses.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if req.MaxDomains != nil {
		fields["max_domains"] = *req.MaxDomains
	}
	if req.ExpireAt != nil {
		fields["expire_at"] = utils.FormatDate(license.ExpireAt)
	}
	if req.Status != nil {
		fields["status"] = string(*req.Status)
	}
	s.record(ctx, EventLicenseUpdated, license.LicenseKey, fields)
	return license, nil
}

// DeleteLicense removes a license and frees all of its domains.
func (s *AdminService) DeleteLicense(ctx context.Context, id uuid.UUID) error {
	license, err := s.licenses.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.licenses.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, EventLicenseDeleted, license.LicenseKey, nil)
	return nil
}

// UnbindDomain releases one binding, returning its quota unit to the license.
func (s *AdminService) UnbindDomain(ctx context.Context, licenseID, bindingID uuid.UUID) error {
	license, err := s.licenses.FindByID(ctx, licenseID)
	if err != nil {
		return err
	}

	binding, err := s.ledger.Unbind(ctx, licenseID, bindingID)
	if err != nil {
		if errors.Is(err, ErrBindingNotFound) {
			return err
		}
		return fmt.Errorf("failed to unbind domain: %w", err)
	}

	s.audit.Record(ctx, AuditEvent{
		Event:      EventDomainUnbound,
		LicenseKey: license.LicenseKey,
		Domain:     binding.Domain,
		At:         s.now(),
	})
	return nil
}

func (s *AdminService) record(ctx context.Context, event, licenseKey string, fields map[string]interface{}) {
	s.audit.Record(ctx, AuditEvent{
		Event:      event,
		LicenseKey: licenseKey,
		Fields:     fields,
		At:         s.now(),
	})
}

func parseExpiry(value string) (time.Time, error) {
	t, err := utils.ParseExpiry(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidExpiry, err)
	}
	return t, nil
}
