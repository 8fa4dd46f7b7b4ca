// internal/services/activation_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/licensehub/license-server/internal/models"
	"github.com/licensehub/license-server/internal/utils"
)

// Reason tags a rejected activation or check.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNotFound           Reason = "not_found"
	ReasonSuspended          Reason = "suspended"
	ReasonExpired            Reason = "expired"
	ReasonDomainLimitReached Reason = "domain_limit_reached"
	ReasonDomainNotActivated Reason = "domain_not_activated"
)

type OutcomeKind string

const (
	OutcomeOK        OutcomeKind = "ok"
	OutcomeNotFound  OutcomeKind = "not_found"
	OutcomeForbidden OutcomeKind = "forbidden"
)

type ActivationResult struct {
	Kind             OutcomeKind
	Reason           Reason
	Domain           string
	DomainsUsed      int64
	MaxDomains       int
	AlreadyActivated bool
}

func (r *ActivationResult) OK() bool {
	return r.Kind == OutcomeOK
}

type CheckResult struct {
	Kind   OutcomeKind
	Reason Reason
	Domain string
	// Set only when Kind is OutcomeOK.
	Status models.ReportedStatus
	// ExpireAt (YYYY-MM-DD) and RemainingDays are reported with
	// ReportedStatusActive only.
	ExpireAt      string
	RemainingDays int
}

func (r *CheckResult) OK() bool {
	return r.Kind == OutcomeOK
}

// LicenseFinder is the part of the registry the activation protocol reads.
type LicenseFinder interface {
	FindByKey(ctx context.Context, key string) (*models.License, error)
}

// ActivationService answers "activate domain X under key Y" and "is domain X
// still licensed under key Y". Rule violations come back as results; only
// storage failures are returned as errors.
type ActivationService struct {
	licenses LicenseFinder
	bindings BindingStore
	audit    AuditSink
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewActivationService(licenses LicenseFinder, bindings BindingStore, audit AuditSink) *ActivationService {
	if audit == nil {
		audit = MultiAuditSink{}
	}
	return &ActivationService{
		licenses: licenses,
		bindings: bindings,
		audit:    audit,
		log:      logrus.StandardLogger(),
		now:      time.Now,
	}
}

func (s *ActivationService) Activate(ctx context.Context, licenseKey, rawDomain string) (*ActivationResult, error) {
	domain := utils.NormalizeDomain(rawDomain)

	license, err := s.licenses.FindByKey(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, ErrLicenseNotFound) {
			return s.rejectActivation(ctx, licenseKey, domain, OutcomeNotFound, ReasonNotFound), nil
		}
		return nil, err
	}

	if license.Status == models.LicenseStatusSuspended {
		return s.rejectActivation(ctx, licenseKey, domain, OutcomeForbidden, ReasonSuspended), nil
	}

	// Expiry is checked before the re-activation shortcut: an expired license
	// cannot re-confirm domains it already holds.
	if license.IsExpired(s.now()) {
		return s.rejectActivation(ctx, licenseKey, domain, OutcomeForbidden, ReasonExpired), nil
	}

	if _, err := s.bindings.FindBinding(ctx, license.ID, domain); err == nil {
		return s.alreadyActivated(ctx, license, domain)
	} else if !errors.Is(err, ErrBindingNotFound) {
		return nil, err
	}

	var (
		used     int64
		existing bool
		full     bool
	)
	err = s.bindings.WithLicenseLock(ctx, license.ID, func(store BindingStore) error {
		// Another request may have bound this domain while we waited.
		if _, err := store.FindBinding(ctx, license.ID, domain); err == nil {
			existing = true
			return nil
		} else if !errors.Is(err, ErrBindingNotFound) {
			return err
		}

		count, err := store.CountForLicense(ctx, license.ID)
		if err != nil {
			return err
		}
		if count >= int64(license.MaxDomains) {
			full = true
			return nil
		}

		if _, err := store.Bind(ctx, license.ID, domain); err != nil {
			return err
		}
		used = count + 1
		return nil
	})

	switch {
	case errors.Is(err, ErrDuplicateBinding):
		// The unique index caught a concurrent insert of the same domain.
		return s.alreadyActivated(ctx, license, domain)
	case errors.Is(err, ErrLicenseNotFound):
		// Deleted between lookup and lock.
		return s.rejectActivation(ctx, licenseKey, domain, OutcomeNotFound, ReasonNotFound), nil
	case err != nil:
		return nil, fmt.Errorf("activation failed: %w", err)
	case existing:
		return s.alreadyActivated(ctx, license, domain)
	case full:
		return s.rejectActivation(ctx, licenseKey, domain, OutcomeForbidden, ReasonDomainLimitReached), nil
	}

	s.audit.Record(ctx, AuditEvent{
		Event:      EventActivationSuccess,
		LicenseKey: licenseKey,
		Domain:     domain,
		Fields:     map[string]interface{}{"domains_used": used, "max_domains": license.MaxDomains},
		At:         s.now(),
	})

	return &ActivationResult{
		Kind:        OutcomeOK,
		Domain:      domain,
		DomainsUsed: used,
		MaxDomains:  license.MaxDomains,
	}, nil
}

func (s *ActivationService) alreadyActivated(ctx context.Context, license *models.License, domain string) (*ActivationResult, error) {
	used, err := s.bindings.CountForLicense(ctx, license.ID)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, AuditEvent{
		Event:      EventActivationSuccess,
		LicenseKey: license.LicenseKey,
		Domain:     domain,
		Fields:     map[string]interface{}{"status": "already_activated", "domains_used": used},
		At:         s.now(),
	})

	return &ActivationResult{
		Kind:             OutcomeOK,
		Domain:           domain,
		DomainsUsed:      used,
		MaxDomains:       license.MaxDomains,
		AlreadyActivated: true,
	}, nil
}

func (s *ActivationService) rejectActivation(ctx context.Context, licenseKey, domain string, kind OutcomeKind, reason Reason) *ActivationResult {
	s.audit.Record(ctx, AuditEvent{
		Event:      EventActivationFailed,
		LicenseKey: licenseKey,
		Domain:     domain,
		Reason:     reason,
		At:         s.now(),
	})

	return &ActivationResult{
		Kind:   kind,
		Reason: reason,
		Domain: domain,
	}
}

func (s *ActivationService) Check(ctx context.Context, licenseKey, rawDomain string) (*CheckResult, error) {
	domain := utils.NormalizeDomain(rawDomain)

	license, err := s.licenses.FindByKey(ctx, licenseKey)
	if err != nil {
		if errors.Is(err, ErrLicenseNotFound) {
			return s.rejectCheck(ctx, licenseKey, domain, OutcomeNotFound, ReasonNotFound), nil
		}
		return nil, err
	}

	if _, err := s.bindings.FindBinding(ctx, license.ID, domain); err != nil {
		if errors.Is(err, ErrBindingNotFound) {
			return s.rejectCheck(ctx, licenseKey, domain, OutcomeForbidden, ReasonDomainNotActivated), nil
		}
		return nil, err
	}

	if _, err := s.bindings.Touch(ctx, license.ID, domain); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"license_key": licenseKey,
			"domain":      domain,
		}).Warn("Failed to record last check")
	}

	now := s.now()
	result := &CheckResult{Kind: OutcomeOK, Domain: domain}
	fields := map[string]interface{}{}

	switch {
	case license.Status == models.LicenseStatusSuspended:
		result.Status = models.ReportedStatusSuspended
	case license.IsExpired(now):
		result.Status = models.ReportedStatusExpired
	default:
		result.Status = models.ReportedStatusActive
		result.ExpireAt = utils.FormatDate(license.ExpireAt)
		result.RemainingDays = RemainingDays(license.ExpireAt, now)
		fields["remaining_days"] = result.RemainingDays
	}
	fields["status"] = string(result.Status)

	s.audit.Record(ctx, AuditEvent{
		Event:      EventValidationCheck,
		LicenseKey: licenseKey,
		Domain:     domain,
		Fields:     fields,
		At:         now,
	})

	return result, nil
}

func (s *ActivationService) rejectCheck(ctx context.Context, licenseKey, domain string, kind OutcomeKind, reason Reason) *CheckResult {
	s.audit.Record(ctx, AuditEvent{
		Event:      EventValidationFailed,
		LicenseKey: licenseKey,
		Domain:     domain,
		Reason:     reason,
		At:         s.now(),
	})

	return &CheckResult{
		Kind:   kind,
		Reason: reason,
		Domain: domain,
	}
}

// RemainingDays rounds the time left up to whole days, so half a day left
// reports 1.
func RemainingDays(expireAt, now time.Time) int {
	return int(math.Ceil(expireAt.Sub(now).Hours() / 24))
}
