// internal/services/domain_ledger.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/licensehub/license-server/internal/database"
	"github.com/licensehub/license-server/internal/models"
	"github.com/licensehub/license-server/internal/utils"
)

// BindingStore is the part of the ledger the activation protocol needs.
type BindingStore interface {
	FindBinding(ctx context.Context, licenseID uuid.UUID, domain string) (*models.DomainBinding, error)
	CountForLicense(ctx context.Context, licenseID uuid.UUID) (int64, error)
	Bind(ctx context.Context, licenseID uuid.UUID, domain string) (*models.DomainBinding, error)
	Touch(ctx context.Context, licenseID uuid.UUID, domain string) (bool, error)
	// WithLicenseLock runs fn while holding an exclusive lock on the license
	// row, so a count followed by an insert cannot interleave with another
	// activation of the same license.
	WithLicenseLock(ctx context.Context, licenseID uuid.UUID, fn func(BindingStore) error) error
}

// DomainLedger owns domain-to-license bindings. It refers to licenses by id
// only.
type DomainLedger struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDomainLedger(db *gorm.DB) *DomainLedger {
	return &DomainLedger{
		db:  db,
		now: time.Now,
	}
}

func (l *DomainLedger) Normalize(rawDomain string) string {
	return utils.NormalizeDomain(rawDomain)
}

func (l *DomainLedger) FindBinding(ctx context.Context, licenseID uuid.UUID, domain string) (*models.DomainBinding, error) {
	var binding models.DomainBinding
	err := l.db.WithContext(ctx).
		Where("license_id = ? AND domain = ?", licenseID, domain).
		First(&binding).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBindingNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &binding, nil
}

func (l *DomainLedger) CountForLicense(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	var count int64
	err := l.db.WithContext(ctx).Model(&models.DomainBinding{}).
		Where("license_id = ?", licenseID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count domains: %w", err)
	}
	return count, nil
}

// Bind inserts a new binding. Quota is the caller's responsibility; a second
// binding of the same domain fails with ErrDuplicateBinding.
func (l *DomainLedger) Bind(ctx context.Context, licenseID uuid.UUID, domain string) (*models.DomainBinding, error) {
	now := l.now().UTC()
	binding := &models.DomainBinding{
		BaseModel: models.BaseModel{
			CreatedAt: now,
			UpdatedAt: now,
		},
		LicenseID:   licenseID,
		Domain:      domain,
		LastCheckAt: now,
	}

	if err := l.db.WithContext(ctx).Create(binding).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateBinding
		}
		return nil, fmt.Errorf("failed to bind domain: %w", err)
	}
	return binding, nil
}

// Touch records a validation against an existing binding and reports whether
// one was found.
func (l *DomainLedger) Touch(ctx context.Context, licenseID uuid.UUID, domain string) (bool, error) {
	now := l.now().UTC()
	result := l.db.WithContext(ctx).Model(&models.DomainBinding{}).
		Where("license_id = ? AND domain = ?", licenseID, domain).
		Updates(map[string]interface{}{
			"last_check_at": now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to update last check: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ListForLicense returns bindings newest first.
func (l *DomainLedger) ListForLicense(ctx context.Context, licenseID uuid.UUID) ([]models.DomainBinding, error) {
	var bindings []models.DomainBinding
	err := l.db.WithContext(ctx).
		Where("license_id = ?", licenseID).
		Order("created_at DESC").
		Find(&bindings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	return bindings, nil
}

// CountsForLicenses returns binding counts keyed by license id. Licenses with
// no bindings are absent from the map.
func (l *DomainLedger) CountsForLicenses(ctx context.Context, licenseIDs []uuid.UUID) (map[uuid.UUID]int64, error) {
	counts := make(map[uuid.UUID]int64, len(licenseIDs))
	if len(licenseIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		LicenseID uuid.UUID
		Count     int64
	}
	err := l.db.WithContext(ctx).Model(&models.DomainBinding{}).
		Select("license_id, COUNT(*) AS count").
		Where("license_id IN ?", licenseIDs).
		Group("license_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count domains: %w", err)
	}

	for _, row := range rows {
		counts[row.LicenseID] = row.Count
	}
	return counts, nil
}

// LatestActivations returns the most recent bindings across all licenses.
func (l *DomainLedger) LatestActivations(ctx context.Context, limit int) ([]models.Activation, error) {
	var activations []models.Activation
	err := l.db.WithContext(ctx).Model(&models.DomainBinding{}).
		Select("domains.*, licenses.license_key").
		Joins("JOIN licenses ON licenses.id = domains.license_id").
		Order("domains.created_at DESC").
		Limit(limit).
		Scan(&activations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load latest activations: %w", err)
	}
	return activations, nil
}

// Unbind releases one binding of a license and frees its quota slot.
func (l *DomainLedger) Unbind(ctx context.Context, licenseID, bindingID uuid.UUID) (*models.DomainBinding, error) {
	var binding models.DomainBinding
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND license_id = ?", bindingID, licenseID).First(&binding).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBindingNotFound
			}
			return fmt.Errorf("database error: %w", err)
		}
		if err := tx.Delete(&binding).Error; err != nil {
			return fmt.Errorf("failed to unbind domain: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &binding, nil
}

func (l *DomainLedger) WithLicenseLock(ctx context.Context, licenseID uuid.UUID, fn func(BindingStore) error) error {
	return database.WithTransaction(l.db.WithContext(ctx), func(tx *gorm.DB) error {
		query := tx.Model(&models.License{}).Select("id").Where("id = ?", licenseID)
		// SQLite has no row locks; its single writer already serialises us.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}

		var license models.License
		if err := query.First(&license).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLicenseNotFound
			}
			return fmt.Errorf("failed to lock license: %w", err)
		}

		return fn(&DomainLedger{db: tx, now: l.now})
	})
}
