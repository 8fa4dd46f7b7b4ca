// internal/services/license_registry.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/licensehub/license-server/internal/models"
	"github.com/licensehub/license-server/internal/utils"
)

// LicenseRegistry owns license records.
type LicenseRegistry struct {
	db          *gorm.DB
	now         func() time.Time
	generateKey func() (string, error)
}

func NewLicenseRegistry(db *gorm.DB) *LicenseRegistry {
	return &LicenseRegistry{
		db:          db,
		now:         time.Now,
		generateKey: utils.GenerateLicenseKey,
	}
}

// Create stores a new active license under key. A key that is already taken
// fails with ErrDuplicateKey.
func (r *LicenseRegistry) Create(ctx context.Context, key string, maxDomains int, expireAt time.Time, notes *string) (*models.License, error) {
	return r.create(ctx, key, IssueParams{
		MaxDomains: maxDomains,
		ExpireAt:   expireAt,
		Notes:      notes,
	})
}

func (r *LicenseRegistry) FindByKey(ctx context.Context, key string) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).Where("license_key = ?", key).First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

func (r *LicenseRegistry) FindByID(ctx context.Context, id uuid.UUID) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}

// List returns licenses newest first.
func (r *LicenseRegistry) List(ctx context.Context, limit, offset int) ([]models.License, error) {
	var licenses []models.License
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&licenses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list licenses: %w", err)
	}
	return licenses, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Search matches a literal substring of the license key, newest first.
func (r *LicenseRegistry) Search(ctx context.Context, substring string, limit int) ([]models.License, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToUpper(strings.TrimSpace(substring))) + "%"

	var licenses []models.License
	err := r.db.WithContext(ctx).
		Where(`license_key LIKE ? ESCAPE '\'`, pattern).
		Order("created_at DESC").
		Limit(limit).
		Find(&licenses).Error
	if err != nil {
		return nil, fmt.Errorf("failed to search licenses: %w", err)
	}
	return licenses, nil
}

func (r *LicenseRegistry) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.License{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count licenses: %w", err)
	}
	return count, nil
}

// CountByStatus counts on the stored status only; expiry is not considered.
func (r *LicenseRegistry) CountByStatus(ctx context.Context, status models.LicenseStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.License{}).
		Where("status = ?", status).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count licenses by status: %w", err)
	}
	return count, nil
}

// CountExpired counts licenses whose expire_at is before now, whatever their
// stored status.
func (r *LicenseRegistry) CountExpired(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.License{}).
		Where("expire_at < ?", now.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count expired licenses: %w", err)
	}
	return count, nil
}

// CountUsable counts licenses stored as active that have not expired yet.
func (r *LicenseRegistry) CountUsable(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.License{}).
		Where("status = ? AND expire_at >= ?", models.LicenseStatusActive, now.UTC()).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count usable licenses: %w", err)
	}
	return count, nil
}

// SetStatus moves a license between active and suspended. Expiry does not
// restrict the transition.
func (r *LicenseRegistry) SetStatus(ctx context.Context, id uuid.UUID, status models.LicenseStatus) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return r.update(ctx, id, map[string]interface{}{"status": status})
}

func (r *LicenseRegistry) SetExpiry(ctx context.Context, id uuid.UUID, expireAt time.Time) error {
	return r.update(ctx, id, map[string]interface{}{"expire_at": expireAt.UTC()})
}

// Update applies the non-nil fields of u.
func (r *LicenseRegistry) Update(ctx context.Context, id uuid.UUID, u models.LicenseUpdate) error {
	updates := make(map[string]interface{})
	if u.MaxDomains != nil {
		if *u.MaxDomains < 1 {
			return ErrInvalidMaxDomains
		}
		updates["max_domains"] = *u.MaxDomains
	}
	if u.ExpireAt != nil {
		updates["expire_at"] = u.ExpireAt.UTC()
	}
	if u.Status != nil {
		if !u.Status.Valid() {
			return ErrInvalidStatus
		}
		updates["status"] = *u.Status
	}
	if u.Notes != nil {
		updates["notes"] = *u.Notes
	}
	return r.update(ctx, id, updates)
}

func (r *LicenseRegistry) update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	updates["updated_at"] = r.now().UTC()

	result := r.db.WithContext(ctx).Model(&models.License{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update license: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLicenseNotFound
	}
	return nil
}

// Delete removes a license together with its domain bindings.
func (r *LicenseRegistry) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("license_id = ?", id).Delete(&models.DomainBinding{}).Error; err != nil {
			return fmt.Errorf("failed to delete domain bindings: %w", err)
		}

		result := tx.Where("id = ?", id).Delete(&models.License{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete license: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrLicenseNotFound
		}
		return nil
	})
}

// IsExpired is computed on read and never writes the stored status.
func (r *LicenseRegistry) IsExpired(license *models.License) bool {
	return license.IsExpired(r.now())
}

// maxKeyAttempts bounds regeneration after a license key collision.
const maxKeyAttempts = 5

type IssueParams struct {
	// Key is used as is when set; otherwise one is generated.
	Key        string
	MaxDomains int
	ExpireAt   time.Time
	Notes      *string
	SourceRef  *string
}

// Issue creates a license, generating a key when none is given. A generated
// key that collides is replaced, up to maxKeyAttempts times. When SourceRef is
// set and already issued, the existing license is returned with created=false.
func (r *LicenseRegistry) Issue(ctx context.Context, p IssueParams) (license *models.License, created bool, err error) {
	if p.SourceRef != nil {
		if existing, err := r.FindBySourceRef(ctx, *p.SourceRef); err == nil {
			return existing, false, nil
		} else if !errors.Is(err, ErrLicenseNotFound) {
			return nil, false, err
		}
	}

	if p.Key != "" {
		license, err = r.create(ctx, p.Key, p)
		if err != nil {
			return r.resolveSourceRace(ctx, p, err)
		}
		return license, true, nil
	}

	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := r.generateKey()
		if err != nil {
			return nil, false, fmt.Errorf("failed to generate license key: %w", err)
		}

		license, err = r.create(ctx, key, p)
		if err == nil {
			return license, true, nil
		}
		if !errors.Is(err, ErrDuplicateKey) {
			return nil, false, err
		}
		if existing, _, rerr := r.resolveSourceRace(ctx, p, err); rerr == nil {
			return existing, false, nil
		}
	}
	return nil, false, ErrKeyExhausted
}

// resolveSourceRace turns a unique violation caused by a concurrent delivery of
// the same source event into the license that delivery created.
func (r *LicenseRegistry) resolveSourceRace(ctx context.Context, p IssueParams, cause error) (*models.License, bool, error) {
	if p.SourceRef != nil && errors.Is(cause, ErrDuplicateKey) {
		if existing, err := r.FindBySourceRef(ctx, *p.SourceRef); err == nil {
			return existing, false, nil
		}
	}
	return nil, false, cause
}

func (r *LicenseRegistry) create(ctx context.Context, key string, p IssueParams) (*models.License, error) {
	if p.MaxDomains < 1 {
		return nil, ErrInvalidMaxDomains
	}

	license := &models.License{
		LicenseKey: key,
		MaxDomains: p.MaxDomains,
		ExpireAt:   p.ExpireAt.UTC(),
		Status:     models.LicenseStatusActive,
		Notes:      p.Notes,
		SourceRef:  p.SourceRef,
	}

	if err := r.db.WithContext(ctx).Create(license).Error; err != nil {
		if isDuplicateKeyError(err) {
			return nil, ErrDuplicateKey
		}
		return nil, fmt.Errorf("failed to create license: %w", err)
	}
	return license, nil
}

func (r *LicenseRegistry) FindBySourceRef(ctx context.Context, ref string) (*models.License, error) {
	var license models.License
	if err := r.db.WithContext(ctx).Where("source_ref = ?", ref).First(&license).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &license, nil
}
