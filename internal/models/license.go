// internal/models/license.go
package models

import "time"

type License struct {
	BaseModel
	LicenseKey string        `json:"license_key" gorm:"uniqueIndex;size:64;not null"`
	MaxDomains int           `json:"max_domains" gorm:"not null;default:1"`
	ExpireAt   time.Time     `json:"expire_at" gorm:"not null;index"`
	Status     LicenseStatus `json:"status" gorm:"type:varchar(20);not null;default:'active';index"`
	Notes      *string       `json:"notes,omitempty" gorm:"type:text"`
	// SourceRef identifies the external event that issued the license, e.g.
	// "stripe:cs_123". Redelivered events resolve to the same license.
	SourceRef *string `json:"source_ref,omitempty" gorm:"uniqueIndex;size:255"`

	// Relationships
	Domains []DomainBinding `json:"domains,omitempty" gorm:"foreignKey:LicenseID;constraint:OnDelete:CASCADE"`
}

// IsExpired compares expire_at with now. It never changes Status.
func (l *License) IsExpired(now time.Time) bool {
	return now.After(l.ExpireAt)
}

// LicenseWithUsage is a license row decorated with its bound domain count.
type LicenseWithUsage struct {
	License
	DomainCount int64 `json:"domain_count"`
	Expired     bool  `json:"expired"`
}

// LicenseUpdate carries the admin-editable fields. Nil fields are left as is.
type LicenseUpdate struct {
	MaxDomains *int
	ExpireAt   *time.Time
	Status     *LicenseStatus
	Notes      *string
}

type LicenseStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Suspended int64 `json:"suspended"`
	Expired   int64 `json:"expired"`
}
