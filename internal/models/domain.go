// internal/models/domain.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// DomainBinding ties one normalized domain to one license and uses one unit of
// the license's max_domains quota.
type DomainBinding struct {
	BaseModel
	LicenseID   uuid.UUID `json:"license_id" gorm:"type:uuid;not null;uniqueIndex:idx_domains_license_domain,priority:1;index"`
	Domain      string    `json:"domain" gorm:"size:255;not null;uniqueIndex:idx_domains_license_domain,priority:2"`
	LastCheckAt time.Time `json:"last_check_at"`
}

func (DomainBinding) TableName() string {
	return "domains"
}

// Activation is a binding joined with the key of its owning license.
type Activation struct {
	DomainBinding
	LicenseKey string `json:"license_key"`
}
