// internal/services/errors.go
package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/licensehub/license-server/internal/database"
)

var (
	ErrLicenseNotFound    = errors.New("license not found")
	ErrBindingNotFound    = errors.New("domain binding not found")
	ErrDuplicateKey       = errors.New("license key already exists")
	ErrDuplicateBinding   = errors.New("domain already bound to license")
	ErrInvalidStatus      = errors.New("status must be active or suspended")
	ErrInvalidMaxDomains  = errors.New("max_domains must be at least 1")
	ErrInvalidExpiry      = errors.New("expire_at must be a date (YYYY-MM-DD) or RFC 3339 timestamp")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidWebhook     = errors.New("invalid webhook payload")
	ErrStripeDisabled     = errors.New("stripe webhook secret is not configured")
	ErrKeyExhausted       = errors.New("could not generate a unique license key")

	// ErrAdminExists is returned when seeding an admin over an existing one.
	ErrAdminExists = database.ErrAdminExists
)

// isDuplicateKeyError recognises unique-constraint violations. gorm translates
// them to ErrDuplicatedKey when TranslateError is on; the string checks cover
// connections opened without it.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}
