// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeyValidationInvalid = "validation.invalid"
	KeyInternalError     = "error.internal"
	KeyRouteNotFound     = "error.route_not_found"
	KeyRateLimited       = "error.rate_limited"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthLogoutSuccess      = "auth.logout_success"

	// Activation / validation
	KeyLicenseNotFound           = "license.not_found"
	KeyLicenseSuspended          = "license.suspended"
	KeyLicenseExpired            = "license.expired"
	KeyLicenseDomainLimit        = "license.domain_limit_reached"
	KeyLicenseDomainNotActivated = "license.domain_not_activated"
	KeyLicenseActivated          = "license.activated"

	// Administration
	KeyLicenseCreated     = "license.created"
	KeyLicenseKeyExists   = "license.key_exists"
	KeyLicenseSuspendedOK = "license.suspended_ok"
	KeyLicenseReactivated = "license.reactivated"
	KeyLicenseExtended    = "license.extended"
	KeyLicenseUpdated     = "license.updated"
	KeyLicenseDeleted     = "license.deleted"
	KeyLicenseInvalidID   = "license.invalid_id"
	KeyDomainNotFound     = "domain.not_found"
	KeyDomainUnbound      = "domain.unbound"

	// Webhooks
	KeyWebhookUnauthorized = "webhook.unauthorized"
	KeyWebhookInvalid      = "webhook.invalid"
)
