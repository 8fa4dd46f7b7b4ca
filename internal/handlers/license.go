// internal/handlers/license.go
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/licensehub/license-server/internal/i18n"
	"github.com/licensehub/license-server/internal/models"
	"github.com/licensehub/license-server/internal/services"
	"github.com/licensehub/license-server/internal/utils"
)

// LicenseProtocol is what the public API needs from the activation service.
type LicenseProtocol interface {
	Activate(ctx context.Context, licenseKey, domain string) (*services.ActivationResult, error)
	Check(ctx context.Context, licenseKey, domain string) (*services.CheckResult, error)
}

// LicenseHandler serves the public activation API. Its responses use the flat
// {status, message} shape that deployed clients parse, not the admin
// envelope.
type LicenseHandler struct {
	protocol LicenseProtocol
}

type DomainRequest struct {
	LicenseKey string `json:"license_key" validate:"required,max=64"`
	Domain     string `json:"domain" validate:"required,domain"`
}

func NewLicenseHandler(protocol LicenseProtocol) *LicenseHandler {
	return &LicenseHandler{
		protocol: protocol,
	}
}

// POST /api/activate
func (h *LicenseHandler) Activate(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	req, ok := bindDomainRequest(c)
	if !ok {
		return
	}

	result, err := h.protocol.Activate(c.Request.Context(), req.LicenseKey, req.Domain)
	if err != nil {
		logrus.WithError(err).WithField("license_key", req.LicenseKey).Error("Activation error")
		publicError(c, http.StatusInternalServerError, i18n.T(lang, i18n.KeyInternalError))
		return
	}

	if !result.OK() {
		publicRejection(c, result.Kind, result.Reason)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"message":      i18n.T(lang, i18n.KeyLicenseActivated),
		"domains_used": result.DomainsUsed,
		"max_domains":  result.MaxDomains,
	})
}

// POST /api/check
func (h *LicenseHandler) Check(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	req, ok := bindDomainRequest(c)
	if !ok {
		return
	}

	result, err := h.protocol.Check(c.Request.Context(), req.LicenseKey, req.Domain)
	if err != nil {
		logrus.WithError(err).WithField("license_key", req.LicenseKey).Error("Check error")
		publicError(c, http.StatusInternalServerError, i18n.T(lang, i18n.KeyInternalError))
		return
	}

	if !result.OK() {
		publicRejection(c, result.Kind, result.Reason)
		return
	}

	if result.Status != models.ReportedStatusActive {
		c.JSON(http.StatusOK, gin.H{"status": result.Status})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         result.Status,
		"expire_at":      result.ExpireAt,
		"remaining_days": result.RemainingDays,
	})
}

func bindDomainRequest(c *gin.Context) (*DomainRequest, bool) {
	lang := utils.GetLangFromContext(c)

	var req DomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		publicError(c, http.StatusBadRequest, i18n.T(lang, i18n.KeyValidationInvalid, "request body"))
		return nil, false
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		publicError(c, http.StatusBadRequest, validationErrors[0].Message)
		return nil, false
	}

	return &req, true
}

func publicRejection(c *gin.Context, kind services.OutcomeKind, reason services.Reason) {
	status := http.StatusForbidden
	if kind == services.OutcomeNotFound {
		status = http.StatusNotFound
	}
	publicError(c, status, i18n.T(utils.GetLangFromContext(c), reasonMessageKey(reason)))
}

func reasonMessageKey(reason services.Reason) string {
	switch reason {
	case services.ReasonNotFound:
		return i18n.KeyLicenseNotFound
	case services.ReasonSuspended:
		return i18n.KeyLicenseSuspended
	case services.ReasonExpired:
		return i18n.KeyLicenseExpired
	case services.ReasonDomainLimitReached:
		return i18n.KeyLicenseDomainLimit
	case services.ReasonDomainNotActivated:
		return i18n.KeyLicenseDomainNotActivated
	default:
		return i18n.KeyInternalError
	}
}

func publicError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{
		"status":  "error",
		"message": message,
	})
}
