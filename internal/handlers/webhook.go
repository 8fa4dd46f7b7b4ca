// internal/handlers/webhook.go
package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/licensehub/license-server/internal/i18n"
	"github.com/licensehub/license-server/internal/services"
	"github.com/licensehub/license-server/internal/utils"
)

// maxStripePayload caps the body read for signature verification.
const maxStripePayload = 64 << 10

type WebhookHandler struct {
	webhookService *services.WebhookService
}

func NewWebhookHandler(webhookService *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// POST /webhook/create-license
func (h *WebhookHandler) CreateLicense(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		publicError(c, http.StatusBadRequest, i18n.T(lang, i18n.KeyValidationInvalid, "request body"))
		return
	}
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		publicError(c, http.StatusBadRequest, validationErrors[0].Message)
		return
	}

	issued, err := h.webhookService.CreateFromOrder(c.Request.Context(), &req)
	if err != nil {
		logrus.WithError(err).WithField("buyer_email", req.BuyerEmail).Error("Webhook error")
		publicError(c, http.StatusInternalServerError, i18n.T(lang, i18n.KeyInternalError))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"license_key": issued.LicenseKey,
		"expire_at":   issued.ExpireAt,
	})
}

// POST /webhook/stripe
func (h *WebhookHandler) Stripe(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxStripePayload))
	if err != nil {
		publicError(c, http.StatusServiceUnavailable, i18n.T(lang, i18n.KeyInternalError))
		return
	}

	issued, err := h.webhookService.CreateFromStripe(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, services.ErrStripeDisabled) {
			publicError(c, http.StatusServiceUnavailable, i18n.T(lang, i18n.KeyWebhookInvalid))
			return
		}
		if errors.Is(err, services.ErrInvalidWebhook) {
			publicError(c, http.StatusBadRequest, i18n.T(lang, i18n.KeyWebhookInvalid))
			return
		}
		logrus.WithError(err).Error("Stripe webhook error")
		publicError(c, http.StatusInternalServerError, i18n.T(lang, i18n.KeyInternalError))
		return
	}

	if issued == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"license_key": issued.LicenseKey,
		"expire_at":   issued.ExpireAt,
	})
}
