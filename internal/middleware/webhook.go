// internal/middleware/webhook.go
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/licensehub/license-server/internal/i18n"
	"github.com/licensehub/license-server/internal/services"
	"github.com/licensehub/license-server/internal/utils"
)

// WebhookSecretHeader carries the shared secret of the order webhook.
const WebhookSecretHeader = "X-Webhook-Secret"

// WebhookSecretRequired rejects requests whose X-Webhook-Secret does not match
// secret. An empty secret rejects everything.
func WebhookSecretRequired(secret string, sink services.AuditSink) gin.HandlerFunc {
	return func(c *gin.Context) {
		if utils.SecureCompare(c.GetHeader(WebhookSecretHeader), secret) {
			c.Next()
			return
		}

		sink.Record(c.Request.Context(), services.AuditEvent{
			Event:  services.EventWebhookFailed,
			Reason: "invalid_secret",
		})
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"status":  "error",
			"message": i18n.T(utils.GetLangFromContext(c), i18n.KeyWebhookUnauthorized),
		})
	}
}
