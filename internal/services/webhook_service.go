// internal/services/webhook_service.go
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/licensehub/license-server/internal/config"
	"github.com/licensehub/license-server/internal/models"
	"github.com/licensehub/license-server/internal/utils"
)

const (
	stripeCheckoutCompleted     = "checkout.session.completed"
	stripeAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

// WebhookService issues licenses for purchases reported by a storefront or by
// Stripe.
type WebhookService struct {
	licenses *LicenseRegistry
	cfg      *config.Config
	audit    AuditSink
	now      func() time.Time
}

type OrderRequest struct {
	BuyerEmail string `json:"buyer_email" validate:"required,email"`
	BuyerName  string `json:"buyer_name" validate:"required,max=255"`
	ProductID  string `json:"product_id" validate:"required,max=255"`
	MaxDomains int    `json:"max_domains" validate:"required,min=1"`
	// OrderID makes redelivery of the same order return the license already
	// issued for it.
	OrderID string `json:"order_id" validate:"omitempty,max=200"`
}

type IssuedLicense struct {
	LicenseKey string `json:"license_key"`
	ExpireAt   string `json:"expire_at"`
	Created    bool   `json:"-"`
}

func NewWebhookService(licenses *LicenseRegistry, cfg *config.Config, audit AuditSink) *WebhookService {
	if audit == nil {
		audit = MultiAuditSink{}
	}
	return &WebhookService{
		licenses: licenses,
		cfg:      cfg,
		audit:    audit,
		now:      time.Now,
	}
}

// CreateFromOrder issues a license valid for the configured default term.
func (s *WebhookService) CreateFromOrder(ctx context.Context, req *OrderRequest) (*IssuedLicense, error) {
	var sourceRef *string
	if req.OrderID != "" {
		ref := "order:" + req.OrderID
		sourceRef = &ref
	}

	notes := fmt.Sprintf("Auto-generated for %s (%s) - Product: %s", req.BuyerName, req.BuyerEmail, req.ProductID)
	return s.issue(ctx, IssueParams{
		MaxDomains: req.MaxDomains,
		ExpireAt:   s.now().UTC().AddDate(0, 0, s.cfg.License.DefaultTermDays),
		Notes:      &notes,
		SourceRef:  sourceRef,
	}, map[string]interface{}{
		"source":      "order",
		"buyer_email": req.BuyerEmail,
		"product_id":  req.ProductID,
	})
}

// StripeEnabled reports whether a Stripe signing secret is configured.
func (s *WebhookService) StripeEnabled() bool {
	return s.cfg.Webhook.StripeWebhookSecret != ""
}

// CreateFromStripe verifies a Stripe webhook delivery and issues a license for
// a paid checkout session. Sessions paid later by a delayed method are issued
// on checkout.session.async_payment_succeeded. Other events and unpaid
// sessions return a nil license. Redeliveries of the same session return the
// license issued the first time.
func (s *WebhookService) CreateFromStripe(ctx context.Context, payload []byte, signature string) (*IssuedLicense, error) {
	// An empty secret still yields a valid HMAC, so anyone could sign events.
	if !s.StripeEnabled() {
		s.failed(ctx, "stripe_disabled")
		return nil, ErrStripeDisabled
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.Webhook.StripeWebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		s.failed(ctx, "invalid_signature")
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	switch string(event.Type) {
	case stripeCheckoutCompleted, stripeAsyncPaymentSucceeded:
	default:
		return nil, nil
	}

	var session stripe.CheckoutSession
	if event.Data == nil || json.Unmarshal(event.Data.Raw, &session) != nil || session.ID == "" {
		s.failed(ctx, "invalid_session")
		return nil, fmt.Errorf("%w: malformed checkout session", ErrInvalidWebhook)
	}

	switch session.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
	default:
		return nil, nil
	}

	maxDomains := s.cfg.License.DefaultMaxDomains
	if raw, ok := session.Metadata["max_domains"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.failed(ctx, "invalid_max_domains")
			return nil, fmt.Errorf("%w: max_domains metadata must be a positive integer", ErrInvalidWebhook)
		}
		maxDomains = n
	}

	email, name := session.CustomerEmail, ""
	if session.CustomerDetails != nil {
		if session.CustomerDetails.Email != "" {
			email = session.CustomerDetails.Email
		}
		name = session.CustomerDetails.Name
	}
	productID := session.Metadata["product_id"]

	notes := fmt.Sprintf("Auto-generated for %s (%s) - Product: %s", name, email, productID)
	sourceRef := "stripe:" + session.ID
	return s.issue(ctx, IssueParams{
		MaxDomains: maxDomains,
		ExpireAt:   s.now().UTC().AddDate(0, 0, s.cfg.License.DefaultTermDays),
		Notes:      &notes,
		SourceRef:  &sourceRef,
	}, map[string]interface{}{
		"source":      "stripe",
		"session_id":  session.ID,
		"buyer_email": email,
		"product_id":  productID,
	})
}

func (s *WebhookService) issue(ctx context.Context, params IssueParams, fields map[string]interface{}) (*IssuedLicense, error) {
	license, created, err := s.licenses.Issue(ctx, params)
	if err != nil {
		s.audit.Record(ctx, AuditEvent{
			Event:  EventWebhookError,
			Fields: map[string]interface{}{"error": err.Error()},
			At:     s.now(),
		})
		return nil, err
	}

	if created {
		fields["max_domains"] = license.MaxDomains
		s.audit.Record(ctx, AuditEvent{
			Event:      EventWebhookLicenseCreated,
			LicenseKey: license.LicenseKey,
			Fields:     fields,
			At:         s.now(),
		})
	}

	return issued(license, created), nil
}

func (s *WebhookService) failed(ctx context.Context, reason Reason) {
	s.audit.Record(ctx, AuditEvent{
		Event:  EventWebhookFailed,
		Reason: reason,
		At:     s.now(),
	})
}

func issued(license *models.License, created bool) *IssuedLicense {
	return &IssuedLicense{
		LicenseKey: license.LicenseKey,
		ExpireAt:   utils.FormatDate(license.ExpireAt),
		Created:    created,
	}
}
