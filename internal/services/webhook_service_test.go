// internal/services/webhook_service_test.go
package services

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/licensehub/license-server/internal/config"
	"github.com/licensehub/license-server/internal/testutil"
	"github.com/licensehub/license-server/internal/utils"
)

const testStripeSecret = "whsec_test_secret"

type WebhookServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	registry *LicenseRegistry
	audit    *MemoryAuditSink
	service  *WebhookService
}

func (s *WebhookServiceTestSuite) SetupTest() {
	cfg := &config.Config{
		License: config.LicenseConfig{DefaultTermDays: 365, DefaultMaxDomains: 2},
		Webhook: config.WebhookConfig{Secret: "shared", StripeWebhookSecret: testStripeSecret},
	}
	s.ctx = context.Background()
	s.registry = NewLicenseRegistry(testutil.NewTestDB(s.T()))
	s.audit = &MemoryAuditSink{}
	s.service = NewWebhookService(s.registry, cfg, s.audit)
	s.service.now = fixedClock(testNow)
}

func (s *WebhookServiceTestSuite) order(orderID string) *OrderRequest {
	return &OrderRequest{
		BuyerEmail: "jane@example.com",
		BuyerName:  "Jane",
		ProductID:  "theme-pro",
		MaxDomains: 3,
		OrderID:    orderID,
	}
}

func (s *WebhookServiceTestSuite) TestCreateFromOrder() {
	issued, err := s.service.CreateFromOrder(s.ctx, s.order(""))
	s.Require().NoError(err)

	s.True(issued.Created)
	s.True(utils.IsLicenseKeyFormat(issued.LicenseKey))
	s.Equal("2031-06-01", issued.ExpireAt)

	license, err := s.registry.FindByKey(s.ctx, issued.LicenseKey)
	s.Require().NoError(err)
	s.Equal(3, license.MaxDomains)
	s.Require().NotNil(license.Notes)
	s.Equal("Auto-generated for Jane (jane@example.com) - Product: theme-pro", *license.Notes)

	event := s.audit.Last()
	s.Equal(EventWebhookLicenseCreated, event.Event)
	s.Equal("order", event.Fields["source"])
}

func (s *WebhookServiceTestSuite) TestCreateFromOrderWithoutOrderIDIssuesEachTime() {
	first, err := s.service.CreateFromOrder(s.ctx, s.order(""))
	s.Require().NoError(err)
	second, err := s.service.CreateFromOrder(s.ctx, s.order(""))
	s.Require().NoError(err)
	s.NotEqual(first.LicenseKey, second.LicenseKey)
}

func (s *WebhookServiceTestSuite) TestCreateFromOrderRedelivery() {
	first, err := s.service.CreateFromOrder(s.ctx, s.order("1001"))
	s.Require().NoError(err)
	second, err := s.service.CreateFromOrder(s.ctx, s.order("1001"))
	s.Require().NoError(err)

	s.Equal(first.LicenseKey, second.LicenseKey)
	s.False(second.Created)

	created := 0
	for _, e := range s.audit.Events() {
		if e.Event == EventWebhookLicenseCreated {
			created++
		}
	}
	s.Equal(1, created)
}

func (s *WebhookServiceTestSuite) stripeEvent(eventType string, object map[string]interface{}) []byte {
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_test_1",
		"object":      "event",
		"api_version": "2022-11-15",
		"type":        eventType,
		"data":        map[string]interface{}{"object": object},
	})
	s.Require().NoError(err)
	return payload
}

func (s *WebhookServiceTestSuite) sign(payload []byte, secret string) string {
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func checkoutSession(metadata map[string]string) map[string]interface{} {
	return map[string]interface{}{
		"id":             "cs_test_123",
		"object":         "checkout.session",
		"payment_status": "paid",
		"customer_details": map[string]interface{}{
			"email": "buyer@example.com",
			"name":  "Buyer",
		},
		"metadata": metadata,
	}
}

func (s *WebhookServiceTestSuite) TestCreateFromStripe() {
	payload := s.stripeEvent("checkout.session.completed", checkoutSession(map[string]string{
		"max_domains": "5",
		"product_id":  "theme-pro",
	}))

	issued, err := s.service.CreateFromStripe(s.ctx, payload, s.sign(payload, testStripeSecret))
	s.Require().NoError(err)
	s.Require().NotNil(issued)
	s.True(issued.Created)

	license, err := s.registry.FindByKey(s.ctx, issued.LicenseKey)
	s.Require().NoError(err)
	s.Equal(5, license.MaxDomains)
	s.Equal("Auto-generated for Buyer (buyer@example.com) - Product: theme-pro", *license.Notes)
	s.Require().NotNil(license.SourceRef)
	s.Equal("stripe:cs_test_123", *license.SourceRef)

	event := s.audit.Last()
	s.Equal(EventWebhookLicenseCreated, event.Event)
	s.Equal("stripe", event.Fields["source"])

	again, err := s.service.CreateFromStripe(s.ctx, payload, s.sign(payload, testStripeSecret))
	s.Require().NoError(err)
	s.Equal(issued.LicenseKey, again.LicenseKey)
	s.False(again.Created)
}

func (s *WebhookServiceTestSuite) TestCreateFromStripeDefaultsMaxDomains() {
	payload := s.stripeEvent("checkout.session.completed", checkoutSession(nil))

	issued, err := s.service.CreateFromStripe(s.ctx, payload, s.sign(payload, testStripeSecret))
	s.Require().NoError(err)

	license, err := s.registry.FindByKey(s.ctx, issued.LicenseKey)
	s.Require().NoError(err)
	s.Equal(2, license.MaxDomains)
}

func (s *WebhookServiceTestSuite) TestCreateFromStripeRejectsBadSignature() {
	payload := s.stripeEvent("checkout.session.completed", checkoutSession(nil))

	_, err := s.service.CreateFromStripe(s.ctx, payload, s.sign(payload, "whsec_other"))
	s.ErrorIs(err, ErrInvalidWebhook)

	event := s.audit.Last()
	s.Equal(EventWebhookFailed, event.Event)
	s.Equal(Reason("invalid_signature"), event.Reason)

	count, err := s.registry.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *WebhookServiceTestSuite) TestCreateFromStripeIgnoresOtherEvents() {
	payload := s.stripeEvent("payment_intent.created", map[string]interface{}{
		"id":     "pi_test_1",
		"object": "payment_intent",
	})

	issued, err := s.service.CreateFromStripe(s.ctx, payload, s.sign(payload, testStripeSecret))
	s.NoError(err)
	s.Nil(issued)
	s.Empty(s.audit.Events())
}

func (s *WebhookServiceTestSuite) TestCreateFromStripeRejectsBadMaxDomains() {
	for _, value := range []string{"0", "-1", "many"} {
		payload := s.stripeEvent("checkout.session.completed", checkoutSession(map[string]string{"max_domains": value}))

		_, err := s.service.CreateFromStripe(s.ctx, payload, s.sign(payload, testStripeSecret))
		s.ErrorIs(err, ErrInvalidWebhook, value)
		s.True(strings.Contains(err.Error(), "max_domains"), value)
	}
}

func (s *WebhookServiceTestSuite) TestCreateFromStripeWithoutSecretRejectsEverything() {
	s.service.cfg.Webhook.StripeWebhookSecret = ""
	payload := s.stripeEvent("checkout.session.completed", checkoutSession(map[string]string{"max_domains": "1000"}))

	// An empty key still produces a well-formed signature.
	issued, err := s.service.CreateFromStripe(s.ctx, payload, s.sign(payload, ""))
	s.ErrorIs(err, ErrStripeDisabled)
	s.Nil(issued)
	s.False(s.service.StripeEnabled())
	s.Equal(EventWebhookFailed, s.audit.Last().Event)

	count, err := s.registry.Count(s.ctx)
	s.Require().NoError(err)
	s.Zero(count)
}

func (s *WebhookServiceTestSuite) TestCreateFromStripeWaitsForPayment() {
	session := checkoutSession(nil)
	session["payment_status"] = "unpaid"
	payload := s.stripeEvent("checkout.session.completed", session)

	issued, err := s.service.CreateFromStripe(s.ctx, payload, s.sign(payload, testStripeSecret))
	s.NoError(err)
	s.Nil(issued)

	// The delayed payment settles later.
	session["payment_status"] = "paid"
	payload = s.stripeEvent("checkout.session.async_payment_succeeded", session)

	issued, err = s.service.CreateFromStripe(s.ctx, payload, s.sign(payload, testStripeSecret))
	s.Require().NoError(err)
	s.Require().NotNil(issued)
	s.True(issued.Created)
}

func (s *WebhookServiceTestSuite) TestCreateFromStripeWithoutPaymentRequired() {
	session := checkoutSession(nil)
	session["payment_status"] = "no_payment_required"
	payload := s.stripeEvent("checkout.session.completed", session)

	issued, err := s.service.CreateFromStripe(s.ctx, payload, s.sign(payload, testStripeSecret))
	s.Require().NoError(err)
	s.Require().NotNil(issued)
}

func TestWebhookServiceSuite(t *testing.T) {
	suite.Run(t, new(WebhookServiceTestSuite))
}
