// internal/handlers/license_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licensehub/license-server/internal/i18n"
	"github.com/licensehub/license-server/internal/middleware"
	"github.com/licensehub/license-server/internal/models"
	"github.com/licensehub/license-server/internal/services"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := i18n.Initialize("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type stubProtocol struct {
	activation *services.ActivationResult
	check      *services.CheckResult
	err        error

	gotKey, gotDomain string
}

func (p *stubProtocol) Activate(_ context.Context, key, domain string) (*services.ActivationResult, error) {
	p.gotKey, p.gotDomain = key, domain
	return p.activation, p.err
}

func (p *stubProtocol) Check(_ context.Context, key, domain string) (*services.CheckResult, error) {
	p.gotKey, p.gotDomain = key, domain
	return p.check, p.err
}

func serve(t *testing.T, p LicenseProtocol, path, body string, header http.Header) (int, map[string]interface{}) {
	t.Helper()
	h := NewLicenseHandler(p)
	r := gin.New()
	r.Use(middleware.I18nMiddleware("en"))
	r.POST("/api/activate", h.Activate)
	r.POST("/api/check", h.Check)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return w.Code, out
}

const validBody = `{"license_key":"ABCD-EFGH-IJKL-MNOP","domain":"example.com"}`

func TestActivateSuccess(t *testing.T) {
	p := &stubProtocol{activation: &services.ActivationResult{
		Kind:        services.OutcomeOK,
		Domain:      "example.com",
		DomainsUsed: 2,
		MaxDomains:  3,
	}}

	code, body := serve(t, p, "/api/activate", validBody, nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "activated", body["message"])
	assert.Equal(t, float64(2), body["domains_used"])
	assert.Equal(t, float64(3), body["max_domains"])
	assert.Equal(t, "ABCD-EFGH-IJKL-MNOP", p.gotKey)
	assert.Equal(t, "example.com", p.gotDomain)
}

func TestActivateRejections(t *testing.T) {
	tests := []struct {
		kind    services.OutcomeKind
		reason  services.Reason
		code    int
		message string
	}{
		{services.OutcomeNotFound, services.ReasonNotFound, http.StatusNotFound, "License key not found"},
		{services.OutcomeForbidden, services.ReasonSuspended, http.StatusForbidden, "License is suspended"},
		{services.OutcomeForbidden, services.ReasonExpired, http.StatusForbidden, "License has expired"},
		{services.OutcomeForbidden, services.ReasonDomainLimitReached, http.StatusForbidden, "Domain limit reached"},
	}

	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			p := &stubProtocol{activation: &services.ActivationResult{Kind: tt.kind, Reason: tt.reason}}
			code, body := serve(t, p, "/api/activate", validBody, nil)

			assert.Equal(t, tt.code, code)
			assert.Equal(t, "error", body["status"])
			assert.Equal(t, tt.message, body["message"])
		})
	}
}

func TestActivateLocalizedMessage(t *testing.T) {
	p := &stubProtocol{activation: &services.ActivationResult{Kind: services.OutcomeNotFound, Reason: services.ReasonNotFound}}
	header := http.Header{"Accept-Language": []string{"id-ID,id;q=0.9"}}

	_, body := serve(t, p, "/api/activate", validBody, header)
	assert.Equal(t, i18n.T("id", i18n.KeyLicenseNotFound), body["message"])
	assert.NotEqual(t, "License key not found", body["message"])
}

func TestActivateValidation(t *testing.T) {
	for name, payload := range map[string]string{
		"malformed json": `{"license_key":`,
		"missing key":    `{"domain":"example.com"}`,
		"missing domain": `{"license_key":"ABCD"}`,
		"bad domain":     `{"license_key":"ABCD","domain":"not a domain"}`,
	} {
		t.Run(name, func(t *testing.T) {
			p := &stubProtocol{}
			code, body := serve(t, p, "/api/activate", payload, nil)

			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, "error", body["status"])
			assert.NotEmpty(t, body["message"])
			assert.Empty(t, p.gotKey, "protocol must not be called")
		})
	}
}

func TestActivateStorageFailure(t *testing.T) {
	p := &stubProtocol{err: errors.New("connection refused")}
	code, body := serve(t, p, "/api/activate", validBody, nil)

	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Internal server error", body["message"])
}

func TestCheckActive(t *testing.T) {
	p := &stubProtocol{check: &services.CheckResult{
		Kind:          services.OutcomeOK,
		Status:        models.ReportedStatusActive,
		ExpireAt:      "2031-01-01",
		RemainingDays: 42,
	}}

	code, body := serve(t, p, "/api/check", validBody, nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, "2031-01-01", body["expire_at"])
	assert.Equal(t, float64(42), body["remaining_days"])
}

func TestCheckInactiveStatusesOmitExpiry(t *testing.T) {
	for _, status := range []models.ReportedStatus{models.ReportedStatusSuspended, models.ReportedStatusExpired} {
		p := &stubProtocol{check: &services.CheckResult{Kind: services.OutcomeOK, Status: status}}
		code, body := serve(t, p, "/api/check", validBody, nil)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]interface{}{"status": string(status)}, body)
	}
}

func TestCheckDomainNotActivated(t *testing.T) {
	p := &stubProtocol{check: &services.CheckResult{
		Kind:   services.OutcomeForbidden,
		Reason: services.ReasonDomainNotActivated,
	}}

	code, body := serve(t, p, "/api/check", validBody, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "Domain not activated for this license", body["message"])
}
