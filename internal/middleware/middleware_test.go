// internal/middleware/middleware_test.go
package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licensehub/license-server/internal/i18n"
	"github.com/licensehub/license-server/internal/services"
	"github.com/licensehub/license-server/internal/utils"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	if err := i18n.Initialize("en"); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func TestRateLimiterFlatShape(t *testing.T) {
	r := gin.New()
	r.POST("/api/check", PerMinute(2).Flat().Middleware(), ok)

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		r.ServeHTTP(last, httptest.NewRequest(http.MethodPost, "/api/check", nil))
		codes = append(codes, last.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	body := decode(t, last)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "Too many requests", body["message"])
}

func TestRateLimiterEnvelopeShape(t *testing.T) {
	r := gin.New()
	r.GET("/admin/dashboard", PerMinute(1).Middleware(), ok)

	for _, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil))
		require.Equal(t, want, w.Code)
		if want == http.StatusTooManyRequests {
			body := decode(t, w)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "RATE_LIMITED", body["error"].(map[string]interface{})["code"])
		}
	}
}

func TestRateLimiterIsPerClient(t *testing.T) {
	limiter := PerMinute(1)
	r := gin.New()
	r.GET("/", limiter.Middleware(), ok)

	for _, addr := range []string{"10.0.0.1:1000", "10.0.0.2:1000"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code, addr)
	}
}

func TestPerMinuteZeroDisablesLimit(t *testing.T) {
	r := gin.New()
	r.GET("/", PerMinute(0).Middleware(), ok)

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func adminRouter() *gin.Engine {
	r := gin.New()
	r.GET("/admin/me", AdminRequired(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"username": c.GetString("username"),
			"actor":    services.ActorFromContext(c.Request.Context()),
		})
	})
	return r
}

func TestAdminRequired(t *testing.T) {
	utils.SetJWTSecret("middleware-test-secret")
	token, err := utils.GenerateJWT(uuid.New(), "root", time.Hour)
	require.NoError(t, err)
	r := adminRouter()

	t.Run("bearer header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, "root", body["username"])
		assert.Equal(t, "root", body["actor"])
	})

	t.Run("cookie", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
		req.AddCookie(&http.Cookie{Name: AdminTokenCookie, Value: token})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing token", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/me", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("malformed header", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
		req.Header.Set("Authorization", "Token "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("invalid cookie is cleared", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
		req.AddCookie(&http.Cookie{Name: AdminTokenCookie, Value: "garbage"})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("Set-Cookie"), AdminTokenCookie+"=;")
	})
}

func TestWebhookSecretRequired(t *testing.T) {
	audit := &services.MemoryAuditSink{}
	r := gin.New()
	r.POST("/webhook", WebhookSecretRequired("s3cret", audit), ok)

	req := httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set(WebhookSecretHeader, "s3cret")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, audit.Events())

	req = httptest.NewRequest(http.MethodPost, "/webhook", nil)
	req.Header.Set(WebhookSecretHeader, "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "error", decode(t, w)["status"])
	assert.Equal(t, services.EventWebhookFailed, audit.Last().Event)
	assert.Equal(t, services.Reason("invalid_secret"), audit.Last().Reason)
}

func TestWebhookSecretRequiredWithEmptySecret(t *testing.T) {
	r := gin.New()
	r.POST("/webhook", WebhookSecretRequired("", &services.MemoryAuditSink{}), ok)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/webhook", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResolveLang(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", "en"},
		{"id-ID,id;q=0.9,en;q=0.8", "id"},
		{"fr-FR,fr;q=0.9,en;q=0.8", "en"},
		{"de", "en"},
		{"ID_id", "id"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, resolveLang(tt.header, "en"), tt.header)
	}
}

func TestAdminAuditMiddleware(t *testing.T) {
	audit := &services.MemoryAuditSink{}
	r := gin.New()
	r.Use(AdminAuditMiddleware(audit))
	r.GET("/admin/licenses", ok)
	r.POST("/admin/licenses", ok)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/licenses", nil))
	assert.Empty(t, audit.Events())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/admin/licenses", nil))
	require.Len(t, audit.Events(), 1)
	assert.Equal(t, services.EventAdminRequest, audit.Last().Event)
}

func TestRequestLoggerLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	r := gin.New()
	r.Use(RequestLogger(logger, nil))
	r.GET("/ok", func(c *gin.Context) {
		c.String(http.StatusOK, services.ClientIPFromContext(c.Request.Context()))
	})
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for path, level := range map[string]logrus.Level{
		"/ok":      logrus.InfoLevel,
		"/missing": logrus.WarnLevel,
		"/boom":    logrus.ErrorLevel,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "192.0.2.7:4000"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		entry := hook.LastEntry()
		require.NotNil(t, entry, path)
		assert.Equal(t, level, entry.Level, path)
		assert.Equal(t, path, entry.Data["path"])
		if path == "/ok" {
			assert.Equal(t, "192.0.2.7", w.Body.String())
		}
	}
}
