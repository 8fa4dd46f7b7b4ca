// internal/middleware/rate_limit.go
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/licensehub/license-server/internal/i18n"
	"github.com/licensehub/license-server/internal/utils"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	visitors map[string]*visitor
	mtx      sync.Mutex
	rate     rate.Limit
	burst    int
	// flat selects the public API error shape {status, message}.
	flat bool
}

func NewRateLimiter(r rate.Limit, b int) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rate:     r,
		burst:    b,
	}
}

// PerMinute allows n requests per minute per IP, all of which may arrive at
// once. n < 1 disables the limit.
func PerMinute(n int) *RateLimiter {
	if n < 1 {
		return NewRateLimiter(rate.Inf, 1)
	}
	return NewRateLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}

// Flat makes rejections use the public API body {status:"error", message}.
func (rl *RateLimiter) Flat() *RateLimiter {
	rl.flat = true
	return rl
}

// Cleanup drops visitors idle for three minutes until ctx is done.
func (rl *RateLimiter) Cleanup(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.mtx.Lock()
			for ip, v := range rl.visitors {
				if time.Since(v.lastSeen) > 3*time.Minute {
					delete(rl.visitors, ip)
				}
			}
			rl.mtx.Unlock()
		}
	}
}

func (rl *RateLimiter) getVisitor(ip string) *rate.Limiter {
	rl.mtx.Lock()
	defer rl.mtx.Unlock()

	v, exists := rl.visitors[ip]
	if !exists {
		limiter := rate.NewLimiter(rl.rate, rl.burst)
		rl.visitors[ip] = &visitor{limiter, time.Now()}
		return limiter
	}

	v.lastSeen = time.Now()
	return v.limiter
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.getVisitor(c.ClientIP()).Allow() {
			c.Next()
			return
		}

		message := i18n.T(utils.GetLangFromContext(c), i18n.KeyRateLimited)
		if rl.flat {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"status":  "error",
				"message": message,
			})
			return
		}
		utils.ErrorResponse(c, http.StatusTooManyRequests, "RATE_LIMITED", message, nil)
		c.Abort()
	}
}
