package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	apperrors "github.com/cropcare/reminder-api/pkg/errors"
	"github.com/cropcare/reminder-api/pkg/httputil"
)

const (
	DefaultRateLimit = 100
	DefaultRateBurst = 200
)

// RateLimiterConfig carries the per-process request budget, sourced from the
// server section of the application config.
type RateLimiterConfig struct {
	Rate  rate.Limit
	Burst int
}

// RateLimiter applies a process-wide token bucket to every request.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Rate <= 0 {
		config.Rate = DefaultRateLimit
	}
	if config.Burst <= 0 {
		config.Burst = DefaultRateBurst
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(config.Rate, config.Burst),
	}
}

// RateLimit rejects requests over the budget with the standard error
// envelope and a 429 status.
func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter.Allow() {
			httputil.RespondWithError(c, apperrors.NewRateLimited())
			c.Abort()
			return
		}
		c.Next()
	}
}
