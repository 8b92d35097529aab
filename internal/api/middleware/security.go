package middleware

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// rateLimiterExpiry drops per-client limiter state after this much idle time.
const rateLimiterExpiry = 3 * time.Minute

// SecurityConfig holds configuration for security middleware.
type SecurityConfig struct {
	AllowedOrigins []string

	// RateLimit is the sustained requests per second allowed per client IP.
	// Zero disables rate limiting.
	RateLimit float64
	RateBurst int
}

// NewCORS creates a CORS middleware for the given origins. The API carries
// no credentials so none are allowed.
func NewCORS(config SecurityConfig) echo.MiddlewareFunc {
	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: config.AllowedOrigins,
		AllowMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderXRequestID,
		},
		ExposeHeaders: []string{echo.HeaderXRequestID},
	})
}

// NewSecureHeaders creates a middleware that sets security-related HTTP headers.
func NewSecureHeaders() echo.MiddlewareFunc {
	return middleware.SecureWithConfig(middleware.SecureConfig{
		XSSProtection:      "1; mode=block",
		ContentTypeNosniff: "nosniff",
		XFrameOptions:      "DENY",
	})
}

// NewBodyLimit creates a middleware that limits the request body size.
func NewBodyLimit(limit string) echo.MiddlewareFunc {
	return middleware.BodyLimit(limit)
}

// NewRateLimiter limits requests per client IP with a token bucket. Denied
// requests get 429 from echo's default deny handler.
func NewRateLimiter(config SecurityConfig, skipper middleware.Skipper) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(config.RateLimit),
		Burst:     config.RateBurst,
		ExpiresIn: rateLimiterExpiry,
	})
	cfg := middleware.DefaultRateLimiterConfig
	cfg.Store = store
	if skipper != nil {
		cfg.Skipper = skipper
	}
	return middleware.RateLimiterWithConfig(cfg)
}

// NewGzip compresses responses, skipping paths matched by skipper.
func NewGzip(skipper middleware.Skipper) echo.MiddlewareFunc {
	cfg := middleware.GzipConfig{Level: 5}
	if skipper != nil {
		cfg.Skipper = skipper
	}
	return middleware.GzipWithConfig(cfg)
}
