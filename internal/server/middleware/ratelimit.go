// Package middleware provides HTTP middleware for request logging and rate
// limiting.
package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"GymPulse/internal/biz"

	"github.com/go-kratos/kratos/v2/log"
)

// limitChecker is the slice of the rate limiter the filter needs.
type limitChecker interface {
	Check(ctx context.Context, identifier string) *biz.Decision
}

// rateLimitBody is the 429 response payload.
type rateLimitBody struct {
	Error      string `json:"error"`
	Limit      int64  `json:"limit"`
	Remaining  int64  `json:"remaining"`
	Reset      int64  `json:"reset"`
	RetryAfter int64  `json:"retry_after"`
}

// RateLimit returns an HTTP filter that checks every request against the
// multi-tier limiter before it reaches routing. Requests are keyed by
// X-Client-Id when present, falling back to the client IP.
//
// Tier metadata is echoed on every response as X-RateLimit-* headers so
// well-behaved clients can pace themselves before hitting the wall.
func RateLimit(limiter limitChecker, logger log.Logger) func(http.Handler) http.Handler {
	helper := log.NewHelper(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			identifier := req.Header.Get("X-Client-Id")
			if identifier == "" {
				identifier = extractClientIP(req)
			}

			decision := limiter.Check(req.Context(), identifier)
			setTierHeaders(w.Header(), decision)

			if !decision.Allowed {
				helper.Warnw(
					"msg", "rate limit exceeded",
					"identifier", identifier,
					"path", req.URL.Path,
					"retry_after", decision.RetryAfter.String(),
				)
				writeRateLimited(w, decision)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// setTierHeaders writes one header triple per tier, e.g.
// X-RateLimit-Limit-Hour / X-RateLimit-Remaining-Hour / X-RateLimit-Reset-Hour.
func setTierHeaders(h http.Header, decision *biz.Decision) {
	for _, tier := range decision.Tiers {
		suffix := headerSuffix(tier.Name)
		h.Set("X-RateLimit-Limit-"+suffix, strconv.FormatInt(tier.Limit, 10))
		h.Set("X-RateLimit-Remaining-"+suffix, strconv.FormatInt(tier.Remaining, 10))
		h.Set("X-RateLimit-Reset-"+suffix, strconv.FormatInt(tier.ResetAt.Unix(), 10))
	}
}

func headerSuffix(name string) string {
	if name == "" {
		return "Window"
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:])
}

func writeRateLimited(w http.ResponseWriter, decision *biz.Decision) {
	retryAfter := int64(decision.RetryAfter / time.Second)
	if retryAfter < 1 {
		retryAfter = 1
	}

	body := rateLimitBody{
		Error:      "rate_limit_exceeded",
		RetryAfter: retryAfter,
	}
	// Report the exceeded tier with the latest window boundary, the one
	// that produced RetryAfter, so reset and retry_after agree.
	for _, tier := range decision.Tiers {
		if !tier.Exceeded {
			continue
		}
		if tier.ResetAt.Unix() > body.Reset {
			body.Limit = tier.Limit
			body.Remaining = tier.Remaining
			body.Reset = tier.ResetAt.Unix()
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(body)
}

// extractClientIP resolves the caller address, preferring proxy headers.
// Priority: X-Real-IP > X-Forwarded-For > RemoteAddr.
func extractClientIP(req *http.Request) string {
	if ip := req.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if forwarded := req.Header.Get("X-Forwarded-For"); forwarded != "" {
		if parts := strings.Split(forwarded, ","); len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if host, _, err := net.SplitHostPort(req.RemoteAddr); err == nil {
		return host
	}
	return req.RemoteAddr
}
