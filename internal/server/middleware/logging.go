package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/transport"
	kratoshttp "github.com/go-kratos/kratos/v2/transport/http"
	"github.com/google/uuid"
)

// slowRequestThreshold marks requests worth a dedicated warning.
const slowRequestThreshold = 5 * time.Second

// Logging returns a middleware that logs one line per HTTP request with
// method, path, status, duration and caller identity. Requests slower than
// slowRequestThreshold get an extra warning line.
func Logging(logger log.Logger) middleware.Middleware {
	helper := log.NewHelper(logger)

	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			startTime := time.Now()

			var (
				method    string
				path      string
				ip        string
				userAgent string
				requestID string
			)

			if tr, ok := transport.FromServerContext(ctx); ok {
				method = tr.Operation()
				path = tr.Operation()

				if ht, ok := tr.(kratoshttp.Transporter); ok {
					httpReq := ht.Request()
					method = httpReq.Method
					path = httpReq.URL.Path
					if httpReq.URL.RawQuery != "" {
						path = path + "?" + httpReq.URL.RawQuery
					}
					ip = extractClientIP(httpReq)
					userAgent = httpReq.Header.Get("User-Agent")
					requestID = httpReq.Header.Get("X-Request-ID")
				}
			}
			if requestID == "" {
				requestID = strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
			}

			reply, err := handler(ctx, req)

			duration := time.Since(startTime)
			status := 200
			if err != nil {
				status = int(errors.FromError(err).Code)
			}

			helper.WithContext(ctx).Infow(
				"msg", "http request",
				"request_id", requestID,
				"method", method,
				"path", path,
				"status", status,
				"duration_ms", duration.Milliseconds(),
				"ip", ip,
				"user_agent", userAgent,
			)

			if duration > slowRequestThreshold {
				helper.WithContext(ctx).Warnw(
					"msg", "slow request detected",
					"request_id", requestID,
					"method", method,
					"path", path,
					"duration_ms", duration.Milliseconds(),
				)
			}

			return reply, err
		}
	}
}
