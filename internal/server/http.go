package server

import (
	"context"

	"GymPulse/internal/biz"
	"GymPulse/internal/conf"
	"GymPulse/internal/server/middleware"
	"GymPulse/internal/service"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/go-kratos/kratos/v2/middleware/recovery"
	"github.com/go-kratos/kratos/v2/transport/http"
)

// NewHTTPServer new an HTTP server.
func NewHTTPServer(c *conf.Server, limiter *biz.RateLimiter, eventService *service.EventService, statusService *service.StatusService, logger log.Logger) *http.Server {
	var opts = []http.ServerOption{
		http.Middleware(
			recovery.Recovery(),
			middleware.Logging(logger),
		),
		http.Filter(middleware.RateLimit(limiter, logger)),
	}
	if c.Http != nil {
		if c.Http.Network != "" {
			opts = append(opts, http.Network(c.Http.Network))
		}
		if c.Http.Addr != "" {
			opts = append(opts, http.Address(c.Http.Addr))
		}
		if c.Http.Timeout != nil {
			opts = append(opts, http.Timeout(c.Http.Timeout.AsDuration()))
		}
	}
	srv := http.NewServer(opts...)

	registerRoutes(srv, eventService, statusService)

	return srv
}

func registerRoutes(srv *http.Server, eventService *service.EventService, statusService *service.StatusService) {
	r := srv.Route("/")

	r.POST("/v1/events", func(ctx http.Context) error {
		var req service.TriggerEventRequest
		if err := ctx.Bind(&req); err != nil {
			return err
		}

		http.SetOperation(ctx, "/v1/events")
		h := ctx.Middleware(func(ctx context.Context, req interface{}) (interface{}, error) {
			return eventService.TriggerEvent(ctx, req.(*service.TriggerEventRequest))
		})
		reply, err := h(ctx, &req)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})

	r.GET("/admin/circuit-breakers", func(ctx http.Context) error {
		http.SetOperation(ctx, "/admin/circuit-breakers")
		h := ctx.Middleware(func(ctx context.Context, _ interface{}) (interface{}, error) {
			return statusService.CircuitBreakers(ctx)
		})
		reply, err := h(ctx, nil)
		if err != nil {
			return err
		}
		return ctx.Result(200, reply)
	})
}
