// Package api serves the wellness service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fasthttp/router"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/valyala/fasthttp"

	"well-go/internal/config"
	"well-go/internal/well"
)

// Server exposes a WellService as a JSON API.
type Server struct {
	svc      *well.WellService
	tokens   []config.TokenConfig
	gatherer prometheus.Gatherer
	logger   well.Logger
}

// NewServer creates a Server. gatherer may be nil, which disables /metrics.
func NewServer(svc *well.WellService, tokens []config.TokenConfig, gatherer prometheus.Gatherer, logger well.Logger) *Server {
	return &Server{svc: svc, tokens: tokens, gatherer: gatherer, logger: logger}
}

// Handler builds the routed request handler.
func (s *Server) Handler() fasthttp.RequestHandler {
	r := router.New()
	auth := s.authed

	r.GET("/healthz", func(ctx *fasthttp.RequestCtx) {
		ctx.SetStatusCode(fasthttp.StatusOK)
		ctx.SetBodyString("ok")
	})
	if s.gatherer != nil {
		r.GET("/metrics", MetricsHandler(s.gatherer))
	}

	v1 := r.Group("/v1")
	v1.POST("/records", auth(s.appendRecord))
	v1.GET("/records", auth(s.queryRecords))

	v1.GET("/stats/daily", auth(s.stats(well.PeriodDaily)))
	v1.GET("/stats/weekly", auth(s.stats(well.PeriodWeekly)))
	v1.GET("/stats/monthly", auth(s.stats(well.PeriodMonthly)))
	v1.GET("/stats/summary", auth(s.summary))

	v1.GET("/xp", auth(s.getXP))
	v1.POST("/xp", auth(s.addXP))
	v1.GET("/xp/level", auth(s.getLevel))
	v1.GET("/xp/progress", auth(s.getProgress))
	v1.GET("/xp/bonus", auth(s.getBonus))
	v1.GET("/xp/history", auth(s.xpHistory))

	v1.GET("/insights/{period}", auth(s.insights))

	return s.logRequests(r.Handler)
}

// userHandler handles an authenticated request. c carries the request deadline.
type userHandler func(ctx *fasthttp.RequestCtx, c context.Context, userID string)

// requestTimeout bounds service calls made for one request.
const requestTimeout = 60 * time.Second

func (s *Server) authed(h userHandler) fasthttp.RequestHandler {
	return BearerAuth(s.tokens)(func(ctx *fasthttp.RequestCtx) {
		userID, ok := userFromCtx(ctx)
		if !ok {
			writeError(ctx, fasthttp.StatusUnauthorized, "unauthorized")
			return
		}
		c, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		h(ctx, c, userID)
	})
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &fasthttp.Server{
		Handler:      s.Handler(),
		Name:         "well",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe(addr)
	}()
	s.logger.Info("api listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("serving api: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.ShutdownWithContext(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down api: %w", err)
		}
		return nil
	}
}

func (s *Server) logRequests(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		next(ctx)
		s.logger.Debug("request",
			"method", string(ctx.Method()),
			"path", string(ctx.Path()),
			"status", ctx.Response.StatusCode(),
			"duration", time.Since(start))
	}
}

type errorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		ctx.SetStatusCode(fasthttp.StatusInternalServerError)
		ctx.SetBodyString("failed to encode response")
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, errorResponse{Error: msg})
}

// writeServiceError maps validation failures to 400 and everything else to 500.
func (s *Server) writeServiceError(ctx *fasthttp.RequestCtx, op string, err error) {
	var verr *well.ValidationError
	if errors.As(err, &verr) {
		writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: verr.Error(), Field: verr.Field})
		return
	}
	if errors.Is(err, well.ErrDuplicateRecord) {
		writeError(ctx, fasthttp.StatusConflict, err.Error())
		return
	}
	s.logger.Error(op, "error", err)
	writeError(ctx, fasthttp.StatusInternalServerError, op+" failed")
}
