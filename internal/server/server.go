package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"HeadToHead/internal/core"
	"HeadToHead/internal/observability"
	"HeadToHead/internal/query"
)

// Server is the HTTP/JSON API over the settlement engine. Players are
// identified by the X-Player-ID header; admin routes require the
// X-Admin-Token header.
type Server struct {
	app        *fiber.App
	engine     *core.Engine
	queries    *query.Service
	health     *observability.HealthChecker
	adminToken string

	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewServer(
	engine *core.Engine,
	queries *query.Service,
	health *observability.HealthChecker,
	adminToken string,
	metrics *observability.Metrics,
) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ReadTimeout:           10 * time.Second,
			WriteTimeout:          10 * time.Second,
		}),
		engine:     engine,
		queries:    queries,
		health:     health,
		adminToken: adminToken,
		logger:     observability.NewLogger("http"),
		metrics:    metrics,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Use(s.observe())

	s.app.Get("/healthz", s.health.LivenessHandler)
	s.app.Get("/readyz", s.health.ReadinessHandler)

	api := s.app.Group("/api")
	api.Post("/deposit", s.handleDeposit)
	api.Post("/games", s.handleCreateGame)
	api.Post("/games/:index/join", s.handleJoinGame)
	api.Post("/games/:index/claim", s.handleClaim)
	api.Post("/games/:index/withdraw", s.handleWithdraw)
	api.Get("/games", s.handleListGames)
	api.Get("/games/:index", s.handleGetGame)
	api.Get("/prices", s.handleGetPrices)
	api.Get("/escrow", s.handleGetEscrow)
	api.Get("/balance", s.handleGetBalance)
	api.Get("/events", s.handleEventHistory)
	api.Get("/journal", s.handleJournalHistory)

	admin := s.app.Group("/admin", s.adminGuard())
	admin.Post("/prices", s.handleAppendPrice)
	admin.Get("/integrity", s.handleIntegrity)
}

// observe records request counts and latency per route.
func (s *Server) observe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		if s.metrics != nil {
			route := c.Route().Path
			s.metrics.HTTPRequests.WithLabelValues(route, statusLabel(c.Response().StatusCode())).Inc()
			s.metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
		return err
	}
}

func (s *Server) adminGuard() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if s.adminToken == "" || c.Get("X-Admin-Token") != s.adminToken {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
		}
		return c.Next()
	}
}

func (s *Server) Start(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("http server listening")
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
