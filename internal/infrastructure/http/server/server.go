package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/yuzvak/starnotary-service/internal/application/ports"
	"github.com/yuzvak/starnotary-service/internal/application/use_cases"
	"github.com/yuzvak/starnotary-service/internal/config"
	"github.com/yuzvak/starnotary-service/internal/infrastructure/http/handlers"
	"github.com/yuzvak/starnotary-service/internal/pkg/logger"
)

// Dependencies are the application services the HTTP layer exposes.
type Dependencies struct {
	Registry     *use_cases.RegistryUseCase
	Marketplace  *use_cases.MarketplaceUseCase
	Ledger       ports.AccountLedger
	Events       ports.EventReader
	HealthChecks map[string]handlers.Pinger
}

type Server struct {
	server             *http.Server
	logger             *logger.Logger
	requestTimeout     time.Duration
	healthHandler      *handlers.HealthHandler
	starHandler        *handlers.StarHandler
	marketplaceHandler *handlers.MarketplaceHandler
	operatorHandler    *handlers.OperatorHandler
	accountHandler     *handlers.AccountHandler
	eventsHandler      *handlers.EventsHandler
}

func NewServer(cfg config.ServerConfig, deps Dependencies, logger *logger.Logger) *Server {
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s := &Server{
		server:             server,
		logger:             logger,
		requestTimeout:     25 * time.Second,
		healthHandler:      handlers.NewHealthHandler(deps.HealthChecks, logger),
		starHandler:        handlers.NewStarHandler(deps.Registry, logger),
		marketplaceHandler: handlers.NewMarketplaceHandler(deps.Marketplace, logger),
		operatorHandler:    handlers.NewOperatorHandler(deps.Registry, logger),
		accountHandler:     handlers.NewAccountHandler(deps.Registry, deps.Ledger, logger),
		eventsHandler:      handlers.NewEventsHandler(deps.Events, logger),
	}
	server.Handler = s.setupRoutes()

	return s
}

// Handler returns the fully wrapped router.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("Starting HTTP server", "address", s.server.Addr)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}
