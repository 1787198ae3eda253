// Package api provides the HTTP REST API and WebSocket server for the scan
// console.
//
// It exposes the controller registry, macro library, scan unit bindings and
// dispatch operations to operator tooling (web console, scripts, the CLI in
// remote mode).
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/scanctl/internal/auth"
	"github.com/nerrad567/scanctl/internal/console"
	"github.com/nerrad567/scanctl/internal/infrastructure/config"
	"github.com/nerrad567/scanctl/internal/infrastructure/logging"
	"github.com/nerrad567/scanctl/internal/netif"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// ConnectionStatus reports whether an optional backend is reachable.
// Satisfied by *mqtt.Client and *influxdb.Client.
type ConnectionStatus interface {
	IsConnected() bool
}

// AdapterLister returns the network adapters controllers can be reached through.
type AdapterLister func() ([]netif.Adapter, error)

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Security  config.SecurityConfig
	Logger    *logging.Logger
	Console   *console.Service
	Operators auth.OperatorRepository

	// Optional collaborators.
	MQTT        ConnectionStatus
	InfluxDB    ConnectionStatus
	DB          *sql.DB
	Adapters    AdapterLister
	ExternalHub *Hub // If set, the server uses this hub instead of creating its own

	Version string
}

// Server is the HTTP API server for the scan console.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	tokenCfg  auth.TokenConfig
	logger    *logging.Logger
	console   *console.Service
	operators auth.OperatorRepository
	mqtt      ConnectionStatus
	influx    ConnectionStatus
	db        *sql.DB
	adapters  AdapterLister
	version   string
	startTime time.Time

	server      *http.Server
	hub         *Hub
	externalHub bool // true if hub was injected externally
	tickets     *ticketStore
	cancel      context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
//
// Returns an error if the logger, console or operator repository is missing.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Console == nil {
		return nil, fmt.Errorf("console service is required")
	}
	if deps.Operators == nil {
		return nil, fmt.Errorf("operator repository is required")
	}

	adapters := deps.Adapters
	if adapters == nil {
		adapters = netif.ListAdapters
	}

	s := &Server{
		cfg:   deps.Config,
		wsCfg: deps.WS,
		tokenCfg: auth.TokenConfig{
			Secret: deps.Security.JWT.Secret,
			Issuer: deps.Security.JWT.Issuer,
			TTL:    time.Duration(deps.Security.JWT.TokenTTL) * time.Minute,
		},
		logger:    deps.Logger,
		console:   deps.Console,
		operators: deps.Operators,
		mqtt:      deps.MQTT,
		influx:    deps.InfluxDB,
		db:        deps.DB,
		adapters:  adapters,
		version:   deps.Version,
		startTime: time.Now(),
		tickets:   newTicketStore(),
	}

	// The console broadcasts through the same hub the server upgrades
	// clients onto, so the hub is usually created by the caller.
	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub (unless injected) and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Create internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
		go s.hub.Run(srvCtx)
	}

	// Start periodic ticket cleanup to prevent memory leaks
	go s.cleanTicketsLoop(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections. A dispatch run in flight is
// not cancelled; it finishes on its own.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
