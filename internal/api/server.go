package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nerrad567/ac-bridge/internal/bridge"
	"github.com/nerrad567/ac-bridge/internal/device"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/config"
	"github.com/nerrad567/ac-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/ac-bridge/internal/panel"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Dispatcher receives session events. *bridge.Router satisfies it.
type Dispatcher interface {
	Dispatch(ev bridge.Event)
}

// DeviceDeleter removes a device and notifies relays and clients.
// *bridge.Router satisfies it.
type DeviceDeleter interface {
	DeleteDevice(key device.Key) bool
}

// BusStatus reports broker connectivity. *bridge.BusSession satisfies it.
type BusStatus interface {
	Connected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Router   *bridge.Router
	Bus      BusStatus              // optional: health reports mqtt as down without it
	History  device.HistoryStore    // optional: history endpoint returns 503 without it
	Gatherer prometheus.Gatherer    // optional: /metrics is not mounted without it
	DBStats  func() DatabaseMetrics // optional
	Version  string
}

// Server is the HTTP server for the AC bridge: dashboard WebSocket sessions,
// the REST helpers and the optional static dashboard.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	registry   *device.Registry
	dispatcher Dispatcher
	deleter    DeviceDeleter
	bus        BusStatus
	history    device.HistoryStore
	gatherer   prometheus.Gatherer
	dbStats    func() DatabaseMetrics
	version    string
	startTime  time.Time

	dashboard http.Handler // nil when disabled

	server   *http.Server
	listener net.Listener
	hub      *Hub
	cancel   context.CancelFunc // cancels the hub on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("bridge router is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		registry:   deps.Registry,
		dispatcher: deps.Router,
		deleter:    deps.Router,
		bus:        deps.Bus,
		history:    deps.History,
		gatherer:   deps.Gatherer,
		dbStats:    deps.DBStats,
		version:    deps.Version,
		startTime:  time.Now(),
	}
	if s.cfg.Dashboard || s.cfg.StaticDir != "" {
		s.dashboard = panel.Handler(s.cfg.StaticDir)
	}
	s.hub = NewHub(s.wsCfg, s.logger, s.dispatcher)
	return s, nil
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener and serves in the background.
//
// The listener is bound synchronously so a port conflict is returned here
// rather than logged later.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	s.logListenAddresses()

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes every dashboard session and shuts the server down, waiting
// up to 10 seconds for in-flight requests.
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

// HealthCheck verifies the API server is running.
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
