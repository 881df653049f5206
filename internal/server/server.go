// Package server is the service's transport: a gin HTTP surface for
// identity, health, and Prometheus metrics, plus the /ws endpoint where
// diagram sessions live. Each accepted connection runs one read loop and
// one write pump; everything outbound flows through a bounded per-session
// queue so a slow client never blocks request processing.
package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/cache"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/chart"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/mermaid"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/observability"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/orchestrator"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/storage"
	"github.com/Pramod-Potti-Krishnan/deckster-w-content-strategist-sub000/internal/template"
)

// Defaults for the transport knobs. All are overridable through Config.
const (
	DefaultPort                  = 8080
	DefaultMaxConnections        = 100
	DefaultMaxRequestsPerSession = 10
	DefaultIdleTimeout           = 300 * time.Second
	DefaultPingInterval          = 30 * time.Second
	DefaultEnqueueTimeout        = 5 * time.Second
	DefaultShutdownGrace         = 10 * time.Second
)

// Config carries the transport settings.
type Config struct {
	Host                  string
	Port                  int
	MaxConnections        int
	MaxRequestsPerSession int
	IdleTimeout           time.Duration
	PingInterval          time.Duration
	EnqueueTimeout        time.Duration
	ShutdownGrace         time.Duration
	Version               string
}

func (c Config) withDefaults() Config {
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.MaxConnections <= 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.MaxRequestsPerSession <= 0 {
		c.MaxRequestsPerSession = DefaultMaxRequestsPerSession
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.EnqueueTimeout <= 0 {
		c.EnqueueTimeout = DefaultEnqueueTimeout
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = DefaultShutdownGrace
	}
	return c
}

// Deps bundles the shared components the transport serves. Orchestrator is
// required; the rest feed the health and metrics endpoints and may be nil.
type Deps struct {
	Orchestrator *orchestrator.Orchestrator
	Cache        *cache.Cache
	Templates    *template.Library
	Renderer     *mermaid.Renderer
	Executor     *chart.Executor
	Uploader     storage.Uploader
	Metrics      *observability.Metrics
	Gauges       *observability.ServiceGauges
	MetricsHTTP  http.Handler
	Logger       *observability.Logger
}

// Server accepts WebSocket sessions and exposes the HTTP surface.
type Server struct {
	cfg      Config
	deps     Deps
	engine   *gin.Engine
	httpd    *http.Server
	upgrader websocket.Upgrader
	sessions *registry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	inFlight atomic.Int64
	started  time.Time
}

// New builds the server and its routes. Start must be called to listen.
func New(cfg Config, deps Deps) *Server {
	cfg = cfg.withDefaults()
	if deps.Logger == nil {
		deps.Logger = observability.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		cfg:      cfg,
		deps:     deps,
		sessions: newRegistry(cfg.MaxConnections),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Requested-With"}
	corsCfg.AllowWebSockets = true
	engine.Use(cors.New(corsCfg))

	engine.GET("/", s.handleRoot)
	engine.GET("/health", s.handleHealth)
	if deps.MetricsHTTP != nil {
		engine.GET("/metrics", gin.WrapH(deps.MetricsHTTP))
	}
	engine.GET("/ws", s.handleWebSocket)

	s.engine = engine
	return s
}

// Handler exposes the route tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens and serves until Stop is called. It blocks.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.httpd = &http.Server{
		Addr:        addr,
		Handler:     s.engine,
		ReadTimeout: 30 * time.Second,
	}

	if s.deps.Templates != nil {
		s.deps.Gauges.SetTemplatesLoaded(s.deps.Templates.Len())
	}
	s.wg.Add(1)
	go s.watchGauges()

	s.deps.Logger.Info("server listening", "addr", addr)
	if err := s.httpd.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Stop closes every session, shuts the listener down, and waits for
// in-flight request goroutines to unwind.
func (s *Server) Stop(ctx context.Context) error {
	s.deps.Logger.Info("server stopping", "active_sessions", s.sessions.len())
	for _, sess := range s.sessions.snapshot() {
		sess.shutdown(websocket.CloseNormalClosure, "server shutting down")
	}
	s.cancel()

	var err error
	if s.httpd != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(ctx, s.cfg.ShutdownGrace)
		defer cancelShutdown()
		err = s.httpd.Shutdown(shutdownCtx)
	}
	s.wg.Wait()
	return err
}

// watchGauges samples the cache occupancy gauges. Session and request
// gauges are updated at their transition points; cache usage changes inside
// the cache itself, so it is polled.
func (s *Server) watchGauges() {
	defer s.wg.Done()
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if s.deps.Cache != nil {
				s.deps.Gauges.SetCacheUsage(s.deps.Cache.Len(), s.deps.Cache.Bytes())
			}
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "diagram-microservice",
		"version": s.cfg.Version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	health := gin.H{
		"status":          "ok",
		"version":         s.cfg.Version,
		"uptime":          time.Since(s.started).Round(time.Second).String(),
		"active_sessions": s.sessions.len(),
		"mermaid_cli":     s.deps.Renderer.Enabled(),
		"chart_executor":  s.deps.Executor.Enabled(),
		"object_store":    s.deps.Uploader != nil && s.deps.Uploader.Enabled(),
	}
	if s.deps.Cache != nil {
		health["cache"] = gin.H{
			"entries": s.deps.Cache.Len(),
			"bytes":   s.deps.Cache.Bytes(),
		}
	}
	if s.deps.Templates != nil {
		health["templates"] = s.deps.Templates.Len()
	}
	c.JSON(http.StatusOK, health)
}

// handleWebSocket upgrades the connection and runs the session. Identity
// params are required and the connection cap is enforced before the
// upgrade, so rejected clients get a plain HTTP status.
func (s *Server) handleWebSocket(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("session_id"))
	userID := strings.TrimSpace(c.Query("user_id"))
	if sessionID == "" || userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id and user_id query parameters are required"})
		return
	}
	if !s.sessions.hasCapacity(sessionID) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "connection limit reached"})
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.deps.Logger.Warn("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}

	sess := newSession(s, sessionID, userID, conn)
	prev, ok := s.sessions.add(sess)
	if !ok {
		// Lost the race for the last slot between the capacity check and
		// the upgrade.
		msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "connection limit reached")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		_ = conn.Close()
		return
	}
	if prev != nil {
		prev.shutdown(websocket.CloseNormalClosure, "session reconnected")
	}

	s.deps.Metrics.ConnectionOpened(c.Request.Context())
	s.deps.Gauges.SetSessionsActive(s.sessions.len())
	s.deps.Logger.Info("session opened", "session_id", sessionID, "user_id", userID)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		sess.run()
	}()
}

func (s *Server) requestStarted() {
	n := s.inFlight.Add(1)
	s.deps.Gauges.SetRequestsInFlight("active", int(n))
}

func (s *Server) requestFinished() {
	n := s.inFlight.Add(-1)
	s.deps.Gauges.SetRequestsInFlight("active", int(n))
}
