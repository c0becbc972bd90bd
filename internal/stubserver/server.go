// Package stubserver is an in-memory stand-in for the voting backend. It
// speaks the same JSON endpoints as the real server so the kiosk can be run
// and tested without the device or the election database.
package stubserver

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tinytelemetry/fingervote/internal/model"
	"github.com/tinytelemetry/fingervote/internal/scanapi"
)

// Config tunes the stub backend.
type Config struct {
	Addr           string
	TriggerTTL     time.Duration
	TriggerRate    float64 // triggers per second
	TriggerBurst   int
	MatchThreshold float64
	VotingOpen     bool
	Voters         []Voter
	Paths          scanapi.Paths
	Now            func() time.Time
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = "127.0.0.1:8000"
	}
	if c.TriggerTTL == 0 {
		c.TriggerTTL = model.DefaultMaxWait
	}
	if c.TriggerRate <= 0 {
		c.TriggerRate = 5
	}
	if c.TriggerBurst <= 0 {
		c.TriggerBurst = 10
	}
	if c.MatchThreshold <= 0 {
		c.MatchThreshold = 0.85
	}
	if c.Voters == nil {
		c.Voters = DefaultVoters()
	}
	def := scanapi.DefaultPaths()
	if c.Paths.TriggerScan == "" {
		c.Paths.TriggerScan = def.TriggerScan
	}
	if c.Paths.ScanResult == "" {
		c.Paths.ScanResult = def.ScanResult
	}
	if c.Paths.Verify == "" {
		c.Paths.Verify = def.Verify
	}
	if c.Paths.LatestFingerprint == "" {
		c.Paths.LatestFingerprint = def.LatestFingerprint
	}
	if c.Paths.PendingTemplates == "" {
		c.Paths.PendingTemplates = def.PendingTemplates
	}
	if c.Paths.ClearSession == "" {
		c.Paths.ClearSession = def.ClearSession
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Server serves the stub backend over HTTP.
type Server struct {
	cfg      Config
	state    *state
	limiter  *rate.Limiter
	logger   zerolog.Logger
	engine   *gin.Engine
	server   *http.Server
	listener net.Listener
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewServer(cfg Config, logger zerolog.Logger) *Server {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:     cfg,
		state:   newState(cfg),
		limiter: rate.NewLimiter(rate.Limit(cfg.TriggerRate), cfg.TriggerBurst),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLog(), s.csrfCookie())

	r.GET("/", s.handleIndex)
	r.GET("/api/health", s.handleHealth)

	api := r.Group("", s.csrfCheck())
	api.POST(s.cfg.Paths.ClearSession, s.handleClearSession)
	api.POST(s.cfg.Paths.TriggerScan, s.handleTriggerScan)
	api.POST(s.cfg.Paths.Verify, s.handleVerify)
	r.GET(s.cfg.Paths.ScanResult, s.handleScanResult)
	r.GET(s.cfg.Paths.LatestFingerprint, s.handleLatestFingerprint)
	r.GET(s.cfg.Paths.PendingTemplates, s.handlePendingTemplates)

	// Device side, exempt from CSRF like the hardware endpoints.
	r.GET("/api/get-scan-trigger/", s.handleGetScanTrigger)
	dev := r.Group("/api/dev")
	dev.POST("/scan", s.handleDeviceScan)
	dev.POST("/voting-session", s.handleVotingSession)
	dev.POST("/mark-voted", s.handleMarkVoted)
	return r
}

// Start begins serving on the configured address.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.engine,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	go s.server.Serve(ln)
	s.logger.Info().Str("addr", ln.Addr().String()).Msg("stub backend listening")
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}
