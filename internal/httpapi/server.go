// Package httpapi is the daemon's ingest surface: the data layer posts task
// lifecycle events here, and operators read pending reminders, deliveries
// and health.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"remindd/internal/gateway"
	"remindd/internal/notifier"
	"remindd/internal/reminder"
	logx "remindd/pkg/logx"
)

type Config struct {
	Addr         string
	RatePerSec   int // 0 disables the limiter
	Burst        int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Metrics      bool
	// Pprof mounts net/http/pprof under /debug/pprof. Keep Addr on loopback when set.
	Pprof bool
}

// TaskHooks receives decoded task events. *lifecycle.Hooks implements it.
type TaskHooks interface {
	OnCreated(ctx context.Context, t reminder.Task)
	OnUpdated(ctx context.Context, prev, next reminder.Task)
	OnDueDateChanged(ctx context.Context, t reminder.Task)
	OnCompleted(ctx context.Context, taskID string)
	OnDeleted(ctx context.Context, taskID string)
	OnAssigned(ctx context.Context, t reminder.Task, assignee string)
	ScheduleDailySummary(ctx context.Context, userID string, completed, points int)
}

// Reminders is the gateway surface exposed for diagnostics.
type Reminders interface {
	CheckAndRequestPermission(ctx context.Context) gateway.Permission
	ListPending(ctx context.Context) []gateway.Entry
	ClearPending(ctx context.Context) int
}

type Deps struct {
	Hooks     TaskHooks
	Reminders Reminders
	// Deliveries returns recent notifier history; nil hides the route.
	Deliveries func() []notifier.HistoryItem
	// Health adds component snapshots to /healthz.
	Health   func() map[string]any
	Gatherer prometheus.Gatherer
}

func init() { gin.SetMode(gin.ReleaseMode) }

type Server struct {
	log     logx.Logger
	deps    Deps
	engine  *gin.Engine
	limiter *rate.Limiter

	mu  sync.Mutex
	cfg Config
	srv *http.Server
}

func New(cfg Config, deps Deps, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	if deps.Gatherer == nil {
		deps.Gatherer = prometheus.DefaultGatherer
	}
	s := &Server{log: log, deps: deps, cfg: cfg}
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.RatePerSec
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	s.engine = s.routes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(requestID(), accessLog(s.log), recovery(s.log))

	r.GET("/healthz", s.healthz)
	if s.cfg.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	if s.cfg.Pprof {
		mountPprof(r.Group("/debug/pprof"))
	}

	v1 := r.Group("/v1", limit(s.limiter))
	v1.POST("/tasks/events", s.taskEvent)
	v1.POST("/summaries", s.summary)
	v1.GET("/reminders/pending", s.listPending)
	v1.DELETE("/reminders/pending", s.clearPending)
	v1.POST("/permission", s.permission)
	v1.GET("/handles", s.handles)
	if s.deps.Deliveries != nil {
		v1.GET("/deliveries", s.deliveries)
	}
	return r
}

// Start binds the listener and serves in the background. An empty Addr is a no-op.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil || s.cfg.Addr == "" {
		return nil
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.engine,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	s.srv = srv
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server failed", logx.String("addr", ln.Addr().String()), logx.Err(err))
		}
	}()
	s.log.Info("http api listening", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown incomplete", logx.Err(err))
		_ = srv.Close()
	}
}
