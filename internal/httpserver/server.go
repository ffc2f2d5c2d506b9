package httpserver

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tinytelemetry/ringbuffer/internal/engine"
	"github.com/tinytelemetry/ringbuffer/internal/metrics"
	"github.com/tinytelemetry/ringbuffer/internal/model"
	"github.com/tinytelemetry/ringbuffer/internal/plugin"
)

// streamBuffer is the per-client queue for /api/stream. A slow client
// drops events rather than stalling the fan-out.
const streamBuffer = 64

// EventEngine is the narrow engine contract required by the HTTP API.
type EventEngine interface {
	SourceName() string
	Running() bool
	Paused() bool
	Buffer() []*model.Event
	Subscribe(fn engine.Subscriber) *engine.Subscription
	Unsubscribe(sub *engine.Subscription)
}

// PluginLister reports loaded plugin state.
type PluginLister interface {
	Statuses() []plugin.Status
}

// Server provides a read-only HTTP API over the event buffer plus the
// Prometheus metrics endpoint.
type Server struct {
	addr      string
	eng       EventEngine
	plugins   PluginLister
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, eng EventEngine, plugins PluginLister) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      addr,
		eng:       eng,
		plugins:   plugins,
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/status", s.handleStatus)
	r.GET("/api/events", s.handleEvents)
	r.GET("/api/plugins", s.handlePlugins)
	r.GET("/api/stream", s.handleStream)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))
	return r
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.router(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(s.startTime).String(),
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"source":   s.eng.SourceName(),
		"running":  s.eng.Running(),
		"paused":   s.eng.Paused(),
		"buffered": len(s.eng.Buffer()),
		"plugins":  len(s.plugins.Statuses()),
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	limit := model.DefaultSnapshot
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	severities, ok := parseSeverities(c.Query("severity"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity"})
		return
	}

	events := filterEvents(s.eng.Buffer(), severities, limit)
	c.JSON(http.StatusOK, gin.H{
		"events": model.WireEvents(events),
		"count":  len(events),
	})
}

func (s *Server) handlePlugins(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plugins": s.plugins.Statuses()})
}

// handleStream pushes live events as server-sent events until the
// client disconnects.
func (s *Server) handleStream(c *gin.Context) {
	severities, ok := parseSeverities(c.Query("severity"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown severity"})
		return
	}

	ch := make(chan *model.Event, streamBuffer)
	sub := s.eng.Subscribe(func(ev *model.Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	defer s.eng.Unsubscribe(sub)

	c.Writer.Header().Set("Cache-Control", "no-cache")

	clientGone := c.Request.Context().Done()
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-clientGone:
			return false
		case <-s.ctx.Done():
			return false
		case ev := <-ch:
			if len(severities) > 0 && !severities[ev.Severity] {
				return true
			}
			c.SSEvent("event", ev.Wire())
			return true
		}
	})
}

// parseSeverities splits a comma-separated severity list. An empty
// string means no filter.
func parseSeverities(raw string) (map[model.Severity]bool, bool) {
	if raw == "" {
		return nil, true
	}
	out := make(map[model.Severity]bool)
	for _, part := range strings.Split(raw, ",") {
		sev := model.Severity(strings.ToUpper(strings.TrimSpace(part)))
		if !sev.Valid() {
			return nil, false
		}
		out[sev] = true
	}
	return out, true
}

// filterEvents keeps the newest limit events matching the severity
// set, preserving oldest-first order.
func filterEvents(events []*model.Event, severities map[model.Severity]bool, limit int) []*model.Event {
	filtered := events
	if len(severities) > 0 {
		filtered = make([]*model.Event, 0, len(events))
		for _, ev := range events {
			if severities[ev.Severity] {
				filtered = append(filtered, ev)
			}
		}
	}
	if limit > 0 && len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	return filtered
}
