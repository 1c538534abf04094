// Package web serves the turn watcher to the agent layer: status and
// outcome history over HTTP, live pipeline events over a websocket.
package web

import (
	"context"
	"log/slog"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-pocketbench/pkg/hub"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/pipeline"
	"github.com/teslashibe/go-pocketbench/pkg/store"
	"github.com/teslashibe/go-pocketbench/pkg/turn"
)

// recentLimit bounds the in-memory outcome buffer.
const recentLimit = 100

// History is the persisted outcome log.
type History interface {
	Recent(ctx context.Context, n int) ([]store.OutcomeRecord, error)
	Stats(ctx context.Context) (store.Stats, error)
}

// Status is the watcher state as seen by the agent.
type Status struct {
	Session     uuid.UUID            `json:"session"`
	Turn        int                  `json:"turn"`
	State       turn.State           `json:"state"`
	LastEvent   pipeline.EventType   `json:"last_event,omitempty"`
	Turns       int                  `json:"turns"`
	LastOutcome *outcome.MoveOutcome `json:"last_outcome,omitempty"`
	Clients     int                  `json:"clients"`
}

// Server is the HTTP and websocket front end. It implements
// pipeline.Publisher.
type Server struct {
	app    *fiber.App
	events *hub.Hub
	logger *slog.Logger

	history  History
	tuning   *pipeline.Tuning
	settings interface{}

	mu     sync.RWMutex
	status Status
	recent []pipeline.Event
}

// Option configures a Server.
type Option func(*Server)

// WithHistory serves /api/outcomes from persisted history instead of the
// in-memory buffer.
func WithHistory(h History) Option {
	return func(s *Server) { s.history = h }
}

// WithTuning exposes the live turn parameters on /api/turn.
func WithTuning(t *pipeline.Tuning) Option {
	return func(s *Server) { s.tuning = t }
}

// WithSettings exposes v (the loaded configuration) on /api/config.
func WithSettings(v interface{}) Option {
	return func(s *Server) { s.settings = v }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer builds the routes.
func NewServer(opts ...Option) *Server {
	s := &Server{
		events: hub.New("events"),
		logger: slog.Default().With("component", "web"),
		recent: make([]pipeline.Event, 0, recentLimit),
	}
	for _, opt := range opts {
		opt(s)
	}

	app := fiber.New(fiber.Config{
		AppName:               "pocketbench",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/outcomes", s.handleOutcomes)
	api.Get("/stats", s.handleStats)
	api.Get("/config", s.handleConfig)
	api.Get("/turn", s.handleGetTurn)
	api.Put("/turn", s.handleUpdateTurn)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/events", websocket.New(s.handleEventsWS))

	s.app = app
	return s
}

// App returns the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Serve runs the event hub and serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go s.events.Run(ctx)
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			s.logger.Warn("shutdown", "err", err)
		}
	}()
	s.logger.Info("web api listening", "addr", ln.Addr().String())
	return s.app.Listener(ln)
}

// ListenAndServe listens on addr (e.g. ":8080") and serves until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Publish records e and forwards it to websocket subscribers.
func (s *Server) Publish(e pipeline.Event) {
	s.mu.Lock()
	s.status.Session = e.Session
	s.status.Turn = e.Turn
	s.status.State = e.State
	s.status.LastEvent = e.Type
	if e.Type == pipeline.EventTurnStarted {
		s.status.Turns++
	}
	if e.Type == pipeline.EventOutcome && e.Outcome != nil {
		o := *e.Outcome
		s.status.LastOutcome = &o
		if len(s.recent) == recentLimit {
			s.recent = append(s.recent[:0], s.recent[1:]...)
		}
		s.recent = append(s.recent, e)
	}
	s.mu.Unlock()

	if err := s.events.BroadcastJSON(string(e.Type), e); err != nil {
		s.logger.Warn("encode event", "type", e.Type, "err", err)
	}
}

// Status returns a snapshot of the watcher state.
func (s *Server) Status() Status {
	s.mu.RLock()
	st := s.status
	s.mu.RUnlock()
	st.Clients = s.events.ClientCount()
	return st
}
