package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/mahaj/commune-chat/pkg/auth"
	"github.com/mahaj/commune-chat/pkg/chat"
	"github.com/mahaj/commune-chat/pkg/fanout"
	"github.com/mahaj/commune-chat/pkg/metrics"
	"github.com/mahaj/commune-chat/pkg/model"
)

type profiles interface {
	GetUser(ctx context.Context, userID int64) (model.User, error)
}

type Settings struct {
	MaxFrameSize    int
	SendBuffer      int
	RateLimitBurst  int
	RateLimitRefill time.Duration
	AllowedOrigins  []string
}

// Gateway owns the live connections of this process. Room membership lives
// in the fan-out hub; the gateway only tracks connections for shutdown.
type Gateway struct {
	hub      *fanout.Hub
	chat     *chat.Service
	verifier *auth.Verifier
	users    profiles
	upgrader websocket.Upgrader
	settings Settings
	metrics  *metrics.Metrics
	log      *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	clients map[*Client]struct{}
	closed  bool
}

func NewGateway(hub *fanout.Hub, svc *chat.Service, verifier *auth.Verifier, users profiles, settings Settings, m *metrics.Metrics, log *slog.Logger) *Gateway {
	ctx, cancel := context.WithCancel(context.Background())
	origins := newOriginPolicy(settings.AllowedOrigins, log)
	return &Gateway{
		hub:      hub,
		chat:     svc,
		verifier: verifier,
		users:    users,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     origins.check,
		},
		settings: settings,
		metrics:  m,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		clients:  make(map[*Client]struct{}),
	}
}

// Routes serves the websocket endpoint and a health check.
func (g *Gateway) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/ws", g.ServeWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (g *Gateway) register(c *Client) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	g.clients[c] = struct{}{}
	g.wg.Add(1)
	g.metrics.Connections.Inc()
	g.log.Debug("Client connected", "conn", c.id, "user", c.user.ID)
	return true
}

func (g *Gateway) disconnect(c *Client) {
	rooms := g.hub.LeaveAll(c)
	c.Close()

	g.mu.Lock()
	if _, ok := g.clients[c]; ok {
		delete(g.clients, c)
		g.metrics.Connections.Dec()
	}
	g.mu.Unlock()
	g.log.Debug("Client disconnected", "conn", c.id, "user", c.user.ID, "rooms", len(rooms))
}

// Connections returns the number of registered connections.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.clients)
}

// Shutdown refuses new connections, closes the open ones and waits for their
// readers to finish or ctx to expire.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	g.closed = true
	clients := make([]*Client, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	g.cancel()
	for _, c := range clients {
		c.Close()
	}

	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		g.log.Info("Gateway drained", "connections", len(clients))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
