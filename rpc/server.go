package rpc

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"hoperise/core"
	"hoperise/indexer"
	"hoperise/rpc/middleware"
)

// Config tunes the HTTP surface.
type Config struct {
	Auth        middleware.AuthConfig
	RateLimit   middleware.RateLimit
	LogRequests bool
}

// Server exposes the node over JSON-RPC, health, metrics and a websocket
// event stream.
type Server struct {
	node    *core.Node
	indexer *indexer.Indexer
	auth    *middleware.Authenticator
	limiter *middleware.RateLimiter
	obs     *middleware.Observability
	logger  *slog.Logger
	routes  map[string]method
	handler http.Handler
}

func NewServer(node *core.Node, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		node:    node,
		auth:    middleware.NewAuthenticator(cfg.Auth),
		limiter: middleware.NewRateLimiter("rpc", cfg.RateLimit, logger),
		obs:     middleware.NewObservability(middleware.ObservabilityConfig{LogRequests: cfg.LogRequests}, logger),
		logger:  logger,
	}
	s.routes = s.methods()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Group(func(r chi.Router) {
		r.Use(s.obs.Middleware("rpc"))
		r.With(s.limiter.Middleware).Post("/rpc", s.handle)
		r.Get("/healthz", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", s.obs.MetricsHandler())
	})
	r.With(s.limiter.Middleware).Get("/ws/events", s.handleEventsWS)
	s.handler = otelhttp.NewHandler(r, "hoperise.rpc")
	return s
}

// SetIndexer serves campaign_listEvents from the persistent projection.
func (s *Server) SetIndexer(idx *indexer.Indexer) { s.indexer = idx }

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start serves on addr until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting JSON-RPC server", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type healthJSON struct {
	Status string     `json:"status"`
	Commit commitJSON `json:"commit"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, healthJSON{Status: "ok", Commit: commitFrom(s.node.Head())})
}
