// Package api provides the HTTP status server of the news bot.
//
// It exposes health and status endpoints, dedup cache operations, a
// classification probe, the Prometheus registry and a WebSocket stream
// of every delivered card.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/choigod1023/american-stock-news-discord-bot/internal/bot"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/classifier"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/config"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/dedup"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/metrics"
	"github.com/choigod1023/american-stock-news-discord-bot/internal/sentiment"
)

// StatusSource reports orchestrator activity.
type StatusSource interface {
	Status() bot.Status
}

// Options holds the collaborators of a Server. Nil collaborators disable
// the routes that need them.
type Options struct {
	Config     *config.Config
	Bot        StatusSource
	Cache      *dedup.Cache
	Classifier *classifier.Classifier
	Metrics    *metrics.Metrics
	Hub        *WSHub
	Logger     *slog.Logger
	Version    string
}

// Server is the HTTP status server.
type Server struct {
	router    chi.Router
	cfg       *config.Config
	bot       StatusSource
	cache     *dedup.Cache
	cls       *classifier.Classifier
	metrics   *metrics.Metrics
	wsHub     *WSHub
	log       *slog.Logger
	version   string
	startedAt time.Time
}

// NewServer creates a configured server with all routes and middleware.
func NewServer(opts Options) *Server {
	if opts.Config == nil {
		opts.Config = &config.Config{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Hub == nil {
		opts.Hub = NewWSHub(opts.Logger)
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.New(opts.Config.Classifier.BreakingKeywords, opts.Config.Classifier.ImportantLikeThreshold)
	}
	s := &Server{
		cfg:       opts.Config,
		bot:       opts.Bot,
		cache:     opts.Cache,
		cls:       opts.Classifier,
		metrics:   opts.Metrics,
		wsHub:     opts.Hub,
		log:       opts.Logger,
		version:   opts.Version,
		startedAt: time.Now(),
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub, which is also a delivery destination.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("status server listening", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down status server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/config", s.handleGetConfig)

		r.Get("/cache", s.handleCacheStats)
		r.Post("/cache/backup", s.handleCacheBackup)
		r.Delete("/cache", s.handleCacheClear)

		r.Post("/classify", s.handleClassify)
	})

	return r
}

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /api/v1/status.
type StatusResponse struct {
	Version   string      `json:"version"`
	Uptime    string      `json:"uptime"`
	WSClients int         `json:"ws_clients"`
	Bot       *bot.Status `json:"bot,omitempty"`
}

// ClassifyRequest is the body of POST /api/v1/classify.
type ClassifyRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	Source  string   `json:"source"` // "news" (default) or "community"
	Likes   int      `json:"likes"`
	Views   int      `json:"views"`
	Tags    []string `json:"tags"`
}

// ClassifyResponse reports how a hypothetical item would be delivered.
type ClassifyResponse struct {
	Level       string  `json:"level"`
	Label       string  `json:"label"`
	Pinned      bool    `json:"pinned"`
	DigestStyle bool    `json:"digest_style"`
	CleanTitle  string  `json:"clean_title"`
	Sentiment   float64 `json:"sentiment"`
	Mood        string  `json:"mood"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":  "ok",
			"service": "newsbot",
			"time":    time.Now().UTC().Format(time.RFC3339),
		},
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:   s.version,
		Uptime:    time.Since(s.startedAt).Round(time.Second).String(),
		WSClients: s.wsHub.ClientCount(),
	}
	if s.bot != nil {
		st := s.bot.Status()
		resp.Bot = &st
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: resp})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.cache.Stats()})
}

func (s *Server) handleCacheBackup(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	dir, err := s.cache.Backup()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "backup failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: map[string]string{"backup_dir": dir}})
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if s.cache == nil {
		writeError(w, http.StatusServiceUnavailable, "cache not configured")
		return
	}
	if err := s.cache.Clear(); err != nil {
		writeError(w, http.StatusInternalServerError, "clear failed: "+err.Error())
		return
	}
	s.log.Info("cache cleared via API")
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.cache.Stats()})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	item := classifyItem(req)
	c := s.cls.Classify(item)
	score, _ := sentiment.ScoreItem(item)
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: ClassifyResponse{
			Level:       string(c.Level),
			Label:       classifier.LevelLabel(c.Level),
			Pinned:      c.Pinned(),
			DigestStyle: c.DigestStyle,
			CleanTitle:  classifier.CleanTitle(item.Title),
			Sentiment:   score,
			Mood:        sentiment.Label(score),
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{Success: false, Error: msg})
}
