package server

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kapu/netfolio/internal/catalog"
	"github.com/kapu/netfolio/internal/domain"
	"github.com/kapu/netfolio/internal/middleware"
	"github.com/kapu/netfolio/pkg/errors"
	"github.com/kapu/netfolio/web"
)

// CatalogSource is satisfied by *catalog.Store.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// ChatAssistant is satisfied by *ai.PortfolioAssistant.
type ChatAssistant interface {
	Ask(ctx context.Context, query string) (*domain.ChatReply, error)
}

// ReadinessCheck probes one backing service for /api/ready.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type Config struct {
	BasePath      string
	ResumeFile    string
	LoadingDelay  time.Duration
	ChatRateLimit int
}

type Dependencies struct {
	Catalog   CatalogSource
	Assistant ChatAssistant
	Checks    []ReadinessCheck
	Logger    *zap.Logger
}

type Server struct {
	cfg       Config
	catalog   CatalogSource
	assistant ChatAssistant
	checks    []ReadinessCheck
	pages     *template.Template
	resume    []byte
	started   time.Time
	upgrader  websocket.Upgrader
	logger    *zap.Logger
}

func New(cfg Config, deps Dependencies) (*Server, error) {
	if deps.Catalog == nil {
		return nil, fmt.Errorf("catalog source must not be nil")
	}
	if deps.Assistant == nil {
		return nil, fmt.Errorf("chat assistant must not be nil")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if cfg.ChatRateLimit <= 0 {
		cfg.ChatRateLimit = 20
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	resume := web.Resume()
	if cfg.ResumeFile != "" {
		resume, err = os.ReadFile(cfg.ResumeFile)
		if err != nil {
			return nil, fmt.Errorf("read resume: %w", err)
		}
	}

	return &Server{
		cfg:       cfg,
		catalog:   deps.Catalog,
		assistant: deps.Assistant,
		checks:    deps.Checks,
		pages:     pages,
		resume:    resume,
		started:   time.Now(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: deps.Logger,
	}, nil
}

// Handler returns the full router, mounted under BasePath when one is configured.
func (s *Server) Handler() http.Handler {
	routes := s.routes()
	if s.cfg.BasePath == "" {
		return routes
	}

	r := chi.NewRouter()
	r.Mount(s.cfg.BasePath, routes)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, s.cfg.BasePath+"/", http.StatusFound)
	})
	return r
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(s.logger))
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.SecurityHeaders)

	r.Get("/", s.handleIndex)
	r.Get("/browse", s.handleBrowse)
	r.Get("/resume.pdf", s.handleResume)
	r.Handle("/static/*", s.staticHandler())
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/profiles", s.handleProfiles)
		r.Get("/hero", s.handleHero)
		r.Get("/hero/videos", s.handleHeroVideos)
		r.Get("/about", s.handleAbout)
		r.Get("/rows", s.handleRows)
		r.Get("/rows/{id}", s.handleRow)
		r.Get("/cards/{id}", s.handleCard)
		r.Get("/skills", s.handleSkills)
		r.Get("/search", s.handleSearch)

		r.Group(func(r chi.Router) {
			r.Use(middleware.ChatRateLimit(s.cfg.ChatRateLimit))
			r.Post("/chat", s.handleChat)
			r.Get("/chat/ws", s.handleChatSocket)
		})

		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
		r.Get("/ready", s.handleReady)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "not found")
	})

	return r
}

func (s *Server) staticHandler() http.Handler {
	files := http.FileServer(http.FS(web.Static()))
	return http.StripPrefix(s.cfg.BasePath+"/static", files)
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes a JSON error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondAppError maps err to its HTTP status. Messages of 5xx errors stay in the log.
func (s *Server) respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.StatusCode(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	respondError(w, status, errors.PublicMessage(err))
}
