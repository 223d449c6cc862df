package httpserver

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pastebox/internal/auth"
	"pastebox/internal/domain"
	"pastebox/internal/metrics"
	"pastebox/internal/records"
	"pastebox/internal/users"
)

// TokenVerifier turns a bearer token into the caller's identity.
type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// Config captures server configuration.
type Config struct {
	Records    *records.Service
	Users      *users.Service
	Tokens     TokenVerifier
	Metrics    *metrics.Metrics
	MaxBytes   int64
	TrustProxy bool
	Logger     *slog.Logger
}

// Server wraps HTTP handling logic.
type Server struct {
	records    *records.Service
	users      *users.Service
	tokens     TokenVerifier
	metrics    *metrics.Metrics
	router     chi.Router
	maxBytes   int64
	trustProxy bool
	logger     *slog.Logger
}

// New constructs a new Server instance.
func New(cfg Config) (*Server, error) {
	if cfg.Records == nil {
		return nil, errors.New("records service required")
	}
	if cfg.Users == nil {
		return nil, errors.New("users service required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("token verifier required")
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 1_048_576
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	srv := &Server{
		records:    cfg.Records,
		users:      cfg.Users,
		tokens:     cfg.Tokens,
		metrics:    cfg.Metrics,
		router:     chi.NewRouter(),
		maxBytes:   cfg.MaxBytes,
		trustProxy: cfg.TrustProxy,
		logger:     cfg.Logger,
	}
	srv.routes()
	return srv, nil
}

// Handler returns the underlying router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	r.Use(middleware.RequestID)
	if s.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(s.instrument)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "application/json", "text/plain"))
	r.Use(s.authenticate)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Post("/auth/login", s.handleLogin)

		api.Route("/users", func(ur chi.Router) {
			ur.Post("/", s.handleRegister)
			ur.Get("/{userID}/confirm", s.handleConfirm)
			ur.Group(func(pr chi.Router) {
				pr.Use(requireAuth)
				pr.Get("/me", s.handleMe)
				pr.Get("/me/records", s.handleMyRecords)
				pr.Post("/{userID}/records/{recordID}/like", s.handleLike)
				pr.Post("/{userID}/records/{recordID}/dislike", s.handleDislike)
			})
		})

		api.Route("/records", func(rr chi.Router) {
			rr.Get("/", s.handleListPublic)
			rr.With(requireAuth).Post("/", s.handleCreate)
			rr.Route("/id/{recordID}", func(ir chi.Router) {
				ir.Get("/", s.handleGetByID)
				ir.With(requireAuth).Put("/", s.handleUpdate)
				ir.With(requireAuth).Delete("/", s.handleDelete)
			})
			rr.Get("/{token}", s.handleGetByToken)
			rr.Get("/{token}/raw", s.handleRaw)
			rr.Get("/{token}/qr", s.handleQR)
		})

		api.Route("/admin/users", func(ar chi.Router) {
			ar.Use(requireRole(domain.RoleAdmin))
			ar.Get("/", s.handleAdminList)
			ar.Get("/{userID}", s.handleAdminGet)
			ar.Patch("/{userID}", s.handleAdminUpdate)
			ar.Delete("/{userID}", s.handleAdminDelete)
			ar.Delete("/by-username/{username}", s.handleAdminDeleteByUsername)
		})
	})
}
