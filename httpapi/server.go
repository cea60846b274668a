package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/elimusphere/sphereauth"
	"github.com/elimusphere/sphereauth/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// Request bodies larger than this are rejected.
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to an Engine.
type Server struct {
	engine     *sphereauth.Engine
	logger     *zap.Logger
	metrics    http.Handler
	trustProxy bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and error logger. The default discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetricsHandler mounts h at GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithTrustProxy makes client IP resolution honour X-Forwarded-For and X-Real-IP.
func WithTrustProxy(trust bool) Option {
	return func(s *Server) {
		s.trustProxy = trust
	}
}

// NewServer returns a Server for engine.
func NewServer(engine *sphereauth.Engine, opts ...Option) *Server {
	s := &Server{
		engine: engine,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(ClientIP(s.trustProxy))
	r.Use(RequestLogger(s.logger))
	r.Use(chimw.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		ok(w, "success", map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.Post("/auth/request-reset", s.handleRequestReset)
		r.Post("/auth/reset-password", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireTeacher(s.engine))
			r.Get("/students", s.handleListStudents)
			r.Put("/students/{id}", s.handleUpdateStudent)
		})
	})

	return r
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	decoder := json.NewDecoder(r.Body)
	return decoder.Decode(out)
}
