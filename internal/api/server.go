package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/polygonid/launchpad-identity/internal/buildinfo"
	"github.com/polygonid/launchpad-identity/internal/core/ports"
	"github.com/polygonid/launchpad-identity/internal/health"
	"github.com/polygonid/launchpad-identity/internal/log"
	"github.com/polygonid/launchpad-identity/internal/metrics"
)

// Server serves the identity API
type Server struct {
	status   ports.IdentityStatusService
	verifier ports.ClaimVerifierService
	health   *health.Status
	metrics  *metrics.Metrics
	origins  []string
}

// NewServer returns the API server. health and metrics may be nil.
func NewServer(status ports.IdentityStatusService, verifier ports.ClaimVerifierService, serverHealth *health.Status, m *metrics.Metrics, corsOrigins []string) *Server {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}
	return &Server{
		status:   status,
		verifier: verifier,
		health:   serverHealth,
		metrics:  m,
		origins:  corsOrigins,
	}
}

// Handler returns the router with every route and middleware installed
func (s *Server) Handler(ctx context.Context) http.Handler {
	mux := chi.NewRouter()
	mux.Use(
		chiMiddleware.RequestID,
		log.ChiMiddleware(ctx),
		chiMiddleware.Recoverer,
		cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
			MaxAge:         300,
		}),
		chiMiddleware.NoCache,
		s.countRequests,
	)

	mux.Get("/status", s.Health)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	mux.Route("/v1/identities/{wallet}", func(r chi.Router) {
		r.Get("/status", s.GetStatus)
		r.Post("/initialize", s.InitializeIdentity)
		r.Post("/kyc", s.RequestKyc)
		r.Post("/refresh", s.RefreshStatus)
		r.Get("/claims/{topic}", s.GetClaimRequest)
	})
	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	return mux
}

// Health reports the reachability of the dependencies and the build revision
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	status := map[string]bool{}
	if s.health != nil {
		status = s.health.Status(r.Context())
	}
	code := http.StatusOK
	for _, ok := range status {
		if !ok {
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, HealthResponse{Status: status, Build: buildinfo.Get()})
}

func (s *Server) countRequests(next http.Handler) http.Handler {
	if s.metrics == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		route := "unknown"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		s.metrics.ObserveRequest(route, strconv.Itoa(code))
	})
}
