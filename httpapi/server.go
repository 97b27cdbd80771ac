// Package httpapi is the thin HTTP surface over the tenant directory,
// request store, and delivery gateway. Handlers validate a strict
// per-endpoint schema, call one service method, and map its result onto
// the wire.
package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"caseflow/delivery"
	"caseflow/research"
	"caseflow/tenant"
)

type ctxKey int

const tenantIDKey ctxKey = 0

// Server wires the protected endpoints to their services.
type Server struct {
	tenants  *tenant.Service
	research *research.Service
	gateway  *delivery.Service
	log      *zap.Logger
}

// NewServer creates the HTTP surface.
func NewServer(tenants *tenant.Service, researchSvc *research.Service, gateway *delivery.Service, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		tenants:  tenants,
		research: researchSvc,
		gateway:  gateway,
		log:      log,
	}
}

// Router assembles the route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/api/discovery/authenticate", s.handleAuthenticate)

	r.Group(func(r chi.Router) {
		r.Use(s.requireClaim)
		r.Post("/api/discovery/requests", s.handleCreateRequest)
		r.Post("/api/discovery/requests/cover", s.handleFetchCover)
		r.Post("/api/discovery/requests/documents", s.handleFetchDocuments)
		r.Post("/api/discovery/processes/progress", s.handleFetchProgress)
	})

	// Superseded by signed URLs embedded in the documents response.
	r.Get("/documents/*", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "direct document serving is disabled"})
	})

	return r
}

// requireClaim verifies the presented claim and stores the acting tenant
// id on the request context. The Authorization header may carry the bare
// claim or the conventional Bearer prefix.
func (s *Server) requireClaim(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		tenantID, err := s.tenants.VerifyClaim(raw)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), tenantIDKey, tenantID)))
	})
}

func actingTenant(ctx context.Context) string {
	id, _ := ctx.Value(tenantIDKey).(string)
	return id
}
