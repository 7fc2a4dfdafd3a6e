// Package httpapi implements the HTTP admin surface: login, the current
// user, password change, and user CRUD, all JSON-over-HTTP and guarded by
// the bearer tokens internal/authn issues. It is entirely separate from
// the RDCleanPath WebSocket path, which mounts alongside it at /rdp-proxy.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rdcleanpath/gateway/internal/authn"
	"github.com/rdcleanpath/gateway/internal/store"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
)

// API holds the dependencies every handler needs.
type API struct {
	store  *store.Store
	issuer *authn.Issuer
	log    *logrus.Logger
}

// New constructs an API bound to store and issuer.
func New(s *store.Store, issuer *authn.Issuer, log *logrus.Logger) *API {
	return &API{store: s, issuer: issuer, log: log}
}

// NewRouter builds the full admin router: user CRUD, auth, metrics, and
// (if wsHandler is non-nil) the /rdp-proxy WebSocket upgrade route, behind
// a permissive CORS layer matching the original service's
// CorsLayer::permissive().
func NewRouter(a *API, wsHandler http.Handler) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/auth/login", a.Login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/me", a.requireAuth(a.Me)).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/password", a.requireAuth(a.ChangePassword)).Methods(http.MethodPut)

	r.HandleFunc("/api/users", a.requireAdmin(a.ListUsers)).Methods(http.MethodGet)
	r.HandleFunc("/api/users", a.requireAdmin(a.CreateUser)).Methods(http.MethodPost)
	r.HandleFunc("/api/users/{id}", a.requireAdmin(a.GetUser)).Methods(http.MethodGet)
	r.HandleFunc("/api/users/{id}", a.requireAdmin(a.UpdateUser)).Methods(http.MethodPut)
	r.HandleFunc("/api/users/{id}", a.requireAdmin(a.DeleteUser)).Methods(http.MethodDelete)

	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if wsHandler != nil {
		r.Handle("/rdp-proxy", wsHandler).Methods(http.MethodGet)
	}

	handler := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}).Handler(r)

	return recoverMiddleware(a.log, handler)
}

// NewServer returns an http.Server bound to addr (cfg.ListenAddr in
// cmd/rdgateway, which starts it).
func NewServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
