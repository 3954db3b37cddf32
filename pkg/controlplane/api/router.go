package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/cfdpgo/entity/internal/logger"
	"github.com/cfdpgo/entity/pkg/cfdp/host"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig"
	"github.com/cfdpgo/entity/pkg/cfdp/remoteconfig/store"
	"github.com/cfdpgo/entity/pkg/controlplane/api/auth"
	"github.com/cfdpgo/entity/pkg/controlplane/api/handlers"
	apimw "github.com/cfdpgo/entity/pkg/controlplane/api/middleware"
)

// NewRouter builds the chi router for the control-plane API.
//
// Routes:
//   - GET  /healthz                              - liveness probe, unauthenticated
//   - GET  /v1/remote-configs                     - list remote-entity configs
//   - GET  /v1/remote-configs/{entityID}           - read one remote-entity config
//   - PUT  /v1/remote-configs/{entityID}           - create/replace one remote-entity config (admin)
//   - DEL  /v1/remote-configs/{entityID}           - remove one remote-entity config (admin)
//   - GET  /v1/schema/remote-config                - JSON schema for the PUT body
//   - GET  /v1/transactions                        - list in-flight transaction status snapshots
//   - POST /v1/transactions                        - submit a Put.request (admin)
//   - GET  /v1/transactions/{sourceEntity}/{seq}   - transaction status snapshot
//   - POST /v1/transactions/{sourceEntity}/{seq}/cancel - request Notice of Cancellation (admin)
func NewRouter(manager *host.Manager, db *store.GORMStore, table *remoteconfig.Table, jwtSvc *auth.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler()
	r.Get("/healthz", healthHandler.Liveness)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/healthz", http.StatusTemporaryRedirect)
	})

	remoteConfigHandler := handlers.NewRemoteConfigHandler(db, table)
	transactionHandler := handlers.NewTransactionHandler(manager)
	schemaHandler := handlers.NewSchemaHandler()

	r.Route("/v1", func(r chi.Router) {
		r.Use(apimw.JWTAuth(jwtSvc))

		r.Get("/schema/remote-config", schemaHandler.RemoteConfig)

		r.Route("/remote-configs", func(r chi.Router) {
			r.Get("/", remoteConfigHandler.List)
			r.Get("/{entityID}", remoteConfigHandler.Get)
			r.Group(func(r chi.Router) {
				r.Use(apimw.RequireAdmin())
				r.Put("/{entityID}", remoteConfigHandler.Put)
				r.Delete("/{entityID}", remoteConfigHandler.Delete)
			})
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", transactionHandler.List)
			r.Group(func(r chi.Router) {
				r.Use(apimw.RequireAdmin())
				r.Post("/", transactionHandler.Submit)
			})
			r.Route("/{sourceEntity}/{seq}", func(r chi.Router) {
				r.Get("/", transactionHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(apimw.RequireAdmin())
					r.Post("/cancel", transactionHandler.Cancel)
				})
			})
		})
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := chimw.GetReqID(r.Context())

		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logger.Debug("API request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
