package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/viant/accessflow/metrics"
	"github.com/viant/accessflow/model/identity"
	svcidentity "github.com/viant/accessflow/service/identity"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	Resolver       svcidentity.Resolver
	RateLimiter    *RateLimiter
	AllowedOrigins []string
	Tracing        bool
	Logger         *slog.Logger
}

// SetupRoutes configures API routes
func SetupRoutes(router *mux.Router, h *Handler, options *RouterOptions) {
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := router.NewRoute().Subrouter()
	api.Use(Authenticate(options.Resolver, options.Logger))
	api.HandleFunc("/me", h.Me).Methods(http.MethodGet)
	api.HandleFunc("/access-requests", h.CreateRequest).Methods(http.MethodPost)
	api.HandleFunc("/access-requests", h.ListRequests).Methods(http.MethodGet)
	api.HandleFunc("/access-requests/{id}", h.GetRequest).Methods(http.MethodGet)
	api.HandleFunc("/audit", h.ListAudit).Methods(http.MethodGet)

	decisions := api.NewRoute().Subrouter()
	if options.RateLimiter != nil {
		decisions.Use(options.RateLimiter.Middleware)
	}
	decisions.HandleFunc("/access-requests/{id}/approve", h.Approve).Methods(http.MethodPost)
	decisions.HandleFunc("/access-requests/{id}/reject", h.Reject).Methods(http.MethodPost)
	decisions.HandleFunc("/access-requests/{id}/decision", h.Decide).Methods(http.MethodPost)
}

// NewRouter builds the HTTP handler: routes, request id, recovery, access
// log and metrics, then CORS and, when enabled, OpenTelemetry server spans.
func NewRouter(h *Handler, options *RouterOptions) http.Handler {
	if options == nil {
		options = &RouterOptions{}
	}
	if options.Logger == nil {
		options.Logger = h.logger
	}
	if options.Resolver == nil {
		options.Resolver = svcidentity.Func(func(ctx context.Context, r *http.Request) (*identity.Identity, error) {
			return nil, svcidentity.ErrNoCredential
		})
	}
	router := mux.NewRouter()
	router.Use(RequestID, AccessLog(options.Logger), Recover(options.Logger))
	router.NotFoundHandler = RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondStructuredError(w, http.StatusNotFound, ErrCodeNotFound, "route not found", RequestIDFromContext(r.Context()), nil)
	}))
	SetupRoutes(router, h, options)

	origins := options.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	var handler http.Handler = cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", svcidentity.HeaderUserEmail, svcidentity.HeaderAPIKey, RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: len(options.AllowedOrigins) > 0,
	}).Handler(router)
	if options.Tracing {
		handler = otelhttp.NewHandler(handler, "http.request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	}
	return handler
}
