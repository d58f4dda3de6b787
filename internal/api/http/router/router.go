package router

import (
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dtroode/cardbook-server/internal/api/http/handler"
	"github.com/dtroode/cardbook-server/internal/api/http/middleware"
	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

// Session is the session service surface exposed over HTTP.
type Session interface {
	handler.SessionService
	middleware.Authenticator
}

// Options tunes the HTTP surface.
type Options struct {
	Version        string
	MaxBodyBytes   int64
	UploadMaxBytes int64
	TrustProxy     bool
	Ready          model.ReadyFunc
	// Metrics is optional.
	Metrics middleware.Observer
}

// Router builds the HTTP handler tree.
type Router struct {
	session        Session
	avatars        handler.AvatarService
	contextManager model.ContextManager
	opts           Options
	logger         *logger.Logger
}

// New creates new HTTP Router instance.
func New(
	session Session,
	avatars handler.AvatarService,
	contextManager model.ContextManager,
	opts Options,
	logger *logger.Logger,
) *Router {
	return &Router{
		session:        session,
		avatars:        avatars,
		contextManager: contextManager,
		opts:           opts,
		logger:         logger,
	}
}

// Register returns the root handler with routes and middleware installed.
func (r *Router) Register() http.Handler {
	mux := http.NewServeMux()

	r.registerAuthRoutes(mux)
	r.registerUploadRoutes(mux)
	r.registerSystemRoutes(mux)

	var h http.Handler = mux
	h = middleware.NewLogging(r.logger).Handle(h)
	if r.opts.Metrics != nil {
		h = middleware.NewMetrics(r.opts.Metrics).Handle(h)
	}

	return otelhttp.NewHandler(h, "cardbook-http",
		otelhttp.WithSpanNameFormatter(func(_ string, req *http.Request) string {
			return req.Method + " " + req.URL.Path
		}),
	)
}

func (r *Router) registerAuthRoutes(mux *http.ServeMux) {
	auth := handler.NewAuth(r.session, r.opts.MaxBodyBytes, r.opts.TrustProxy, r.logger)

	mux.HandleFunc("POST /auth/login", auth.Login)
	mux.HandleFunc("POST /auth/logout", auth.Logout)
	mux.HandleFunc("GET /auth/whoami", auth.WhoAmI)
	mux.HandleFunc("POST /auth/refresh", auth.Refresh)

	mux.HandleFunc("POST /api/v1/auth/login", auth.Login)
	mux.HandleFunc("POST /api/v1/auth/logout", auth.Logout)
	mux.HandleFunc("GET /api/v1/auth/user", auth.WhoAmI)
	mux.HandleFunc("POST /api/v1/auth/refresh", auth.Refresh)
}

func (r *Router) registerUploadRoutes(mux *http.ServeMux) {
	upload := handler.NewUpload(r.avatars, r.contextManager, r.opts.UploadMaxBytes, r.logger)
	authenticate := middleware.NewAuthenticate(r.session, r.contextManager, r.logger)

	mux.Handle("POST /api/v1/upload/avatar", authenticate.Handle(http.HandlerFunc(upload.Avatar)))
}

func (r *Router) registerSystemRoutes(mux *http.ServeMux) {
	system := handler.NewSystem(r.opts.Version, r.opts.Ready, r.logger)

	mux.HandleFunc("GET /healthz", system.Healthz)
	mux.HandleFunc("GET /readyz", system.Readyz)
	mux.HandleFunc("GET /{$}", system.Index)
	mux.HandleFunc("/", system.NotFound)
}
