// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	healthfeature "github.com/dalemusser/opportunityhub/internal/app/features/health"
	opportunitiesfeature "github.com/dalemusser/opportunityhub/internal/app/features/opportunities"
	userstore "github.com/dalemusser/opportunityhub/internal/app/store/users"
	"github.com/dalemusser/opportunityhub/internal/app/system/auth"
	"github.com/dalemusser/opportunityhub/internal/app/system/limits"
	"github.com/dalemusser/opportunityhub/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. Principals are resolved once per request by the
// auth manager; feature routers apply their own sign-in and role gates.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	svc := deps.services
	if svc == nil || svc.opportunities == nil {
		return nil, errors.New("bootstrap: Startup has not run")
	}

	authMgr, err := buildAuth(coreCfg, appCfg, deps, logger)
	if err != nil {
		logger.Error("auth init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(appCfg.CORSOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestSize(limits.MaxRequestBody))
	r.Use(authMgr.Load)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, coreCfg.Env, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Mount("/api/health", healthfeature.Routes(healthHandler))

	oppHandler := opportunitiesfeature.NewHandler(svc.opportunities, svc.saved, svc.uploader, svc.events, logger)
	if svc.writeLimit != nil {
		oppHandler.WriteLimit = ratelimit.Middleware(svc.writeLimit, logger)
	}
	r.Mount("/api/opportunities", opportunitiesfeature.Routes(oppHandler))

	// Locally stored attachments are served from the path they were stored under.
	if local, ok := svc.files.(*storage.Local); ok && appCfg.StorageLocalURL != "" {
		prefix := "/" + strings.Trim(appCfg.StorageLocalURL, "/")
		r.Get(prefix+"/*", serveLocalFile(local, logger))
	}

	return r, nil
}

func buildAuth(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (*auth.Manager, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"

	var sessions *auth.Sessions
	if appCfg.SessionKey != "" || !secure {
		s, err := auth.NewSessions(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, secure, logger)
		if err != nil {
			return nil, err
		}
		sessions = s
	}

	tokens := auth.NewTokenIssuer(appCfg.JWTSecret)
	if tokens == nil {
		logger.Info("jwt_secret not set; bearer tokens disabled")
	}

	return auth.NewManager(tokens, sessions, userstore.NewFetcher(deps.MongoDatabase, logger), logger), nil
}

// serveLocalFile writes the object named by the route wildcard. Directories
// and paths outside the storage root are not found.
func serveLocalFile(local *storage.Local, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "*")
		fullPath, err := local.GetFullPath(key)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		info, err := os.Stat(fullPath)
		if err != nil || info.IsDir() {
			if err != nil && !os.IsNotExist(err) {
				logger.Warn("attachment stat failed", zap.String("key", key), zap.Error(err))
			}
			http.NotFound(w, r)
			return
		}
		http.ServeFile(w, r, fullPath)
	}
}

func splitOrigins(raw string) []string {
	var out []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}

func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
