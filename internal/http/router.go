// Package httpapi wires the Gin transport to the application services,
// middleware and route handlers.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-rag-backend/internal/config"
	"github.com/tbourn/go-rag-backend/internal/http/handlers"
	"github.com/tbourn/go-rag-backend/internal/http/middleware"
	"github.com/tbourn/go-rag-backend/internal/repo"
	"github.com/tbourn/go-rag-backend/internal/services"
)

// Deps are the collaborators of the router.
type Deps struct {
	// DB backs the idempotency pre-check. Nil disables replay detection at
	// the edge; services still replay on their own.
	DB       *gorm.DB
	Services handlers.Services
	// Registry receives the HTTP collectors; Gatherer serves /metrics.
	// Both default to the Prometheus default registry.
	Registry prometheus.Registerer
	Gatherer prometheus.Gatherer
}

// streamPathRegex matches the SSE endpoint, which must not be compressed.
const streamPathRegex = `.*/chat/sessions/[^/]+/messages$`

// RegisterRoutes attaches middleware and endpoints to r.
//
// Middleware order:
//  1. OpenTelemetry
//  2. RequestID
//  3. RedactingLogger
//  4. Recovery
//  5. Body size limit
//  6. Metrics
//  7. Idempotency validator (before the limiter so replays bypass it)
//  8. Rate limiter
//  9. gzip, CORS, security headers
func RegisterRoutes(r *gin.Engine, cfg config.Config, d Deps) {
	r.HandleMethodNotAllowed = true

	reg, gatherer := d.Registry, d.Gatherer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	apiBase := cfg.APIBasePath
	if apiBase == "/" {
		apiBase = ""
	}

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
		SkipPaths:   []string{"/health", "/metrics"},
	}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(cfg.MaxUploadBytes))

	r.Use(middleware.NewHTTPMetrics(reg).Handler())
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			MaxLen: 200,
			Scopes: map[string]string{
				http.MethodPost + " " + apiBase + "/documents/upload": services.ScopeDocumentUpload,
				http.MethodPost + " " + apiBase + "/chat/sessions":    services.ScopeSessionCreate,
			},
		},
		idempotencyLookup(d.DB),
	))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientIP())
	r.Use(rl.Handler())

	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{streamPathRegex})))

	corsCfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match", middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{
			"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed,
		},
		MaxAge: 12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if hs := d.Services.Health; hs != nil {
		r.GET("/ready", func(c *gin.Context) {
			states := hs.Check(c.Request.Context())
			status := http.StatusOK
			if !services.AllHealthy(states) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, states)
		})
	}
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(d.Services)
	api := groupWithPrefix(r, apiBase)
	s := d.Services

	if s.Documents != nil {
		api.POST("/documents/upload", h.UploadDocuments)
		api.GET("/documents", h.ListDocuments)
		api.GET("/documents/:id", h.GetDocument)
		api.DELETE("/documents/:id", h.DeleteDocument)
		api.POST("/documents/:id/reprocess", h.ReprocessDocument)
	}
	if s.Search != nil {
		api.POST("/search", h.Search)
	}
	if s.Sessions != nil {
		api.POST("/chat/sessions", h.CreateSession)
		api.GET("/chat/sessions", h.ListSessions)
		api.GET("/chat/sessions/:id", h.GetSession)
		api.PATCH("/chat/sessions/:id", h.RenameSession)
		api.DELETE("/chat/sessions/:id", h.DeleteSession)
	}
	if s.Chat != nil {
		api.POST("/chat/sessions/:id/messages", h.SendMessage)
	}

	admin := api.Group("/admin")
	if s.Personas != nil {
		admin.GET("/personas", h.ListPersonas)
		admin.POST("/personas", h.CreatePersona)
		admin.GET("/personas/:id", h.GetPersona)
		admin.PUT("/personas/:id", h.UpdatePersona)
		admin.DELETE("/personas/:id", h.DeletePersona)
	}
	if s.Settings != nil {
		admin.GET("/settings", h.ListSettings)
		admin.PUT("/settings/:key", h.UpdateSetting)
	}
	if s.Query != nil {
		admin.POST("/db/query", h.RunQuery)
	}
	if s.Health != nil {
		admin.GET("/health", h.AdminHealth)
	}
}

func idempotencyLookup(db *gorm.DB) middleware.IdempotencyLookup {
	if db == nil {
		return nil
	}
	return func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
		rec, err := repo.GetIdempotency(ctx, db, scope, key, now)
		if err != nil || rec == nil {
			return false, nil
		}
		return true, nil
	}
}

// limitBody caps request bodies at maxBytes; reads beyond it fail with
// *http.MaxBytesError. Non-positive values disable the cap.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if maxBytes > 0 && c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
