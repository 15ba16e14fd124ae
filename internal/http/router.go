// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, compression,
// metrics, CORS, security headers, authentication, idempotency, and rate
// limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/skillswap-connections/docs" // registers the OpenAPI document
	"github.com/tbourn/skillswap-connections/internal/cache"
	"github.com/tbourn/skillswap-connections/internal/config"
	"github.com/tbourn/skillswap-connections/internal/http/handlers"
	"github.com/tbourn/skillswap-connections/internal/http/middleware"
	"github.com/tbourn/skillswap-connections/internal/repo"
	"github.com/tbourn/skillswap-connections/internal/services"
)

// Options carries optional infrastructure for RegisterRoutes.
type Options struct {
	// DirectoryCache, when set, fronts post/user lookups with a read-through
	// cache (normally a *redis.Client).
	DirectoryCache cache.Store
}

// corsAllowHeaders are the request headers browsers may send cross-origin.
var corsAllowHeaders = []string{
	"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
	middleware.HeaderUserID, middleware.HeaderIdempotencyKey,
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), CORS and security
// headers, health, metrics and docs endpoints, and then mounts the
// authenticated connections API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip (skips /metrics, which negotiates its own encoding)
//  7. Metrics
//  8. CORS and Security headers
//
// API group only (health, metrics, docs and preflights stay open):
//  9. Authenticate: resolve the actor (JWT or X-User-ID)
//  10. Idempotency validator (before rate limiter to allow bypass on replay)
//  11. Rate limiter (per user/IP, bypass on replay)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config, opts Options) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{middleware.HeaderUserID},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Response compression
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) CORS posture and security headers
	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := newHandlers(db, cfg, opts)

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.Authenticate(middleware.AuthOptions{
		JWTSecret:           cfg.Auth.JWTSecret,
		AllowHeaderIdentity: cfg.Auth.AllowHeaderIdentity,
	}))
	api.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, userID, postID, key string, now time.Time) (bool, error) {
			_, err := repo.GetIdempotency(ctx, db, userID, postID, key, now)
			if errors.Is(err, repo.ErrNotFound) {
				return false, nil
			}
			return err == nil, err
		},
	))
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	api.Use(rl.Handler())
	{
		// Lifecycle
		api.POST("/posts/:postId/connections", h.SendConnection)
		api.POST("/connections/:id/accept", h.AcceptConnection)
		api.POST("/connections/:id/reject", h.RejectConnection)
		api.DELETE("/connections/:id/cancel", h.CancelConnection)

		// Reads
		api.GET("/connections", h.ListAll)
		api.GET("/connections/pending", h.ListPending)
		api.GET("/connections/accepted", h.ListAccepted)
		api.GET("/connections/restrictions", h.ListRestrictions)

		// Messaging gate
		api.POST("/connections/:id/messages", h.PostMessage)
		api.GET("/connections/:id/messages", h.ListMessages)
	}
}

// newHandlers builds the service graph: repo/cache → services → handlers.
func newHandlers(db *gorm.DB, cfg config.Config, opts Options) *handlers.Handlers {
	var dir services.Directory = repo.NewDirectory(db)
	if opts.DirectoryCache != nil {
		dir = cache.NewDirectory(dir, opts.DirectoryCache, cfg.Redis.TTL)
	}

	connSvc := services.NewConnectionService(db, repo.Store{}, dir, cfg.Lifecycle.RestrictionCooldown)
	connSvc.MaxMessageRunes = cfg.Lifecycle.MaxRequestMessageRunes

	msgSvc := &services.MessageService{
		DB:              db,
		MaxContentRunes: cfg.Lifecycle.MaxChatMessageRunes,
	}

	return handlers.New(connSvc, msgSvc, handlers.Options{DB: db, IdempotencyTTL: cfg.IdempotencyTTL})
}

// corsMiddleware returns the CORS chain. With no configured origins every
// origin is allowed without credentials; otherwise only the allowlist is
// echoed back.
func corsMiddleware(origins []string) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     corsAllowHeaders,
		ExposeHeaders:    append([]string{"Content-Length"}, middleware.DefaultExposedHeaders...),
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	if len(origins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
			func(c *gin.Context) {
				c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowed[o] = struct{}{}
	}
	base.AllowOrigins = origins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		},
		cors.New(base),
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
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
