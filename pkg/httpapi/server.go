// Package httpapi implements the HTTP API + Rate Limiter (spec.md
// §4.10): the gin router, request/quota middleware, and the handlers
// backing §6's route table. It is the outermost layer every request
// enters through before reaching the Grant Store or the scheduler queue.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/grantfinder/pkg/config"
	"github.com/codeready-toolchain/grantfinder/pkg/rag"
	"github.com/codeready-toolchain/grantfinder/pkg/scheduler"
	"github.com/codeready-toolchain/grantfinder/pkg/store"
)

// readTimeout/mutateTimeout/generationTimeout implement the §5 handler
// timeout table.
const (
	readTimeout       = 30 * time.Second
	mutateTimeout     = 60 * time.Second
	generationTimeout = 10 * time.Minute
)

// validate is a package-level, concurrency-safe validator instance
// (go-playground/validator's documented usage pattern: construct once,
// reuse across every DTO).
var validate = validator.New(validator.WithRequiredStructEnabled())

// Server wires every repository, the scheduler queue, and the RAG
// generator behind the gin router (§4.10).
type Server struct {
	engine *gin.Engine
	http   *http.Server

	infra    *config.InfraConfig
	defaults *config.Defaults

	grants   *store.GrantStore
	apps     *store.ApplicationStore
	profiles *store.ProfileStore
	runs     *store.SearchRunStore
	users    *store.UserStore

	queue      *scheduler.Queue
	retriever  *rag.Retriever
	generator  *rag.Generator
	appWorkers *appWorkerPool

	limiter *RateLimiter
	log     *slog.Logger
}

// Deps groups every collaborator NewServer needs, mirroring the
// teacher's pattern of threading already-constructed services into the
// API layer rather than constructing them itself.
type Deps struct {
	Infra     *config.InfraConfig
	Defaults  *config.Defaults
	Grants    *store.GrantStore
	Apps      *store.ApplicationStore
	Profiles  *store.ProfileStore
	Runs      *store.SearchRunStore
	Users     *store.UserStore
	Queue     *scheduler.Queue
	Retriever *rag.Retriever
	Generator *rag.Generator
	Redis     *redis.Client
}

// NewServer constructs the router and registers every §6 route.
func NewServer(d Deps) *Server {
	ginMode := gin.ReleaseMode
	gin.SetMode(ginMode)

	s := &Server{
		engine:     gin.New(),
		infra:      d.Infra,
		defaults:   d.Defaults,
		grants:     d.Grants,
		apps:       d.Apps,
		profiles:   d.Profiles,
		runs:       d.Runs,
		users:      d.Users,
		queue:      d.Queue,
		retriever:  d.Retriever,
		generator:  d.Generator,
		limiter:    NewRateLimiter(d.Redis),
		log:        slog.With("component", "httpapi"),
		appWorkers: newAppWorkerPool(4, d.Apps, d.Profiles, d.Grants, d.Retriever, d.Generator, d.Defaults),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(requestLogger(s.log))
	s.engine.Use(metricsMiddleware())

	s.setupRoutes()
	return s
}

// Engine exposes the underlying gin router so other components
// (the health monitor) can register additional routes on it.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Start launches the worker pool backing POST /api/applications/generate
// and begins serving on addr (blocking, like gin's own router.Run).
func (s *Server) Start(ctx context.Context, addr string) error {
	s.appWorkers.Start(ctx)
	s.http = &http.Server{Addr: addr, Handler: s.engine}
	return s.http.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	sys := s.engine.Group("/api/system")
	sys.GET("/info", withTimeout(readTimeout, s.handleSystemInfo))
	sys.POST("/run-search", requireAuth(), s.limiter.Middleware(limitPerUser, 5, time.Hour), withTimeout(mutateTimeout, s.handleRunSearch))

	grants := s.engine.Group("/api/grants")
	grants.GET("", requireAuth(), s.limiter.Middleware(limitPerUser, 30, time.Minute), withTimeout(readTimeout, s.handleListGrants))
	grants.GET("/:id", requireAuth(), s.limiter.Middleware(limitPerUser, 60, time.Minute), withTimeout(readTimeout, s.handleGetGrant))
	grants.POST("/search", requireAuth(), s.limiter.Middleware(limitPerUser, 30, time.Minute), withTimeout(readTimeout, s.handleSearchGrants))

	apps := s.engine.Group("/api/applications")
	apps.POST("/generate", requireAuth(), s.limiter.Middleware(limitPerUser, 10, time.Hour), withTimeout(mutateTimeout, s.handleGenerateApplication))
	apps.GET("/status/:task_id", requireAuth(), s.limiter.Middleware(limitPerUser, 60, time.Minute), withTimeout(readTimeout, s.handleApplicationStatus))
	apps.POST("/feedback", requireAuth(), s.limiter.Middleware(limitPerUser, 30, time.Hour), withTimeout(mutateTimeout, s.handleApplicationFeedback))

	profile := s.engine.Group("/api/business-profile")
	profile.GET("", requireAuth(), s.limiter.Middleware(limitPerUser, 20, time.Hour), withTimeout(readTimeout, s.handleGetProfile))
	profile.PUT("", requireAuth(), s.limiter.Middleware(limitPerUser, 20, time.Hour), withTimeout(mutateTimeout, s.handlePutProfile))
	profile.POST("/documents", requireAuth(), s.limiter.Middleware(limitPerUser, 10, time.Hour), withTimeout(mutateTimeout, s.handleUploadDocument))
}

// requireAuth decodes the bearer token's subject claim before any
// rate-limiting or handler logic runs, so user-keyed rate limiting
// (§4.10) actually sees the authenticated subject.
func requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !authenticate(c) {
			return
		}
		c.Next()
	}
}

// withTimeout bounds a handler's context to the §5 per-route-class
// timeout before invoking it.
func withTimeout(d time.Duration, fn gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		fn(c)
	}
}
