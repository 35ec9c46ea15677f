package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/org/envvault/internal/auth"
	"github.com/org/envvault/internal/secret"
	"github.com/org/envvault/pkg/models"
)

// Version is reported by the health endpoint. Set at build time.
var Version = "dev"

// maxImportBytes bounds the body of POST /v1/env/import.
const maxImportBytes = 1 << 20

// Config holds server configuration.
type Config struct {
	ListenAddr string
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit int
}

// Vault is the operation surface the handlers call.
type Vault interface {
	Ready() bool
	Ping(ctx context.Context) error
	SearchVault(ctx context.Context, query string) []models.SecretItem
	GetAllSecrets(ctx context.Context) []models.SecretItem
	GetFullSecret(ctx context.Context, id int64) (string, bool)
	AddSecret(ctx context.Context, key, value string) bool
	UpdateSecret(ctx context.Context, id int64, value string) bool
	DeleteSecret(ctx context.Context, id int64) bool
	ImportEnvDetailed(ctx context.Context, text string) secret.ImportResult
	ExportEnv(ctx context.Context) string
	SyncToShell(ctx context.Context) bool
	GetEnvvaultPath() string
	InstallShellHook() ([]string, bool)
}

// AuditLogger is the interface the server needs from an audit logger.
type AuditLogger interface {
	LogRequest(entry *models.AuditEntry)
}

// Server is the API server.
type Server struct {
	vault   Vault
	tokens  *auth.TokenService
	auditor AuditLogger
	cfg     Config
	httpSrv *http.Server
}

// NewServer creates a fully wired Server.
func NewServer(vault Vault, tokens *auth.TokenService, auditor AuditLogger, cfg Config) *Server {
	s := &Server{
		vault:   vault,
		tokens:  tokens,
		auditor: auditor,
		cfg:     cfg,
	}
	s.httpSrv = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.BuildRouter(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// BuildRouter wires up all routes and returns a chi router.
func (s *Server) BuildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Recoverer)
	r.Use(requestIDMiddleware)
	r.Use(metricsMiddleware)
	if s.cfg.RateLimit > 0 {
		r.Use(newRateLimiter(s.cfg.RateLimit, 2*s.cfg.RateLimit).middleware)
	}
	r.Use(auditMiddleware(s.auditor))

	// Prometheus metrics (unauthenticated)
	r.Handle("/metrics", MetricsHandler())

	// Public routes (no auth required)
	r.Get("/v1/sys/health", s.HealthHandler)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(s.tokens))
		r.Use(readyMiddleware(s.vault))

		r.Get("/v1/secrets", s.ListSecretsHandler)
		r.Post("/v1/secrets", s.AddSecretHandler)
		r.Get("/v1/secrets/{id}/value", s.GetSecretValueHandler)
		r.Put("/v1/secrets/{id}", s.UpdateSecretHandler)
		r.Delete("/v1/secrets/{id}", s.DeleteSecretHandler)

		r.Post("/v1/env/import", s.ImportEnvHandler)
		r.Get("/v1/env/export", s.ExportEnvHandler)

		r.Post("/v1/sys/sync", s.SyncHandler)
		r.Get("/v1/sys/sync-path", s.SyncPathHandler)
		r.Post("/v1/sys/shell-hook", s.ShellHookHandler)
	})

	return r
}

// Start begins listening on the configured address. After Shutdown it
// returns http.ErrServerClosed.
func (s *Server) Start() error {
	log.Info().Str("addr", s.cfg.ListenAddr).Msg("starting HTTP server")
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
