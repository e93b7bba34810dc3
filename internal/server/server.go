// Package server assembles the broker from configuration: the bridge core,
// the MCP server with its middleware chain, the audit backend, and the
// stdio or HTTP transport.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	// PostgreSQL driver for the audit backend.
	_ "github.com/lib/pq"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/relayops/toolbridge/internal/adminui"
	"github.com/relayops/toolbridge/pkg/admin"
	"github.com/relayops/toolbridge/pkg/audit"
	auditpg "github.com/relayops/toolbridge/pkg/audit/postgres"
	"github.com/relayops/toolbridge/pkg/auth"
	"github.com/relayops/toolbridge/pkg/bridge"
	"github.com/relayops/toolbridge/pkg/database/migrate"
	"github.com/relayops/toolbridge/pkg/health"
	tbhttp "github.com/relayops/toolbridge/pkg/http"
	"github.com/relayops/toolbridge/pkg/middleware"
)

// Version is set at build time.
var Version = "dev"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
	healthCheckBudget = 5 * time.Second
)

// Server is the assembled broker, ready to run on its configured transport.
type Server struct {
	cfg    *bridge.Config
	bridge *bridge.Bridge
	mcp    *mcp.Server
	logger *slog.Logger

	auditLogger audit.Logger
	db          *sql.DB
	checker     *health.Checker
}

// New builds a Server from the given configuration. The configuration is
// validated first; a nil error means the broker is fully wired and Run can
// be called.
func New(cfg *bridge.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(cfg.Logging)

	auditLogger, db, err := newAuditBackend(cfg, logger)
	if err != nil {
		return nil, err
	}

	b, err := bridge.New(cfg, bridge.Deps{
		AuditLogger: auditLogger,
		Logger:      logger,
	})
	if err != nil {
		closeQuietly(auditLogger, db)
		return nil, err
	}

	mcpServer := mcp.NewServer(&mcp.Implementation{
		Name:    cfg.Server.Name,
		Version: cfg.Server.Version,
	}, nil)
	b.RegisterTools(mcpServer)
	b.RegisterResources(mcpServer)

	chain, err := buildMiddlewareChain(cfg, auditLogger, logger)
	if err != nil {
		closeQuietly(auditLogger, db)
		_ = b.Close()
		return nil, err
	}
	mcpServer.AddReceivingMiddleware(middleware.MCPToolCallMiddleware(chain, cfg.Server.Transport))

	checker := health.NewChecker()
	checker.AddCheck("provider", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), healthCheckBudget)
		defer cancel()
		return b.CheckProvider(ctx)
	})

	return &Server{
		cfg:         cfg,
		bridge:      b,
		mcp:         mcpServer,
		logger:      logger,
		auditLogger: auditLogger,
		db:          db,
		checker:     checker,
	}, nil
}

// Bridge returns the underlying bridge. Exposed for the admin API and tests.
func (s *Server) Bridge() *bridge.Bridge {
	return s.bridge
}

// MCPServer returns the MCP server.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}

// Logger returns the configured logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Run serves on the configured transport until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Server.Transport {
	case "http":
		return s.serveHTTP(ctx)
	default:
		return s.serveStdio(ctx)
	}
}

// Close releases the broker's resources.
func (s *Server) Close() error {
	var errs []error
	if err := s.bridge.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.auditLogger.Close(); err != nil {
		errs = append(errs, err)
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Server) serveStdio(ctx context.Context) error {
	s.logger.Info("serving on stdio",
		"server", s.cfg.Server.Name,
		"version", s.cfg.Server.Version,
	)
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

func (s *Server) serveHTTP(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.Address,
		Handler:           s.httpHandler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("serving on http",
			"address", s.cfg.Server.Address,
			"server", s.cfg.Server.Name,
			"version", s.cfg.Server.Version,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	s.checker.SetReady()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http transport: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.checker.SetDraining()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// httpHandler builds the full HTTP surface: the streamable MCP endpoint,
// the admin REST API, health probes, and the embedded admin UI when built.
func (s *Server) httpHandler() http.Handler {
	mux := http.NewServeMux()

	authRequired := s.authRequired()

	streamable := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server {
		return s.mcp
	}, nil)
	mux.Handle("/mcp", tbhttp.AuthMiddleware(authRequired)(streamable))

	var adminAuth func(http.Handler) http.Handler
	if authRequired {
		adminAuth = tbhttp.RequireAuth()
	}
	mux.Handle("/api/v1/", admin.NewHandler(s.bridge, adminAuth))

	mux.Handle("/healthz", s.checker.LivenessHandler())
	mux.Handle("/readyz", s.checker.ReadinessHandler())

	if adminui.Available() {
		mux.Handle("/", adminui.Handler())
	}

	return mux
}

// authRequired reports whether requests must carry credentials.
func (s *Server) authRequired() bool {
	if s.cfg.Auth.AllowAnonymous {
		return false
	}
	return s.cfg.Auth.JWT.Enabled || s.cfg.Auth.APIKeys.Enabled
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg bridge.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// newAuditBackend builds the audit logger selected by audit.backend. For the
// postgres backend it also opens the database, runs migrations, and starts
// the retention cleanup routine; the returned *sql.DB is non-nil only then.
func newAuditBackend(cfg *bridge.Config, logger *slog.Logger) (audit.Logger, *sql.DB, error) {
	switch cfg.Audit.Backend {
	case "postgres":
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("opening audit database: %w", err)
		}
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)

		if err := migrate.Run(db); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("migrating audit database: %w", err)
		}

		store := auditpg.New(db, auditpg.Config{
			RetentionDays: cfg.Audit.RetentionDays,
		})
		store.StartCleanupRoutine(cfg.Audit.CleanupInterval.Std())
		return store, db, nil

	case "none":
		return audit.NoopLogger{}, nil, nil

	default:
		return audit.NewSlogLogger(logger), nil, nil
	}
}

// buildMiddlewareChain builds the tool call middleware chain.
func buildMiddlewareChain(cfg *bridge.Config, auditLogger audit.Logger, logger *slog.Logger) (*middleware.Chain, error) {
	authenticator, err := buildAuthenticator(cfg.Auth)
	if err != nil {
		return nil, err
	}

	chain := middleware.NewChain()
	chain.UseBefore(middleware.AuthMiddleware(authenticator))
	chain.UseBefore(middleware.LoggingMiddleware(logger))

	if cfg.Audit.Backend != "none" {
		chain.UseAfter(middleware.AuditMiddleware(auditLogger))
	}

	return chain, nil
}

// buildAuthenticator builds the authenticator stack from the auth
// configuration. With no methods enabled every caller is anonymous.
func buildAuthenticator(cfg bridge.AuthConfig) (middleware.Authenticator, error) {
	var authenticators []middleware.Authenticator

	if cfg.JWT.Enabled {
		extractor := auth.DefaultClaimsExtractor()
		if cfg.JWT.RoleClaimPath != "" {
			extractor.RoleClaimPath = cfg.JWT.RoleClaimPath
		}
		extractor.RolePrefix = cfg.JWT.RolePrefix

		jwtAuth, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			SigningKey: cfg.JWT.SigningKey,
			Issuer:     cfg.JWT.Issuer,
			Audience:   cfg.JWT.Audience,
		}, extractor)
		if err != nil {
			return nil, fmt.Errorf("building JWT authenticator: %w", err)
		}
		authenticators = append(authenticators, jwtAuth)
	}

	if cfg.APIKeys.Enabled {
		keys := make([]auth.APIKey, 0, len(cfg.APIKeys.Keys))
		for _, key := range cfg.APIKeys.Keys {
			keys = append(keys, auth.APIKey{
				KeyHash: key.KeyHash,
				Name:    key.Name,
				Roles:   key.Roles,
			})
		}
		authenticators = append(authenticators, auth.NewAPIKeyAuthenticator(auth.APIKeyConfig{Keys: keys}))
	}

	if len(authenticators) == 0 {
		return &middleware.NoopAuthenticator{}, nil
	}

	return auth.NewChainedAuthenticator(auth.ChainedAuthConfig{
		AllowAnonymous: cfg.AllowAnonymous,
	}, authenticators...), nil
}

func closeQuietly(auditLogger audit.Logger, db *sql.DB) {
	_ = auditLogger.Close()
	if db != nil {
		_ = db.Close()
	}
}
