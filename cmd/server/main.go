package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daap14/tenantgate/internal/api"
	"github.com/daap14/tenantgate/internal/api/handler"
	"github.com/daap14/tenantgate/internal/auth"
	"github.com/daap14/tenantgate/internal/config"
	"github.com/daap14/tenantgate/internal/database"
	"github.com/daap14/tenantgate/internal/gate"
	"github.com/daap14/tenantgate/internal/session"
	"github.com/daap14/tenantgate/internal/tenant"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx := context.Background()

	store, db, credentialsConfigured, err := newCredentialStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize credential store", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	plaintext := cfg.AllowPlaintext && !cfg.UsesDatabase()
	if plaintext {
		slog.Warn("plaintext password comparison is enabled for the static credential source")
	}
	authService := auth.NewService(store, auth.WithPlaintextFallback(plaintext))

	codec := session.NewCodec(
		session.StaticSecret(cfg.AuthSecret),
		store,
		session.WithTTL(session.ParseTTL(cfg.SessionTTL)),
	)
	resolver := tenant.NewResolver(store)

	snapshot := gate.Snapshot{
		Disabled:              cfg.AuthDisabled,
		CredentialsConfigured: credentialsConfigured,
		SecretConfigured:      codec.Configured(),
	}
	logAuthState(snapshot)

	paths := gate.DefaultPaths().
		WithPublicPaths(cfg.PublicPaths...).
		WithPublicPrefixes(cfg.PublicPrefixes...)
	sessionGate := gate.New(codec, resolver, paths, func() gate.Snapshot { return snapshot })

	var pinger handler.DBPinger
	if db != nil {
		pinger = db
	}

	router := api.NewRouter(api.RouterDeps{
		Gate:          sessionGate,
		AuthService:   authService,
		Codec:         codec,
		Resolver:      resolver,
		DBPinger:      pinger,
		Version:       cfg.Version,
		SecureCookies: cfg.IsProduction(),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting tenantgate server",
			"port", cfg.Port,
			"version", cfg.Version,
			"source", cfg.AuthSource,
			"sessionTtl", codec.TTL().String(),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(h))
}

// newCredentialStore selects the credential backend. The returned flag
// reports whether any credentials are configured; a database source always
// counts as configured.
func newCredentialStore(ctx context.Context, cfg *config.Config) (auth.CredentialStore, *database.DB, bool, error) {
	if cfg.UsesDatabase() {
		db, err := database.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, false, err
		}
		repo := auth.NewPostgresRepository(db,
			auth.WithTable(cfg.UsersTable),
			auth.WithProduction(cfg.IsProduction()),
		)
		slog.Info("using database credential source", "table", repo.Table())
		return repo, db, true, nil
	}

	raw := []byte(cfg.Users)
	if len(raw) == 0 && cfg.UsersFile != "" {
		b, err := os.ReadFile(cfg.UsersFile)
		if err != nil {
			slog.Error("failed to read credential file; no users configured", "path", cfg.UsersFile, "error", err)
		}
		raw = b
	}

	repo := auth.NewStaticRepository(raw, slog.Default())
	count := repo.ActiveCount()
	slog.Info("using static credential source", "activeUsers", count)
	return repo, nil, count > 0, nil
}

func logAuthState(s gate.Snapshot) {
	switch {
	case s.Enabled():
		slog.Info("session authentication enabled")
	case s.Disabled:
		slog.Info("session authentication disabled by AUTH_DISABLED")
	default:
		slog.Warn("session authentication is not configured; all requests pass without a session",
			"secretConfigured", s.SecretConfigured,
			"credentialsConfigured", s.CredentialsConfigured,
		)
	}
}
