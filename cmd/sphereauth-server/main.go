package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/elimusphere/sphereauth"
	"github.com/elimusphere/sphereauth/httpapi"
	"github.com/elimusphere/sphereauth/internal/appconfig"
	"github.com/elimusphere/sphereauth/internal/logging"
	"github.com/elimusphere/sphereauth/mail"
	"github.com/elimusphere/sphereauth/metrics/export/prometheus"
	"github.com/elimusphere/sphereauth/store/memory"
	"github.com/elimusphere/sphereauth/store/postgres"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := appconfig.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *appconfig.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.DB, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	engineCfg := sphereauth.DefaultConfig()
	engineCfg.JWT.PrivateKey = []byte(cfg.Auth.JWTSecret)
	engineCfg.JWT.AccessTTL = cfg.Auth.AccessTokenTTL
	engineCfg.PasswordReset.ResetTTL = cfg.Auth.ResetTTL
	engineCfg.Audit.Enabled = cfg.Auth.AuditEnabled
	engineCfg.Metrics.Enabled = cfg.Server.MetricsEnabled
	engineCfg.Metrics.EnableLatencyHistograms = cfg.Server.MetricsEnabled

	builder := sphereauth.New().
		WithUserStore(store).
		WithLogger(logger).
		WithAuditSink(sphereauth.NewZapSink(logger))

	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		builder = builder.WithRedis(rdb)
	} else {
		logger.Warn("redis not configured; login, registration and reset throttles disabled")
		engineCfg.Security.EnableLoginThrottle = false
		engineCfg.Registration.EnableIPThrottle = false
		engineCfg.PasswordReset.EnableIPThrottle = false
		engineCfg.PasswordReset.EnableIdentifierThrottle = false
	}

	smtpCfg := mail.SMTPConfig{
		Host:     cfg.Mail.SMTPHost,
		Port:     cfg.Mail.SMTPPort,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		Timeout:  cfg.Mail.Timeout,
	}
	if smtpCfg.Configured() {
		sender, err := mail.NewSMTPSender(smtpCfg)
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		builder = builder.WithMailSender(sender)
	} else {
		logger.Warn("smtp not configured; reset codes will be logged")
	}

	for _, w := range engineCfg.Lint().BySeverity(sphereauth.LintWarn) {
		logger.Warn("config lint", zap.String("code", w.Code), zap.String("severity", w.Severity.String()), zap.String("detail", w.Message))
	}

	engine, err := builder.WithConfig(engineCfg).Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	opts := []httpapi.Option{
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithTrustProxy(cfg.Server.TrustProxy),
	}
	if cfg.Server.MetricsEnabled {
		opts = append(opts, httpapi.WithMetricsHandler(prometheus.NewPrometheusExporter(engine).Handler()))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      httpapi.NewServer(engine, opts...).Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("sphereauth listening", zap.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	return nil
}

// openStore returns the Postgres store when a DSN is configured and the in-memory
// store otherwise.
func openStore(ctx context.Context, cfg appconfig.DBConfig, logger *zap.Logger) (sphereauth.UserStore, func(), error) {
	if cfg.DSN == "" {
		logger.Warn("db.dsn not set; using in-memory store")
		return memory.New(), func() {}, nil
	}

	pool, err := postgres.Open(ctx, cfg.DSN, cfg.MaxConns)
	if err != nil {
		return nil, nil, fmt.Errorf("db connection failed: %w", err)
	}
	if cfg.Migrate {
		if err := postgres.Migrate(pool, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return postgres.NewStore(pool), pool.Close, nil
}
