package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"

	adapthttp "sugar/internal/adapter/http"
	redisadapter "sugar/internal/adapter/redis"
	"sugar/internal/app"
	"sugar/internal/config"
	"sugar/internal/metrics"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and metrics servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, log)
	},
}

func serve(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if err := cfg.ValidateSigningKey(); err != nil {
		return err
	}
	st, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	details := st.details
	if cfg.RedisURL != "" {
		client, err := redisadapter.Dial(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		details = redisadapter.NewDetailsCache(details, client, cfg.DetailsCacheTTL).
			WithLogger(log.Named("cache")).
			WithMetrics(m)
	}

	authSvc := app.NewAuthService(st.users, st.sessions).WithSessionTTL(cfg.SessionTTL)
	srv := adapthttp.New(adapthttp.Services{
		Readings: app.NewReadingService(st.readings, details).WithLogger(log.Named("readings")).WithMetrics(m),
		Details:  app.NewDetailsService(details),
		Charts:   app.NewChartsService(st.readings, details),
		Auth:     authSvc,
		Tokens:   app.NewTokenService(st.users, cfg.JWTSigningKey, cfg.TokenTTL),
	}).
		WithForwardAuth(cfg.TrustForwardAuth).
		WithPinger(st).
		WithLogger(log.Named("http")).
		WithMetrics(m)

	if cfg.OIDC.Enabled() {
		oidcCfg, err := newOIDC(ctx, cfg.OIDC)
		if err != nil {
			return err
		}
		srv.WithOIDC(oidcCfg)
		log.Info("sso enabled", zap.String("issuer", cfg.OIDC.Issuer))
	}

	api := &http.Server{Addr: cfg.Addr, Handler: srv.Handler(), ReadHeaderTimeout: 10 * time.Second}
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return listen(api, log.With(zap.String("server", "api"))) })
	g.Go(func() error { return listen(metricsSrv, log.With(zap.String("server", "metrics"))) })
	g.Go(func() error {
		sweepSessions(ctx, authSvc, cfg.SessionSweep, log, m)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return errors.Join(api.Shutdown(shutdownCtx), metricsSrv.Shutdown(shutdownCtx))
	})
	return g.Wait()
}

func listen(srv *http.Server, log *zap.Logger) error {
	log.Info("listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	return nil
}

// sweepSessions deletes expired sessions every interval until ctx is done.
func sweepSessions(ctx context.Context, auth *app.AuthService, interval time.Duration, log *zap.Logger, m *metrics.Metrics) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := auth.SweepExpiredSessions(ctx)
			if err != nil {
				log.Warn("session sweep failed", zap.Error(err))
				continue
			}
			if n > 0 {
				m.SessionsSwept.Add(float64(n))
				log.Debug("expired sessions removed", zap.Int64("count", n))
			}
		}
	}
}

func newOIDC(ctx context.Context, o config.OIDC) (adapthttp.OIDCConfig, error) {
	provider, err := oidc.NewProvider(ctx, o.Issuer)
	if err != nil {
		return adapthttp.OIDCConfig{}, fmt.Errorf("oidc provider: %w", err)
	}
	return adapthttp.OIDCConfig{
		Enabled:  true,
		Verifier: provider.Verifier(&oidc.Config{ClientID: o.ClientID}),
		OAuth2Config: &oauth2.Config{
			ClientID:     o.ClientID,
			ClientSecret: o.ClientSecret,
			RedirectURL:  o.RedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
	}, nil
}
