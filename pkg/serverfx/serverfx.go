// Package serverfx wires the invocation server: logger, metrics,
// router, and an http.Server lifecycle under Fx. Applications build a
// function.Registry, fx.Supply it, and add serverfx.Module(...).
package serverfx

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ggpwnkthx/azfunc-go/pkg/function"
	"github.com/ggpwnkthx/azfunc-go/pkg/hostcfg"
	"github.com/ggpwnkthx/azfunc-go/pkg/middleware/logger"
	"github.com/ggpwnkthx/azfunc-go/pkg/middleware/metrics"
	"github.com/ggpwnkthx/azfunc-go/pkg/router"
	"github.com/ggpwnkthx/azfunc-go/pkg/transport/httpx"
)

// ---------- Options ----------

type Config struct {
	Service       string // for logs only
	ConfigEnv     string // e.g., FUNCHOST_CONFIG
	DefaultConfig string // e.g., "host.toml"
	ListenEnv     string // overrides the config file's listen address
	TLSCertEnv    string // SSL_SERVER_CERTIFICATE
	TLSKeyEnv     string // SSL_SERVER_KEY
}

type Option func(*Config)

func WithService(s string) Option          { return func(c *Config) { c.Service = s } }
func WithConfigEnv(k string) Option        { return func(c *Config) { c.ConfigEnv = k } }
func WithDefaultConfig(path string) Option { return func(c *Config) { c.DefaultConfig = path } }
func WithListenEnv(k string) Option        { return func(c *Config) { c.ListenEnv = k } }
func WithTLSCertKeyEnv(cert, key string) Option {
	return func(c *Config) { c.TLSCertEnv, c.TLSKeyEnv = cert, key }
}

func defaultConfig() Config {
	return Config{
		Service:       "funchost",
		ConfigEnv:     "FUNCHOST_CONFIG",
		DefaultConfig: "host.toml",
		ListenEnv:     "SERVER_LISTEN_ADDRESS",
		TLSCertEnv:    "SSL_SERVER_CERTIFICATE",
		TLSKeyEnv:     "SSL_SERVER_KEY",
	}
}

// Module returns a complete Fx option set; supply a *function.Registry
// alongside.
func Module(opts ...Option) fx.Option {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	return fx.Options(
		logger.Module,
		fx.Provide(fx.Annotate(metrics.ProvideMetrics, fx.ResultTags(`name:"metrics"`))),
		fx.Provide(httpx.NewChi),
		fx.Provide(func() Config { return cfg }),
		fx.Provide(provideHostConfig),
		fx.Provide(fx.Annotate(
			provideApp,
			fx.ParamTags(``, ``, ``, ``, `name:"metrics"`, ``, ``),
			fx.ResultTags(`name:"app"`),
		)),
		fx.Invoke(registerHooks),
	)
}

// ---------- Host config ----------

func provideHostConfig(cfg Config, zl *zap.Logger) hostcfg.Config {
	path := envOr(cfg.ConfigEnv, cfg.DefaultConfig)
	if !fileExists(path) {
		hc := hostcfg.Default()
		if err := hc.Normalize(); err != nil {
			zl.Fatal("host config defaults invalid", zap.Error(err))
		}
		return hc
	}
	hc, err := hostcfg.Load(path)
	if err != nil {
		zl.Fatal("host config load failed", zap.Error(err), zap.String("path", path))
	}
	if addr := os.Getenv(cfg.ListenEnv); addr != "" {
		hc.Listen = addr
	}
	return hc
}

// ---------- Router ----------

func provideApp(
	cfg Config,
	hc hostcfg.Config,
	reg *function.Registry,
	lm *logger.Middleware,
	/* name:"metrics" */ m http.Handler,
	r httpx.Router,
	zl *zap.Logger,
) http.Handler {
	if reg.Len() == 0 {
		zl.Warn("no functions registered; every invocation will 404",
			zap.String("service", cfg.Service))
	}
	r.Use(lm.Middleware())
	r.Use(metrics.Collect())

	rt := router.New(reg, hc, zl)
	app := rt.Mount(r)

	r.Get("/metrics", m)
	return app
}

// ---------- Lifecycle ----------

type serverDeps struct {
	fx.In
	Logger *zap.Logger
	App    http.Handler `name:"app"`
}

func registerHooks(lc fx.Lifecycle, cfg Config, hc hostcfg.Config, d serverDeps) {
	cert := os.Getenv(cfg.TLSCertEnv)
	key := os.Getenv(cfg.TLSKeyEnv)

	srv := &http.Server{
		Addr:         hc.Listen,
		Handler:      d.App,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
		TLSConfig:    &tls.Config{MinVersion: tls.VersionTLS13, MaxVersion: tls.VersionTLS13},
	}
	useTLS := fileExists(cert) && fileExists(key)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			if useTLS {
				d.Logger.Info("server starting (TLS)",
					zap.String("service", cfg.Service),
					zap.String("addr", hc.Listen),
					zap.String("cert", cert),
				)
				go func() {
					if err := srv.ListenAndServeTLS(cert, key); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			} else {
				d.Logger.Info("server starting (PLAINTEXT)",
					zap.String("service", cfg.Service),
					zap.String("addr", hc.Listen),
				)
				go func() {
					srv.TLSConfig = nil
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						d.Logger.Fatal("server failed", zap.Error(err))
					}
				}()
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			d.Logger.Info("server stopping", zap.String("service", cfg.Service))
			return srv.Shutdown(ctx)
		},
	})
}

// ---------- tiny helpers ----------

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
