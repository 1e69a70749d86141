package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/star/orrery/internal/api"
	"github.com/star/orrery/internal/assets"
	"github.com/star/orrery/internal/auth"
	"github.com/star/orrery/internal/control"
	"github.com/star/orrery/internal/session"
	"github.com/star/orrery/internal/stream"
	"github.com/star/orrery/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(),
	}))

	addr := os.Getenv("ORRERY_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sess := session.New(loadSessionConfig(logger), logger.With("component", "session"))
	sessionDone := make(chan struct{})
	go func() {
		sess.Run(ctx)
		close(sessionDone)
	}()

	assetCfg := loadAssetConfig(logger)
	go loadAssets(ctx, sess, assetCfg, logger.With("component", "assets"))

	streamHandler := stream.NewHandler(sess, loadStreamConfig(logger), logger.With("component", "stream"))
	controlHandler := control.NewHandler(sess, loadControlConfig(logger), logger.With("component", "control"))

	srv := api.NewServer(api.Config{
		Addr:      addr,
		Auth:      authCfg,
		Web:       web.Content,
		Assets:    assetCfg.localFS(),
		AssetBase: assetCfg.BaseURL,
		Stream:    streamHandler,
		WS:        controlHandler,
	}, sess, logger)

	go func() {
		logger.Info("starting server", "addr", addr, "auth_enabled", authCfg.Enabled)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	<-sessionDone

	logger.Info("server stopped")
}

// loadAssets validates every texture and sound and hands each result to the
// session. Failures only log; the fallback look stays.
func loadAssets(ctx context.Context, sess *session.Session, cfg assetConfig, logger *slog.Logger) {
	var loader assets.Loader
	switch {
	case cfg.BaseURL != "":
		loader = assets.NewHTTPLoader(cfg.BaseURL, logger)
	case cfg.Dir != "":
		loader = assets.NewFSLoader(os.DirFS(cfg.Dir))
	default:
		logger.Warn("no asset source configured, using fallback colours only")
		return
	}

	start := time.Now()
	var loaded, failed int
	for res := range assets.NewPool(loader, cfg.Workers, logger).LoadAll(ctx, session.AssetPaths()) {
		if res.Status == assets.Loaded {
			loaded++
		} else {
			failed++
		}
		sess.AssetLoaded(res)
	}
	logger.Info("assets settled",
		"loaded", loaded,
		"failed", failed,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

func logLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(os.Getenv("ORRERY_LOG_LEVEL"))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("ORRERY_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("ORRERY_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("ORRERY_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("ORRERY_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadSessionConfig(logger *slog.Logger) session.Config {
	cfg := session.DefaultConfig()

	if v := os.Getenv("ORRERY_FRAME_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_FRAME_INTERVAL_MS value, using default", "value", v, "default", cfg.FrameInterval.Milliseconds())
		} else {
			cfg.FrameInterval = time.Duration(n) * time.Millisecond
		}
	}

	if v := os.Getenv("ORRERY_SPEED"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			logger.Warn("invalid ORRERY_SPEED value, using default", "value", v, "default", cfg.Speed)
		} else {
			cfg.Speed = f
		}
	}

	logger.Info("session config",
		"frame_interval_ms", cfg.FrameInterval.Milliseconds(),
		"speed", cfg.Speed,
	)

	return cfg
}

type assetConfig struct {
	Dir     string
	BaseURL string
	Workers int
}

// localFS is the tree served at /assets/, or nil when assets come from a
// remote host or not at all.
func (c assetConfig) localFS() fs.FS {
	if c.Dir == "" || c.BaseURL != "" {
		return nil
	}
	return os.DirFS(c.Dir)
}

func loadAssetConfig(logger *slog.Logger) assetConfig {
	cfg := assetConfig{
		Dir:     os.Getenv("ORRERY_ASSET_DIR"),
		BaseURL: os.Getenv("ORRERY_ASSET_BASE_URL"),
		Workers: runtime.NumCPU(),
	}

	if v := os.Getenv("ORRERY_ASSET_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_ASSET_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	logger.Info("asset config",
		"dir", cfg.Dir,
		"base_url", cfg.BaseURL,
		"workers", cfg.Workers,
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		MaxTotal:           1000,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  30 * time.Second,
		DefaultInterval:    33 * time.Millisecond,
	}

	if v := os.Getenv("ORRERY_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("ORRERY_STREAM_MAX_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_STREAM_MAX_TOTAL value, using default", "value", v, "default", 1000)
		} else {
			cfg.MaxTotal = n
		}
	}

	if v := os.Getenv("ORRERY_STREAM_BANDWIDTH_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_STREAM_BANDWIDTH_LIMIT value, using default", "value", v, "default", 1048576)
		} else {
			cfg.BandwidthLimit = n
		}
	}

	if v := os.Getenv("ORRERY_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("ORRERY_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid ORRERY_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = b
		}
	}

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"bandwidth_limit", cfg.BandwidthLimit,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}

func loadControlConfig(logger *slog.Logger) control.Config {
	cfg := control.Config{
		CommandRate:  60,
		CommandBurst: 120,
	}

	if v := os.Getenv("ORRERY_WS_COMMAND_RATE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid ORRERY_WS_COMMAND_RATE value, using default", "value", v, "default", 60)
		} else {
			cfg.CommandRate = f
		}
	}

	if v := os.Getenv("ORRERY_WS_COMMAND_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ORRERY_WS_COMMAND_BURST value, using default", "value", v, "default", 120)
		} else {
			cfg.CommandBurst = n
		}
	}

	if v := os.Getenv("ORRERY_WS_ALLOW_ANY_ORIGIN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid ORRERY_WS_ALLOW_ANY_ORIGIN value, defaulting to false", "value", v)
		} else {
			cfg.AllowAnyOrigin = b
		}
	}

	if v := os.Getenv("ORRERY_WS_ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	if v := os.Getenv("ORRERY_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid ORRERY_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = b
		}
	}

	logger.Info("control config",
		"command_rate", cfg.CommandRate,
		"command_burst", cfg.CommandBurst,
		"allow_any_origin", cfg.AllowAnyOrigin,
		"allowed_origins", cfg.AllowedOrigins,
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}
