// Command storysized is the storysize estimation service.
// It serves the estimation, detection and hours endpoints and a health check.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/storysize/storysize/internal/api"
	"github.com/storysize/storysize/internal/app"
	"github.com/storysize/storysize/pkg/config"
)

type serverConfig struct {
	Port       string
	ConfigPath string
	APIKey     string
	ArchiveURL string
	Offline    bool
	Debug      bool
}

func loadServerConfig() serverConfig {
	return serverConfig{
		Port:       envOrDefault("PORT", "8080"),
		ConfigPath: envOrDefault("STORYSIZE_CONFIG", "/etc/storysize/config.yaml"),
		APIKey:     os.Getenv("STORYSIZE_API_KEY"),
		ArchiveURL: os.Getenv("STORYSIZE_ARCHIVE_URL"),
		Offline:    os.Getenv("STORYSIZE_OFFLINE") == "true",
		Debug:      os.Getenv("STORYSIZE_DEBUG") == "true",
	}
}

func main() {
	sc := loadServerConfig()

	zc := zap.NewProductionConfig()
	if sc.Debug {
		zc.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zc.Build()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(sc.ConfigPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	components, err := app.Build(ctx, cfg, app.Options{
		Offline:    sc.Offline,
		ArchiveURL: sc.ArchiveURL,
		Workspace:  ".",
		Logger:     logger,
	})
	if err != nil {
		logger.Fatal("build service", zap.Error(err))
	}

	mux := http.NewServeMux()
	api.NewHandler(components.Service, components.Hours, logger).RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = api.APIKeyAuth(sc.APIKey)(handler)
	handler = api.CORS(handler)
	handler = api.RequestLogger(logger)(handler)

	srv := &http.Server{
		Addr:              ":" + sc.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting storysized", zap.String("port", sc.Port), zap.Bool("offline", sc.Offline))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("listen", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.SoftDeadline()+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
