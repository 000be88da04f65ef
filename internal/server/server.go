package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clockout-watcher/cmd/app"
	"clockout-watcher/internal/api/v1/handler"
	"clockout-watcher/internal/api/v1/middleware"
	"clockout-watcher/internal/common"
	authdomain "clockout-watcher/internal/features/auth/domain"
	"clockout-watcher/internal/features/auth/detector"
	"clockout-watcher/internal/features/auth/extractor"
	"clockout-watcher/internal/features/auth/orchestrator"
	"clockout-watcher/internal/features/auth/store"
	clockout "clockout-watcher/internal/features/clockout/service"
	imageservice "clockout-watcher/internal/features/image/service"
)

// Run starts the application
func Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		log.Printf("Signal received: %v, shutting down", sig)
		cancel()
	}()

	// 1. Load configuration
	cfg, err := app.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	loggerConfig := common.DefaultLoggerConfig()
	loggerConfig.Level = common.LogLevel(cfg.App.LogLevel)
	slog.SetDefault(common.NewLogger(loggerConfig))

	// 2. Initialize the auth stack
	refresher, err := initializeAuth(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("Auth stack initialized")

	// 3. Initialize the watcher and image pipeline
	watcher, err := initializeWatcher(cfg, refresher)
	if err != nil {
		log.Fatalf("Failed to initialize watcher: %v", err)
	}
	watcher.Start(ctx)

	// 4. Run the HTTP server until the context is canceled
	if err := runHTTPServer(ctx, cfg, watcher, refresher); err != nil {
		log.Printf("HTTP server error: %v", err)
	}

	log.Println("Application shutdown complete")
}

// initializeAuth wires the token store, the browser extractor, the
// failure detector and the refresh orchestrator
func initializeAuth(cfg *app.Config) (authdomain.RefreshProvider, error) {
	tokenStore, err := store.NewFileStore(cfg.Auth.TokenPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	chromeExtractor, err := extractor.NewChromeExtractor(extractor.Config{
		LoginURL:       cfg.LoginURL(),
		PostLoginURL:   cfg.PostLoginURL(),
		Headless:       cfg.Extractor.Headless,
		FormTimeout:    cfg.Extractor.FormTimeout,
		LoginTimeout:   cfg.Extractor.LoginTimeout,
		HarvestTimeout: cfg.Extractor.HarvestTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create login extractor: %w", err)
	}

	var detectorOptions []detector.Option
	if len(cfg.Auth.FailureTerms) > 0 {
		detectorOptions = append(detectorOptions, detector.WithFailureTerms(cfg.Auth.FailureTerms))
	}
	if len(cfg.Auth.AuthCodes) > 0 {
		detectorOptions = append(detectorOptions, detector.WithAuthCodes(cfg.Auth.AuthCodes))
	}

	refresher, err := orchestrator.New(
		orchestrator.Config{
			AutoRefresh: cfg.Auth.AutoRefresh,
			RefreshKey:  cfg.Auth.TokenPath,
		},
		tokenStore,
		chromeExtractor,
		detector.New(detectorOptions...),
		authdomain.Credentials{
			Username: cfg.Auth.Username,
			Password: cfg.Auth.Password,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create refresh orchestrator: %w", err)
	}

	return refresher, nil
}

// initializeWatcher wires the API client, the image pipeline and the
// poll loop
func initializeWatcher(cfg *app.Config, refresher authdomain.RefreshProvider) (*clockout.Watcher, error) {
	client, err := clockout.NewClient(&cfg.API, refresher)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	annotator, err := imageservice.NewAnnotator(cfg.Images.Language, cfg.Images.FontPaths)
	if err != nil {
		return nil, fmt.Errorf("failed to create annotator: %w", err)
	}

	downloader := imageservice.NewDownloader(cfg.Images.DownloadTimeout, nil)
	sink, err := imageservice.NewProcessor(downloader, annotator, cfg.Images.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create image processor: %w", err)
	}

	watcher, err := clockout.NewWatcher(client, sink, cfg.Watcher.Interval, cfg.Watcher.Lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return watcher, nil
}

// runHTTPServer serves health, status and metrics endpoints until the
// context is canceled, then shuts down gracefully
func runHTTPServer(ctx context.Context, cfg *app.Config, watcher *clockout.Watcher, refresher authdomain.RefreshProvider) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())

	handler.NewHealthHandler().SetupRoutes(router)
	handler.NewStatusHandler(watcher, refresher).SetupRoutes(router)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	srv := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down HTTP server: %w", err)
	}
	log.Println("HTTP server stopped")
	return nil
}
