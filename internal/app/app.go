package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"cvscanner/internal/config"
	"cvscanner/internal/device/opencv"
	"cvscanner/internal/device/pdf"
	"cvscanner/internal/logger"
	"cvscanner/internal/repository/sqlite"
	"cvscanner/internal/route"
	"cvscanner/internal/service"
	"cvscanner/internal/service/capture"
	"cvscanner/internal/service/intake"
	"cvscanner/internal/service/probe"
	"cvscanner/internal/service/storage"
	"cvscanner/internal/service/websocket"
)

// Services are the pipeline components shared by the server and the CLI.
type Services struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *sqlite.DB
	IntakeRepo *sqlite.IntakeRepository
	ImageRepo  *sqlite.ImageRepository
	Archive    *storage.ArchiveService
	Prober     *probe.Prober
	Sessions   *capture.SessionManager
	Selector   *capture.FileSelector
	Client     *intake.Client
}

// NewServices opens the intake archive and builds the pipeline components.
func NewServices(cfg *config.Config, log *logger.Logger) (*Services, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	intakeRepo := sqlite.NewIntakeRepository(db)
	imageRepo := sqlite.NewImageRepository(db)
	camera := opencv.NewCamera(cfg, log)

	return &Services{
		Config:     cfg,
		Logger:     log,
		DB:         db,
		IntakeRepo: intakeRepo,
		ImageRepo:  imageRepo,
		Archive:    storage.NewArchiveService(cfg, log, intakeRepo, imageRepo),
		Prober:     probe.NewProber(camera, nil, cfg, log),
		Sessions:   capture.NewSessionManager(camera, opencv.NewEncoder(), cfg, log),
		Selector:   capture.NewFileSelector(pdf.NewRasterizer(cfg.MaxPages), cfg, log),
		Client:     intake.NewClient(cfg, log),
	}, nil
}

// Close releases the database.
func (s *Services) Close() error {
	return s.DB.Close()
}

type App struct {
	config     *config.Config
	logger     *logger.Logger
	services   *Services
	hubService *websocket.HubService
	manager    *service.Manager
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	services, err := NewServices(cfg, log)
	if err != nil {
		return nil, err
	}

	hub := websocket.NewHubService(log)
	mng := service.NewManager(services.Prober, services.Sessions, services.Selector,
		services.Client, services.Archive, hub, cfg, log)

	return &App{
		config:     cfg,
		logger:     log,
		services:   services,
		hubService: hub,
		manager:    mng,
	}, nil
}

// Run serves HTTP until ctx is cancelled, then shuts every session down.
func (a *App) Run(ctx context.Context) error {
	go a.hubService.Run()

	router := route.SetupRoutes(a.manager, a.services.Archive, a.config, a.logger,
		a.services.IntakeRepo, a.services.ImageRepo)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	fmt.Printf("🚀 CV Scanner intake service\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("📤 Intake endpoint: %s\n", a.config.IntakeEndpoint)
	fmt.Printf("📁 Intakes: %s\n", a.config.ImageDirectory)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		a.shutdown()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("Server shutdown error: %v", err)
	}
	a.shutdown()
	return nil
}

func (a *App) shutdown() {
	a.manager.Stop()
	a.hubService.Stop()
	if err := a.services.Close(); err != nil {
		a.logger.Error("Failed to close database: %v", err)
	}
	a.logger.Info("🛑 Server stopped")
}
