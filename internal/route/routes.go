package route

import (
	"net/http"

	"cvscanner/internal/config"
	"cvscanner/internal/handler"
	"cvscanner/internal/logger"
	"cvscanner/internal/middleware"
	"cvscanner/internal/repository"
	"cvscanner/internal/service"
	"cvscanner/internal/service/storage"

	"github.com/gorilla/mux"
)

// SetupRoutes registers the pipeline, page, history and log endpoints and
// wraps the router with request logging and the token guard.
func SetupRoutes(manager *service.Manager, archive *storage.ArchiveService, cfg *config.Config, logger *logger.Logger,
	intakeRepo repository.IntakeRepository, imageRepo repository.ImageRepository) http.Handler {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()

	// Pipeline session
	api.HandleFunc("/session", handler.StartSessionHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/state", handler.StateHandler(manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/actions/{action}", handler.ActionHandler(manager, logger)).Methods(http.MethodPost)
	api.HandleFunc("/view", handler.ViewWebsocketHandler(manager, logger))

	// Page buffer
	api.HandleFunc("/pages", handler.ListPagesHandler(manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/pages/upload", handler.UploadPagesHandler(manager, cfg, logger)).Methods(http.MethodPost)
	api.HandleFunc("/pages/{id}/image", handler.PageImageHandler(manager, logger)).Methods(http.MethodGet)
	api.HandleFunc("/pages/{id}", handler.RetakePageHandler(manager, logger)).Methods(http.MethodDelete)

	// Accepted intakes
	api.HandleFunc("/intakes", handler.ListIntakesHandler(cfg, logger, intakeRepo, imageRepo)).Methods(http.MethodGet)
	api.HandleFunc("/intakes/{id}", handler.GetIntakeHandler(logger, intakeRepo, imageRepo)).Methods(http.MethodGet)
	api.HandleFunc("/intakes/{id}", handler.DeleteIntakeHandler(archive, logger)).Methods(http.MethodDelete)

	// Log endpoints
	router.HandleFunc("/logs/{level}", handler.ShowLogsHandler(logger)).Methods(http.MethodGet)
	router.HandleFunc("/logs/{level}/clear", handler.ClearLogsHandler(logger)).Methods(http.MethodPost)

	router.Use(middleware.LoggingMiddleware(logger), middleware.AuthMiddleware(cfg.APIToken))
	return router
}
