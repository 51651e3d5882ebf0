package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/rezolved/salesforce-brain-commerce/internal/api/handlers"
	"github.com/rezolved/salesforce-brain-commerce/internal/api/middleware"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// SetupRouter настраивает маршрутизатор
func SetupRouter(
	jobs handlers.ExportJobRunner,
	sdkConfig handlers.SDKConfig,
	logger interfaces.LoggerPort,
	corsAllowedOrigins []string,
	adminAPIKey string,
) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	// Экспортные джобы выполняются синхронно в обработчике, таймаут с запасом
	r.Use(middleware.Timeout(10 * time.Minute))
	r.Use(middleware.CORS(corsAllowedOrigins))

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.APIKey(adminAPIKey, logger))

		exportHandler := handlers.NewExportHandler(jobs, sdkConfig, logger)

		// Запуск экспортных джобов
		r.Post("/export/{job}", exportHandler.TriggerExport)

		// Конфигурация клиентского сниппета
		r.Get("/sdk/config", exportHandler.GetSDKConfig)
	})

	return r
}
