package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/internal/domain/services"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// ExportJobRunner определяет операции запуска экспортных джобов
type ExportJobRunner interface {
	FullProductExport(ctx context.Context) models.JobStatus
	DeltaProductExport(ctx context.Context, params services.DeltaProductParams) models.JobStatus
	FullFaqExport(ctx context.Context) models.JobStatus
	DeltaFaqExport(ctx context.Context, params services.DeltaFaqParams) models.JobStatus
}

// SDKConfig описывает настройки клиентского сниппета Brain Commerce
type SDKConfig struct {
	SDKURL     string `json:"sdk_url"`
	APIBaseURL string `json:"api_base_url"`
	APIKey     string `json:"api_key"`
	LoadSDK    bool   `json:"load_sdk"`
}

// ExportHandler обработчик админ-запросов экспорта
type ExportHandler struct {
	jobs      ExportJobRunner
	sdkConfig SDKConfig
	logger    interfaces.LoggerPort
}

// NewExportHandler создает новый обработчик экспорта
func NewExportHandler(jobs ExportJobRunner, sdkConfig SDKConfig, logger interfaces.LoggerPort) *ExportHandler {
	return &ExportHandler{
		jobs:      jobs,
		sdkConfig: sdkConfig,
		logger:    logger,
	}
}

// errorResponse представляет структуру ответа с ошибкой
type errorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// response представляет структуру успешного ответа
type response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
}

// triggerRequest - тело запроса запуска джоба (все поля опциональны)
type triggerRequest struct {
	DataPriorToHours    float64 `json:"data_prior_to_hours"`
	FaqDataPriorToHours float64 `json:"faq_data_prior_to_hours"`
	ListPriceBookID     string  `json:"list_price_book_id"`
}

// TriggerExport запускает экспортный джоб синхронно и возвращает его статус.
// Имя джоба берется из URL: full-product, delta-product, full-faq, delta-faq.
func (h *ExportHandler) TriggerExport(w http.ResponseWriter, r *http.Request) {
	jobName := chi.URLParam(r, "job")

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, errorResponse{
			Error:   "bad_request",
			Code:    http.StatusBadRequest,
			Message: "Невалидное тело запроса",
		})
		return
	}

	var status models.JobStatus
	switch jobName {
	case "full-product":
		status = h.jobs.FullProductExport(r.Context())
	case "delta-product":
		status = h.jobs.DeltaProductExport(r.Context(), services.DeltaProductParams{
			DataPriorToHours: req.DataPriorToHours,
			ListPriceBookID:  req.ListPriceBookID,
		})
	case "full-faq":
		status = h.jobs.FullFaqExport(r.Context())
	case "delta-faq":
		status = h.jobs.DeltaFaqExport(r.Context(), services.DeltaFaqParams{
			FaqDataPriorToHours: req.FaqDataPriorToHours,
		})
	default:
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, errorResponse{
			Error:   "not_found",
			Code:    http.StatusNotFound,
			Message: "Неизвестный экспортный джоб: " + jobName,
		})
		return
	}

	// Ошибки джоба не покидают его границу: клиент всегда получает статус
	httpStatus := http.StatusOK
	if status.Outcome == models.JobError {
		httpStatus = http.StatusUnprocessableEntity
	}

	render.Status(r, httpStatus)
	render.JSON(w, r, response{
		Success: status.Outcome == models.JobOK,
		Data:    status,
	})
}

// GetSDKConfig возвращает конфигурацию клиентского сниппета для витрины
func (h *ExportHandler) GetSDKConfig(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusOK)
	render.JSON(w, r, response{
		Success: true,
		Data:    h.sdkConfig,
	})
}
