package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/internal/domain/services"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...interface{}) {}
func (nopLogger) Info(msg string, args ...interface{})  {}
func (nopLogger) Warn(msg string, args ...interface{})  {}
func (nopLogger) Error(msg string, args ...interface{}) {}
func (nopLogger) Fatal(msg string, args ...interface{}) {}
func (nopLogger) Panic(msg string, args ...interface{}) {}

func (nopLogger) DebugWithContext(ctx context.Context, msg string, args ...interface{}) {}
func (nopLogger) InfoWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) WarnWithContext(ctx context.Context, msg string, args ...interface{})  {}
func (nopLogger) ErrorWithContext(ctx context.Context, msg string, args ...interface{}) {}

func (l nopLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort { return l }
func (l nopLogger) WithField(key string, value interface{}) interfaces.LoggerPort  { return l }
func (l nopLogger) WithSite(siteID string) interfaces.LoggerPort                   { return l }
func (l nopLogger) WithRunID(runID string) interfaces.LoggerPort                   { return l }
func (nopLogger) SetLevel(level interfaces.LogLevel)                               {}
func (nopLogger) GetLevel() interfaces.LogLevel                                    { return interfaces.InfoLevel }
func (nopLogger) Sync() error                                                      { return nil }

// fakeJobRunner записывает вызовы джобов
type fakeJobRunner struct {
	status        models.JobStatus
	calls         []string
	productParams services.DeltaProductParams
	faqParams     services.DeltaFaqParams
}

func (f *fakeJobRunner) FullProductExport(ctx context.Context) models.JobStatus {
	f.calls = append(f.calls, "full_product")
	return f.status
}

func (f *fakeJobRunner) DeltaProductExport(ctx context.Context, params services.DeltaProductParams) models.JobStatus {
	f.calls = append(f.calls, "delta_product")
	f.productParams = params
	return f.status
}

func (f *fakeJobRunner) FullFaqExport(ctx context.Context) models.JobStatus {
	f.calls = append(f.calls, "full_faq")
	return f.status
}

func (f *fakeJobRunner) DeltaFaqExport(ctx context.Context, params services.DeltaFaqParams) models.JobStatus {
	f.calls = append(f.calls, "delta_faq")
	f.faqParams = params
	return f.status
}

func newTestRouter(runner *fakeJobRunner) *chi.Mux {
	handler := NewExportHandler(runner, SDKConfig{
		SDKURL:     "https://sdk.braincommerce.example.com/sdk.js",
		APIBaseURL: "https://api.braincommerce.example.com",
		APIKey:     "sdk-key",
		LoadSDK:    true,
	}, nopLogger{})

	r := chi.NewRouter()
	r.Post("/export/{job}", handler.TriggerExport)
	r.Get("/sdk/config", handler.GetSDKConfig)
	return r
}

func TestTriggerExport_FullProduct(t *testing.T) {
	runner := &fakeJobRunner{status: models.JobStatus{
		Outcome:   models.JobOK,
		Message:   "Full Product Export Job Finished, Records Processed => 42",
		Processed: 42,
	}}
	router := newTestRouter(runner)

	req := httptest.NewRequest(http.MethodPost, "/export/full-product", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"full_product"}, runner.calls)

	var body struct {
		Success bool             `json:"success"`
		Data    models.JobStatus `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, 42, body.Data.Processed)
}

func TestTriggerExport_DeltaProductPassesParams(t *testing.T) {
	runner := &fakeJobRunner{status: models.JobStatus{Outcome: models.JobOK}}
	router := newTestRouter(runner)

	payload := `{"data_prior_to_hours": 24, "list_price_book_id": "eur-list-prices"}`
	req := httptest.NewRequest(http.MethodPost, "/export/delta-product", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"delta_product"}, runner.calls)
	assert.Equal(t, 24.0, runner.productParams.DataPriorToHours)
	assert.Equal(t, "eur-list-prices", runner.productParams.ListPriceBookID)
}

func TestTriggerExport_JobErrorMapsToUnprocessable(t *testing.T) {
	runner := &fakeJobRunner{status: models.JobStatus{
		Outcome: models.JobError,
		Message: "Full Faq Export Job Finished with ERROR brain commerce export backend is disabled",
	}}
	router := newTestRouter(runner)

	req := httptest.NewRequest(http.MethodPost, "/export/full-faq", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, []string{"full_faq"}, runner.calls)
}

func TestTriggerExport_UnknownJob(t *testing.T) {
	runner := &fakeJobRunner{}
	router := newTestRouter(runner)

	req := httptest.NewRequest(http.MethodPost, "/export/nightly-sync", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, runner.calls, "неизвестный джоб не запускает ничего")
}

func TestTriggerExport_InvalidBody(t *testing.T) {
	runner := &fakeJobRunner{}
	router := newTestRouter(runner)

	req := httptest.NewRequest(http.MethodPost, "/export/delta-faq", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, runner.calls)
}

func TestGetSDKConfig(t *testing.T) {
	router := newTestRouter(&fakeJobRunner{})

	req := httptest.NewRequest(http.MethodGet, "/sdk/config", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool      `json:"success"`
		Data    SDKConfig `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "https://api.braincommerce.example.com", body.Data.APIBaseURL)
	assert.True(t, body.Data.LoadSDK)
}
