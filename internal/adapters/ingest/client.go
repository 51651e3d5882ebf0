package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/internal/domain/services"
	"github.com/rezolved/salesforce-brain-commerce/internal/utils"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// Эндпоинты сервиса Brain Commerce
const (
	productEndpoint = "/v1/product"
	faqEndpoint     = "/v1/faq"
)

// Config содержит настройки HTTP клиента Brain Commerce
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Параметры circuit breaker
	CircuitTimeout  time.Duration
	HalfOpenMaxReqs int
	TripThreshold   int
}

// apiResponse - тело ответа сервиса Brain Commerce
type apiResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client - HTTP клиент сервиса Brain Commerce, реализует services.IngestPort.
//
// Все вызовы идут через circuit breaker: после серии последовательных ошибок
// цепь размыкается и вызовы отклоняются сразу, не дожидаясь таймаутов
// недоступного сервиса. Повторов внутри клиента нет.
type Client struct {
	cfg     Config
	httpCli *http.Client
	breaker *gobreaker.CircuitBreaker[*apiResponse]
	logger  interfaces.LoggerPort
}

var _ services.IngestPort = (*Client)(nil)

// NewClient создает новый клиент Brain Commerce
func NewClient(cfg Config, logger interfaces.LoggerPort) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.TripThreshold <= 0 {
		cfg.TripThreshold = 5
	}
	if cfg.HalfOpenMaxReqs <= 0 {
		cfg.HalfOpenMaxReqs = 1
	}

	breaker := gobreaker.NewCircuitBreaker[*apiResponse](gobreaker.Settings{
		Name:        "brain-commerce-ingest",
		MaxRequests: uint32(cfg.HalfOpenMaxReqs),
		Timeout:     cfg.CircuitTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(cfg.TripThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker сменил состояние",
				interfaces.LogField{Key: "breaker", Value: name},
				interfaces.LogField{Key: "from", Value: from.String()},
				interfaces.LogField{Key: "to", Value: to.String()},
			)
		},
	})

	return &Client{
		cfg:     cfg,
		httpCli: &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		logger:  logger,
	}
}

// endpointFor возвращает эндпоинт для типа записей
func endpointFor(recordType models.RecordType) string {
	if recordType == models.FaqRecordType {
		return faqEndpoint
	}
	return productEndpoint
}

// Send отправляет батч записей
func (c *Client) Send(ctx context.Context, recordType models.RecordType, records []models.IngestRecord) error {
	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to marshal ingest batch: %w", err)
	}

	_, err = c.do(ctx, http.MethodPost, endpointFor(recordType), "", body)
	return err
}

// Delete удаляет одну запись по ID
func (c *Client) Delete(ctx context.Context, recordType models.RecordType, recordID string) error {
	path := endpointFor(recordType) + "/" + url.PathEscape(recordID)
	_, err := c.do(ctx, http.MethodDelete, path, "", nil)
	return err
}

// ResetCollection сбрасывает удаленную коллекцию перед полной выгрузкой
func (c *Client) ResetCollection(ctx context.Context, recordType models.RecordType) error {
	path := endpointFor(recordType) + "/collection"
	_, err := c.do(ctx, http.MethodPost, path, "delete_existing_collection=true", nil)
	return err
}

// do выполняет один HTTP вызов через circuit breaker
func (c *Client) do(ctx context.Context, method, path, rawQuery string, body []byte) (*apiResponse, error) {
	endpoint := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	if rawQuery != "" {
		endpoint += "?" + rawQuery
	}

	return c.breaker.Execute(func() (*apiResponse, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
		if err != nil {
			return nil, fmt.Errorf("failed to build ingest request: %w", err)
		}

		req.Header.Set("X-API-Key", c.cfg.APIKey)
		req.Header.Set("accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpCli.Do(req)
		if err != nil {
			return nil, fmt.Errorf("ingest request failed: %w", err)
		}
		defer resp.Body.Close()

		// Тело читается целиком: ответы сервиса короткие ({status, message})
		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return nil, fmt.Errorf("failed to read ingest response: %w", err)
		}

		var parsed apiResponse
		if len(raw) > 0 {
			// Невалидное тело не скрывает статус HTTP ответа
			_ = json.Unmarshal(raw, &parsed)
		}

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			message := parsed.Message
			if message == "" {
				message = strings.TrimSpace(string(raw))
			}
			return nil, fmt.Errorf("%w: %s %s => %d %s",
				utils.ErrIngestRejected, method, path, resp.StatusCode, message)
		}

		return &parsed, nil
	})
}
