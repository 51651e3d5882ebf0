package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rezolved/salesforce-brain-commerce/config"
	"github.com/rezolved/salesforce-brain-commerce/internal/adapters/cache"
	"github.com/rezolved/salesforce-brain-commerce/internal/adapters/ingest"
	"github.com/rezolved/salesforce-brain-commerce/internal/adapters/logger"
	"github.com/rezolved/salesforce-brain-commerce/internal/adapters/storage"
	"github.com/rezolved/salesforce-brain-commerce/internal/api"
	"github.com/rezolved/salesforce-brain-commerce/internal/api/handlers"
	"github.com/rezolved/salesforce-brain-commerce/internal/domain/services"
	"github.com/rezolved/salesforce-brain-commerce/internal/utils"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
		interfaces.LogField{Key: "site_id", Value: cfg.SiteID},
	)

	// HTTP сервер для метрик Prometheus
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())

			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("Запуск HTTP сервера для метрик",
				interfaces.LogField{Key: "addr", Value: addr})

			if err := http.ListenAndServe(addr, mux); err != nil {
				log.Error("Ошибка запуска HTTP сервера для метрик",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}()
	}

	// Генерируем строку подключения к PostgreSQL
	connectionStr, err := utils.GenerateConnectionString(
		cfg.Postgres.Host,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
		cfg.Postgres.Port,
		cfg.Postgres.PoolSize,
		cfg.Postgres.Timeout,
	)
	if err != nil {
		log.Fatal("Ошибка генерации строки подключения к PostgreSQL",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}

	// Инициализируем кэш
	cacheClient, err := cache.NewRedisCache(
		ctx,
		cfg.Redis.Host,
		cfg.Redis.Port,
		cfg.Redis.Password,
		cfg.Redis.DB,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации кэша",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer cacheClient.Close()
	log.Info("Кэш инициализирован")

	testCtx, testCancel := context.WithTimeout(ctx, 5*time.Second)
	defer testCancel()

	if err := checkRedisConnection(testCtx, cacheClient); err != nil {
		log.Fatal("Ошибка подключения к Redis",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Соединение с Redis проверено")

	// Инициализируем хранилище
	repo, err := postgres.NewCatalogExportStorage(ctx, connectionStr, cfg.SiteID, cacheClient, log)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer repo.Close()
	log.Info("Хранилище инициализировано")

	if err := checkPostgresConnection(testCtx, repo); err != nil {
		log.Fatal("Ошибка подключения к PostgreSQL",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	log.Info("Соединение с PostgreSQL проверено")

	// Инициализируем клиент Brain Commerce
	ingestClient := ingest.NewClient(ingest.Config{
		BaseURL:         cfg.Ingest.BaseURL,
		APIKey:          cfg.Ingest.APIKey,
		Timeout:         cfg.Ingest.Timeout,
		CircuitTimeout:  cfg.Resilience.CircuitTimeout,
		HalfOpenMaxReqs: cfg.Resilience.HalfOpenMaxReqs,
		TripThreshold:   cfg.Resilience.TripThreshold,
	}, log)
	log.Info("Клиент Brain Commerce инициализирован",
		interfaces.LogField{Key: "base_url", Value: cfg.Ingest.BaseURL})

	// Инициализируем сервис экспортных джобов
	jobService := services.NewExportJobService(services.ExportJobConfig{
		SiteID:    cfg.SiteID,
		Enabled:   cfg.Ingest.Enabled,
		BaseURL:   cfg.Ingest.BaseURL,
		APIKey:    cfg.Ingest.APIKey,
		ChunkSize: cfg.Ingest.ChunkSize,
		Mapper: services.MapperConfig{
			SiteID:            cfg.SiteID,
			ListPriceBookID:   cfg.Export.ListPriceBookID,
			ImageViewTypes:    cfg.Export.ImageViewTypes,
			StorefrontBaseURL: cfg.Export.StorefrontBaseURL,
			DefaultCurrency:   cfg.Export.DefaultCurrency,
		},
	}, repo, repo, ingestClient, log)
	log.Info("Сервис экспортных джобов инициализирован")

	// Настраиваем маршрутизатор
	router := api.SetupRouter(
		jobService,
		handlers.SDKConfig{
			SDKURL:     cfg.SDK.URL,
			APIBaseURL: cfg.SDK.APIBaseURL,
			APIKey:     cfg.SDK.APIKey,
			LoadSDK:    cfg.Ingest.Enabled,
		},
		log,
		cfg.Security.CORSAllowOrigins,
		cfg.Security.AdminAPIKey,
	)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Каналы для сигналов и завершения
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Запускаем сервер в отдельной горутине
	go func() {
		log.Info("Запуск HTTP сервера",
			interfaces.LogField{Key: "addr", Value: serverAddr})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Ошибка запуска HTTP сервера",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	// Обработка сигналов завершения
	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("Ошибка при остановке HTTP сервера",
				interfaces.LogField{Key: "error", Value: err.Error()})
		}

		close(done)
	}()

	log.Info("Сервис запущен и готов к обработке запросов")
	<-done
	log.Info("Сервис корректно завершил работу")
}

// Проверка соединения с PostgreSQL
func checkPostgresConnection(ctx context.Context, repo interfaces.StoragePort) error {
	txCtx, err := repo.BeginTx(ctx)
	if err != nil {
		return err
	}
	return repo.RollbackTx(txCtx)
}

// Проверка соединения с Redis
func checkRedisConnection(ctx context.Context, cacheClient interfaces.CachePort) error {
	testKey := "test:connection"
	testValue := []byte("test-value")

	if err := cacheClient.Set(ctx, testKey, testValue, 10*time.Second); err != nil {
		return fmt.Errorf("ошибка записи в Redis: %w", err)
	}

	value, err := cacheClient.Get(ctx, testKey)
	if err != nil {
		return fmt.Errorf("ошибка чтения из Redis: %w", err)
	}
	if string(value) != string(testValue) {
		return fmt.Errorf("прочитанное из Redis значение не совпадает с записанным")
	}

	return cacheClient.Delete(ctx, testKey)
}
