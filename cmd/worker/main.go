package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rezolved/salesforce-brain-commerce/config"
	"github.com/rezolved/salesforce-brain-commerce/internal/adapters/cache"
	"github.com/rezolved/salesforce-brain-commerce/internal/adapters/ingest"
	"github.com/rezolved/salesforce-brain-commerce/internal/adapters/logger"
	"github.com/rezolved/salesforce-brain-commerce/internal/adapters/messaging"
	"github.com/rezolved/salesforce-brain-commerce/internal/adapters/storage"
	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/internal/domain/services"
	"github.com/rezolved/salesforce-brain-commerce/internal/utils"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// Метрики для Prometheus
var (
	messagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "worker_messages_processed_total",
		Help: "Общее количество обработанных сообщений",
	}, []string{"topic", "status"})

	messageProcessingDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "worker_message_processing_duration_seconds",
		Help:    "Длительность обработки сообщений",
		Buckets: prometheus.DefBuckets,
	}, []string{"topic"})
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

	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
		interfaces.LogField{Key: "site_id", Value: cfg.SiteID},
	)

	// HTTP сервер для метрик Prometheus
	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("OK"))
			})

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

	// Инициализируем хранилище
	repo, err := postgres.NewCatalogExportStorage(ctx, connectionStr, cfg.SiteID, cacheClient, log)
	if err != nil {
		log.Fatal("Ошибка инициализации хранилища",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer repo.Close()
	log.Info("Хранилище инициализировано")

	// Инициализируем систему обмена сообщениями
	messagingClient, err := messaging.NewKafkaMessaging(
		cfg.Kafka.Brokers,
		cfg.Kafka.GroupID,
		log,
	)
	if err != nil {
		log.Fatal("Ошибка инициализации системы обмена сообщениями",
			interfaces.LogField{Key: "error", Value: err.Error()})
	}
	defer messagingClient.Close()
	log.Info("Система обмена сообщениями инициализирована")

	// Инициализируем клиент Brain Commerce
	ingestClient := ingest.NewClient(ingest.Config{
		BaseURL:         cfg.Ingest.BaseURL,
		APIKey:          cfg.Ingest.APIKey,
		Timeout:         cfg.Ingest.Timeout,
		CircuitTimeout:  cfg.Resilience.CircuitTimeout,
		HalfOpenMaxReqs: cfg.Resilience.HalfOpenMaxReqs,
		TripThreshold:   cfg.Resilience.TripThreshold,
	}, log)

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

	// Каналы для сигналов и завершения
	done := make(chan bool, 1)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var wg sync.WaitGroup

	// Подписываемся на команды экспорта и события каталога
	subscribeToExportCommands(ctx, cfg, messagingClient, jobService, log, &wg)
	subscribeToCatalogEvents(ctx, cfg, messagingClient, repo, log, &wg)

	// Обработка сигналов завершения
	go func() {
		<-quit
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")
		cancel()
		wg.Wait()
		close(done)
	}()

	log.Info("Воркер запущен и готов к обработке сообщений")
	<-done
	log.Info("Воркер корректно завершил работу")
}

// Подписка на команды экспорта
func subscribeToExportCommands(ctx context.Context, cfg *config.Config,
	messagingClient interfaces.MessagingPort, jobService *services.ExportJobService,
	logger interfaces.LoggerPort, wg *sync.WaitGroup) {

	commandHandler := func(ctx context.Context, msg *interfaces.Message) error {
		startTime := time.Now()

		logger.InfoWithContext(ctx, "Получена команда экспорта",
			interfaces.LogField{Key: "message_id", Value: msg.ID},
			interfaces.LogField{Key: "topic", Value: msg.Topic},
		)

		var command models.ExportCommand
		if err := json.Unmarshal(msg.Value, &command); err != nil {
			logger.ErrorWithContext(ctx, "Ошибка декодирования команды",
				interfaces.LogField{Key: "error", Value: err.Error()})
			messagesProcessed.WithLabelValues(msg.Topic, "error").Inc()
			return err
		}

		// Команды чужого сайта пропускаем без обработки
		if command.SiteID != "" && command.SiteID != cfg.SiteID {
			messagesProcessed.WithLabelValues(msg.Topic, "skipped").Inc()
			return nil
		}

		var status models.JobStatus
		switch command.CommandType {
		case messaging.FullProductExportCommand:
			status = jobService.FullProductExport(ctx)

		case messaging.DeltaProductExportCommand:
			status = jobService.DeltaProductExport(ctx, services.DeltaProductParams{
				DataPriorToHours: command.DataPriorHours,
				ListPriceBookID:  command.ListPriceBookID,
			})

		case messaging.FullFaqExportCommand:
			status = jobService.FullFaqExport(ctx)

		case messaging.DeltaFaqExportCommand:
			status = jobService.DeltaFaqExport(ctx, services.DeltaFaqParams{
				FaqDataPriorToHours: command.DataPriorHours,
			})

		default:
			logger.WarnWithContext(ctx, "Неизвестный тип команды",
				interfaces.LogField{Key: "command_type", Value: command.CommandType})
			messagesProcessed.WithLabelValues(msg.Topic, "unknown").Inc()
			return nil
		}

		// Публикуем итоговый статус джоба в топик результатов
		if cfg.Kafka.ResultTopic != "" {
			payload, err := json.Marshal(status)
			if err == nil {
				err = messagingClient.Publish(ctx, cfg.Kafka.ResultTopic, payload)
			}
			if err != nil {
				logger.ErrorWithContext(ctx, "Ошибка публикации результата джоба",
					interfaces.LogField{Key: "error", Value: err.Error()})
			}
		}

		duration := time.Since(startTime).Seconds()
		messageProcessingDuration.WithLabelValues(msg.Topic).Observe(duration)
		messagesProcessed.WithLabelValues(msg.Topic, string(status.Outcome)).Inc()

		logger.InfoWithContext(ctx, "Команда экспорта обработана",
			interfaces.LogField{Key: "command_type", Value: command.CommandType},
			interfaces.LogField{Key: "outcome", Value: string(status.Outcome)},
			interfaces.LogField{Key: "processed", Value: status.Processed},
			interfaces.LogField{Key: "duration", Value: duration},
		)

		return nil
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		unsubscribe, err := messagingClient.Subscribe(ctx, cfg.Kafka.CommandTopic, commandHandler)
		if err != nil {
			logger.Error("Ошибка подписки на команды экспорта",
				interfaces.LogField{Key: "error", Value: err.Error()})
			return
		}
		defer unsubscribe()

		logger.Info("Подписка на команды экспорта установлена",
			interfaces.LogField{Key: "topic", Value: cfg.Kafka.CommandTopic})

		<-ctx.Done()
		logger.Info("Отмена подписки на команды экспорта")
	}()
}

// Подписка на события каталога
func subscribeToCatalogEvents(ctx context.Context, cfg *config.Config,
	messagingClient interfaces.MessagingPort, repo *postgres.CatalogExportStorage,
	logger interfaces.LoggerPort, wg *sync.WaitGroup) {

	eventHandler := func(ctx context.Context, msg *interfaces.Message) error {
		startTime := time.Now()

		var event models.CatalogEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.ErrorWithContext(ctx, "Ошибка декодирования события каталога",
				interfaces.LogField{Key: "error", Value: err.Error()},
				interfaces.LogField{Key: "message_id", Value: msg.ID},
			)
			messagesProcessed.WithLabelValues(msg.Topic, "error").Inc()
			return err
		}

		if event.SiteID != "" && event.SiteID != cfg.SiteID {
			messagesProcessed.WithLabelValues(msg.Topic, "skipped").Inc()
			return nil
		}

		switch event.EventType {
		case messaging.ProductDeletedEvent, messaging.FaqDeletedEvent:
			// Запись встает в очередь удалений и будет убрана из Brain Commerce
			// при следующей дельта-выгрузке
			if err := repo.AddPendingDeletion(ctx, event.RecordType, event.RecordID); err != nil {
				logger.ErrorWithContext(ctx, "Ошибка постановки записи в очередь удалений",
					interfaces.LogField{Key: "record_type", Value: string(event.RecordType)},
					interfaces.LogField{Key: "record_id", Value: event.RecordID},
					interfaces.LogField{Key: "error", Value: err.Error()},
				)
				messagesProcessed.WithLabelValues(msg.Topic, "error").Inc()
				return err
			}

			logger.InfoWithContext(ctx, "Запись поставлена в очередь удалений",
				interfaces.LogField{Key: "record_type", Value: string(event.RecordType)},
				interfaces.LogField{Key: "record_id", Value: event.RecordID},
			)

		default:
			messagesProcessed.WithLabelValues(msg.Topic, "unknown").Inc()
			return nil
		}

		duration := time.Since(startTime).Seconds()
		messageProcessingDuration.WithLabelValues(msg.Topic).Observe(duration)
		messagesProcessed.WithLabelValues(msg.Topic, "success").Inc()

		return nil
	}

	wg.Add(1)

	go func() {
		defer wg.Done()

		unsubscribe, err := messagingClient.Subscribe(ctx, cfg.Kafka.CatalogTopic, eventHandler)
		if err != nil {
			logger.Error("Ошибка подписки на события каталога",
				interfaces.LogField{Key: "error", Value: err.Error()})
			return
		}
		defer unsubscribe()

		logger.Info("Подписка на события каталога установлена",
			interfaces.LogField{Key: "topic", Value: cfg.Kafka.CatalogTopic})

		<-ctx.Done()
		logger.Info("Отмена подписки на события каталога")
	}()
}
