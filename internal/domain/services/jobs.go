package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/internal/utils"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// ExportJobConfig содержит параметры экспортных джобов
type ExportJobConfig struct {
	SiteID    string
	Enabled   bool   // включена ли выгрузка в Brain Commerce
	BaseURL   string // базовый URL сервиса Brain Commerce
	APIKey    string
	ChunkSize int
	Mapper    MapperConfig
}

// DeltaProductParams - параметры дельта-выгрузки продуктов
type DeltaProductParams struct {
	// DataPriorToHours задает явный порог: выгружаются продукты, измененные
	// за последние N часов. При нулевом значении порогом служит чекпоинт.
	DataPriorToHours float64 `json:"data_prior_to_hours"`
	// ListPriceBookID переопределяет прайсбук из конфигурации на один запуск
	ListPriceBookID string `json:"list_price_book_id"`
}

// DeltaFaqParams - параметры дельта-выгрузки FAQ
type DeltaFaqParams struct {
	FaqDataPriorToHours float64 `json:"faq_data_prior_to_hours"`
}

// ExportJobService реализует экспортные джобы Brain Commerce.
//
// Каждый запуск проходит фазы: валидация конфигурации -> (полная выгрузка:
// сброс коллекции) -> (дельта: обработка очереди удалений) -> выгрузка батчей ->
// фиксация чекпоинта. Жесткая ошибка любой фазы завершает запуск со статусом
// ERROR; внутри запуска повторов нет, единица повтора - следующий запуск
// по расписанию. Ошибки не покидают границу джоба.
type ExportJobService struct {
	cfg         ExportJobConfig
	catalog     CatalogStore
	state       ExportState
	ingest      IngestPort
	checkpoints *CheckpointService
	reconciler  *DeletionReconciler
	reset       *CollectionResetCoordinator
	logger      interfaces.LoggerPort
}

// NewExportJobService создает новый сервис экспортных джобов
func NewExportJobService(
	cfg ExportJobConfig,
	catalog CatalogStore,
	state ExportState,
	ingest IngestPort,
	logger interfaces.LoggerPort,
) *ExportJobService {
	return &ExportJobService{
		cfg:         cfg,
		catalog:     catalog,
		state:       state,
		ingest:      ingest,
		checkpoints: NewCheckpointService(cfg.SiteID, state, logger),
		reconciler:  NewDeletionReconciler(state, ingest, logger),
		reset:       NewCollectionResetCoordinator(ingest, logger),
		logger:      logger,
	}
}

// FullProductExport выполняет полную выгрузку продуктов
func (s *ExportJobService) FullProductExport(ctx context.Context) (status models.JobStatus) {
	return s.runJob(ctx, "full_product_export", "Full Product Export", func(ctx context.Context, log interfaces.LoggerPort) (int, error) {
		mapping, err := s.validateProductConfig(ctx)
		if err != nil {
			return 0, err
		}

		// Полная выгрузка обязана начинаться с пустой удаленной коллекции
		if err := s.reset.ResetBeforeFullExport(ctx, models.ProductRecordType); err != nil {
			return 0, err
		}

		return s.exportProducts(ctx, log, models.FullExport, nil, "", mapping)
	})
}

// DeltaProductExport выполняет дельта-выгрузку продуктов
func (s *ExportJobService) DeltaProductExport(ctx context.Context, params DeltaProductParams) (status models.JobStatus) {
	return s.runJob(ctx, "delta_product_export", "Delta Product Export", func(ctx context.Context, log interfaces.LoggerPort) (int, error) {
		mapping, err := s.validateProductConfig(ctx)
		if err != nil {
			return 0, err
		}

		// Перед выгрузкой разгребаем очередь удалений
		deleted, failed, err := s.reconciler.Reconcile(ctx, models.ProductRecordType)
		if err != nil {
			return 0, err
		}
		if deleted > 0 || failed > 0 {
			log.InfoWithContext(ctx, "Очередь удалений продуктов обработана",
				interfaces.LogField{Key: "deleted", Value: deleted},
				interfaces.LogField{Key: "failed", Value: failed},
			)
		}

		return s.exportProducts(ctx, log, models.DeltaExport, hoursThreshold(params.DataPriorToHours), params.ListPriceBookID, mapping)
	})
}

// FullFaqExport выполняет полную выгрузку FAQ
func (s *ExportJobService) FullFaqExport(ctx context.Context) (status models.JobStatus) {
	return s.runJob(ctx, "full_faq_export", "Full Faq Export", func(ctx context.Context, log interfaces.LoggerPort) (int, error) {
		if err := s.validateBaseConfig(); err != nil {
			return 0, err
		}

		if err := s.reset.ResetBeforeFullExport(ctx, models.FaqRecordType); err != nil {
			return 0, err
		}

		return s.exportFaqs(ctx, log, models.FullExport, nil)
	})
}

// DeltaFaqExport выполняет дельта-выгрузку FAQ
func (s *ExportJobService) DeltaFaqExport(ctx context.Context, params DeltaFaqParams) (status models.JobStatus) {
	return s.runJob(ctx, "delta_faq_export", "Delta Faq Export", func(ctx context.Context, log interfaces.LoggerPort) (int, error) {
		if err := s.validateBaseConfig(); err != nil {
			return 0, err
		}

		deleted, failed, err := s.reconciler.Reconcile(ctx, models.FaqRecordType)
		if err != nil {
			return 0, err
		}
		if deleted > 0 || failed > 0 {
			log.InfoWithContext(ctx, "Очередь удалений FAQ обработана",
				interfaces.LogField{Key: "deleted", Value: deleted},
				interfaces.LogField{Key: "failed", Value: failed},
			)
		}

		return s.exportFaqs(ctx, log, models.DeltaExport, hoursThreshold(params.FaqDataPriorToHours))
	})
}

// runJob оборачивает фазы запуска в единый жизненный цикл: логирование,
// перехват паники и преобразование результата в статус джоба.
func (s *ExportJobService) runJob(ctx context.Context, jobName, jobTitle string, run func(ctx context.Context, log interfaces.LoggerPort) (int, error)) (status models.JobStatus) {
	log := s.logger.WithRunID(uuid.New().String()).WithSite(s.cfg.SiteID)

	// Неожиданная паника (например, из-за некорректной записи) не должна
	// выходить за границу джоба: чекпоинт и снапшоты к этому моменту либо уже
	// зафиксированы после подтвержденных отправок, либо не тронуты
	defer func() {
		if r := recover(); r != nil {
			log.Error("Паника при выполнении экспортного джоба",
				interfaces.LogField{Key: "job", Value: jobName},
				interfaces.LogField{Key: "panic", Value: fmt.Sprintf("%v", r)},
			)
			status = models.JobStatus{
				Outcome: models.JobError,
				Message: fmt.Sprintf("%s Job Finished with ERROR %v", jobTitle, r),
			}
			jobRuns.WithLabelValues(jobName, "error").Inc()
		}
	}()

	log.Info(fmt.Sprintf("***** %s Job Started *****", jobTitle))

	processed, err := run(ctx, log)
	if err != nil {
		log.Error("Экспортный джоб завершился с ошибкой",
			interfaces.LogField{Key: "job", Value: jobName},
			interfaces.LogField{Key: "processed", Value: processed},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
		jobRuns.WithLabelValues(jobName, "error").Inc()
		return models.JobStatus{
			Outcome:   models.JobError,
			Message:   fmt.Sprintf("%s Job Finished with ERROR %s", jobTitle, err.Error()),
			Processed: processed,
		}
	}

	log.Info(fmt.Sprintf("***** %s Job Finished *****", jobTitle),
		interfaces.LogField{Key: "processed", Value: processed})
	jobRuns.WithLabelValues(jobName, "success").Inc()

	return models.JobStatus{
		Outcome:   models.JobOK,
		Message:   fmt.Sprintf("%s Job Finished, Records Processed => %d", jobTitle, processed),
		Processed: processed,
	}
}

// exportProducts выполняет фазу выгрузки продуктов и фиксирует чекпоинт
func (s *ExportJobService) exportProducts(ctx context.Context, log interfaces.LoggerPort, mode models.ExportMode, threshold *time.Time, priceBookID string, mapping *models.AttributeMapping) (int, error) {
	// Чекпоинт читается один раз на старте запуска и не перечитывается
	var checkpoint *time.Time
	if mode == models.DeltaExport && threshold == nil {
		var err error
		checkpoint, err = s.checkpoints.Get(ctx, models.ProductRecordType)
		if err != nil {
			return 0, fmt.Errorf("failed to read product export checkpoint: %w", err)
		}
	}

	// Время старта фиксируется до открытия источника: снимок каталога, который
	// увидит запуск, не может быть старше будущего чекпоинта, иначе запись,
	// закоммиченная между этими моментами, навсегда выпала бы из дельты
	runStart := time.Now().UTC()

	source, err := s.catalog.ProductRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open product record source: %w", err)
	}
	defer source.Close()

	exporter := s.newExporter(priceBookID, log)

	processed, runErr := exporter.Run(ctx, source, models.ProductRecordType, mode, checkpoint, threshold, mapping)
	if runErr != nil {
		return processed, runErr
	}

	if err := s.checkpoints.Commit(ctx, models.ProductRecordType, runStart, processed); err != nil {
		return processed, fmt.Errorf("failed to commit product export checkpoint: %w", err)
	}
	return processed, nil
}

// exportFaqs выполняет фазу выгрузки FAQ и фиксирует чекпоинт
func (s *ExportJobService) exportFaqs(ctx context.Context, log interfaces.LoggerPort, mode models.ExportMode, threshold *time.Time) (int, error) {
	var checkpoint *time.Time
	if mode == models.DeltaExport && threshold == nil {
		var err error
		checkpoint, err = s.checkpoints.Get(ctx, models.FaqRecordType)
		if err != nil {
			return 0, fmt.Errorf("failed to read faq export checkpoint: %w", err)
		}
	}

	// Время старта фиксируется до открытия источника, как и для продуктов
	runStart := time.Now().UTC()

	source, err := s.catalog.FaqRecords(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to open faq record source: %w", err)
	}
	defer source.Close()

	exporter := s.newExporter("", log)

	processed, runErr := exporter.Run(ctx, source, models.FaqRecordType, mode, checkpoint, threshold, nil)
	if runErr != nil {
		return processed, runErr
	}

	if err := s.checkpoints.Commit(ctx, models.FaqRecordType, runStart, processed); err != nil {
		return processed, fmt.Errorf("failed to commit faq export checkpoint: %w", err)
	}
	return processed, nil
}

// newExporter собирает конвейер выгрузки одного запуска.
// Переопределение прайсбука действует только в рамках этого запуска.
func (s *ExportJobService) newExporter(priceBookID string, log interfaces.LoggerPort) *BatchExporter {
	mapper := NewAttributeMapper(s.cfg.Mapper).WithListPriceBook(priceBookID)
	detector := NewChangeDetector(s.cfg.SiteID, mapper, s.state, log)
	return NewBatchExporter(s.cfg.SiteID, s.cfg.ChunkSize, mapper, detector, s.ingest, s.state, s.catalog, log)
}

// validateBaseConfig проверяет общую конфигурацию выгрузки.
// Ошибки конфигурации фатальны и обнаруживаются до любых сетевых вызовов.
func (s *ExportJobService) validateBaseConfig() error {
	if !s.cfg.Enabled {
		return utils.ErrExportBackendDisabled
	}
	if s.cfg.SiteID == "" {
		return utils.ErrExportEmptySiteID
	}
	if s.cfg.BaseURL == "" {
		return utils.ErrExportEmptyBaseURL
	}
	if s.cfg.APIKey == "" {
		return utils.ErrExportEmptyAPIKey
	}
	return nil
}

// validateProductConfig дополнительно требует непустой маппинг атрибутов продукта
func (s *ExportJobService) validateProductConfig(ctx context.Context) (*models.AttributeMapping, error) {
	if err := s.validateBaseConfig(); err != nil {
		return nil, err
	}

	mapping, err := s.catalog.AttributeMapping(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load product attribute mapping: %w", err)
	}
	if mapping.Empty() {
		return nil, utils.ErrExportEmptyMapping
	}
	return mapping, nil
}

// hoursThreshold преобразует параметр "за последние N часов" в явный порог времени
func hoursThreshold(hours float64) *time.Time {
	if hours <= 0 {
		return nil
	}
	t := time.Now().Add(-time.Duration(hours * float64(time.Hour))).UTC()
	return &t
}
