package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/internal/domain/services"
	pkgerrors "github.com/rezolved/salesforce-brain-commerce/pkg/errors"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
	"github.com/rezolved/salesforce-brain-commerce/pkg/tx"
)

const (
	// Ключ настройки маппинга атрибутов в таблице admin_settings
	attributeMappingKey = "brain_commerce_attribute_mapping"

	// TTL локального кэша конфигурации маппинга
	mappingCacheTTL = 5 * time.Minute

	// TTL снапшотов в Redis
	snapshotCacheTTL = time.Hour
)

// CatalogExportStorage - хранилище каталога и состояния экспорта в PostgreSQL.
// Реализует services.CatalogStore, services.ExportState и interfaces.StoragePort.
//
// Каталог (products, faq_items) читается потоково через курсор pgx и хранилищем
// не модифицируется. Состояние экспорта (чекпоинты, снапшоты, очередь удалений)
// принадлежит этому модулю. Снапшоты читаются через Redis с фолбэком в постгрес,
// конфигурация маппинга кэшируется локально через go-cache.
type CatalogExportStorage struct {
	pool      *pgxpool.Pool
	txManager tx.TxManager
	cache     interfaces.CachePort
	local     *gocache.Cache
	siteID    string
	logger    interfaces.LoggerPort
}

// NewCatalogExportStorage создает новое хранилище
func NewCatalogExportStorage(ctx context.Context, connectionString, siteID string, cache interfaces.CachePort, logger interfaces.LoggerPort) (*CatalogExportStorage, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &CatalogExportStorage{
		pool:      pool,
		txManager: tx.NewTxManager(pool),
		cache:     cache,
		local:     gocache.New(mappingCacheTTL, 2*mappingCacheTTL),
		siteID:    siteID,
		logger:    logger,
	}, nil
}

// NewCatalogExportStorageWithPool создает хранилище поверх готового пула
func NewCatalogExportStorageWithPool(ctx context.Context, pool *pgxpool.Pool, siteID string, cache interfaces.CachePort, logger interfaces.LoggerPort) (*CatalogExportStorage, error) {
	if pool == nil {
		return nil, errors.New("pool is nil")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return &CatalogExportStorage{
		pool:      pool,
		txManager: tx.NewTxManager(pool),
		cache:     cache,
		local:     gocache.New(mappingCacheTTL, 2*mappingCacheTTL),
		siteID:    siteID,
		logger:    logger,
	}, nil
}

// Close закрывает соединение с БД
func (r *CatalogExportStorage) Close() error {
	r.pool.Close()
	return nil
}

type executor interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// getExecutor возвращает исполнителя запросов (транзакцию или пул)
func (r *CatalogExportStorage) getExecutor(ctx context.Context) executor {
	if tx := r.getTx(ctx); tx != nil {
		return tx // pgx.Tx реализует нужные методы
	}
	return r.pool // *pgxpool.Pool тоже реализует нужные методы
}

// getTx получает транзакцию из контекста
func (r *CatalogExportStorage) getTx(ctx context.Context) pgx.Tx {
	txFromCtx, ok := ctx.Value(tx.GetKey()).(pgx.Tx)
	if !ok {
		return nil
	}
	return txFromCtx
}

// BeginTx начинает новую транзакцию
func (r *CatalogExportStorage) BeginTx(ctx context.Context) (context.Context, error) {
	newTx, err := r.pool.Begin(ctx)
	if err != nil {
		return ctx, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return context.WithValue(ctx, tx.GetKey(), newTx), nil
}

// CommitTx фиксирует транзакцию
func (r *CatalogExportStorage) CommitTx(ctx context.Context) error {
	currentTx := r.getTx(ctx)
	if currentTx == nil {
		return errors.New("no transaction in context")
	}
	return currentTx.Commit(ctx)
}

// RollbackTx откатывает транзакцию
func (r *CatalogExportStorage) RollbackTx(ctx context.Context) error {
	currentTx := r.getTx(ctx)
	if currentTx == nil {
		return errors.New("no transaction in context")
	}
	return currentTx.Rollback(ctx)
}

// ---------------------------- КАТАЛОГ ----------------------------

const productColumns = `
	id, product_type, COALESCE(master_id, ''), last_modified, online, searchable,
	system_data, custom_data, COALESCE(availability, ''), prices, variant_prices, categories, images
`

// scanProduct читает одну строку каталога продуктов.
// JSONB-колонки читаются как []byte и разбираются вручную.
func scanProduct(row pgx.Row) (*models.Product, error) {
	var product models.Product
	var systemData, customData, prices, variantPrices, categories, images []byte

	err := row.Scan(
		&product.ID, &product.Type, &product.MasterID, &product.LastModified,
		&product.Online, &product.Searchable,
		&systemData, &customData, &product.Availability,
		&prices, &variantPrices, &categories, &images,
	)
	if err != nil {
		return nil, err
	}

	for _, field := range []struct {
		raw    []byte
		target interface{}
	}{
		{systemData, &product.System},
		{customData, &product.Custom},
		{prices, &product.Prices},
		{variantPrices, &product.VariantPrices},
		{categories, &product.Categories},
		{images, &product.Images},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.target); err != nil {
			return nil, fmt.Errorf("failed to unmarshal product %s data: %w", product.ID, err)
		}
	}

	return &product, nil
}

// productRecordSource - ленивый курсор по продуктам каталога
type productRecordSource struct {
	rows pgx.Rows
}

func (s *productRecordSource) Next(ctx context.Context) (models.CatalogRecord, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate product rows: %w", err)
		}
		return nil, nil
	}
	return scanProduct(s.rows)
}

func (s *productRecordSource) Close() {
	s.rows.Close()
}

// faqRecordSource - ленивый курсор по записям FAQ
type faqRecordSource struct {
	rows pgx.Rows
}

func (s *faqRecordSource) Next(ctx context.Context) (models.CatalogRecord, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to iterate faq rows: %w", err)
		}
		return nil, nil
	}

	var faq models.FAQ
	if err := s.rows.Scan(&faq.ID, &faq.LastModified, &faq.Question, &faq.Answer); err != nil {
		return nil, err
	}
	return &faq, nil
}

func (s *faqRecordSource) Close() {
	s.rows.Close()
}

// ProductRecords возвращает курсор по всем продуктам сайта.
// Порядок стабилен между запусками, полный каталог в память не загружается.
func (r *CatalogExportStorage) ProductRecords(ctx context.Context) (services.RecordSource, error) {
	query := `
		SELECT ` + productColumns + `
		FROM catalog.products
		WHERE site_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, r.siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}

	return &productRecordSource{rows: rows}, nil
}

// FaqRecords возвращает курсор по всем записям FAQ сайта
func (r *CatalogExportStorage) FaqRecords(ctx context.Context) (services.RecordSource, error) {
	query := `
		SELECT id, last_modified, question, answer
		FROM catalog.faq_items
		WHERE site_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, r.siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query faq items: %w", err)
	}

	return &faqRecordSource{rows: rows}, nil
}

// MasterProduct возвращает мастер-продукт по ID. Возвращает nil, nil если не найден.
func (r *CatalogExportStorage) MasterProduct(ctx context.Context, productID string) (*models.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM catalog.products
		WHERE id = $1 AND site_id = $2 AND product_type = 'master'
	`

	product, err := scanProduct(r.getExecutor(ctx).QueryRow(ctx, query, productID, r.siteID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Мастер-продукт не найден
		}
		return nil, fmt.Errorf("failed to get master product: %w", err)
	}
	return product, nil
}

// AttributeMapping возвращает конфигурацию маппинга атрибутов продукта
// из admin_settings с локальным TTL-кэшем.
func (r *CatalogExportStorage) AttributeMapping(ctx context.Context) (*models.AttributeMapping, error) {
	cacheKey := r.siteID + ":" + attributeMappingKey
	if cached, ok := r.local.Get(cacheKey); ok {
		return cached.(*models.AttributeMapping), nil
	}

	query := `
		SELECT value
		FROM catalog.admin_settings
		WHERE site_id = $1 AND setting_key = $2
	`

	var raw []byte
	err := r.getExecutor(ctx).QueryRow(ctx, query, r.siteID, attributeMappingKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &models.AttributeMapping{}, nil // Маппинг не настроен
		}
		return nil, fmt.Errorf("failed to get attribute mapping: %w", err)
	}

	var mapping models.AttributeMapping
	if err := json.Unmarshal(raw, &mapping); err != nil {
		return nil, fmt.Errorf("failed to unmarshal attribute mapping: %w", err)
	}

	r.local.Set(cacheKey, &mapping, gocache.DefaultExpiration)
	return &mapping, nil
}

// ---------------------------- СОСТОЯНИЕ ЭКСПОРТА ----------------------------

// Checkpoint возвращает время старта последнего успешного запуска выгрузки
func (r *CatalogExportStorage) Checkpoint(ctx context.Context, siteID string, recordType models.RecordType) (*time.Time, error) {
	query := `
		SELECT last_export
		FROM catalog.export_checkpoints
		WHERE site_id = $1 AND record_type = $2
	`

	var lastExport time.Time
	err := r.getExecutor(ctx).QueryRow(ctx, query, siteID, string(recordType)).Scan(&lastExport)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Выгрузка еще не выполнялась
		}
		return nil, fmt.Errorf("failed to get export checkpoint: %w", err)
	}
	return &lastExport, nil
}

// SetCheckpoint сохраняет время старта запуска.
// GREATEST в апсерте гарантирует, что чекпоинт монотонно не убывает,
// даже если запуски завершаются не в порядке старта.
func (r *CatalogExportStorage) SetCheckpoint(ctx context.Context, siteID string, recordType models.RecordType, ts time.Time) error {
	query := `
		INSERT INTO catalog.export_checkpoints (site_id, record_type, last_export)
		VALUES ($1, $2, $3)
		ON CONFLICT (site_id, record_type)
		DO UPDATE SET last_export = GREATEST(catalog.export_checkpoints.last_export, EXCLUDED.last_export)
	`

	if _, err := r.getExecutor(ctx).Exec(ctx, query, siteID, string(recordType), ts.UTC()); err != nil {
		return fmt.Errorf("failed to set export checkpoint: %w", err)
	}
	return nil
}

func snapshotCacheKey(productID string) string {
	return "snapshot:" + productID
}

// Snapshot возвращает кортеж последнего выгруженного состояния продукта.
// Сначала проверяется Redis, при промахе - постгрес с прогревом кэша.
func (r *CatalogExportStorage) Snapshot(ctx context.Context, siteID string, productID string) (string, error) {
	if cached, err := r.cache.GetWithSite(ctx, snapshotCacheKey(productID), siteID); err == nil {
		return string(cached), nil
	} else if !errors.Is(err, pkgerrors.ErrCacheMiss) {
		r.logger.WarnWithContext(ctx, "Ошибка чтения снапшота из кэша, читаем из БД",
			interfaces.LogField{Key: "product_id", Value: productID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}

	query := `
		SELECT state
		FROM catalog.export_snapshots
		WHERE site_id = $1 AND product_id = $2
	`

	var state string
	err := r.getExecutor(ctx).QueryRow(ctx, query, siteID, productID).Scan(&state)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil // Продукт еще не выгружался
		}
		return "", fmt.Errorf("failed to get export snapshot: %w", err)
	}

	if err := r.cache.SetWithSite(ctx, snapshotCacheKey(productID), []byte(state), siteID, snapshotCacheTTL); err != nil {
		r.logger.WarnWithContext(ctx, "Не удалось прогреть кэш снапшотов",
			interfaces.LogField{Key: "product_id", Value: productID},
			interfaces.LogField{Key: "error", Value: err.Error()},
		)
	}

	return state, nil
}

// SetSnapshots атомарно сохраняет снапшоты продуктов одного батча:
// одна транзакция на батч, кэш обновляется после фиксации.
func (r *CatalogExportStorage) SetSnapshots(ctx context.Context, siteID string, entries map[string]string) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO catalog.export_snapshots (site_id, product_id, state, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (site_id, product_id)
		DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at
	`

	now := time.Now().UTC()
	err := r.txManager.Do(ctx, func(txCtx context.Context) error {
		exec := r.getExecutor(txCtx)
		for productID, state := range entries {
			if _, err := exec.Exec(txCtx, query, siteID, productID, state, now); err != nil {
				return fmt.Errorf("failed to save snapshot for product %s: %w", productID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Кэш обновляется после фиксации транзакции; ошибка кэша не фатальна,
	// следующий промах перечитает состояние из БД
	for productID, state := range entries {
		if err := r.cache.SetWithSite(ctx, snapshotCacheKey(productID), []byte(state), siteID, snapshotCacheTTL); err != nil {
			r.logger.WarnWithContext(ctx, "Не удалось обновить кэш снапшотов после записи батча",
				interfaces.LogField{Key: "product_id", Value: productID},
				interfaces.LogField{Key: "error", Value: err.Error()},
			)
			break
		}
	}

	return nil
}

// PendingDeletions возвращает ID записей, ожидающих удаления, в порядке постановки
func (r *CatalogExportStorage) PendingDeletions(ctx context.Context, recordType models.RecordType) ([]string, error) {
	query := `
		SELECT record_id
		FROM catalog.pending_deletions
		WHERE site_id = $1 AND record_type = $2
		ORDER BY enqueued_at
	`

	rows, err := r.getExecutor(ctx).Query(ctx, query, r.siteID, string(recordType))
	if err != nil {
		return nil, fmt.Errorf("failed to query pending deletions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pending deletion: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending deletions: %w", err)
	}

	return ids, nil
}

// RemovePendingDeletions атомарно удаляет из очереди подтвержденно удаленные ID
func (r *CatalogExportStorage) RemovePendingDeletions(ctx context.Context, recordType models.RecordType, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query := `
		DELETE FROM catalog.pending_deletions
		WHERE site_id = $1 AND record_type = $2 AND record_id = ANY($3)
	`

	if _, err := r.getExecutor(ctx).Exec(ctx, query, r.siteID, string(recordType), ids); err != nil {
		return fmt.Errorf("failed to remove pending deletions: %w", err)
	}
	return nil
}

// AddPendingDeletion добавляет ID записи в очередь удалений.
// Повторная постановка того же ID не ошибка.
func (r *CatalogExportStorage) AddPendingDeletion(ctx context.Context, recordType models.RecordType, recordID string) error {
	query := `
		INSERT INTO catalog.pending_deletions (site_id, record_type, record_id, enqueued_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (site_id, record_type, record_id) DO NOTHING
	`

	if _, err := r.getExecutor(ctx).Exec(ctx, query, r.siteID, string(recordType), recordID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to add pending deletion: %w", err)
	}
	return nil
}
