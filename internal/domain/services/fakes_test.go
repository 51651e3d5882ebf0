package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
	"github.com/rezolved/salesforce-brain-commerce/pkg/interfaces"
)

// nopLogger - логгер-заглушка для тестов
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

func (l nopLogger) WithFields(fields ...interfaces.LogField) interfaces.LoggerPort   { return l }
func (l nopLogger) WithField(key string, value interface{}) interfaces.LoggerPort    { return l }
func (l nopLogger) WithSite(siteID string) interfaces.LoggerPort                     { return l }
func (l nopLogger) WithRunID(runID string) interfaces.LoggerPort                     { return l }
func (nopLogger) SetLevel(level interfaces.LogLevel)                                 {}
func (nopLogger) GetLevel() interfaces.LogLevel                                      { return interfaces.InfoLevel }
func (nopLogger) Sync() error                                                        { return nil }

// fakeSource отдает записи из слайса по одной
type fakeSource struct {
	records []models.CatalogRecord
	// err возвращается после исчерпания записей вместо конца источника
	err    error
	pos    int
	closed bool
}

func (s *fakeSource) Next(ctx context.Context) (models.CatalogRecord, error) {
	if s.pos >= len(s.records) {
		if s.err != nil {
			return nil, s.err
		}
		return nil, nil
	}
	record := s.records[s.pos]
	s.pos++
	return record, nil
}

func (s *fakeSource) Close() { s.closed = true }

// fakeIngest записывает обращения к транспорту Brain Commerce
type fakeIngest struct {
	batches     [][]models.IngestRecord
	deleted     []string
	resetCalls  int
	sendErrOn   int   // номер батча (с 1), на котором Send вернет ошибку; 0 - без ошибок
	deleteErrOn map[string]error
	resetErr    error
}

func (f *fakeIngest) Send(ctx context.Context, recordType models.RecordType, records []models.IngestRecord) error {
	if f.sendErrOn > 0 && len(f.batches)+1 == f.sendErrOn {
		return fmt.Errorf("ingest rejected batch %d", f.sendErrOn)
	}
	batch := make([]models.IngestRecord, len(records))
	copy(batch, records)
	f.batches = append(f.batches, batch)
	return nil
}

func (f *fakeIngest) Delete(ctx context.Context, recordType models.RecordType, recordID string) error {
	if err := f.deleteErrOn[recordID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, recordID)
	return nil
}

func (f *fakeIngest) ResetCollection(ctx context.Context, recordType models.RecordType) error {
	if f.resetErr != nil {
		return f.resetErr
	}
	f.resetCalls++
	return nil
}

func (f *fakeIngest) sentTotal() int {
	total := 0
	for _, batch := range f.batches {
		total += len(batch)
	}
	return total
}

// fakeState - состояние экспорта в памяти
type fakeState struct {
	checkpoints       map[string]time.Time // ключ siteID+"/"+recordType
	snapshots         map[string]string    // ключ siteID+"/"+productID
	pending           map[models.RecordType][]string
	snapshotBatches   []map[string]string // каждая запись - один вызов SetSnapshots
	checkpointWrites  int
	snapshotErr       error
	pendingReadErr    error
	pendingRemoveErr  error
}

func newFakeState() *fakeState {
	return &fakeState{
		checkpoints: make(map[string]time.Time),
		snapshots:   make(map[string]string),
		pending:     make(map[models.RecordType][]string),
	}
}

func stateKey(siteID string, recordType models.RecordType) string {
	return siteID + "/" + string(recordType)
}

func (s *fakeState) Checkpoint(ctx context.Context, siteID string, recordType models.RecordType) (*time.Time, error) {
	ts, ok := s.checkpoints[stateKey(siteID, recordType)]
	if !ok {
		return nil, nil
	}
	return &ts, nil
}

func (s *fakeState) SetCheckpoint(ctx context.Context, siteID string, recordType models.RecordType, ts time.Time) error {
	s.checkpoints[stateKey(siteID, recordType)] = ts
	s.checkpointWrites++
	return nil
}

func (s *fakeState) Snapshot(ctx context.Context, siteID string, productID string) (string, error) {
	return s.snapshots[siteID+"/"+productID], nil
}

func (s *fakeState) SetSnapshots(ctx context.Context, siteID string, entries map[string]string) error {
	if s.snapshotErr != nil {
		return s.snapshotErr
	}
	batch := make(map[string]string, len(entries))
	for id, tuple := range entries {
		s.snapshots[siteID+"/"+id] = tuple
		batch[id] = tuple
	}
	s.snapshotBatches = append(s.snapshotBatches, batch)
	return nil
}

func (s *fakeState) PendingDeletions(ctx context.Context, recordType models.RecordType) ([]string, error) {
	if s.pendingReadErr != nil {
		return nil, s.pendingReadErr
	}
	return append([]string(nil), s.pending[recordType]...), nil
}

func (s *fakeState) RemovePendingDeletions(ctx context.Context, recordType models.RecordType, ids []string) error {
	if s.pendingRemoveErr != nil {
		return s.pendingRemoveErr
	}
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	kept := make([]string, 0, len(s.pending[recordType]))
	for _, id := range s.pending[recordType] {
		if _, ok := remove[id]; !ok {
			kept = append(kept, id)
		}
	}
	s.pending[recordType] = kept
	return nil
}

func (s *fakeState) AddPendingDeletion(ctx context.Context, recordType models.RecordType, recordID string) error {
	s.pending[recordType] = append(s.pending[recordType], recordID)
	return nil
}

// fakeCatalog - каталог в памяти
type fakeCatalog struct {
	products    []models.CatalogRecord
	faqs        []models.CatalogRecord
	masters     map[string]*models.Product
	mapping     *models.AttributeMapping
	masterCalls int
	mappingErr  error
}

func (c *fakeCatalog) ProductRecords(ctx context.Context) (RecordSource, error) {
	return &fakeSource{records: c.products}, nil
}

func (c *fakeCatalog) FaqRecords(ctx context.Context) (RecordSource, error) {
	return &fakeSource{records: c.faqs}, nil
}

func (c *fakeCatalog) MasterProduct(ctx context.Context, productID string) (*models.Product, error) {
	c.masterCalls++
	return c.masters[productID], nil
}

func (c *fakeCatalog) AttributeMapping(ctx context.Context) (*models.AttributeMapping, error) {
	if c.mappingErr != nil {
		return nil, c.mappingErr
	}
	if c.mapping == nil {
		return &models.AttributeMapping{}, nil
	}
	return c.mapping, nil
}

// testMapping - минимальный валидный маппинг атрибутов
func testMapping() *models.AttributeMapping {
	return &models.AttributeMapping{
		SystemAttributes: []models.AttributeRule{
			{BrainCommerceAttr: "title", SfccAttr: "name", DefaultValue: ""},
		},
	}
}

func testProduct(id string, lastModified time.Time) *models.Product {
	return &models.Product{
		ID:           id,
		Type:         models.StandardProduct,
		LastModified: lastModified,
		Online:       true,
		Searchable:   true,
		Availability: "IN_STOCK",
		System:       map[string]interface{}{"name": "Product " + id},
		Prices: map[string]models.PriceEntry{
			"usd-list-prices": {ListPrice: 100, SalePrice: 90, Currency: "USD"},
		},
	}
}

func testMapperConfig() MapperConfig {
	return MapperConfig{
		SiteID:            "RefArch",
		ListPriceBookID:   "usd-list-prices",
		ImageViewTypes:    []string{"large", "medium"},
		StorefrontBaseURL: "https://shop.example.com",
		DefaultCurrency:   "USD",
	}
}
