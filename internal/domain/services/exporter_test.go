package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezolved/salesforce-brain-commerce/internal/domain/models"
)

func newExporterFixture(chunkSize int, ingest *fakeIngest, state *fakeState, catalog *fakeCatalog) *BatchExporter {
	mapper := NewAttributeMapper(testMapperConfig())
	detector := NewChangeDetector("RefArch", mapper, state, nopLogger{})
	return NewBatchExporter("RefArch", chunkSize, mapper, detector, ingest, state, catalog, nopLogger{})
}

func manyProducts(n int, lastModified time.Time) []models.CatalogRecord {
	records := make([]models.CatalogRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, testProduct(seqProductID(i), lastModified))
	}
	return records
}

func seqProductID(i int) string { return "prod-" + string(rune('a'+i/26)) + string(rune('a'+i%26)) }

func TestRun_FullExportChunksSource(t *testing.T) {
	ingest := &fakeIngest{}
	state := newFakeState()
	catalog := &fakeCatalog{}
	exporter := newExporterFixture(100, ingest, state, catalog)

	source := &fakeSource{records: manyProducts(150, time.Now())}

	processed, err := exporter.Run(context.Background(), source, models.ProductRecordType, models.FullExport, nil, nil, testMapping())
	require.NoError(t, err)

	assert.Equal(t, 150, processed)
	require.Len(t, ingest.batches, 2)
	assert.Len(t, ingest.batches[0], 100)
	assert.Len(t, ingest.batches[1], 50)

	// Снапшоты записываются по одной транзакции на батч
	require.Len(t, state.snapshotBatches, 2)
	assert.Len(t, state.snapshotBatches[0], 100)
	assert.Len(t, state.snapshotBatches[1], 50)
	assert.Equal(t, "IN_STOCK|100|90", state.snapshots["RefArch/"+seqProductID(0)])
}

func TestRun_SendFailureHaltsRunAndKeepsPriorCount(t *testing.T) {
	ingest := &fakeIngest{sendErrOn: 2}
	state := newFakeState()
	exporter := newExporterFixture(100, ingest, state, &fakeCatalog{})

	source := &fakeSource{records: manyProducts(150, time.Now())}

	processed, err := exporter.Run(context.Background(), source, models.ProductRecordType, models.FullExport, nil, nil, testMapping())
	require.Error(t, err)

	assert.Equal(t, 100, processed, "неотправленный батч в счетчик не входит")
	assert.Equal(t, 100, ingest.sentTotal())
	// Снапшоты неотправленного батча не записаны
	require.Len(t, state.snapshotBatches, 1)
	assert.Len(t, state.snapshotBatches[0], 100)
}

func TestRun_FirstBatchFailureReturnsZero(t *testing.T) {
	ingest := &fakeIngest{sendErrOn: 1}
	state := newFakeState()
	exporter := newExporterFixture(100, ingest, state, &fakeCatalog{})

	source := &fakeSource{records: manyProducts(10, time.Now())}

	processed, err := exporter.Run(context.Background(), source, models.ProductRecordType, models.FullExport, nil, nil, testMapping())
	require.Error(t, err)
	assert.Zero(t, processed)
	assert.Empty(t, state.snapshotBatches)
}

func TestRun_SkipsNonExportableProducts(t *testing.T) {
	ingest := &fakeIngest{}
	exporter := newExporterFixture(100, ingest, newFakeState(), &fakeCatalog{})

	bundle := testProduct("bundle-1", time.Now())
	bundle.Type = models.BundleProduct
	set := testProduct("set-1", time.Now())
	set.Type = models.ProductSet
	group := testProduct("group-1", time.Now())
	group.Type = models.VariationGroupProduct

	source := &fakeSource{records: []models.CatalogRecord{
		bundle, set, group, testProduct("prod-1", time.Now()),
	}}

	processed, err := exporter.Run(context.Background(), source, models.ProductRecordType, models.FullExport, nil, nil, testMapping())
	require.NoError(t, err)

	assert.Equal(t, 1, processed)
	require.Len(t, ingest.batches, 1)
	assert.Equal(t, "prod-1", ingest.batches[0][0]["id"])
}

func TestRun_DeltaSkipsIneligibleRecords(t *testing.T) {
	ingest := &fakeIngest{}
	state := newFakeState()
	exporter := newExporterFixture(100, ingest, state, &fakeCatalog{})

	checkpoint := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	fresh := testProduct("prod-fresh", checkpoint.Add(time.Hour))
	stale := testProduct("prod-stale", checkpoint.Add(-time.Hour))
	state.snapshots["RefArch/prod-stale"] = "IN_STOCK|100|90"

	source := &fakeSource{records: []models.CatalogRecord{fresh, stale}}

	processed, err := exporter.Run(context.Background(), source, models.ProductRecordType, models.DeltaExport, &checkpoint, nil, testMapping())
	require.NoError(t, err)

	assert.Equal(t, 1, processed)
	require.Len(t, ingest.batches, 1)
	assert.Equal(t, "prod-fresh", ingest.batches[0][0]["id"])
}

func TestRun_DeltaVariantPullsMasterIntoBatch(t *testing.T) {
	checkpoint := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	master := testProduct("master-1", checkpoint.Add(-48*time.Hour))
	master.Type = models.MasterProduct

	variant := testProduct("var-1", checkpoint.Add(time.Hour))
	variant.Type = models.VariantProduct
	variant.MasterID = "master-1"

	ingest := &fakeIngest{}
	state := newFakeState()
	state.snapshots["RefArch/master-1"] = "IN_STOCK|100|90"
	catalog := &fakeCatalog{masters: map[string]*models.Product{"master-1": master}}
	exporter := newExporterFixture(100, ingest, state, catalog)

	source := &fakeSource{records: []models.CatalogRecord{variant}}

	processed, err := exporter.Run(context.Background(), source, models.ProductRecordType, models.DeltaExport, &checkpoint, nil, testMapping())
	require.NoError(t, err)

	// Мастер попадает в батч в обход проверки изменений и входит в счетчик
	assert.Equal(t, 2, processed)
	require.Len(t, ingest.batches, 1)
	require.Len(t, ingest.batches[0], 2)
	assert.Equal(t, "var-1", ingest.batches[0][0]["id"])
	assert.Equal(t, "master-1", ingest.batches[0][1]["id"])
	assert.Equal(t, 1, catalog.masterCalls)
}

func TestRun_MasterSentOnceForManyVariants(t *testing.T) {
	checkpoint := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

	master := testProduct("master-1", checkpoint.Add(-48*time.Hour))
	master.Type = models.MasterProduct

	variants := make([]models.CatalogRecord, 0, 3)
	for _, id := range []string{"var-1", "var-2", "var-3"} {
		v := testProduct(id, checkpoint.Add(time.Hour))
		v.Type = models.VariantProduct
		v.MasterID = "master-1"
		variants = append(variants, v)
	}
	// Сам мастер тоже встречается в источнике позже вариантов
	state := newFakeState()
	state.snapshots["RefArch/master-1"] = "IN_STOCK|100|90"
	records := append(variants, master)

	ingest := &fakeIngest{}
	catalog := &fakeCatalog{masters: map[string]*models.Product{"master-1": master}}
	exporter := newExporterFixture(100, ingest, state, catalog)

	processed, err := exporter.Run(context.Background(), &fakeSource{records: records}, models.ProductRecordType, models.DeltaExport, &checkpoint, nil, testMapping())
	require.NoError(t, err)

	assert.Equal(t, 4, processed, "3 варианта + мастер ровно один раз")
	assert.Equal(t, 1, catalog.masterCalls, "мастер загружается один раз на запуск")

	ids := make([]string, 0, len(ingest.batches[0]))
	for _, record := range ingest.batches[0] {
		ids = append(ids, record["id"].(string))
	}
	assert.Equal(t, []string{"var-1", "master-1", "var-2", "var-3"}, ids)
}

func TestRun_FaqExport(t *testing.T) {
	ingest := &fakeIngest{}
	state := newFakeState()
	exporter := newExporterFixture(100, ingest, state, &fakeCatalog{})

	source := &fakeSource{records: []models.CatalogRecord{
		&models.FAQ{ID: "faq-1", Question: "Q1", Answer: "A1", LastModified: time.Now()},
		&models.FAQ{ID: "faq-2", Question: "Q2", Answer: "A2", LastModified: time.Now()},
	}}

	processed, err := exporter.Run(context.Background(), source, models.FaqRecordType, models.FullExport, nil, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, processed)
	require.Len(t, ingest.batches, 1)
	assert.Equal(t, "Q1", ingest.batches[0][0]["question"])
	// Для FAQ снапшоты не ведутся
	assert.Empty(t, state.snapshotBatches)
}

func TestRun_SourceErrorHaltsRun(t *testing.T) {
	ingest := &fakeIngest{}
	exporter := newExporterFixture(100, ingest, newFakeState(), &fakeCatalog{})

	source := &fakeSource{
		records: manyProducts(5, time.Now()),
		err:     assert.AnError,
	}

	processed, err := exporter.Run(context.Background(), source, models.ProductRecordType, models.FullExport, nil, nil, testMapping())
	require.Error(t, err)
	assert.Zero(t, processed, "неполный батч не был отправлен до ошибки источника")
	assert.Empty(t, ingest.batches)
}
