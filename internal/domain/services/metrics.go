package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики для Prometheus
var (
	recordsExported = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_records_total",
		Help: "Общее количество выгруженных записей",
	}, []string{"record_type"})

	batchesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_batches_total",
		Help: "Общее количество отправленных батчей",
	}, []string{"record_type", "status"})

	batchSendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "export_batch_send_duration_seconds",
		Help:    "Длительность отправки батча в Brain Commerce",
		Buckets: prometheus.DefBuckets,
	}, []string{"record_type"})

	deletionsReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_deletions_total",
		Help: "Количество обработанных отложенных удалений",
	}, []string{"record_type", "status"})

	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "export_job_runs_total",
		Help: "Количество запусков экспортных джобов",
	}, []string{"job", "outcome"})
)
