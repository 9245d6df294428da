package gifbox

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineOperations counts create/delete outcomes.
	PipelineOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gifbox_pipeline_operations_total",
		Help: "Total number of pipeline operations by operation and outcome",
	}, []string{"operation", "outcome"})

	// OrphanedBlobs counts blobs left behind after a failed compensation delete.
	OrphanedBlobs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gifbox_orphaned_blobs_total",
		Help: "Total number of blobs that could not be removed after a failed metadata insert",
	})

	// SearchSyncFailures counts best-effort index writes that failed.
	SearchSyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gifbox_search_sync_failures_total",
		Help: "Total number of failed search index writes by operation",
	}, []string{"operation"})

	// StaleSearchHits counts hits dropped because the post no longer exists.
	StaleSearchHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gifbox_search_stale_hits_total",
		Help: "Total number of search hits without a matching post record",
	})

	// TranscodeDuration records how long the external converter runs.
	TranscodeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gifbox_transcode_duration_seconds",
		Help:    "Transcode process duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	// TranscodesInFlight is the number of running converter processes.
	TranscodesInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gifbox_transcodes_in_flight",
		Help: "Number of transcode processes currently running",
	})

	// TranscodeRejections counts requests turned away at capacity.
	TranscodeRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gifbox_transcode_rejections_total",
		Help: "Total number of transcode requests rejected for lack of capacity",
	})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gifbox_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})
)
