package engine_util

import "github.com/prometheus/client_golang/prometheus"

var (
	engineOpCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cfkv",
			Subsystem: "engine",
			Name:      "ops_total",
			Help:      "Counter of engine operations.",
		}, []string{"type", "result"})

	writeBatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cfkv",
			Subsystem: "engine",
			Name:      "write_batch_duration_seconds",
			Help:      "Bucketed histogram of write batch commit time (s).",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 13),
		})

	writeBatchSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "cfkv",
			Subsystem: "engine",
			Name:      "write_batch_size_bytes",
			Help:      "Bucketed histogram of committed write batch data size.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 10),
		})

	rangeDeletedKeys = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfkv",
			Subsystem: "engine",
			Name:      "range_deleted_keys_total",
			Help:      "Counter of keys removed by range deletions.",
		})

	sstWrittenBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfkv",
			Subsystem: "sst",
			Name:      "written_bytes_total",
			Help:      "Counter of bytes of finished sst files.",
		})

	sstIngestedEntries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "cfkv",
			Subsystem: "sst",
			Name:      "ingested_entries_total",
			Help:      "Counter of sst entries replayed into the engine.",
		})
)

func init() {
	prometheus.MustRegister(engineOpCounter)
	prometheus.MustRegister(writeBatchDuration)
	prometheus.MustRegister(writeBatchSize)
	prometheus.MustRegister(rangeDeletedKeys)
	prometheus.MustRegister(sstWrittenBytes)
	prometheus.MustRegister(sstIngestedEntries)
}
