package dataset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	flushesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memorix_dataset_flushes_total",
		Help: "Successful dataset flushes.",
	})
	droppedRowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memorix_dataset_dropped_rows_total",
		Help: "Rows dropped because the queue was saturated or a flush kept failing.",
	})
)
