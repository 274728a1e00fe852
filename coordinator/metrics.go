package coordinator

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// eventsReceived counts new events by how they were received
	eventsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gofi_coordinator_events_received_total",
		Help: "Events recorded by the coordinator, by source (client or cascade)",
	}, []string{"source"})

	duplicateReceives = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gofi_coordinator_duplicate_receives_total",
		Help: "Receive calls for events that had already been received",
	})

	queries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gofi_coordinator_queries_total",
		Help: "Coordinator queries by kind and result",
	}, []string{"query", "met"})
)

func observeQuery(query string, met bool) {
	queries.WithLabelValues(query, strconv.FormatBool(met)).Inc()
}
