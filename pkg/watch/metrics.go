package watch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "osbs_watch_events_total",
		Help: "Watch events delivered to consumers, by event type.",
	}, []string{"type"})

	malformedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "osbs_watch_malformed_events_total",
		Help: "Stream lines dropped because they were not well-formed events.",
	})

	reconnectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "osbs_watch_reconnects_total",
		Help: "Times a watch stream ended and a reconnect was scheduled.",
	})
)
