package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsDispatchedCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kagura_events_dispatched",
		Help: "Number of events fanned out, by type.",
	}, []string{"type"})

	eventDropsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kagura_event_drops",
		Help: "Number of events dropped on a full queue, by type.",
	}, []string{"type"})

	eventErrorsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kagura_event_handler_errors",
		Help: "Number of event handler failures, by type.",
	}, []string{"type"})

	eventPanicsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kagura_event_handler_panics",
		Help: "Number of recovered event handler panics, by type.",
	}, []string{"type"})
)
