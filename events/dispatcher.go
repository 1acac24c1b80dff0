package events

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
)

// Event names routed through the dispatcher.
const (
	EventMessageCreate   = "message_create"
	EventAutomodTimeout  = "automod_timeout"
	EventReportTagChange = "report_tag_change"
)

// Handler consumes one event payload. Returning an error is recorded, not
// fatal to the queue.
type Handler func(ctx context.Context, evt any) error

type queue struct {
	ch chan any
}

// Dispatcher fans events out to per-type ordered queues. Each event type gets
// one goroutine, so handlers for a given type run strictly in arrival order
// while distinct types proceed independently.
type Dispatcher struct {
	Logger *slog.Logger

	mu       sync.Mutex
	queues   map[string][]*queue
	handlers map[string][]Handler
	shutdown bool
	wg       sync.WaitGroup
}

func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		Logger:   logger.With("system", "events"),
		queues:   make(map[string][]*queue),
		handlers: make(map[string][]Handler),
	}
}

// Subscribe registers a handler for an event type and starts its queue
// worker. Subscribing after Shutdown panics.
func (d *Dispatcher) Subscribe(eventType string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown {
		panic("events: subscribe after shutdown")
	}

	q := &queue{ch: make(chan any, 1024)}
	d.queues[eventType] = append(d.queues[eventType], q)
	d.handlers[eventType] = append(d.handlers[eventType], h)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for evt := range q.ch {
			d.run(eventType, h, evt)
		}
	}()
}

func (d *Dispatcher) run(eventType string, h Handler, evt any) {
	defer func() {
		if r := recover(); r != nil {
			eventPanicsCount.WithLabelValues(eventType).Inc()
			d.Logger.Error("event handler panicked",
				"eventType", eventType, "panic", fmt.Sprint(r), "stack", string(debug.Stack()))
		}
	}()
	if err := h(context.Background(), evt); err != nil {
		eventErrorsCount.WithLabelValues(eventType).Inc()
		d.Logger.Error("event handler failed", "eventType", eventType, "err", err)
	}
}

// Dispatch enqueues an event for every subscriber of its type. A full queue
// drops the event rather than blocking the producer.
func (d *Dispatcher) Dispatch(eventType string, evt any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.shutdown {
		return
	}
	eventsDispatchedCount.WithLabelValues(eventType).Inc()
	for _, q := range d.queues[eventType] {
		select {
		case q.ch <- evt:
		default:
			eventDropsCount.WithLabelValues(eventType).Inc()
			d.Logger.Warn("event queue full, dropping", "eventType", eventType)
		}
	}
}

// Shutdown stops accepting events and drains every queue.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.shutdown {
		d.mu.Unlock()
		return
	}
	d.shutdown = true
	for _, qs := range d.queues {
		for _, q := range qs {
			close(q.ch)
		}
	}
	d.mu.Unlock()
	d.wg.Wait()
}
