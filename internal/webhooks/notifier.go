package webhooks

import (
	"context"
	"log/slog"
	"sync"
)

type event struct {
	eventType string
	data      map[string]any
}

// Notifier decouples event producers from webhook delivery: Notify
// enqueues without blocking and a single worker drains the queue
// through the dispatcher. Dispatch failures never reach the producer's
// write path.
type Notifier struct {
	dispatcher *Dispatcher
	logger     *slog.Logger

	queue  chan event
	done   chan struct{}
	closed sync.Once
	wg     sync.WaitGroup
}

// NewNotifier creates a Notifier with the given queue capacity.
func NewNotifier(dispatcher *Dispatcher, logger *slog.Logger, capacity int) *Notifier {
	if capacity <= 0 {
		capacity = 64
	}
	return &Notifier{
		dispatcher: dispatcher,
		logger:     logger,
		queue:      make(chan event, capacity),
		done:       make(chan struct{}),
	}
}

// Start launches the delivery worker. The worker stops when the
// context is cancelled or Close is called, after draining queued
// events.
func (n *Notifier) Start(ctx context.Context) {
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		for {
			select {
			case ev, ok := <-n.queue:
				if !ok {
					return
				}
				n.dispatch(ctx, ev)
			case <-ctx.Done():
				return
			case <-n.done:
				// Drain what is already queued, then stop.
				for {
					select {
					case ev := <-n.queue:
						n.dispatch(ctx, ev)
					default:
						return
					}
				}
			}
		}
	}()
}

// Notify enqueues an event for delivery. When the queue is full the
// event is dropped with a warning rather than blocking the caller.
func (n *Notifier) Notify(eventType string, data map[string]any) {
	select {
	case n.queue <- event{eventType: eventType, data: data}:
	default:
		n.logger.Warn("webhook event dropped, queue full",
			slog.String("event_type", eventType),
		)
	}
}

// Close stops the worker after draining queued events.
func (n *Notifier) Close() {
	n.closed.Do(func() { close(n.done) })
	n.wg.Wait()
}

func (n *Notifier) dispatch(ctx context.Context, ev event) {
	if _, err := n.dispatcher.DispatchEvent(ctx, ev.eventType, ev.data); err != nil {
		n.logger.ErrorContext(ctx, "event dispatch failed",
			slog.String("event_type", ev.eventType),
			slog.String("error", err.Error()),
		)
	}
}
