package analytics

import (
	"context"
	"log/slog"
	"sync"
)

// LocalBus dispatches events synchronously to in-process subscribers.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler
	next     uint64
	logger   *slog.Logger
}

// NewLocalBus builds an empty in-process bus.
func NewLocalBus(logger *slog.Logger) *LocalBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocalBus{handlers: make(map[uint64]Handler), logger: logger}
}

// Publish calls every subscriber. A panicking handler is logged and skipped.
func (b *LocalBus) Publish(ctx context.Context, evt Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.dispatch(ctx, h, evt)
	}
	return nil
}

// Subscribe registers h until the returned cancel func is called.
func (b *LocalBus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			b.mu.Unlock()
		})
	}
}

// Subscribers returns the number of registered handlers.
func (b *LocalBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}

func (b *LocalBus) dispatch(ctx context.Context, h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("analytics event handler panicked",
				slog.String("kind", string(evt.Kind)),
				slog.String("user_id", evt.UserID),
				slog.Any("panic", r),
			)
		}
	}()
	h(ctx, evt)
}

var _ Bus = (*LocalBus)(nil)
