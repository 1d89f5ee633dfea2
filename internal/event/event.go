package event

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

const (
	defaultPoolSize = 1000
	defaultTimeout  = 30 * time.Second
)

type Event interface {
	Name() string
}

type Handler func(ctx context.Context, e Event) error

// Bus is an in-memory asynchronous event bus. Handlers run on their own
// goroutines bounded by a shared pool; a failing or panicking handler is
// logged and never propagates back to the publisher.
type Bus struct {
	pool     chan struct{}
	timeout  time.Duration
	wg       sync.WaitGroup
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewBus creates a new event bus. Callers should call Stop to drain
// in-flight handlers on shutdown.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		pool:     make(chan struct{}, defaultPoolSize),
		timeout:  defaultTimeout,
		handlers: make(map[string][]Handler),
	}

	for _, opt := range opts {
		opt(b)
	}

	return b
}

type BusOption func(*Bus)

func WithPoolSize(n int) BusOption {
	return func(b *Bus) {
		b.pool = make(chan struct{}, n)
	}
}

func WithHandlerTimeout(d time.Duration) BusOption {
	return func(b *Bus) {
		b.timeout = d
	}
}

// Subscribe registers a handler for the named event.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[name] = append(b.handlers[name], h)
}

// Publish dispatches the event to every subscribed handler asynchronously.
// The publisher's context cancellation does not cancel the handlers; only
// the bus timeout bounds them.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, h := range b.handlers[e.Name()] {
		b.dispatch(ctx, h, e)
	}
}

func (b *Bus) dispatch(ctx context.Context, h Handler, e Event) {
	b.wg.Add(1)

	b.pool <- struct{}{}

	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "event: handler panic",
					"event", e.Name(),
					"error", fmt.Errorf("%v, stack: %s", r, debug.Stack()),
				)
			}

			cancel()
			<-b.pool
			b.wg.Done()
		}()

		if err := h(ctx, e); err != nil {
			slog.ErrorContext(ctx, "event: handle event failed",
				"event", e.Name(),
				"error", err,
			)
		}
	}()
}

// Stop waits for all in-flight handlers to finish.
func (b *Bus) Stop() {
	b.wg.Wait()
}
