package event

import (
	"log/slog"
	"sync"
)

type HandlerFunc func(raw any)

// Bus fans events out to subscribers by name. Publish runs handlers on their
// own goroutines; PublishSync runs them in subscription order before
// returning.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]HandlerFunc
	inflight sync.WaitGroup
	log      *slog.Logger
}

func NewBus() *Bus {
	return &Bus{
		handlers: make(map[string][]HandlerFunc),
		log:      slog.Default(),
	}
}

// WithLogger sets the logger used to report handler panics.
func (b *Bus) WithLogger(log *slog.Logger) *Bus {
	if log != nil {
		b.log = log
	}
	return b
}

func (b *Bus) Subscribe(eventName string, handler HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

func (b *Bus) subscribers(eventName string) []HandlerFunc {
	b.mu.RLock()
	defer b.mu.RUnlock()
	handlers := make([]HandlerFunc, len(b.handlers[eventName]))
	copy(handlers, b.handlers[eventName])
	return handlers
}

func (b *Bus) Publish(eventName string, evt any) {
	for _, handler := range b.subscribers(eventName) {
		b.inflight.Add(1)
		go func(h HandlerFunc) {
			defer b.inflight.Done()
			b.call(eventName, h, evt)
		}(handler)
	}
}

func (b *Bus) PublishSync(eventName string, evt any) {
	for _, handler := range b.subscribers(eventName) {
		b.call(eventName, handler, evt)
	}
}

// Wait blocks until every handler started by Publish has returned.
func (b *Bus) Wait() {
	b.inflight.Wait()
}

func (b *Bus) call(eventName string, h HandlerFunc, evt any) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Event handler panicked", "event", eventName, "panic", r)
		}
	}()
	h(evt)
}
