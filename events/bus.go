// Package events provides the typed publish/subscribe bus that notifies
// external consumers of entity graph mutations. Listeners are ordered by
// priority, individually filtered, and delivered with per-listener error
// isolation so one failing consumer never starves the rest.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Name identifies an event stream on the bus.
type Name string

// Events emitted by the indexer.
const (
	FileChanged    Name = "file-changed"
	EntityCreated  Name = "entity-created"
	EntityUpdated  Name = "entity-updated"
	EntityDeleted  Name = "entity-deleted"
	BatchOperation Name = "batch-operation"
)

// ErrWaitTimeout is returned by WaitFor when no matching event arrives
// before the deadline.
var ErrWaitTimeout = errors.New("events: wait timed out")

// Listener receives an event payload. A returned error is routed to the
// bus's error handler; it never interrupts delivery to other listeners.
type Listener func(ctx context.Context, payload any) error

// Filter decides whether a listener sees a particular payload. A rejecting
// filter excludes the listener from that delivery without consuming its
// once flag.
type Filter func(payload any) bool

// ListenerID is the handle returned by On, used to deregister.
type ListenerID string

// ErrorHandler receives listener failures during async delivery.
type ErrorHandler func(event Name, id ListenerID, err error)

type registration struct {
	id       ListenerID
	fn       Listener
	filter   Filter
	priority int
	once     bool
	seq      uint64 // registration order, tie-break among equal priority
}

// Bus is the event emitter. The zero value is not usable; construct with
// NewBus.
type Bus struct {
	mu        sync.Mutex
	listeners map[Name][]*registration
	seq       uint64

	sync    bool
	onError ErrorHandler
	logger  *slog.Logger
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// Synchronous makes Emit deliver to listeners sequentially in priority
// order instead of concurrently.
func Synchronous() BusOption {
	return func(b *Bus) { b.sync = true }
}

// WithErrorHandler routes listener failures to fn instead of the default
// log-and-continue handler.
func WithErrorHandler(fn ErrorHandler) BusOption {
	return func(b *Bus) { b.onError = fn }
}

// WithLogger sets the bus logger.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = logger }
}

// NewBus creates an event bus. By default delivery is concurrent with
// error isolation and failures are logged.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		listeners: make(map[Name][]*registration),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.onError == nil {
		b.onError = func(event Name, id ListenerID, err error) {
			b.logger.Error("event listener failed",
				"event", string(event),
				"listener", string(id),
				"error", err)
		}
	}
	return b
}

// SubscribeOption configures a single listener registration.
type SubscribeOption func(*registration)

// WithFilter attaches a delivery filter to the listener.
func WithFilter(f Filter) SubscribeOption {
	return func(r *registration) { r.filter = f }
}

// WithPriority sets the listener priority. Higher priority listeners are
// invoked first; equal priorities keep registration order.
func WithPriority(p int) SubscribeOption {
	return func(r *registration) { r.priority = p }
}

// Once removes the listener after the first delivery in which it was
// actually invoked (i.e. passed its filter).
func Once() SubscribeOption {
	return func(r *registration) { r.once = true }
}

// On registers a listener for an event and returns its handle.
func (b *Bus) On(event Name, fn Listener, opts ...SubscribeOption) ListenerID {
	reg := &registration{
		id: ListenerID(uuid.NewString()),
		fn: fn,
	}
	for _, opt := range opts {
		opt(reg)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	reg.seq = b.seq
	b.seq++

	regs := append(b.listeners[event], reg)
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].priority != regs[j].priority {
			return regs[i].priority > regs[j].priority
		}
		return regs[i].seq < regs[j].seq
	})
	b.listeners[event] = regs
	return reg.id
}

// Off removes a listener. Returns false if the handle is unknown.
func (b *Bus) Off(event Name, id ListenerID) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	regs := b.listeners[event]
	for i, reg := range regs {
		if reg.id == id {
			b.listeners[event] = append(regs[:i:i], regs[i+1:]...)
			return true
		}
	}
	return false
}

// ListenerCount returns the number of listeners registered for an event.
func (b *Bus) ListenerCount(event Name) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[event])
}

// Emit delivers a payload to every listener whose filter accepts it and
// returns once all of them have run. Once listeners that were invoked are
// removed before their callbacks execute, so re-entrant emits never double
// deliver.
func (b *Bus) Emit(ctx context.Context, event Name, payload any) {
	b.mu.Lock()
	regs := b.listeners[event]
	matched := make([]*registration, 0, len(regs))
	remaining := regs[:0:0]
	for _, reg := range regs {
		if reg.filter != nil && !reg.filter(payload) {
			remaining = append(remaining, reg)
			continue
		}
		matched = append(matched, reg)
		if !reg.once {
			remaining = append(remaining, reg)
		}
	}
	// Keep priority order intact; matched once-listeners are simply gone.
	sort.SliceStable(remaining, func(i, j int) bool {
		if remaining[i].priority != remaining[j].priority {
			return remaining[i].priority > remaining[j].priority
		}
		return remaining[i].seq < remaining[j].seq
	})
	b.listeners[event] = remaining
	b.mu.Unlock()

	if len(matched) == 0 {
		return
	}

	if b.sync {
		for _, reg := range matched {
			b.invoke(ctx, event, reg, payload)
		}
		return
	}

	var wg sync.WaitGroup
	for _, reg := range matched {
		wg.Add(1)
		go func(reg *registration) {
			defer wg.Done()
			b.invoke(ctx, event, reg, payload)
		}(reg)
	}
	wg.Wait()
}

// invoke runs one listener with panic and error isolation.
func (b *Bus) invoke(ctx context.Context, event Name, reg *registration, payload any) {
	defer func() {
		if r := recover(); r != nil {
			b.onError(event, reg.id, fmt.Errorf("listener panic: %v", r))
		}
	}()
	if err := reg.fn(ctx, payload); err != nil {
		b.onError(event, reg.id, err)
	}
}

// WaitOption configures WaitFor.
type WaitOption func(*waitConfig)

type waitConfig struct {
	filter  Filter
	timeout time.Duration
}

// WaitFilter restricts which payloads satisfy the wait.
func WaitFilter(f Filter) WaitOption {
	return func(c *waitConfig) { c.filter = f }
}

// WaitTimeout bounds the wait; on expiry the listener is deregistered and
// ErrWaitTimeout returned.
func WaitTimeout(d time.Duration) WaitOption {
	return func(c *waitConfig) { c.timeout = d }
}

// WaitFor blocks until an event whose payload passes the filter is emitted,
// the timeout expires, or the context is cancelled. It is sugar over a once
// subscription with a deregistering timer.
func (b *Bus) WaitFor(ctx context.Context, event Name, opts ...WaitOption) (any, error) {
	var cfg waitConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	ch := make(chan any, 1)
	subOpts := []SubscribeOption{Once()}
	if cfg.filter != nil {
		subOpts = append(subOpts, WithFilter(cfg.filter))
	}
	id := b.On(event, func(_ context.Context, payload any) error {
		ch <- payload
		return nil
	}, subOpts...)

	var timer <-chan time.Time
	if cfg.timeout > 0 {
		t := time.NewTimer(cfg.timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case payload := <-ch:
		return payload, nil
	case <-timer:
		if !b.Off(event, id) {
			// The once listener matched in the same instant the timer
			// expired: its delivery is buffered or in flight, and exactly
			// one send into ch is guaranteed. The payload wins.
			return <-ch, nil
		}
		return nil, ErrWaitTimeout
	case <-ctx.Done():
		b.Off(event, id)
		return nil, ctx.Err()
	}
}
