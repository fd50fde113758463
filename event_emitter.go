package libemit

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Lifecycle events every emitter may fire on its own.
const (
	EventNewListener    = "newListener"
	EventRemoveListener = "removeListener"
	EventError          = "error"
)

// Emitter maps event names to tiered listener lists and dispatches emissions
// to them one listener at a time. The registry is owned by the Emitter and is
// never shared. No lock is held while a listener runs, so listeners may
// register, remove and emit freely.
type Emitter struct {
	mu       sync.Mutex
	registry registry
	receiver EventEmitter
	logger   Logger
	metrics  *Metrics
	detached sync.WaitGroup
}

// New creates an Emitter with an empty registry.
func New(opts ...Option) *Emitter {
	e := &Emitter{
		registry: make(registry),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = NewLogrusLogger(nil)
	}
	e.logger = e.logger.WithField("type", "emitter")
	return e
}

// Bind makes host the receiving value handed to listeners. Hosts embedding
// an Emitter call it once during construction.
func (e *Emitter) Bind(host EventEmitter) *Emitter {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.receiver = host
	return e
}

// On registers l for name. The optional tier defaults to Active; an unknown
// tier is registered as Active. The newListener signal is dispatched before
// On returns, so newListener listeners run on the caller's goroutine.
func (e *Emitter) On(name string, l *Listener, tiers ...Tier) *Emitter {
	tier := Active
	if len(tiers) > 0 {
		tier = tiers[0]
	}
	if !tier.Valid() {
		e.log().WithField("event", name).Warnf("unknown %s, registering as %s", tier, Active)
		tier = Active
	}

	e.register(name, l, tier)
	return e
}

// AddListener is an alias for On.
func (e *Emitter) AddListener(name string, l *Listener, tiers ...Tier) *Emitter {
	return e.On(name, l, tiers...)
}

func (e *Emitter) AddPassiveListener(name string, l *Listener) *Emitter {
	return e.On(name, l, Passive)
}

func (e *Emitter) PrependListener(name string, l *Listener) *Emitter {
	return e.On(name, l, Early)
}

// OnCompat registers l with a loosely typed tier, accepting the legacy
// booleans (true for Early, false for Active). See ParseTier.
func (e *Emitter) OnCompat(name string, l *Listener, tier any) (*Emitter, error) {
	if l == nil {
		return e, ErrNilListener
	}
	t, err := ParseTier(tier)
	if err != nil {
		return e, errors.Wrapf(err, "cannot register listener for %q", name)
	}

	e.register(name, l, t)
	return e, nil
}

// Once registers l so that it is removed right before its first invocation.
// Off(name, l) also removes it before it fires.
func (e *Emitter) Once(name string, l *Listener, tiers ...Tier) *Emitter {
	if l == nil {
		e.log().WithField("event", name).Warnln(ErrNilListener)
		return e
	}

	var (
		fired   atomic.Bool
		wrapper *Listener
	)

	wrapper = &Listener{
		id:     l.id,
		origin: l,
		fn: func(ctx context.Context, em EventEmitter, args ...any) error {
			if !fired.CompareAndSwap(false, true) {
				return nil
			}
			e.Off(name, wrapper)
			return l.call(ctx, em, args)
		},
	}

	return e.On(name, wrapper, tiers...)
}

// Off removes the first entry for name identical to l and dispatches
// removeListener before returning. Removing a listener that is not
// registered does nothing.
func (e *Emitter) Off(name string, l *Listener) *Emitter {
	if l == nil {
		return e
	}

	e.mu.Lock()
	removed := e.registry.remove(name, l)
	e.mu.Unlock()

	if removed == nil {
		return e
	}

	e.metrics.addListeners(name, -1)
	e.log().WithField("event", name).WithField("listener", removed.id).Debugln("listener removed")
	e.lifecycle(EventRemoveListener, name, removed.public())
	return e
}

// RemoveListener is an alias for Off.
func (e *Emitter) RemoveListener(name string, l *Listener) *Emitter {
	return e.Off(name, l)
}

// RemoveAllListeners removes every listener of the given events, or of all
// events when none is given. The entries are detached in one step, then a
// removeListener signal fires for each of them in dispatch order. Listeners
// registered while those signals run are kept.
func (e *Emitter) RemoveAllListeners(names ...string) *Emitter {
	if len(names) == 0 {
		return e.Clear()
	}

	for _, name := range names {
		e.mu.Lock()
		watchers := e.registry.snapshot(EventRemoveListener)
		dropped := e.registry.drop(name)
		e.mu.Unlock()

		if len(dropped) == 0 {
			continue
		}

		e.metrics.addListeners(name, -len(dropped))
		e.log().WithField("event", name).Debugf("%d listeners removed", len(dropped))

		for _, l := range dropped {
			if name == EventRemoveListener {
				// The removeListener set is gone; its former members still hear about it.
				e.notifyRemoved(watchers, name, l.public())
				continue
			}
			e.lifecycle(EventRemoveListener, name, l.public())
		}
	}

	return e
}

// Clear removes every listener of every event. removeListener signals reach
// the removeListener listeners that were registered when Clear started.
func (e *Emitter) Clear() *Emitter {
	e.mu.Lock()
	watchers := e.registry.snapshot(EventRemoveListener)
	names := e.registry.names()
	old := e.registry
	e.registry = make(registry)
	e.mu.Unlock()

	for _, name := range names {
		e.metrics.addListeners(name, -old[name].len())
	}
	e.log().Debugf("%d events cleared", len(old))

	for _, name := range names {
		for _, l := range old[name].listeners {
			e.notifyRemoved(watchers, name, l.public())
		}
	}

	return e
}

// ListenerCount returns how many entries are registered for name.
func (e *Emitter) ListenerCount(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	set, ok := e.registry[name]
	if !ok {
		return 0
	}
	return set.len()
}

// Listeners returns a copy of the listeners of name in dispatch order.
func (e *Emitter) Listeners(name string) []*Listener {
	e.mu.Lock()
	listeners := e.registry.snapshot(name)
	e.mu.Unlock()

	for i, l := range listeners {
		listeners[i] = l.public()
	}
	return listeners
}

// EventNames returns the sorted names that currently have listeners.
func (e *Emitter) EventNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.registry.names()
}

// Wait blocks until every error emission detached by Emit has finished.
func (e *Emitter) Wait() {
	e.detached.Wait()
}

func (e *Emitter) register(name string, l *Listener, tier Tier) {
	if l == nil {
		e.log().WithField("event", name).Warnln(ErrNilListener)
		return
	}

	e.mu.Lock()
	if e.registry == nil {
		e.registry = make(registry)
	}
	e.registry.add(name, l, tier)
	e.mu.Unlock()

	e.metrics.addListeners(name, 1)
	e.log().WithField("event", name).WithField("listener", l.id).Debugf("%s listener added", tier)
	e.lifecycle(EventNewListener, name, l.public())
}

// notifyRemoved fires removeListener on watchers, a set detached from the
// registry.
func (e *Emitter) notifyRemoved(watchers []*Listener, name string, l *Listener) {
	if _, err := e.dispatch(context.Background(), EventRemoveListener, watchers, []any{name, l}); err != nil {
		e.log().WithField("event", EventRemoveListener).Errorf("unhandled %s failure for %q: %s", EventRemoveListener, name, err)
	}
}

// lifecycle fires a registry signal. Nobody awaits it, so a failure that the
// error channel did not absorb is only logged.
func (e *Emitter) lifecycle(signal, name string, l *Listener) {
	if _, err := e.Emit(context.Background(), signal, name, l); err != nil {
		e.log().WithField("event", signal).Errorf("unhandled %s failure for %q: %s", signal, name, err)
	}
}

func (e *Emitter) log() Logger {
	if e.logger == nil {
		return NewLogrusLogger(nil)
	}
	return e.logger
}

func (e *Emitter) receiverOf() EventEmitter {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.receiver != nil {
		return e.receiver
	}
	return e
}
