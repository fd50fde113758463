package libemit

import (
	"context"
	"runtime/debug"
)

// Emit invokes the listeners of name one after another with args and reports
// whether any listener was registered.
//
// The listener list is captured when the emission starts; registrations and
// removals made meanwhile affect later emissions only. When args[0] is a
// cancellable signal, the emission stops as soon as a listener cancels it.
//
// A listener failure (error or panic) ends the emission and is returned as is
// when name is EventError or nothing listens on EventError. Otherwise the
// failure is emitted on EventError in the background and the remaining
// listeners still run. ctx reaches every listener but never aborts an
// emission.
func (e *Emitter) Emit(ctx context.Context, name string, args ...any) (bool, error) {
	e.mu.Lock()
	listeners := e.registry.snapshot(name)
	e.mu.Unlock()

	return e.dispatch(ctx, name, listeners, args)
}

// dispatch runs listeners, captured by the caller, as an emission of name.
func (e *Emitter) dispatch(ctx context.Context, name string, listeners []*Listener, args []any) (bool, error) {
	if len(listeners) == 0 {
		e.metrics.observeEmission(name, outcomeEmpty)
		return false, nil
	}

	var (
		governing = governingSignal(args)
		receiver  = e.receiverOf()
	)

	for _, l := range listeners {
		if err := e.invoke(ctx, name, l, receiver, args); err != nil {
			if name == EventError || !e.hasErrorListeners() {
				e.metrics.observeEmission(name, outcomeFailed)
				return true, err
			}

			e.funnel(ctx, name, l, err)
			continue
		}

		if governing != nil && governing.Cancelled() {
			e.metrics.observeEmission(name, outcomeCancelled)
			return true, nil
		}
	}

	e.metrics.observeEmission(name, outcomeOK)
	return true, nil
}

// Emission is the pending result of EmitAsync.
type Emission struct {
	done chan struct{}
	ok   bool
	err  error
}

// EmitAsync runs Emit on a new goroutine.
func (e *Emitter) EmitAsync(ctx context.Context, name string, args ...any) *Emission {
	em := &Emission{done: make(chan struct{})}

	go func() {
		defer close(em.done)
		em.ok, em.err = e.Emit(ctx, name, args...)
	}()

	return em
}

// Done is closed once the emission has finished.
func (em *Emission) Done() <-chan struct{} {
	return em.done
}

// Wait blocks until the emission has finished and returns what Emit returned.
func (em *Emission) Wait() (bool, error) {
	<-em.done
	return em.ok, em.err
}

func (e *Emitter) invoke(
	ctx context.Context,
	name string,
	l *Listener,
	receiver EventEmitter,
	args []any,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Event: name, Value: r, Stack: string(debug.Stack())}
		}
	}()

	return l.call(ctx, receiver, args)
}

func (e *Emitter) hasErrorListeners() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.registry.has(EventError)
}

// funnel forwards err to the error channel without waiting for it.
func (e *Emitter) funnel(ctx context.Context, name string, l *Listener, err error) {
	e.metrics.observeFunneled(name)
	e.log().
		WithField("event", name).
		WithField("listener", l.id).
		Debugf("forwarding listener error to %s: %s", EventError, err)

	ctx = context.WithoutCancel(ctx)

	e.detached.Add(1)
	go func() {
		defer e.detached.Done()

		if _, ferr := e.Emit(ctx, EventError, err); ferr != nil {
			e.log().WithField("event", EventError).Errorf("unhandled error listener failure: %s", ferr)
		}
	}()
}
