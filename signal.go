package libemit

import "sync/atomic"

// Cancellable is the capability an emitted first argument must have to govern
// an emission. Once Cancelled reports true the remaining listeners are skipped.
type Cancellable interface {
	Cancellable() bool
	Cancelled() bool
}

// Signal is a named event payload. A cancellable signal carries a flag that
// listeners may raise with Cancel; it never goes back to false.
type Signal struct {
	name        string
	cancellable bool
	cancelled   atomic.Bool
}

func NewSignal(name string) *Signal {
	return &Signal{name: name}
}

func NewCancellableSignal(name string) *Signal {
	return &Signal{name: name, cancellable: true}
}

func (s *Signal) Name() string { return s.name }

func (s *Signal) Cancellable() bool { return s != nil && s.cancellable }

// Cancel requests early termination of the emission this signal governs. It
// has no effect on a signal that is not cancellable.
func (s *Signal) Cancel() {
	if s.Cancellable() {
		s.cancelled.Store(true)
	}
}

func (s *Signal) Cancelled() bool { return s != nil && s.cancelled.Load() }

func (s *Signal) String() string {
	return s.name
}

// governingSignal returns the first argument when it may cancel the emission.
func governingSignal(args []any) Cancellable {
	if len(args) == 0 {
		return nil
	}
	c, ok := args[0].(Cancellable)
	if !ok || !c.Cancellable() {
		return nil
	}
	return c
}
