package libemit

import (
	"context"

	"github.com/google/uuid"
)

// ListenerFunc handles one emission. em is the receiving emitter, or the host
// bound to it with Bind. Returning an error (or panicking) hands the failure
// to the dispatch error policy.
type ListenerFunc func(ctx context.Context, em EventEmitter, args ...any) error

// Listener is a registrable handler. Registration and removal compare
// listeners by pointer, so the same *Listener registered twice yields two
// entries that are removed one at a time.
type Listener struct {
	id string
	fn ListenerFunc
	// origin is the caller's listener when this one wraps it (Once).
	origin *Listener
}

func NewListener(fn ListenerFunc) *Listener {
	return &Listener{id: uuid.NewString(), fn: fn}
}

// ID is a random identifier used in log fields.
func (l *Listener) ID() string {
	return l.id
}

// public is the listener callers registered and expect to see in lifecycle
// signals and introspection.
func (l *Listener) public() *Listener {
	if l.origin != nil {
		return l.origin
	}
	return l
}

func (l *Listener) matches(other *Listener) bool {
	return l == other || (l.origin != nil && l.origin == other)
}

func (l *Listener) call(ctx context.Context, em EventEmitter, args []any) error {
	return l.fn(ctx, em, args...)
}

// listenerSet keeps the listeners of one event name in dispatch order.
// listeners[:passiveIdx] are Early and Active entries, listeners[passiveIdx:]
// are Passive.
type listenerSet struct {
	listeners  []*Listener
	passiveIdx int
}

func newListenerSet(l *Listener, tier Tier) *listenerSet {
	s := &listenerSet{listeners: []*Listener{l}}
	if tier != Passive {
		s.passiveIdx = 1
	}
	return s
}

func (s *listenerSet) insert(l *Listener, tier Tier) {
	switch tier {
	case Early:
		s.listeners = insertAt(s.listeners, 0, l)
		s.passiveIdx++
	case Passive:
		s.listeners = append(s.listeners, l)
	default:
		s.listeners = insertAt(s.listeners, s.passiveIdx, l)
		s.passiveIdx++
	}
}

// remove drops the first entry matching l and returns it, or nil when there
// is none.
func (s *listenerSet) remove(l *Listener) *Listener {
	for i, candidate := range s.listeners {
		if !candidate.matches(l) {
			continue
		}
		s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
		if i < s.passiveIdx {
			s.passiveIdx--
		}
		return candidate
	}
	return nil
}

func (s *listenerSet) len() int {
	return len(s.listeners)
}

func (s *listenerSet) snapshot() []*Listener {
	out := make([]*Listener, len(s.listeners))
	copy(out, s.listeners)
	return out
}

func insertAt(list []*Listener, i int, l *Listener) []*Listener {
	list = append(list, nil)
	copy(list[i+1:], list[i:])
	list[i] = l
	return list
}
