package libemit

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"
)

type mockListener struct {
	mock.Mock
}

func (m *mockListener) Handle(_ context.Context, _ EventEmitter, args ...any) error {
	ret := m.MethodCalled("Handle", args...)
	return ret.Error(0)
}

func (m *mockListener) listener() *Listener {
	return NewListener(m.Handle)
}

type call struct {
	tag  string
	args []any
}

// recorder collects invocations of the listeners it creates, in call order.
type recorder struct {
	mu    sync.Mutex
	calls []call
}

func (r *recorder) listener(tag string) *Listener {
	return NewListener(r.handler(tag, nil))
}

func (r *recorder) failing(tag string, err error) *Listener {
	return NewListener(r.handler(tag, err))
}

func (r *recorder) handler(tag string, err error) ListenerFunc {
	return func(_ context.Context, _ EventEmitter, args ...any) error {
		r.mu.Lock()
		r.calls = append(r.calls, call{tag: tag, args: args})
		r.mu.Unlock()
		return err
	}
}

func (r *recorder) tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tags := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		tags = append(tags, c.tag)
	}
	return tags
}

func (r *recorder) all() []call {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]call, len(r.calls))
	copy(out, r.calls)
	return out
}
