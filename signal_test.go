package libemit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignal_Cancel(t *testing.T) {
	s := NewCancellableSignal("save")
	assert.Equal(t, "save", s.Name())
	assert.True(t, s.Cancellable())
	assert.False(t, s.Cancelled())

	s.Cancel()
	s.Cancel()
	assert.True(t, s.Cancelled())
}

func TestSignal_CancelIgnoredWhenNotCancellable(t *testing.T) {
	s := NewSignal("save")
	s.Cancel()

	assert.False(t, s.Cancellable())
	assert.False(t, s.Cancelled())
}

func TestGoverningSignal(t *testing.T) {
	cancellable := NewCancellableSignal("x")
	embedded := newMessageEvent(NewTextMessage([]byte("hi")))

	tests := []struct {
		name string
		args []any
		want Cancellable
	}{
		{name: "no args", args: nil},
		{name: "untyped nil", args: []any{nil}},
		{name: "nil signal", args: []any{(*Signal)(nil)}},
		{name: "plain value", args: []any{42}},
		{name: "not cancellable", args: []any{NewSignal("x")}},
		{name: "cancellable", args: []any{cancellable, 1}, want: cancellable},
		{name: "embedding host payload", args: []any{embedded}, want: embedded},
		{name: "only the first argument counts", args: []any{1, cancellable}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, governingSignal(tt.args))
		})
	}
}
