package libemit

import "context"

// EventEmitter is the surface shared by *Emitter and every type that embeds
// one. Hosts gain emitter behavior by embedding *Emitter (or holding one and
// delegating) and calling Bind so listeners receive the host itself.
type EventEmitter interface {
	On(name string, l *Listener, tiers ...Tier) *Emitter
	AddListener(name string, l *Listener, tiers ...Tier) *Emitter
	AddPassiveListener(name string, l *Listener) *Emitter
	PrependListener(name string, l *Listener) *Emitter
	Once(name string, l *Listener, tiers ...Tier) *Emitter
	Off(name string, l *Listener) *Emitter
	RemoveListener(name string, l *Listener) *Emitter
	RemoveAllListeners(names ...string) *Emitter
	Emit(ctx context.Context, name string, args ...any) (bool, error)
	EmitAsync(ctx context.Context, name string, args ...any) *Emission
	ListenerCount(name string) int
	EventNames() []string
}

var _ EventEmitter = (*Emitter)(nil)
