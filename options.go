package libemit

// Option configures an Emitter.
type Option func(*Emitter)

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(l Logger) Option {
	return func(e *Emitter) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics records emission outcomes and listener counts into m.
func WithMetrics(m *Metrics) Option {
	return func(e *Emitter) {
		e.metrics = m
	}
}
