package logger

// Noop is a logger that discards everything. Used in tests and as a
// safe default before configuration is loaded.
type Noop struct{}

// NewNoop creates a new no-op logger.
func NewNoop() Interface {
	return &Noop{}
}

// Debug does nothing.
func (n *Noop) Debug(_ string, _ ...any) {}

// Info does nothing.
func (n *Noop) Info(_ string, _ ...any) {}

// Warn does nothing.
func (n *Noop) Warn(_ string, _ ...any) {}

// Error does nothing.
func (n *Noop) Error(_ string, _ ...any) {}

// Fatal does nothing.
func (n *Noop) Fatal(_ string, _ ...any) {}

// With returns the same no-op logger.
func (n *Noop) With(_ ...any) Interface { return n }

// WithComponent returns the same no-op logger.
func (n *Noop) WithComponent(_ string) Interface { return n }

// WithError returns the same no-op logger.
func (n *Noop) WithError(_ error) Interface { return n }
