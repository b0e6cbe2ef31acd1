package fsm

// Option configures a Machine.
type Option func(*Machine)

// WithID names the machine; the id is attached to logs and notifications.
func WithID(id string) Option {
	return func(m *Machine) {
		m.id = id
	}
}

// WithLogger sets the machine logger.
func WithLogger(logger Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithNotifier shares a notifier between machines.
func WithNotifier(n *Notifier) Option {
	return func(m *Machine) {
		if n != nil {
			m.notifier = n
		}
	}
}

// WithListeners registers listeners on the machine's notifier once it is built.
func WithListeners(listeners ...Listener) Option {
	return func(m *Machine) {
		m.pending = append(m.pending, listeners...)
	}
}

// WithTable replaces the default order table.
func WithTable(t *Table) Option {
	return func(m *Machine) {
		if t != nil {
			m.table = t
		}
	}
}
