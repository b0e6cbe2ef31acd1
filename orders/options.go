package orders

import "github.com/goliatone/go-orderfsm/fsm"

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger shared by the service and its machines.
func WithLogger(logger fsm.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithListeners subscribes listeners to every order the service drives.
func WithListeners(listeners ...fsm.Listener) Option {
	return func(s *Service) {
		s.listeners = append(s.listeners, listeners...)
	}
}

// WithTable replaces the default transition table.
func WithTable(table *fsm.Table) Option {
	return func(s *Service) {
		if table != nil {
			s.table = table
		}
	}
}

// WithIDGenerator overrides how ids are picked for Create calls without one.
func WithIDGenerator(next func() string) Option {
	return func(s *Service) {
		if next != nil {
			s.newID = next
		}
	}
}
