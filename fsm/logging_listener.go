package fsm

import "context"

// NewLoggingListener logs state changes at info and rejected events at error.
func NewLoggingListener(logger Logger) Listener {
	logger = normalizeLogger(logger)
	return ListenerFunc(func(ctx context.Context, n Notification) error {
		log := logger.WithContext(ctx)
		if n.MachineID != "" {
			log = WithLoggerFields(log, LogFields{FieldMachineID: n.MachineID})
		}
		switch n.Kind {
		case NotificationStateChanged:
			log.Info("state changed to %s", n.To)
		case NotificationEventNotAccepted:
			log.Error("event not accepted: %s", n.Event)
		}
		return nil
	})
}
