package fsm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	orderfsm "github.com/goliatone/go-orderfsm"
)

// Outcome is the result of Send. A rejected outcome leaves the machine untouched.
type Outcome struct {
	Accepted     bool
	Event        orderfsm.OrderEvent
	From         orderfsm.OrderState
	To           orderfsm.OrderState
	Internal     bool
	Paid         bool
	TransitionID string
}

// Changed reports whether the outcome moved the machine to another state.
func (o Outcome) Changed() bool {
	return o.Accepted && !o.Internal && o.From != o.To
}

// Err returns nil for accepted outcomes and an ErrEventRejected clone otherwise.
func (o Outcome) Err() error {
	if o.Accepted {
		return nil
	}
	return orderfsm.CloneError(
		ErrEventRejected,
		fmt.Sprintf("event %s not accepted in state %s", o.Event, o.From),
		nil,
		map[string]any{"state": o.From.String(), "event": o.Event.String(), "paid": o.Paid},
	)
}

func (o Outcome) String() string {
	if !o.Accepted {
		return fmt.Sprintf("%s rejected in %s (paid=%t)", o.Event, o.From, o.Paid)
	}
	if o.Internal {
		return fmt.Sprintf("%s accepted, stays %s (paid=%t)", o.Event, o.To, o.Paid)
	}
	return fmt.Sprintf("%s accepted, %s -> %s (paid=%t)", o.Event, o.From, o.To, o.Paid)
}

// Snapshot is a consistent read of a machine.
type Snapshot struct {
	ID       string
	State    orderfsm.OrderState
	Extended ExtendedState
}

// Machine drives one order through the transition table. All methods are safe
// for concurrent use; Send calls on the same machine are serialized.
type Machine struct {
	mu       sync.Mutex
	id       string
	table    *Table
	state    orderfsm.OrderState
	ext      ExtendedState
	notifier *Notifier
	logger   Logger

	pending []Listener
}

// New creates a machine in Open and runs the initial entry action, which marks
// the order unpaid. The entry action runs only here, never on later entries to Open.
func New(opts ...Option) *Machine {
	m := newMachine(opts...)
	m.state = orderfsm.Open
	setUnpaid(&m.ext)
	m.logger.Info("unsetting paid")
	return m
}

// Restore rebuilds a machine from persisted values without resetting paid.
func Restore(state orderfsm.OrderState, ext ExtendedState, opts ...Option) (*Machine, error) {
	if !state.IsValid() {
		return nil, orderfsm.CloneError(orderfsm.ErrUnknownState,
			fmt.Sprintf("cannot restore machine in state %s", state), nil,
			map[string]any{"state": int(state)})
	}
	m := newMachine(opts...)
	m.state = state
	m.ext = ext
	m.logger.Debug("restored state=%s paid=%t", state, ext.Paid)
	return m, nil
}

func newMachine(opts ...Option) *Machine {
	m := &Machine{}
	for _, opt := range opts {
		if opt != nil {
			opt(m)
		}
	}
	if m.table == nil {
		m.table = DefaultTable()
	}
	m.logger = normalizeLogger(m.logger)
	if m.notifier == nil {
		m.notifier = NewNotifier(m.logger)
	}
	for _, l := range m.pending {
		m.notifier.Register(l)
	}
	m.pending = nil
	m.id = strings.TrimSpace(m.id)
	if m.id != "" {
		m.logger = WithLoggerFields(m.logger, LogFields{FieldMachineID: m.id})
	}
	return m
}

// ID returns the machine identifier, empty when none was configured.
func (m *Machine) ID() string {
	return m.id
}

// State returns the current state.
func (m *Machine) State() orderfsm.OrderState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ExtendedState returns a copy of the extended state.
func (m *Machine) ExtendedState() ExtendedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ext
}

// Snapshot returns state and extended state read together.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{ID: m.id, State: m.state, Extended: m.ext}
}

// AcceptedEvents lists the events Send would currently accept.
func (m *Machine) AcceptedEvents() []orderfsm.OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.AcceptedEvents(m.state, m.ext)
}

// Register subscribes a listener to this machine's notifications. When the
// notifier is shared through WithNotifier the listener sees every machine using it.
func (m *Machine) Register(listener Listener) Subscription {
	return m.notifier.Register(listener)
}

// Send applies event. Guard evaluation, the action, the state update and
// listener delivery happen under the machine lock, so listeners must not call
// Send on the same machine. A listener may send to other machines as long as
// those sends never lead back to this one.
func (m *Machine) Send(ctx context.Context, event orderfsm.OrderEvent) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.state
	logger := WithLoggerFields(m.logger.WithContext(ctx), sendFields(from, event))

	tr, ok := m.table.Resolve(from, event, m.ext)
	if !ok {
		logger.Warn("event not accepted")
		out := Outcome{Event: event, From: from, To: from, Paid: m.ext.Paid}
		m.notifier.Notify(ctx, m.notification(NotificationEventNotAccepted, event, from, from))
		return out
	}

	if tr.Action != nil {
		tr.Action(&m.ext)
		if m.ext.Paid {
			logger.Info("setting paid")
		} else {
			logger.Info("unsetting paid")
		}
	}

	to := from
	if !tr.Internal {
		to = tr.Target
		m.state = to
	}

	out := Outcome{
		Accepted:     true,
		Event:        event,
		From:         from,
		To:           to,
		Internal:     tr.Internal,
		Paid:         m.ext.Paid,
		TransitionID: tr.ID,
	}
	if !tr.Internal {
		logger.Debug("transition %s committed to %s", tr.ID, to)
		m.notifier.Notify(ctx, m.notification(NotificationStateChanged, event, from, to))
	}
	return out
}

// SendAll applies events in order and returns every outcome. Rejections do not stop the sequence.
func (m *Machine) SendAll(ctx context.Context, events ...orderfsm.OrderEvent) []Outcome {
	outcomes := make([]Outcome, 0, len(events))
	for _, evt := range events {
		outcomes = append(outcomes, m.Send(ctx, evt))
	}
	return outcomes
}

func (m *Machine) notification(kind NotificationKind, event orderfsm.OrderEvent, from, to orderfsm.OrderState) Notification {
	return Notification{
		Kind:       kind,
		MachineID:  m.id,
		Event:      event,
		From:       from,
		To:         to,
		Paid:       m.ext.Paid,
		OccurredAt: time.Now().UTC(),
	}
}
