package fsm

import (
	"context"
	"sort"
	"sync"
	"time"

	orderfsm "github.com/goliatone/go-orderfsm"
)

// NotificationKind identifies what a listener is told about.
type NotificationKind string

const (
	NotificationStateChanged     NotificationKind = "state_changed"
	NotificationEventNotAccepted NotificationKind = "event_not_accepted"
)

// Notification describes one accepted state change or one rejected event.
// For rejections From and To are both the unchanged current state.
type Notification struct {
	Kind       NotificationKind
	MachineID  string
	Event      orderfsm.OrderEvent
	From       orderfsm.OrderState
	To         orderfsm.OrderState
	Paid       bool
	OccurredAt time.Time
}

// Listener observes machine notifications. Returned errors are logged and ignored.
type Listener interface {
	Notify(ctx context.Context, n Notification) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, n Notification) error

func (f ListenerFunc) Notify(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// StateListener adapts a pair of callbacks to Listener; either may be nil.
type StateListener struct {
	OnStateChanged     func(from, to orderfsm.OrderState)
	OnEventNotAccepted func(event orderfsm.OrderEvent)
}

func (l StateListener) Notify(_ context.Context, n Notification) error {
	switch n.Kind {
	case NotificationStateChanged:
		if l.OnStateChanged != nil {
			l.OnStateChanged(n.From, n.To)
		}
	case NotificationEventNotAccepted:
		if l.OnEventNotAccepted != nil {
			l.OnEventNotAccepted(n.Event)
		}
	}
	return nil
}

// Subscription cancels a listener registration.
type Subscription interface {
	Unsubscribe()
}

// Notifier fans notifications out to registered listeners. It may be shared by
// many machines. Delivery runs outside the registry lock, so listeners may send
// to other machines and Register or Unsubscribe may run while they do.
type Notifier struct {
	mu     sync.RWMutex
	subs   map[int64]*subscription
	nextID int64
	logger Logger
}

// NewNotifier creates an empty notifier logging listener failures to logger.
func NewNotifier(logger Logger) *Notifier {
	return &Notifier{
		subs:   make(map[int64]*subscription),
		logger: normalizeLogger(logger),
	}
}

// Register adds a listener. Unsubscribe blocks until in-flight deliveries to
// that listener finish, after which it receives nothing further. A listener
// must not unsubscribe itself from inside Notify.
func (n *Notifier) Register(listener Listener) Subscription {
	if n == nil || listener == nil {
		return noopSubscription{}
	}
	sub := &subscription{notifier: n, listener: listener, active: true}
	sub.idle = sync.NewCond(&sub.mu)

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = make(map[int64]*subscription)
	}
	n.nextID++
	sub.id = n.nextID
	n.subs[sub.id] = sub
	return sub
}

// Len returns the number of registered listeners.
func (n *Notifier) Len() int {
	if n == nil {
		return 0
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.subs)
}

// Notify delivers to every listener in registration order. Errors and panics are
// logged; they never reach the caller.
func (n *Notifier) Notify(ctx context.Context, note Notification) {
	if n == nil {
		return
	}
	subs := n.registered()
	if len(subs) == 0 {
		return
	}

	logger := WithLoggerFields(n.logger.WithContext(ctx), LogFields{
		FieldMachineID: note.MachineID,
		FieldKind:      string(note.Kind),
		FieldEvent:     note.Event.String(),
	})
	for _, sub := range subs {
		n.deliver(ctx, logger, sub, note)
	}
}

// registered copies the current subscriptions ordered by registration.
func (n *Notifier) registered() []*subscription {
	n.mu.RLock()
	defer n.mu.RUnlock()
	subs := make([]*subscription, 0, len(n.subs))
	for _, sub := range n.subs {
		subs = append(subs, sub)
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].id < subs[j].id })
	return subs
}

func (n *Notifier) deliver(ctx context.Context, logger Logger, sub *subscription, note Notification) {
	if !sub.enter() {
		return
	}
	defer sub.exit()
	defer orderfsm.MakePanicHandler(func(funcName string, err any, stack []byte, _ ...map[string]any) {
		logger.Error("listener %d panicked in %s: %v\n%s", sub.id, funcName, err, stack)
	})("fsm.Notifier.deliver")

	if err := sub.listener.Notify(ctx, note); err != nil {
		logger.Warn("listener %d failed: %v", sub.id, err)
	}
}

func (n *Notifier) remove(id int64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.subs, id)
}

// subscription counts deliveries in flight so Unsubscribe can wait them out.
// A delivery nested inside another one (a listener sending to a second machine)
// is skipped once Unsubscribe has started, never waited on.
type subscription struct {
	notifier *Notifier
	id       int64
	listener Listener

	mu       sync.Mutex
	idle     *sync.Cond
	active   bool
	inflight int
	once     sync.Once
}

func (s *subscription) enter() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return false
	}
	s.inflight++
	return true
}

func (s *subscription) exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inflight--
	if s.inflight == 0 {
		s.idle.Broadcast()
	}
}

func (s *subscription) Unsubscribe() {
	s.once.Do(func() {
		s.notifier.remove(s.id)
		s.mu.Lock()
		defer s.mu.Unlock()
		s.active = false
		for s.inflight > 0 {
			s.idle.Wait()
		}
	})
}

type noopSubscription struct{}

func (noopSubscription) Unsubscribe() {}
