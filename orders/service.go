package orders

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	orderfsm "github.com/goliatone/go-orderfsm"
	"github.com/goliatone/go-orderfsm/fsm"
	"github.com/goliatone/go-orderfsm/store"
)

// Service drives one independent machine per order id and keeps the store in
// step with every accepted event.
type Service struct {
	store     store.Store
	logger    fsm.Logger
	table     *fsm.Table
	notifier  *fsm.Notifier
	listeners []fsm.Listener
	newID     func() string

	mu      sync.Mutex
	entries map[string]*entry
}

// entry caches a machine with the version it was loaded or last saved at.
// machine is nil until loaded and again after eviction.
type entry struct {
	mu      sync.Mutex
	machine *fsm.Machine
	version int
}

// NewService builds a service over st.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		table:   fsm.DefaultTable(),
		newID:   uuid.NewString,
		entries: make(map[string]*entry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.logger == nil {
		s.logger = fsm.NewFmtLogger(nil)
	}
	s.notifier = fsm.NewNotifier(s.logger)
	for _, l := range s.listeners {
		s.notifier.Register(l)
	}
	return s
}

// Subscribe registers a listener for notifications from every order.
func (s *Service) Subscribe(listener fsm.Listener) fsm.Subscription {
	return s.notifier.Register(listener)
}

// Create starts a new order in Open and persists it at version 1. An empty id
// is replaced by a generated one.
func (s *Service) Create(ctx context.Context, orderID string) (fsm.Snapshot, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		orderID = s.newID()
	}

	e := s.lockEntry(orderID)
	defer s.release(orderID, e)

	if e.machine != nil {
		return fsm.Snapshot{}, orderExists(orderID, nil)
	}
	existing, err := s.store.Load(ctx, orderID)
	if err != nil {
		return fsm.Snapshot{}, err
	}
	if existing != nil {
		return fsm.Snapshot{}, orderExists(orderID, nil)
	}

	m := fsm.New(s.machineOptions(orderID)...)
	snap := m.Snapshot()
	version, err := s.store.SaveIfVersion(ctx, recordFromSnapshot(snap), 0)
	if err != nil {
		if store.IsVersionConflict(err) {
			return fsm.Snapshot{}, orderExists(orderID, err)
		}
		return fsm.Snapshot{}, err
	}
	e.machine = m
	e.version = version
	s.logger.Info("order %s created", orderID)
	return snap, nil
}

// Send delivers event to the order's machine. Rejections come back as a
// rejected Outcome with a nil error and are not persisted. When saving an
// accepted outcome fails the cached machine is dropped, so the next call
// reloads the stored state.
func (s *Service) Send(ctx context.Context, orderID string, event orderfsm.OrderEvent) (fsm.Outcome, error) {
	orderID = strings.TrimSpace(orderID)
	e, err := s.acquire(ctx, orderID)
	if err != nil {
		return fsm.Outcome{}, err
	}
	defer s.release(orderID, e)

	out := e.machine.Send(ctx, event)
	if !out.Accepted {
		return out, nil
	}

	version, err := s.store.SaveIfVersion(ctx, recordFromSnapshot(e.machine.Snapshot()), e.version)
	if err != nil {
		s.logger.Error("order %s: persisting %s failed, dropping cached machine: %v", orderID, out.TransitionID, err)
		e.machine = nil
		e.version = 0
		return out, err
	}
	e.version = version
	return out, nil
}

// Get returns the current snapshot of an order.
func (s *Service) Get(ctx context.Context, orderID string) (fsm.Snapshot, error) {
	orderID = strings.TrimSpace(orderID)
	e, err := s.acquire(ctx, orderID)
	if err != nil {
		return fsm.Snapshot{}, err
	}
	defer s.release(orderID, e)
	return e.machine.Snapshot(), nil
}

// Summary counts stored orders per state. Every state is present in the result.
func (s *Service) Summary(ctx context.Context) (map[orderfsm.OrderState]int, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	counts := make(map[orderfsm.OrderState]int, len(orderfsm.AllStates()))
	for _, state := range orderfsm.AllStates() {
		counts[state] = 0
	}
	for _, rec := range records {
		counts[rec.State]++
	}
	return counts, nil
}

// Evict drops the cached machine for orderID; the next call reloads it from the store.
func (s *Service) Evict(orderID string) bool {
	orderID = strings.TrimSpace(orderID)
	s.mu.Lock()
	e, ok := s.entries[orderID]
	delete(s.entries, orderID)
	s.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	loaded := e.machine != nil
	e.machine = nil
	e.version = 0
	return loaded
}

// lockEntry returns the cached entry for orderID, locked. An entry removed from
// the map while we waited for its lock is skipped so each order has one live entry.
func (s *Service) lockEntry(orderID string) *entry {
	for {
		s.mu.Lock()
		e, ok := s.entries[orderID]
		if !ok {
			e = &entry{}
			s.entries[orderID] = e
		}
		s.mu.Unlock()

		e.mu.Lock()
		s.mu.Lock()
		current := s.entries[orderID] == e
		s.mu.Unlock()
		if current {
			return e
		}
		e.mu.Unlock()
	}
}

// release unlocks e, dropping it from the map first when it holds no machine.
func (s *Service) release(orderID string, e *entry) {
	if e.machine == nil {
		s.mu.Lock()
		if s.entries[orderID] == e {
			delete(s.entries, orderID)
		}
		s.mu.Unlock()
	}
	e.mu.Unlock()
}

// acquire returns the order entry locked with a loaded machine. Callers release it.
func (s *Service) acquire(ctx context.Context, orderID string) (*entry, error) {
	if orderID == "" {
		return nil, orderfsm.CloneError(orderfsm.ErrInvalidMessage, "order id is required", nil, nil)
	}
	e := s.lockEntry(orderID)
	if e.machine != nil {
		return e, nil
	}

	m, version, err := s.load(ctx, orderID)
	if err != nil {
		s.release(orderID, e)
		return nil, err
	}
	e.machine = m
	e.version = version
	return e, nil
}

func (s *Service) load(ctx context.Context, orderID string) (*fsm.Machine, int, error) {
	rec, err := s.store.Load(ctx, orderID)
	if err != nil {
		return nil, 0, err
	}
	if rec == nil {
		return nil, 0, orderNotFound(orderID)
	}
	ext, err := fsm.ExtendedStateFromVariables(rec.Variables)
	if err != nil {
		if rec.VariablesErr != nil {
			err = rec.VariablesErr
		}
		s.logger.Warn("order %s: %v, restoring with paid=false", orderID, err)
	}
	m, err := fsm.Restore(rec.State, ext, s.machineOptions(orderID)...)
	if err != nil {
		return nil, 0, err
	}
	return m, rec.Version, nil
}

func (s *Service) machineOptions(orderID string) []fsm.Option {
	return []fsm.Option{
		fsm.WithID(orderID),
		fsm.WithLogger(s.logger),
		fsm.WithNotifier(s.notifier),
		fsm.WithTable(s.table),
	}
}

func recordFromSnapshot(snap fsm.Snapshot) *store.Record {
	return &store.Record{
		OrderID:   snap.ID,
		State:     snap.State,
		Variables: snap.Extended.Variables(),
	}
}
