package store

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-errors"

	orderfsm "github.com/goliatone/go-orderfsm"
)

const (
	ErrCodeVersionConflict = "STORE_VERSION_CONFLICT"
	ErrCodeInvalidRecord   = "STORE_INVALID_RECORD"
	ErrCodeNotConfigured   = "STORE_NOT_CONFIGURED"
)

var (
	// ErrVersionConflict indicates optimistic-lock compare-and-set failure.
	ErrVersionConflict = errors.New("order version conflict", errors.CategoryConflict).
				WithTextCode(ErrCodeVersionConflict)
	// ErrInvalidRecord rejects records without an order id or with an undeclared state.
	ErrInvalidRecord = errors.New("invalid order record", errors.CategoryBadInput).
				WithTextCode(ErrCodeInvalidRecord)
	// ErrNotConfigured is returned by stores built without a backend.
	ErrNotConfigured = errors.New("order store not configured", errors.CategoryInternal).
				WithTextCode(ErrCodeNotConfigured)
)

// Record is the persisted form of one order machine.
type Record struct {
	OrderID   string              `json:"order_id"`
	State     orderfsm.OrderState `json:"state"`
	Variables map[string]any      `json:"variables,omitempty"`
	Version   int                 `json:"version"`
	UpdatedAt time.Time           `json:"updated_at"`

	// VariablesErr is set by Load when the stored variables could not be
	// decoded; Variables is nil in that case.
	VariablesErr error `json:"-"`
}

// Store persists order records with optimistic locking.
type Store interface {
	// Load returns nil, nil when the order is unknown.
	Load(ctx context.Context, orderID string) (*Record, error)
	// SaveIfVersion writes rec when the stored version equals expectedVersion
	// (0 for a new order) and returns the new version.
	SaveIfVersion(ctx context.Context, rec *Record, expectedVersion int) (newVersion int, err error)
	// List returns every record ordered by order id.
	List(ctx context.Context) ([]*Record, error)
}

// IsVersionConflict reports whether err is a compare-and-set failure.
func IsVersionConflict(err error) bool {
	return orderfsm.HasErrorCode(err, ErrCodeVersionConflict)
}

func versionConflict(orderID string, expected, current int) error {
	return orderfsm.CloneError(ErrVersionConflict, "", nil, map[string]any{
		"order_id":         orderID,
		"expected_version": expected,
		"current_version":  current,
	})
}

func notConfigured(kind string) error {
	return orderfsm.CloneError(ErrNotConfigured, kind+" store not configured", nil, nil)
}

// normalizeRecord validates rec and returns a detached copy ready to be written.
func normalizeRecord(rec *Record) (*Record, error) {
	rec = cloneRecord(rec)
	if rec == nil {
		return nil, orderfsm.CloneError(ErrInvalidRecord, "order record required", nil, nil)
	}
	rec.OrderID = strings.TrimSpace(rec.OrderID)
	if rec.OrderID == "" {
		return nil, orderfsm.CloneError(ErrInvalidRecord, "order record id required", nil, nil)
	}
	if !rec.State.IsValid() {
		return nil, orderfsm.CloneError(ErrInvalidRecord, "order record state is not declared", nil, map[string]any{
			"order_id": rec.OrderID,
			"state":    int(rec.State),
		})
	}
	return rec, nil
}

// applyVersionedUpdate sets next.Version from current and expectedVersion, or
// reports a conflict. current is nil for unknown orders.
func applyVersionedUpdate(next, current *Record, expectedVersion int) (int, error) {
	if expectedVersion < 0 {
		expectedVersion = 0
	}
	if current == nil {
		if expectedVersion != 0 {
			return 0, versionConflict(next.OrderID, expectedVersion, 0)
		}
		next.Version = 1
	} else {
		if current.Version != expectedVersion {
			return 0, versionConflict(next.OrderID, expectedVersion, current.Version)
		}
		next.Version = expectedVersion + 1
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	return next.Version, nil
}

func cloneRecord(rec *Record) *Record {
	if rec == nil {
		return nil
	}
	cp := *rec
	if rec.Variables != nil {
		cp.Variables = make(map[string]any, len(rec.Variables))
		for k, v := range rec.Variables {
			cp.Variables[k] = v
		}
	}
	return &cp
}

func sortRecords(records []*Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].OrderID < records[j].OrderID
	})
}
