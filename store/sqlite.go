package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
	"time"

	orderfsm "github.com/goliatone/go-orderfsm"
)

// SQLiteStore persists records in a single SQLite table. The driver is
// registered by the caller (the binary imports mattn/go-sqlite3).
type SQLiteStore struct {
	db    *sql.DB
	table string

	schemaMu    sync.Mutex
	schemaReady bool
}

// NewSQLiteStore builds a store using db and table, defaulting to "orders".
func NewSQLiteStore(db *sql.DB, table string) *SQLiteStore {
	table = strings.TrimSpace(table)
	if table == "" {
		table = "orders"
	}
	return &SQLiteStore{db: db, table: table}
}

// Load reads the record for orderID.
func (s *SQLiteStore) Load(ctx context.Context, orderID string) (*Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT order_id, state, variables, version, updated_at FROM %s WHERE order_id = ?`, s.table)
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, orderID))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// SaveIfVersion writes rec using an optimistic version compare.
func (s *SQLiteStore) SaveIfVersion(ctx context.Context, rec *Record, expectedVersion int) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	next, err := normalizeRecord(rec)
	if err != nil {
		return 0, err
	}
	if expectedVersion < 0 {
		expectedVersion = 0
	}
	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now().UTC()
	}
	variablesJSON, err := json.Marshal(next.Variables)
	if err != nil {
		return 0, err
	}

	if expectedVersion == 0 {
		q := fmt.Sprintf(`INSERT OR IGNORE INTO %s (order_id, state, variables, version, updated_at) VALUES (?, ?, ?, 1, ?)`, s.table)
		result, err := s.db.ExecContext(ctx, q,
			next.OrderID,
			next.State.String(),
			string(variablesJSON),
			formatTimestamp(next.UpdatedAt),
		)
		if err != nil {
			return 0, err
		}
		if rows, _ := result.RowsAffected(); rows == 0 {
			return 0, versionConflict(next.OrderID, expectedVersion, -1)
		}
		return 1, nil
	}

	newVersion := expectedVersion + 1
	q := fmt.Sprintf(`UPDATE %s SET state=?, variables=?, version=?, updated_at=? WHERE order_id=? AND version=?`, s.table)
	result, err := s.db.ExecContext(ctx, q,
		next.State.String(),
		string(variablesJSON),
		newVersion,
		formatTimestamp(next.UpdatedAt),
		next.OrderID,
		expectedVersion,
	)
	if err != nil {
		return 0, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return 0, versionConflict(next.OrderID, expectedVersion, -1)
	}
	return newVersion, nil
}

// List returns every record ordered by order id.
func (s *SQLiteStore) List(ctx context.Context) ([]*Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT order_id, state, variables, version, updated_at FROM %s ORDER BY order_id`, s.table)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ready(ctx context.Context) error {
	if s == nil || s.db == nil {
		return notConfigured("sqlite")
	}
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		order_id TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		variables TEXT,
		version INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return err
	}
	s.schemaReady = true
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec           Record
		stateName     string
		variablesJSON sql.NullString
		updatedAt     string
	)
	if err := row.Scan(&rec.OrderID, &stateName, &variablesJSON, &rec.Version, &updatedAt); err != nil {
		return nil, err
	}
	state, err := orderfsm.ParseOrderState(stateName)
	if err != nil {
		return nil, err
	}
	rec.State = state
	if variablesJSON.Valid && variablesJSON.String != "" {
		if err := json.Unmarshal([]byte(variablesJSON.String), &rec.Variables); err != nil {
			rec.Variables = nil
			rec.VariablesErr = orderfsm.CloneError(ErrInvalidRecord,
				fmt.Sprintf("stored variables are not valid JSON: %v", err), err,
				map[string]any{"order_id": rec.OrderID})
		}
	}
	if ts, ok := parseTimestamp(updatedAt); ok {
		rec.UpdatedAt = ts
	}
	return &rec, nil
}

func parseTimestamp(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return ts.UTC(), true
}

func formatTimestamp(value time.Time) string {
	return value.UTC().Format(time.RFC3339Nano)
}
