package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/dispenser/pkg/domain"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS machines (
	machine_id TEXT PRIMARY KEY,
	state      TEXT    NOT NULL,
	inventory  INTEGER NOT NULL CHECK (inventory >= 0),
	version    INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL DEFAULT 0
)`

// Store implements ports.SnapshotStore on a single SQLite table.
type Store struct {
	sqlDB *sql.DB
}

// Open opens (creating if needed) the database at path and ensures the schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: storage path is required", domain.ErrInvalidArgument)
	}

	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save upserts the snapshot row.
func (s *Store) Save(ctx context.Context, machineID string, snap *domain.Snapshot) error {
	if err := checkID(machineID); err != nil {
		return err
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO machines (machine_id, state, inventory, version, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(machine_id) DO UPDATE SET
		   state = excluded.state,
		   inventory = excluded.inventory,
		   version = excluded.version,
		   updated_at = excluded.updated_at`,
		machineID,
		string(snap.State),
		snap.Inventory,
		snap.Version,
		timeToUnixMillis(snap.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save machine: %w", err)
	}
	return nil
}

// Load reads the snapshot row for machineID.
func (s *Store) Load(ctx context.Context, machineID string) (*domain.Snapshot, error) {
	if err := checkID(machineID); err != nil {
		return nil, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT machine_id, state, inventory, version, updated_at
		 FROM machines
		 WHERE machine_id = ?`,
		machineID,
	)

	var snap domain.Snapshot
	var state string
	var updatedAt int64
	if err := row.Scan(&snap.MachineID, &state, &snap.Inventory, &snap.Version, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMachineNotFound
		}
		return nil, fmt.Errorf("load machine: %w", err)
	}
	snap.State = domain.State(state)
	snap.UpdatedAt = unixMillisToTime(updatedAt)
	return &snap, nil
}

// Delete removes the row. Missing rows are ignored.
func (s *Store) Delete(ctx context.Context, machineID string) error {
	if err := checkID(machineID); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM machines WHERE machine_id = ?`, machineID); err != nil {
		return fmt.Errorf("delete machine: %w", err)
	}
	return nil
}

// List returns every machine ID in lexical order.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT machine_id FROM machines ORDER BY machine_id`)
	if err != nil {
		return nil, fmt.Errorf("list machines: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan machine: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate machines: %w", err)
	}
	return ids, nil
}

// checkID rejects IDs that would not read back as written.
func checkID(machineID string) error {
	if strings.TrimSpace(machineID) == "" {
		return fmt.Errorf("%w: machineID cannot be empty", domain.ErrInvalidArgument)
	}
	if strings.TrimSpace(machineID) != machineID {
		return fmt.Errorf("%w: machineID %q has surrounding whitespace", domain.ErrInvalidArgument, machineID)
	}
	return nil
}

func timeToUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMilli()
}

func unixMillisToTime(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}
