package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goForwarder/permission"
	"github.com/ethereum/go-ethereum/common"
	_ "modernc.org/sqlite"
)

const permissionsSchema = `
CREATE TABLE IF NOT EXISTS forwarder_permissions (
    account    TEXT PRIMARY KEY,
    mask       INTEGER NOT NULL,
    updated_at TEXT NOT NULL
);
`

const quarantineSchema = `
CREATE TABLE IF NOT EXISTS forwarder_quarantine (
    account    TEXT PRIMARY KEY,
    reason     TEXT NOT NULL,
    created_at TEXT NOT NULL
);
`

// SQLiteStore persists masks in a SQL database opened with the "sqlite" driver
// (modernc.org/sqlite). Masks are stored as the two's-complement int64 of the
// uint64 value.
type SQLiteStore struct {
	db    *sql.DB
	owned bool
}

// NewSQLiteStore creates the tables if needed and returns a [SQLiteStore].
// The caller keeps ownership of db.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(permissionsSchema); err != nil {
		return nil, err
	}
	if _, err := db.Exec(quarantineSchema); err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, account common.Address) (permission.Mask64, error) {
	var raw int64
	err := s.db.QueryRowContext(ctx,
		`SELECT mask FROM forwarder_permissions WHERE account = ?`, accountKey(account),
	).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return permission.Mask64(uint64(raw)), nil
}

func (s *SQLiteStore) Apply(ctx context.Context, account common.Address, grant, revoke permission.Mask64) (permission.Mask64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	key := accountKey(account)

	var raw int64
	err = tx.QueryRowContext(ctx, `SELECT mask FROM forwarder_permissions WHERE account = ?`, key).Scan(&raw)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	next := permission.Mask64(uint64(raw)).Apply(grant, revoke)
	if next == 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM forwarder_permissions WHERE account = ?`, key)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO forwarder_permissions (account, mask, updated_at)
			VALUES (?, ?, ?)
			ON CONFLICT(account) DO UPDATE SET mask = excluded.mask, updated_at = excluded.updated_at`,
			key, int64(uint64(next)), time.Now().UTC().Format(time.RFC3339Nano),
		)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return next, nil
}

func (s *SQLiteStore) Quarantine(ctx context.Context, account common.Address, reason string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO forwarder_quarantine (account, reason, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(account) DO UPDATE SET reason = excluded.reason`,
		accountKey(account), reason, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *SQLiteStore) QuarantineReason(ctx context.Context, account common.Address) (string, bool, error) {
	var reason string
	err := s.db.QueryRowContext(ctx,
		`SELECT reason FROM forwarder_quarantine WHERE account = ?`, accountKey(account),
	).Scan(&reason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return reason, true, nil
}

func (s *SQLiteStore) Release(ctx context.Context, account common.Address) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM forwarder_quarantine WHERE account = ?`, accountKey(account)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// OpenSQLite opens the database file at path and returns a store that owns
// the connection. A single connection is used so Apply transactions never
// contend for the write lock.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	s, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// Close closes the database only when it was opened by [OpenSQLite].
func (s *SQLiteStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}
