package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
)

// ErrNotFound marks a user without a stored wallet.
var ErrNotFound = errors.New("wallet not found")

// Store persists encrypted wallet records in sqlite, keyed by Telegram
// user id. A file lock serializes writers across processes.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenStore(path, lockPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, boterr.Wrap(boterr.CodeInternal, "create wallet store directory", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, boterr.Wrap(boterr.CodeInternal, "create wallet lock directory", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, boterr.Wrap(boterr.CodeInternal, "open wallet sqlite", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		`CREATE TABLE IF NOT EXISTS wallets (
			user_id INTEGER PRIMARY KEY,
			address TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			payload BLOB NOT NULL
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			_ = db.Close()
			return nil, boterr.Wrap(boterr.CodeInternal, "init wallet schema", err)
		}
	}
	return &Store{db: db, lock: flock.New(lockPath)}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Save(ctx context.Context, userID int64, address string, rec Record) error {
	locked, err := s.lock.TryLockContext(ctx, 5*time.Second)
	if err != nil {
		return boterr.Wrap(boterr.CodeInternal, "lock wallet store", err)
	}
	if !locked {
		return boterr.New(boterr.CodeInternal, "lock wallet store: timeout acquiring lock")
	}
	defer func() { _ = s.lock.Unlock() }()

	payload, err := json.Marshal(rec)
	if err != nil {
		return boterr.Wrap(boterr.CodeInternal, "marshal wallet record", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, address, created_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			address=excluded.address,
			payload=excluded.payload
	`, userID, address, time.Now().UTC().Unix(), payload)
	if err != nil {
		return boterr.Wrap(boterr.CodeInternal, "save wallet record", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, userID int64) (Record, string, error) {
	var (
		payload []byte
		address string
	)
	err := s.db.QueryRowContext(ctx, "SELECT payload, address FROM wallets WHERE user_id = ?", userID).Scan(&payload, &address)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, "", ErrNotFound
		}
		return Record{}, "", boterr.Wrap(boterr.CodeInternal, "read wallet record", err)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, "", boterr.Wrap(boterr.CodeCorruptRecord, "decode wallet record", err)
	}
	return rec, address, nil
}
