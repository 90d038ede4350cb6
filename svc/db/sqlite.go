package db

import (
	"context"
	"database/sql"
	"sync/atomic"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"pastrio/pkg/domain"
)

var (
	ErrCircuitOpen  = errors.New("database circuit breaker open")
	ErrUserNotFound = errors.New("user not found")
)

const (
	circuitClosed   = 0
	circuitOpen     = 1
	circuitHalfOpen = 2
	maxFailures     = 5
	cooldownSeconds = 30
)

const (
	defaultMaxOpenConns = 100
	defaultMaxIdleConns = 10
	defaultQueryTimeout = 5 * time.Second
)

// Store persists pastes and users in SQLite. It stands in for the document
// database the application was designed around: hash uniqueness is a UNIQUE
// index, view accounting is a single-statement atomic increment, and the TTL
// purge is a periodic sweep driven by the service layer.
type Store struct {
	db            *sql.DB
	failures      int32
	circuitState  int32
	circuitOpened int64
	queryTimeout  time.Duration
}

func (s *Store) DB() *sql.DB {
	return s.db
}

func NewStore(path string) (*Store, error) {
	return NewStoreWithConfig(path, defaultMaxOpenConns, defaultMaxIdleConns, defaultQueryTimeout)
}

func NewStoreWithConfig(path string, maxOpenConns, maxIdleConns int, queryTimeout time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(1 * time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to ping db")
	}
	s := &Store{
		db:           db,
		queryTimeout: queryTimeout,
	}
	if err := s.migrate(); err != nil {
		return nil, errors.Wrap(err, "migration failed")
	}
	return s, nil
}

func (s *Store) checkCircuit() error {
	state := atomic.LoadInt32(&s.circuitState)
	switch state {
	case circuitClosed, circuitHalfOpen:
		return nil
	case circuitOpen:
		opened := atomic.LoadInt64(&s.circuitOpened)
		if time.Now().Unix()-opened >= cooldownSeconds {
			if atomic.CompareAndSwapInt32(&s.circuitState, circuitOpen, circuitHalfOpen) {
				return nil
			}
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (s *Store) recordError(err error) {
	if err == nil {
		atomic.StoreInt32(&s.failures, 0)
		atomic.StoreInt32(&s.circuitState, circuitClosed)
		return
	}
	if errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		isConstraintErr(err) {
		return
	}
	failures := atomic.AddInt32(&s.failures, 1)
	if atomic.LoadInt32(&s.circuitState) == circuitHalfOpen {
		atomic.StoreInt32(&s.circuitState, circuitOpen)
		atomic.StoreInt64(&s.circuitOpened, time.Now().Unix())
		atomic.StoreInt32(&s.failures, 0)
		return
	}
	if failures >= maxFailures && atomic.LoadInt32(&s.circuitState) == circuitClosed {
		atomic.StoreInt32(&s.circuitState, circuitOpen)
		atomic.StoreInt64(&s.circuitOpened, time.Now().Unix())
	}
}

func isConstraintErr(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.Code == sqlite3.ErrConstraint
	}
	return false
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return errors.Wrap(err, "enable WAL mode")
	}
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return errors.Wrap(err, "set busy timeout")
	}
	if _, err := s.db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return errors.Wrap(err, "enable foreign keys")
	}
	query := `
	CREATE TABLE IF NOT EXISTS pastes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		hash TEXT NOT NULL UNIQUE,
		content TEXT NOT NULL,
		expires_at DATETIME,
		max_views INTEGER,
		views INTEGER NOT NULL DEFAULT 0,
		expired INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pastes_expires_at ON pastes(expires_at) WHERE expires_at IS NOT NULL;

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.Exec(query)
	return err
}

// Insert persists a new paste. A colliding hash surfaces as ErrDuplicateKey
// so the generator loop can retry; it is not a store failure.
func (s *Store) Insert(ctx context.Context, p *domain.Paste) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `
	INSERT INTO pastes (hash, content, expires_at, max_views, views, expired, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(queryCtx, q,
		p.Hash, p.Content, p.ExpiresAt, p.MaxViews, p.Views, p.Expired, p.CreatedAt, p.UpdatedAt,
	)
	s.recordError(err)
	if err != nil {
		if isConstraintErr(err) {
			return domain.ErrDuplicateKey
		}
		return errors.Wrap(err, "insert paste")
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) FindByHash(ctx context.Context, hash string) (*domain.Paste, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `
	SELECT id, hash, content, expires_at, max_views, views, expired, created_at, updated_at
	FROM pastes WHERE hash = ?
	`
	var p domain.Paste
	err := s.db.QueryRowContext(queryCtx, q, hash).Scan(
		&p.ID, &p.Hash, &p.Content, &p.ExpiresAt, &p.MaxViews, &p.Views, &p.Expired, &p.CreatedAt, &p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrPasteNotFound
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "find paste")
	}
	return &p, nil
}

// DeleteByID is idempotent: deleting a row that is already gone is a no-op,
// which keeps racing boundary reads harmless.
func (s *Store) DeleteByID(ctx context.Context, id int64) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	_, err := s.db.ExecContext(queryCtx, `DELETE FROM pastes WHERE id = ?`, id)
	s.recordError(err)
	return errors.Wrap(err, "delete paste")
}

// IncrementViews bumps the view counter in a single conditional UPDATE and
// returns the new count. The guard keeps the counter from overshooting
// max_views when readers race: losers see no row and are turned away. SQLite
// serializes writers per database, so the increment is atomic.
func (s *Store) IncrementViews(ctx context.Context, id int64) (int, error) {
	if err := s.checkCircuit(); err != nil {
		return 0, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `
	UPDATE pastes SET views = views + 1, updated_at = ?
	WHERE id = ? AND (max_views IS NULL OR views < max_views)
	RETURNING views`
	var views int
	err := s.db.QueryRowContext(queryCtx, q, time.Now().UTC(), id).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, domain.ErrPasteNotFound
	}
	s.recordError(err)
	if err != nil {
		return 0, errors.Wrap(err, "increment views")
	}
	return views, nil
}

func (s *Store) HashExists(ctx context.Context, hash string) (bool, error) {
	if err := s.checkCircuit(); err != nil {
		return false, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	var one int
	err := s.db.QueryRowContext(queryCtx, `SELECT 1 FROM pastes WHERE hash = ? LIMIT 1`, hash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	s.recordError(err)
	if err != nil {
		return false, errors.Wrap(err, "hash exists check")
	}
	return true, nil
}

// PurgeExpired removes rows whose deadline has passed, in bounded batches so
// a large backlog cannot hold a write lock for long. Best effort: latency of
// removal is unbounded, visibility is governed by IsAccessible.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	if err := s.checkCircuit(); err != nil {
		return 0, err
	}
	totalDeleted := 0
	const maxIterations = 10000
	for i := 0; i < maxIterations; i++ {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}
		queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
		result, err := s.db.ExecContext(queryCtx, `
			DELETE FROM pastes
			WHERE id IN (
				SELECT id FROM pastes
				WHERE expires_at IS NOT NULL AND expires_at <= ?
				LIMIT 100
			)
		`, time.Now().UTC())
		cancel()
		s.recordError(err)
		if err != nil {
			return totalDeleted, errors.Wrap(err, "purge batch failed")
		}
		deleted, _ := result.RowsAffected()
		totalDeleted += int(deleted)
		if deleted == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return totalDeleted, nil
}

// InsertUser creates a user record, surfacing a username collision as
// ErrDuplicateUsername. Uniqueness is enforced by the UNIQUE index, not by a
// read-then-write in the application.
func (s *Store) InsertUser(ctx context.Context, u *domain.User) error {
	if err := s.checkCircuit(); err != nil {
		return err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `INSERT INTO users (username, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?)`
	res, err := s.db.ExecContext(queryCtx, q, u.Username, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	s.recordError(err)
	if err != nil {
		if isConstraintErr(err) {
			return domain.ErrDuplicateUsername
		}
		return errors.Wrap(err, "insert user")
	}
	u.ID, _ = res.LastInsertId()
	return nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `SELECT id, username, password_hash, created_at, updated_at FROM users WHERE username = ?`
	var u domain.User
	err := s.db.QueryRowContext(queryCtx, q, username).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &u, nil
}

func (s *Store) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	if err := s.checkCircuit(); err != nil {
		return nil, err
	}
	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	q := `SELECT id, username, password_hash, created_at, updated_at FROM users WHERE id = ?`
	var u domain.User
	err := s.db.QueryRowContext(queryCtx, q, id).Scan(
		&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	s.recordError(err)
	if err != nil {
		return nil, errors.Wrap(err, "find user by id")
	}
	return &u, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}
