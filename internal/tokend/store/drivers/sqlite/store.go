// Package sqlite backs the refresh store with an embedded SQLite
// database. Consumption rides on a transaction: select the live row,
// delete it, and let RowsAffected arbitrate concurrent callers.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/signalhaus/tokend/internal/tokend/domain"
	"github.com/signalhaus/tokend/internal/tokend/store"
	"github.com/signalhaus/tokend/pkg/idx"
	_ "modernc.org/sqlite"
)

const backend = "sqlite"

type Store struct {
	db     *sql.DB
	lookup store.UserLookup
	ttl    time.Duration
}

var _ store.RefreshStore = (*Store)(nil)

func New(dsn string, lookup store.UserLookup, ttl time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, store.NewRefreshError(backend, "open", err)
	}

	// modernc's driver is not safe for concurrent writers on one file.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, store.NewRefreshError(backend, "open", err)
	}

	s := &Store{db: db, lookup: lookup, ttl: ttl}
	if err := s.applyMigrations(); err != nil {
		_ = db.Close()
		return nil, store.NewRefreshError(backend, "migrate", err)
	}
	return s, nil
}

func (s *Store) Save(ctx context.Context, user domain.User, token string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, username, token, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		idx.New().String(), user.ID, user.Username, token,
		now.UnixMilli(), now.Add(s.ttl).UnixMilli(),
	)
	return store.NewRefreshError(backend, "save", err)
}

func (s *Store) Use(ctx context.Context, token string) (*domain.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.NewRefreshError(backend, "use", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id       string
		username string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT id, username FROM refresh_tokens
		WHERE token = ? AND expires_at > ?`,
		token, time.Now().UnixMilli(),
	).Scan(&id, &username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewRefreshError(backend, "use", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM refresh_tokens WHERE id = ?`, id)
	if err != nil {
		return nil, store.NewRefreshError(backend, "use", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, store.NewRefreshError(backend, "use", err)
	}
	if n != 1 {
		// Someone else consumed it between our select and delete.
		return nil, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, store.NewRefreshError(backend, "use", err)
	}

	user, err := s.lookup.LoadByUsername(ctx, username)
	if err != nil {
		return nil, store.NewRefreshError(backend, "use", err)
	}
	return &user, nil
}

func (s *Store) List(ctx context.Context, user domain.User) ([]domain.RefreshToken, error) {
	now := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, expires_at FROM refresh_tokens
		WHERE user_id = ? AND expires_at > ?`,
		user.ID, now.UnixMilli(),
	)
	if err != nil {
		return nil, store.NewRefreshError(backend, "list", err)
	}
	defer rows.Close()

	var out []domain.RefreshToken
	for rows.Next() {
		var (
			token     string
			expiresAt int64
		)
		if err := rows.Scan(&token, &expiresAt); err != nil {
			return nil, store.NewRefreshError(backend, "list", err)
		}
		out = append(out, domain.RefreshToken{
			Token:     token,
			ExpiresIn: remainingSeconds(expiresAt, now),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewRefreshError(backend, "list", err)
	}
	return out, nil
}

func (s *Store) ListAll(ctx context.Context) (map[int64][]domain.RefreshToken, error) {
	now := time.Now()
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, token, expires_at FROM refresh_tokens
		WHERE expires_at > ?`,
		now.UnixMilli(),
	)
	if err != nil {
		return nil, store.NewRefreshError(backend, "list-all", err)
	}
	defer rows.Close()

	out := make(map[int64][]domain.RefreshToken)
	for rows.Next() {
		var (
			userID    int64
			token     string
			expiresAt int64
		)
		if err := rows.Scan(&userID, &token, &expiresAt); err != nil {
			return nil, store.NewRefreshError(backend, "list-all", err)
		}
		out[userID] = append(out[userID], domain.RefreshToken{
			Token:     token,
			ExpiresIn: remainingSeconds(expiresAt, now),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewRefreshError(backend, "list-all", err)
	}
	return out, nil
}

func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE token = ? AND expires_at > ?`,
		token, time.Now().UnixMilli(),
	)
	if err != nil {
		return false, store.NewRefreshError(backend, "revoke", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, store.NewRefreshError(backend, "revoke", err)
	}
	return n > 0, nil
}

func (s *Store) RevokeAllFor(ctx context.Context, user domain.User) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE user_id = ? AND expires_at > ?`,
		user.ID, time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, store.NewRefreshError(backend, "revoke-all-for", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.NewRefreshError(backend, "revoke-all-for", err)
	}
	return int(n), nil
}

func (s *Store) RevokeAll(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens WHERE expires_at > ?`,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return 0, store.NewRefreshError(backend, "revoke-all", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, store.NewRefreshError(backend, "revoke-all", err)
	}

	// Expired leftovers go too; they just don't count.
	if _, err := s.db.ExecContext(ctx, `DELETE FROM refresh_tokens`); err != nil {
		return 0, store.NewRefreshError(backend, "revoke-all", err)
	}
	return int(n), nil
}

func (s *Store) SupportsRefresh() bool { return true }

func (s *Store) Ping(ctx context.Context) error {
	return store.NewRefreshError(backend, "ping", s.db.PingContext(ctx))
}

func (s *Store) Close() error { return s.db.Close() }

func remainingSeconds(expiresAtMilli int64, now time.Time) int64 {
	ms := expiresAtMilli - now.UnixMilli()
	secs := (ms + 999) / 1000
	if secs < 1 {
		secs = 1
	}
	return secs
}
