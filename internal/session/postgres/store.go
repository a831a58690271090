package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sqlassist/sqlassist/internal/session"
)

type dbTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store keeps session state as one JSONB document per session.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sessions db: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (session.State, error) {
	query := `
SELECT state, updated_at
FROM assistant_session
WHERE session_id = $1`
	return scanState(s.db.QueryRowContext(ctx, query, id))
}

// Update locks the session row for the duration of fn so concurrent callers
// on the same session apply their changes one after the other.
func (s *Store) Update(ctx context.Context, id string, fn func(*session.State) error) (session.State, error) {
	var out session.State
	err := s.withTx(ctx, func(q dbTX) error {
		// Guarantees a row to lock for sessions seen for the first time.
		if _, err := q.ExecContext(ctx, `
INSERT INTO assistant_session (session_id)
VALUES ($1)
ON CONFLICT (session_id) DO NOTHING`, id); err != nil {
			return fmt.Errorf("ensure session row: %w", err)
		}

		state, err := scanState(q.QueryRowContext(ctx, `
SELECT state, updated_at
FROM assistant_session
WHERE session_id = $1
FOR UPDATE`, id))
		if err != nil {
			return err
		}
		if err := fn(&state); err != nil {
			return err
		}

		payload, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode session state: %w", err)
		}
		var updatedAt time.Time
		if err := q.QueryRowContext(ctx, `
UPDATE assistant_session
SET state = $2::jsonb, updated_at = NOW()
WHERE session_id = $1
RETURNING updated_at`, id, string(payload)).Scan(&updatedAt); err != nil {
			return fmt.Errorf("update session state: %w", err)
		}
		state.UpdatedAt = updatedAt.UTC()
		out = state
		return nil
	})
	if err != nil {
		return session.State{}, err
	}
	return out, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM assistant_session WHERE session_id = $1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PruneIdle deletes at most limit sessions not updated since before.
func (s *Store) PruneIdle(ctx context.Context, before time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = 500
	}
	result, err := s.db.ExecContext(ctx, `
DELETE FROM assistant_session
WHERE session_id IN (
    SELECT session_id
    FROM assistant_session
    WHERE updated_at < $1
    ORDER BY updated_at ASC
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)`, before.UTC(), limit)
	if err != nil {
		return 0, fmt.Errorf("prune idle sessions: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune idle sessions rows affected: %w", err)
	}
	return count, nil
}

// Upload describes one schema file accepted for a session.
type Upload struct {
	SessionID  string
	FileName   string
	Format     string
	SizeBytes  int64
	TableCount int
	ObjectKey  string
}

func (s *Store) RecordUpload(ctx context.Context, in Upload) error {
	var objectKey any
	if in.ObjectKey != "" {
		objectKey = in.ObjectKey
	}
	query := `
INSERT INTO schema_upload (session_id, file_name, format, size_bytes, table_count, object_key)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := s.db.ExecContext(ctx, query, in.SessionID, in.FileName, in.Format, in.SizeBytes, in.TableCount, objectKey); err != nil {
		return fmt.Errorf("record schema upload: %w", err)
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(q dbTX) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanState(row *sql.Row) (session.State, error) {
	var (
		payload   []byte
		updatedAt time.Time
	)
	if err := row.Scan(&payload, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return session.State{}, session.ErrNotFound
		}
		return session.State{}, fmt.Errorf("scan session: %w", err)
	}
	var state session.State
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &state); err != nil {
			return session.State{}, fmt.Errorf("decode session state: %w", err)
		}
	}
	state.UpdatedAt = updatedAt.UTC()
	return state, nil
}
