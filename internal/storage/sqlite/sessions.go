package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/vexd/internal/core"
	"github.com/sandevgo/vexd/pkg/log"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepo struct {
	db *sql.DB
}

func NewSessionRepo(db *sql.DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// UpsertSession creates the session on first reference; on later calls it
// only bumps updated_at, leaving the original title in place.
func (r *SessionRepo) UpsertSession(ctx context.Context, id, title string) error {
	now := time.Now().UTC()
	if title == "" {
		title = id
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, updated_at, title) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		id, now, now, title,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

func (r *SessionRepo) AddMessage(ctx context.Context, sessionID, role, content string, meta map[string]any) error {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}
	if meta == nil {
		metaJSON = []byte("{}")
	}

	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO messages (session_id, role, content, meta, created_at) VALUES (?, ?, ?, ?, ?)`,
		sessionID, role, content, string(metaJSON), now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	if err := bumpSession(ctx, tx, sessionID, now); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SessionRepo) AddParams(ctx context.Context, sessionID string, data map[string]any) error {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal params: %w", err)
	}
	if data == nil {
		dataJSON = []byte("{}")
	}

	now := time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO params (session_id, data, created_at) VALUES (?, ?, ?)`,
		sessionID, string(dataJSON), now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert params: %w", err)
	}

	if err := bumpSession(ctx, tx, sessionID, now); err != nil {
		return err
	}

	return tx.Commit()
}

// bumpSession advances updated_at, creating the session row if a write
// arrives before any explicit upsert.
func bumpSession(ctx context.Context, tx *sql.Tx, sessionID string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, updated_at, title) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		sessionID, now, now, sessionID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump session: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetSession(ctx context.Context, id string) (*core.SessionTranscript, error) {
	var out core.SessionTranscript
	err := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, title FROM sessions WHERE id = ?`, id,
	).Scan(&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query session: %w", err)
	}

	out.Messages, err = r.sessionMessages(ctx, id)
	if err != nil {
		return nil, err
	}

	out.Params, err = r.sessionParams(ctx, id)
	if err != nil {
		return nil, err
	}

	log.FromCtx(ctx).Debug().
		Str("session", id).
		Int("messages", len(out.Messages)).
		Int("params", len(out.Params)).
		Msg("loaded session transcript")
	return &out, nil
}

func (r *SessionRepo) sessionMessages(ctx context.Context, id string) ([]core.StoredMessage, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, role, content, meta, created_at FROM messages WHERE session_id = ? ORDER BY id ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []core.StoredMessage
	for rows.Next() {
		msg := core.StoredMessage{SessionID: id}
		var metaStr sql.NullString
		if err := rows.Scan(&msg.ID, &msg.Role, &msg.Content, &metaStr, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		if metaStr.Valid && metaStr.String != "" {
			if err := json.Unmarshal([]byte(metaStr.String), &msg.Meta); err != nil {
				return nil, fmt.Errorf("failed to unmarshal meta: %w", err)
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *SessionRepo) sessionParams(ctx context.Context, id string) ([]core.ParamSnapshot, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, data, created_at FROM params WHERE session_id = ? ORDER BY id ASC`, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query params: %w", err)
	}
	defer rows.Close()

	var params []core.ParamSnapshot
	for rows.Next() {
		snap := core.ParamSnapshot{SessionID: id}
		var dataStr sql.NullString
		if err := rows.Scan(&snap.ID, &dataStr, &snap.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan params: %w", err)
		}
		if dataStr.Valid && dataStr.String != "" {
			if err := json.Unmarshal([]byte(dataStr.String), &snap.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal params: %w", err)
			}
		}
		params = append(params, snap)
	}
	return params, rows.Err()
}

func (r *SessionRepo) ListSessions(ctx context.Context, limit int) ([]core.Session, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at, title FROM sessions ORDER BY updated_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []core.Session
	for rows.Next() {
		var s core.Session
		if err := rows.Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt, &s.Title); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// DeleteSession is the administrative removal path; the pipeline itself
// never deletes.
func (r *SessionRepo) DeleteSession(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM messages WHERE session_id = ?`,
		`DELETE FROM params WHERE session_id = ?`,
		`DELETE FROM sessions WHERE id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, id); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}

	return tx.Commit()
}
