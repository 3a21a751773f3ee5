package core

import (
	"context"
	"time"
)

type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Title     string    `json:"title"`
}

type StoredMessage struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Meta      map[string]any `json:"meta,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ParamSnapshot is an audit record of the settings and synthesized prompt
// used for one turn.
type ParamSnapshot struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// SessionTranscript is a session plus its full message and snapshot history.
type SessionTranscript struct {
	Session
	Messages []StoredMessage `json:"messages"`
	Params   []ParamSnapshot `json:"params_history"`
}

// SessionRepository records turns durably. All writes are append-only and
// committed before the call returns; message and param writes bump the
// session's updated_at.
type SessionRepository interface {
	UpsertSession(ctx context.Context, id, title string) error
	AddMessage(ctx context.Context, sessionID, role, content string, meta map[string]any) error
	AddParams(ctx context.Context, sessionID string, data map[string]any) error
	GetSession(ctx context.Context, id string) (*SessionTranscript, error)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error
}
