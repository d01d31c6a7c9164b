package session

import (
	"time"

	"github.com/datasage-io/datasage/pkg/protocol"
)

// Session groups the exchanges of one browser (or Telegram chat) session.
// Stored history is for display and replay only; the analyst never re-reads
// it when answering.
type Session struct {
	ID         string      `json:"id"`
	CreatedAt  time.Time   `json:"created_at"`
	LastActive time.Time   `json:"last_active"`
	Exchanges  []*Exchange `json:"exchanges,omitempty"`
}

// Exchange is one question/answer pair with its call trace.
type Exchange struct {
	ID        string                `json:"id"`
	SessionID string                `json:"session_id"`
	Question  string                `json:"question"`
	Answer    string                `json:"answer"`
	Elapsed   time.Duration         `json:"elapsed_ns"`
	CreatedAt time.Time             `json:"created_at"`
	Trace     []protocol.TraceEntry `json:"trace,omitempty"`
}

// Store persists sessions and their exchanges.
type Store interface {
	SaveExchange(ex *Exchange) error
	GetSession(id string) (*Session, error)
	ListSessions(limit int) ([]*Session, error)
	Close() error
}
