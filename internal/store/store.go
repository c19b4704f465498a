package store

import (
	"context"
	"time"
)

// Transport names recorded in the journal.
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// SessionRecord describes one finished chat session.
type SessionRecord struct {
	ID         string
	Transport  string
	RemoteAddr string
	Nickname   string
	Commands   int
	Reason     string
	StartedAt  time.Time
	EndedAt    time.Time
}

// Rejection is a connection turned away by admission control.
type Rejection struct {
	Transport  string
	RemoteAddr string
	At         time.Time
}

// Store is the session journal. It records who was connected and why they
// left; chat messages are never stored.
type Store interface {
	RecordSession(ctx context.Context, rec SessionRecord) error
	RecordRejection(ctx context.Context, rej Rejection) error
	// RecentSessions returns up to limit records, newest first.
	RecentSessions(ctx context.Context, limit int) ([]SessionRecord, error)
	CountRejections(ctx context.Context) (int, error)
	Close() error
}

// Nop is a Store that keeps nothing. It is used when no journal path is configured.
type Nop struct{}

func (Nop) RecordSession(context.Context, SessionRecord) error { return nil }
func (Nop) RecordRejection(context.Context, Rejection) error   { return nil }
func (Nop) RecentSessions(context.Context, int) ([]SessionRecord, error) {
	return []SessionRecord{}, nil
}
func (Nop) CountRejections(context.Context) (int, error) { return 0, nil }
func (Nop) Close() error                                 { return nil }
