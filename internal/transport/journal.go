// Package transport holds pieces shared by the TCP and WebSocket listeners.
package transport

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanchat/internal/core"
	"github.com/vovakirdan/chanchat/internal/store"
)

const journalTimeout = 2 * time.Second

// RecordSession writes a finished session to the journal. Failures are logged.
func RecordSession(st store.Store, transport string, s core.Summary, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	rec := store.SessionRecord{
		ID:         s.ID,
		Transport:  transport,
		RemoteAddr: s.RemoteAddr,
		Nickname:   s.Nickname,
		Commands:   s.Commands,
		Reason:     s.Reason,
		StartedAt:  s.StartedAt,
		EndedAt:    s.EndedAt,
	}
	if err := st.RecordSession(ctx, rec); err != nil {
		logger.Warn().Err(err).Str("session_id", s.ID).Msg("failed to journal session")
	}
}

// RecordRejection writes an admission rejection to the journal. Failures are logged.
func RecordRejection(st store.Store, transport, remoteAddr string, logger *zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()

	rej := store.Rejection{Transport: transport, RemoteAddr: remoteAddr, At: time.Now()}
	if err := st.RecordRejection(ctx, rej); err != nil {
		logger.Warn().Err(err).Str("remote_addr", remoteAddr).Msg("failed to journal rejection")
	}
}
