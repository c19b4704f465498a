package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/chanchat/internal/admission"
	"github.com/vovakirdan/chanchat/internal/core"
	"github.com/vovakirdan/chanchat/internal/store"
)

const defaultSessionsLimit = 20

// StatusHandlers serves read-only views of the chat state.
type StatusHandlers struct {
	reg     *core.Registry
	gate    *admission.Gate
	journal store.Store
	log     *zerolog.Logger
}

// NewStatusHandlers creates a new status handlers instance.
func NewStatusHandlers(reg *core.Registry, gate *admission.Gate, journal store.Store, logger *zerolog.Logger) *StatusHandlers {
	return &StatusHandlers{
		reg:     reg,
		gate:    gate,
		journal: journal,
		log:     logger,
	}
}

// ChannelsResponse is the live channel snapshot.
type ChannelsResponse struct {
	Channels    map[string]int `json:"channels"`
	Sessions    int            `json:"sessions"`
	Admitted    int            `json:"admitted"`
	MaxSessions int            `json:"max_sessions"`
}

// SessionResponse is one journal entry.
type SessionResponse struct {
	ID         string `json:"id"`
	Transport  string `json:"transport"`
	RemoteAddr string `json:"remote_addr"`
	Nickname   string `json:"nickname"`
	Commands   int    `json:"commands"`
	Reason     string `json:"reason"`
	StartedAt  string `json:"started_at"`
	EndedAt    string `json:"ended_at"`
}

// SessionsResponse wraps the journal listing.
type SessionsResponse struct {
	Sessions   []SessionResponse `json:"sessions"`
	Rejections int               `json:"rejections"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

type sessionsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=500"`
}

// Channels returns every non-empty channel with its member count.
// GET /api/channels
func (h *StatusHandlers) Channels(c *gin.Context) {
	c.JSON(http.StatusOK, ChannelsResponse{
		Channels:    h.reg.Channels(),
		Sessions:    h.reg.Sessions(),
		Admitted:    h.gate.Active(),
		MaxSessions: h.gate.Limit(),
	})
}

// Sessions lists the most recently finished sessions.
// GET /api/sessions?limit=N
func (h *StatusHandlers) Sessions(c *gin.Context) {
	var q sessionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.log.Debug().Err(err).Msg("invalid sessions query")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		return
	}
	if q.Limit == 0 {
		q.Limit = defaultSessionsLimit
	}

	ctx := c.Request.Context()
	records, err := h.journal.RecentSessions(ctx, q.Limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list sessions")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}
	rejections, err := h.journal.CountRejections(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to count rejections")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
		return
	}

	resp := SessionsResponse{
		Sessions:   make([]SessionResponse, 0, len(records)),
		Rejections: rejections,
	}
	for _, rec := range records {
		resp.Sessions = append(resp.Sessions, SessionResponse{
			ID:         rec.ID,
			Transport:  rec.Transport,
			RemoteAddr: rec.RemoteAddr,
			Nickname:   rec.Nickname,
			Commands:   rec.Commands,
			Reason:     rec.Reason,
			StartedAt:  rec.StartedAt.UTC().Format(time.RFC3339),
			EndedAt:    rec.EndedAt.UTC().Format(time.RFC3339),
		})
	}
	c.JSON(http.StatusOK, resp)
}
