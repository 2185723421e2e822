package match

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"gufagu-backend/internal/domain"
	"gufagu-backend/internal/middleware"
	"gufagu-backend/pkg/pagination"
	"gufagu-backend/pkg/response"
)

// maxTranscript bounds a single transcript read
const maxTranscript = 1000

// History reads durable match records
type History interface {
	GetByID(ctx context.Context, matchID uuid.UUID) (*domain.Match, error)
	GetUserMatches(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Match, error)
}

// TranscriptReader reads the chat transcript of a match
type TranscriptReader interface {
	GetByMatch(ctx context.Context, matchID uuid.UUID, limit int) ([]*domain.ChatMessage, error)
}

// Handler handles match history HTTP requests
type Handler struct {
	history     History
	transcripts TranscriptReader
}

// NewHandler creates a new match handler
func NewHandler(history History, transcripts TranscriptReader) *Handler {
	return &Handler{
		history:     history,
		transcripts: transcripts,
	}
}

// ListMatches returns the account's match history, newest first
// GET /v1/matches?page=&limit=
func (h *Handler) ListMatches(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	params, err := pagination.Parse(c.Query("page"), c.Query("limit"))
	if err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	matches, err := h.history.GetUserMatches(c.Request.Context(), userID, params.Probe(), params.Offset)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, pagination.Build(params, matches))
}

// GetTranscript returns the chat transcript of a match the user took part in
// GET /v1/matches/:id/transcript
func (h *Handler) GetTranscript(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	matchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid match ID")
		return
	}

	match, err := h.history.GetByID(c.Request.Context(), matchID)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if !match.Involves(userID) {
		response.Forbidden(c, "Not a party to this match")
		return
	}

	messages, err := h.transcripts.GetByMatch(c.Request.Context(), matchID, maxTranscript)
	if err != nil {
		response.FromError(c, err)
		return
	}
	if messages == nil {
		messages = []*domain.ChatMessage{}
	}

	response.Success(c, http.StatusOK, gin.H{
		"match_id": matchID,
		"messages": messages,
	})
}
