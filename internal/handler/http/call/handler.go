package call

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

// History reads durable call records
type History interface {
	GetByID(ctx context.Context, callID string) (*domain.Call, error)
	GetUserCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Call, error)
}

// LiveCalls exposes calls that are still ringing or answered
type LiveCalls interface {
	Active(callID string) (*domain.Call, bool)
}

// Handler handles friend call history HTTP requests
type Handler struct {
	history History
	live    LiveCalls
}

// NewHandler creates a new call handler. live may be nil.
func NewHandler(history History, live LiveCalls) *Handler {
	return &Handler{
		history: history,
		live:    live,
	}
}

// ListCalls returns the caller's call history, newest first
// GET /v1/calls?page=&limit=
func (h *Handler) ListCalls(c *gin.Context) {
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

	calls, err := h.history.GetUserCalls(c.Request.Context(), userID, params.Probe(), params.Offset)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.Success(c, http.StatusOK, pagination.Build(params, calls))
}

// GetCall returns one call the user took part in. A live call is served
// from memory so its status is current even before the record catches up.
// GET /v1/calls/:id
func (h *Handler) GetCall(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "Not authenticated")
		return
	}

	callID := c.Param("id")
	if callID == "" {
		response.ValidationError(c, "Invalid call ID")
		return
	}

	var call *domain.Call
	if h.live != nil {
		call, _ = h.live.Active(callID)
	}
	if call == nil {
		var err error
		call, err = h.history.GetByID(c.Request.Context(), callID)
		if err != nil {
			response.FromError(c, err)
			return
		}
	}

	if call.CallerID != userID && call.ReceiverID != userID {
		response.Forbidden(c, "Not a party to this call")
		return
	}

	response.Success(c, http.StatusOK, call)
}
