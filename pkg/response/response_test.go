package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "gufagu-backend/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, h gin.HandlerFunc) (*httptest.ResponseRecorder, Response) {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Set("request_id", "req-1")
	h(c)

	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestSuccess(t *testing.T) {
	w, body := serve(t, func(c *gin.Context) { Success(c, http.StatusOK, gin.H{"ok": true}) })

	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, body.Success)
	assert.Nil(t, body.Error)
	assert.Equal(t, "req-1", body.Meta.RequestID)
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"app error", apperrors.CallNotFoundError(), http.StatusNotFound, "CALL_NOT_FOUND", "Call not found"},
		{"unavailable keeps message", apperrors.ServiceUnavailableError("Server at capacity"), http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Server at capacity"},
		{"database error masked", apperrors.DatabaseError(errors.New("pq: relation missing")), http.StatusInternalServerError, "DATABASE_ERROR", "Internal server error"},
		{"plain error masked", errors.New("nil pointer"), http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := serve(t, func(c *gin.Context) { FromError(c, tt.err) })

			assert.Equal(t, tt.status, w.Code)
			assert.False(t, body.Success)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
		})
	}
}
