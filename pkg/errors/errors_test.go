package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("accept: %w", CallNotFoundError())

	assert.True(t, stderrors.Is(wrapped, CallNotFoundError()))
	assert.False(t, stderrors.Is(wrapped, MatchNotFoundError()))
	assert.True(t, HasCode(wrapped, ErrCodeCallNotFound))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodeCallNotFound))
}

func TestAppError_UnwrapKeepsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := DatabaseError(cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestGetAppError(t *testing.T) {
	appErr := GetAppError(fmt.Errorf("wrapped: %w", BusyError()))
	assert.Equal(t, ErrCodeBusy, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode)

	plain := GetAppError(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Message)
}
