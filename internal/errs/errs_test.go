package errs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeUpperCaseWithUnderscores(t *testing.T) {
	assert.Equal(t, "BAD_REQUEST", MakeUpperCaseWithUnderscores("Bad Request"))
	assert.Equal(t, "INTERNAL_SERVER_ERROR", MakeUpperCaseWithUnderscores(http.StatusText(500)))
}

func TestHTTPErrorEnvelope(t *testing.T) {
	t.Run("omits details when empty", func(t *testing.T) {
		body, err := json.Marshal(NewRouteNotFoundError())
		require.NoError(t, err)
		assert.JSONEq(t, `{"error":"Route not found"}`, string(body))
	})

	t.Run("carries violations", func(t *testing.T) {
		body, err := json.Marshal(NewValidationError([]FieldError{
			{Path: "latex", Code: "required", Message: "Required"},
		}))
		require.NoError(t, err)
		assert.JSONEq(t,
			`{"error":"Invalid input","details":[{"path":"latex","code":"required","message":"Required"}]}`,
			string(body))
	})
}

func TestHTTPErrorIs(t *testing.T) {
	wrapped := fmt.Errorf("dispatch: %w", NewInvalidJSONError())

	var httpErr *HTTPError
	require.True(t, errors.As(wrapped, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "BAD_REQUEST", httpErr.Code)
	assert.True(t, errors.Is(wrapped, &HTTPError{}))
}

func TestNewInternalServerErrorDefaultsMessage(t *testing.T) {
	assert.Equal(t, MessageInternalServer, NewInternalServerError("").Message)
	assert.Equal(t, "Failed to render LaTeX", NewInternalServerError("Failed to render LaTeX").Message)
}
