package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSON(t *testing.T) {
	tests := []struct {
		name    string
		write   func(w http.ResponseWriter)
		status  int
		success bool
	}{
		{"success", func(w http.ResponseWriter) { Success(w, map[string]string{"id": "r1"}) }, http.StatusOK, true},
		{"created", func(w http.ResponseWriter) { Created(w, map[string]string{"id": "r1"}) }, http.StatusCreated, true},
		{"conflict", func(w http.ResponseWriter) { JSON(w, http.StatusConflict, nil) }, http.StatusConflict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.success, body.Success)
			assert.False(t, body.Timestamp.IsZero())
		})
	}
}

func TestFail(t *testing.T) {
	w := httptest.NewRecorder()
	Fail(w, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE", "Requested 35000 exceeds available balance 30000")

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, "INSUFFICIENT_BALANCE", body.Code)
	assert.Contains(t, body.Message, "30000")
}

func TestInternalServerErrorHidesCause(t *testing.T) {
	w := httptest.NewRecorder()
	InternalServerError(w)

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Equal(t, "internal error", body.Message)
}
