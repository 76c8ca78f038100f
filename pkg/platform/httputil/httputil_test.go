package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "bloodbank/pkg/domain-errors"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})

	t.Run("plain errors are internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, assert.AnError)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, decodeBody(t, w), "error_description")
	})

	t.Run("invalid argument includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInvalidArgument, "invalid input"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, "invalid_argument", body["error"])
		assert.Equal(t, "invalid input", body["error_description"])
	})

	t.Run("shortfall carries details", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInsufficientInventory, "not enough PRC O+").
			WithDetail("requested", 3).
			WithDetail("available", 1))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		details, ok := decodeBody(t, w)["details"].(map[string]any)
		require.True(t, ok)
		assert.EqualValues(t, 3, details["requested"])
		assert.EqualValues(t, 1, details["available"])
	})
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, StatusFor(dErrors.CodeNotFound))
	assert.Equal(t, http.StatusConflict, StatusFor(dErrors.CodeInvalidState))
	assert.Equal(t, http.StatusConflict, StatusFor(dErrors.CodeConflict))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(dErrors.CodeUnauthorized))
	assert.Equal(t, http.StatusGatewayTimeout, StatusFor(dErrors.CodeTimeout))
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	decode := func(body string) (payload, error) {
		var p payload
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		err := DecodeJSON(httptest.NewRecorder(), r, &p)
		return p, err
	}

	p, err := decode(`{"name":"plasma"}`)
	require.NoError(t, err)
	assert.Equal(t, "plasma", p.Name)

	for name, body := range map[string]string{
		"empty":         "",
		"unknown field": `{"name":"x","extra":1}`,
		"trailing data": `{"name":"x"}{"name":"y"}`,
		"malformed":     `{"name":`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decode(body)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidArgument))
		})
	}

	_, err = decode(`{"name":"` + strings.Repeat("a", MaxBodyBytes) + `"}`)
	assert.Equal(t, "request body too large", dErrors.MessageOf(err))
}
