package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondErrorMapsSentinels(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("order 7: %w", ErrDuplicate), http.StatusConflict},
		{ErrValidation, http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		res := httptest.NewRecorder()
		RespondError(res, tc.err)
		assert.Equal(t, tc.code, res.Code, tc.err.Error())
		assert.Equal(t, "application/problem+json", res.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
		assert.Equal(t, tc.code, body.Status)
	}
}

func TestInternalErrorHidesDetail(t *testing.T) {
	res := httptest.NewRecorder()
	RespondError(res, errors.New("pq: password authentication failed"))
	assert.NotContains(t, res.Body.String(), "password")
}

func TestDecodeJSON(t *testing.T) {
	var dst struct {
		Reason string `json:"reason"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"closed"}`))
	require.NoError(t, DecodeJSON(req, &dst))
	assert.Equal(t, "closed", dst.Reason)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":`))
	assert.Error(t, DecodeJSON(req, &dst))

	huge := `{"reason":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(huge))
	assert.Error(t, DecodeJSON(req, &dst))
}
