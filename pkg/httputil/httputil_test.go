package httputil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/tmanjupriya-lang/inventory-management/pkg/errors"
	"github.com/tmanjupriya-lang/inventory-management/pkg/logger"
)

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *ErrorResponse  `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&env))
	return env
}

func TestWriteMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteMessage(rec, http.StatusOK, "Checkout completed successfully")

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decode(t, rec)
	assert.JSONEq(t, `{"message":"Checkout completed successfully"}`, string(env.Data))
	assert.Nil(t, env.Error)
}

func TestWriteError_AppErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{apperrors.NotFoundMessage("cart is empty"), http.StatusNotFound, "NOT_FOUND"},
		{apperrors.AlreadyExists("product", "name", "Widget"), http.StatusConflict, "ALREADY_EXISTS"},
		{apperrors.Forbidden("insufficient permissions"), http.StatusForbidden, "FORBIDDEN"},
		{apperrors.Unauthorized("invalid token"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{apperrors.Unprocessable("insufficient stock"), http.StatusUnprocessableEntity, "UNPROCESSABLE_ENTITY"},
		{fmt.Errorf("wrapped: %w", apperrors.InvalidInput("bad")), http.StatusBadRequest, "INVALID_INPUT"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(logger.WithCorrelationID(req.Context(), "corr-1"))

			WriteError(rec, req, tt.err, slog.Default())

			assert.Equal(t, tt.status, rec.Code)
			env := decode(t, rec)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.code, env.Error.Code)
			assert.Equal(t, "corr-1", env.Error.RequestID)
		})
	}
}

func TestWriteError_BareSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodGet, "/", nil), fmt.Errorf("lookup: %w", apperrors.ErrNotFound), slog.Default())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decode(t, rec).Error.Code)
}

func TestWriteError_InternalHidesDetailAndLogs(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewWithWriter("test", "error", &buf)

	rec := httptest.NewRecorder()
	WriteError(rec, httptest.NewRequest(http.MethodPost, "/user/cartcheckout", nil), fmt.Errorf("pq: connection reset"), l)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", env.Error.Code)
	assert.NotContains(t, env.Error.Message, "connection reset")
	assert.Contains(t, buf.String(), "connection reset")
}

type sample struct {
	Name     string `json:"name" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

func TestDecodeJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"Widget","quantity":2}`))

	var dst sample
	require.NoError(t, DecodeJSON(rec, req, &dst))
	assert.Equal(t, sample{Name: "Widget", Quantity: 2}, dst)
}

func TestDecodeJSON_Failures(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty body", "", "INVALID_INPUT"},
		{"malformed", `{"name":`, "INVALID_INPUT"},
		{"validation", `{"name":"Widget","quantity":0}`, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst sample
			err := DecodeJSON(rec, req, &dst)
			require.Error(t, err)

			WriteError(rec, req, err, slog.Default())
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec).Error.Code)
		})
	}
}

func TestWriteValidationError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteValidationError(rec, fmt.Errorf("bad date"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "INVALID_INPUT", env.Error.Code)
	assert.Equal(t, "bad date", env.Error.Message)
}
