package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-desk/internal/common/logger"
	"order-desk/internal/domain"
)

func init() { gin.SetMode(gin.TestMode) }

func serve(t *testing.T, h gin.HandlerFunc, logs *bytes.Buffer) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	r := gin.New()
	r.Use(RequestID(logger.NewWithWriter("test", logs, logger.LevelDebug)))
	r.GET("/x/:id", h)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x/5", nil)
	req.Header.Set(RequestIDHeader, "rid-42")
	r.ServeHTTP(w, req)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestFailMapsDomainKinds(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrOrderNotFound, http.StatusNotFound, "ORDER_NOT_FOUND"},
		{domain.ErrAlreadyComplete, http.StatusConflict, "ALREADY_COMPLETE"},
		{domain.ErrUnauthorized, http.StatusForbidden, "UNAUTHORIZED"},
		{domain.Validationf("quantity must be positive"), http.StatusBadRequest, "VALIDATION"},
		{fmt.Errorf("complete: %w", domain.ErrInsufficientStock), http.StatusUnprocessableEntity, "INSUFFICIENT_STOCK"},
		{domain.ErrDuplicateSKU, http.StatusConflict, "DUPLICATE_SKU"},
	}
	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			var logs bytes.Buffer
			w, body := serve(t, func(c *gin.Context) { Fail(c, tc.err) }, &logs)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, false, body["ok"])
			assert.Equal(t, tc.code, body["code"])
			assert.Equal(t, tc.err.Error(), body["error"])
			assert.Empty(t, logs.String())
		})
	}
}

func TestFailHidesInternalErrors(t *testing.T) {
	var logs bytes.Buffer
	w, body := serve(t, func(c *gin.Context) { Fail(c, errors.New("pq: relation missing")) }, &logs)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", body["error"])
	assert.Equal(t, "internal_error", body["code"])
	assert.Contains(t, logs.String(), "pq: relation missing")
	assert.Contains(t, logs.String(), "rid-42")
	assert.Equal(t, "rid-42", w.Header().Get(RequestIDHeader))
}

func TestIDParam(t *testing.T) {
	var logs bytes.Buffer
	w, body := serve(t, func(c *gin.Context) {
		id, ok := IDParam(c, "id")
		require.True(t, ok)
		OK(c, gin.H{"id": id, "limit": QueryInt(c, "limit", 50)})
	}, &logs)
	assert.Equal(t, http.StatusOK, w.Code)
	data := body["data"].(map[string]any)
	assert.EqualValues(t, 5, data["id"])
	assert.EqualValues(t, 50, data["limit"])
}
