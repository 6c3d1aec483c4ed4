package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/favianyip/shunharvest/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NewError("empty_cart", "cart has no items\n", http.StatusBadRequest).
		WithDetails(map[string]any{"field": "items"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "empty_cart", body["error"])
	assert.Equal(t, "cart has no items", body["message"])
	assert.Equal(t, float64(http.StatusBadRequest), body["status"])
	assert.Equal(t, "trace-1", body["trace_id"])
	assert.Equal(t, "items", body["field"])
}

func TestNewErrorDefaultsStatus(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, NewError("x", "y", 0).Status)
}
