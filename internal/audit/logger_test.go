package audit

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_EmitsStructuredEntry(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	logger.Complete(ToolCallCompletion{
		RequestID:    "req-1",
		ToolName:     "reserve_stock_item",
		CallerID:     "user-1",
		CallerSource: "primary",
		Result:       "success",
		Duration:     42 * time.Millisecond,
		ResponseCode: 200,
		ProductID:    "p1",
		StoreID:      "s1",
		Quantity:     2,
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "storefront.tool_call.completed", entry["event"])
	assert.Equal(t, "reserve_stock_item", entry["tool"])
	assert.Equal(t, "user-1", entry["caller_id"])
	assert.Equal(t, "primary", entry["caller_source"])
	assert.Equal(t, "success", entry["result"])
	assert.Equal(t, float64(42), entry["duration_ms"])
	assert.Equal(t, float64(200), entry["response_code"])
	assert.Equal(t, "p1", entry["product_id"])
	assert.Equal(t, "s1", entry["store_id"])
	assert.Equal(t, float64(2), entry["quantity"])
}

func TestComplete_DefaultsEmptyResultToError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(zerolog.New(&buf))

	logger.Complete(ToolCallCompletion{ToolName: "find_product_nearby"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "error", entry["result"])
}

func TestComplete_NilLoggerIsSafe(t *testing.T) {
	var logger *Logger
	logger.Complete(ToolCallCompletion{ToolName: "find_product_nearby"})
}

func TestRedactSensitiveText(t *testing.T) {
	redacted := RedactSensitiveText("request failed: key=super-secret-value for upstream")
	assert.NotContains(t, redacted, "super-secret-value")
	assert.Contains(t, redacted, "[REDACTED]")

	assert.Empty(t, RedactSensitiveText("   "))
	assert.Equal(t, "plain failure detail", RedactSensitiveText("plain failure detail"))
}
