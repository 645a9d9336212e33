// Package audit provides structured audit logging for tool calls.
package audit

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var keyValuePattern = regexp.MustCompile(`(?i)\b(key|token|secret|password|authorization)\s*[:=]\s*([^\s,;]+)`)

// ToolCallCompletion captures one finalized tool-call outcome.
type ToolCallCompletion struct {
	RequestID    string
	ToolName     string
	CallerID     string
	CallerSource string
	Result       string
	ErrorDetail  string
	Duration     time.Duration
	ResponseCode int

	// Target identifiers extracted from validated parameters; raw argument
	// payloads are never logged.
	ProductID string
	StoreID   string
	Quantity  int
}

// Logger emits structured audit entries.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates an audit logger.
func NewLogger(logger zerolog.Logger) *Logger {
	return &Logger{
		logger: logger.With().Str("component", "audit").Logger(),
	}
}

// Complete writes a single completion entry for one tool call.
func (l *Logger) Complete(event ToolCallCompletion) {
	if l == nil {
		return
	}

	result := strings.TrimSpace(event.Result)
	if result == "" {
		result = "error"
	}
	tool := strings.TrimSpace(event.ToolName)
	if tool == "" {
		tool = "unknown"
	}
	duration := event.Duration
	if duration < 0 {
		duration = 0
	}

	entry := l.logger.Info().
		Str("event", "storefront.tool_call.completed").
		Str("request_id", strings.TrimSpace(event.RequestID)).
		Str("tool", tool).
		Str("caller_id", strings.TrimSpace(event.CallerID)).
		Str("caller_source", strings.TrimSpace(event.CallerSource)).
		Str("result", result).
		Int64("duration_ms", duration.Milliseconds())

	if event.ResponseCode > 0 {
		entry = entry.Int("response_code", event.ResponseCode)
	}
	if event.ProductID != "" {
		entry = entry.Str("product_id", event.ProductID)
	}
	if event.StoreID != "" {
		entry = entry.Str("store_id", event.StoreID)
	}
	if event.Quantity > 0 {
		entry = entry.Int("quantity", event.Quantity)
	}
	if redacted := RedactSensitiveText(event.ErrorDetail); redacted != "" {
		entry = entry.Str("error_detail", redacted)
	}

	entry.Msg("tool call completed")
}

// RedactSensitiveText removes obvious secrets from free-text error details.
func RedactSensitiveText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	return keyValuePattern.ReplaceAllStringFunc(trimmed, func(match string) string {
		for _, sep := range []string{":", "="} {
			if idx := strings.Index(match, sep); idx > 0 {
				return fmt.Sprintf("%s%s [REDACTED]", strings.TrimSpace(match[:idx]), sep)
			}
		}
		return "[REDACTED]"
	})
}
