package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tomwolfe/storefront/internal/inventory"
	"github.com/tomwolfe/storefront/internal/store"
)

// ToolError carries an HTTP-style status code for transport-level tool
// failures: validation errors, unknown tools, and internal faults. Business
// failures never become ToolErrors; they travel inside the Result envelope.
type ToolError struct {
	statusCode int
	message    string
}

// Error implements error.
func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return strings.TrimSpace(e.message)
}

// StatusCode returns the attached status code.
func (e *ToolError) StatusCode() int {
	if e == nil || e.statusCode == 0 {
		return http.StatusInternalServerError
	}
	return e.statusCode
}

func validationErrorf(format string, args ...any) error {
	return &ToolError{
		statusCode: http.StatusBadRequest,
		message:    fmt.Sprintf(format, args...),
	}
}

func internalErrorf(format string, args ...any) error {
	return &ToolError{
		statusCode: http.StatusInternalServerError,
		message:    fmt.Sprintf(format, args...),
	}
}

// ContentBlock is one block of a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the uniform tool response envelope. IsError marks a business
// failure that completed at the protocol level.
type Result struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

func textResult(text string) Result {
	return Result{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) Result {
	result := textResult(text)
	result.IsError = true
	return result
}

// Dispatcher validates tool invocations and routes them to the inventory
// service.
type Dispatcher struct {
	registry  *Registry
	inventory *inventory.Service
	logger    zerolog.Logger
}

// NewDispatcher creates a tool dispatcher.
func NewDispatcher(registry *Registry, inv *inventory.Service, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		inventory: inv,
		logger:    logger.With().Str("component", "tools").Logger(),
	}
}

// Dispatch validates params against the named tool's schema and executes it.
// The returned error is always a *ToolError; business failures come back in
// the Result with IsError set.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, params json.RawMessage) (Result, error) {
	switch strings.TrimSpace(name) {
	case ToolFindProductNearby:
		return d.findProductNearby(ctx, params)
	case ToolReserveStockItem:
		return d.reserveStockItem(ctx, params)
	default:
		return Result{}, &ToolError{statusCode: http.StatusBadRequest, message: "Unknown tool"}
	}
}

type findProductParams struct {
	ProductQuery   *string  `json:"product_query"`
	UserLat        *float64 `json:"user_lat"`
	UserLng        *float64 `json:"user_lng"`
	MaxRadiusMiles *float64 `json:"max_radius_miles"`
}

func (d *Dispatcher) findProductNearby(ctx context.Context, raw json.RawMessage) (Result, error) {
	var params findProductParams
	if err := decodeParamsStrict(raw, &params); err != nil {
		return Result{}, err
	}
	if params.ProductQuery == nil || strings.TrimSpace(*params.ProductQuery) == "" {
		return Result{}, validationErrorf("product_query is required")
	}
	if params.UserLat == nil || params.UserLng == nil {
		return Result{}, validationErrorf("user_lat and user_lng are required")
	}
	radius := inventory.DefaultRadiusMiles
	if params.MaxRadiusMiles != nil {
		if *params.MaxRadiusMiles <= 0 {
			return Result{}, validationErrorf("max_radius_miles must be positive")
		}
		radius = *params.MaxRadiusMiles
	}

	offers, err := d.inventory.Search(ctx, *params.ProductQuery, *params.UserLat, *params.UserLng, radius)
	if err != nil {
		d.logger.Error().Err(err).Str("tool", ToolFindProductNearby).Msg("tool execution failed")
		return Result{}, mapExecutionError(err, "product search failed")
	}

	if len(offers) == 0 {
		return textResult(fmt.Sprintf("No stores found with %q in stock within %g miles.",
			strings.TrimSpace(*params.ProductQuery), radius)), nil
	}

	encoded, err := json.MarshalIndent(offers, "", "  ")
	if err != nil {
		return Result{}, internalErrorf("encoding search results: %v", err)
	}
	return textResult(string(encoded)), nil
}

type reserveStockParams struct {
	ProductID *string `json:"product_id"`
	StoreID   *string `json:"store_id"`
	Quantity  *int    `json:"quantity"`
}

func (d *Dispatcher) reserveStockItem(ctx context.Context, raw json.RawMessage) (Result, error) {
	var params reserveStockParams
	if err := decodeParamsStrict(raw, &params); err != nil {
		return Result{}, err
	}
	if params.ProductID == nil || strings.TrimSpace(*params.ProductID) == "" {
		return Result{}, validationErrorf("product_id is required")
	}
	if params.StoreID == nil || strings.TrimSpace(*params.StoreID) == "" {
		return Result{}, validationErrorf("store_id is required")
	}
	if params.Quantity == nil {
		return Result{}, validationErrorf("quantity is required")
	}
	if *params.Quantity <= 0 {
		return Result{}, validationErrorf("quantity must be a positive integer")
	}

	productID := strings.TrimSpace(*params.ProductID)
	storeID := strings.TrimSpace(*params.StoreID)

	err := d.inventory.Reserve(ctx, productID, storeID, *params.Quantity)
	if err == nil {
		return textResult(fmt.Sprintf("Successfully reserved %d items of product %s at store %s.",
			*params.Quantity, productID, storeID)), nil
	}

	var insufficient *store.InsufficientStockError
	switch {
	case errors.Is(err, store.ErrNotFound):
		return errorResult(fmt.Sprintf("Reservation failed: stock record not found for product %s at store %s.",
			productID, storeID)), nil
	case errors.As(err, &insufficient):
		return errorResult(fmt.Sprintf("Reservation failed: insufficient stock. Available: %d, Requested: %d",
			insufficient.Available, insufficient.Requested)), nil
	default:
		d.logger.Error().Err(err).Str("tool", ToolReserveStockItem).Msg("tool execution failed")
		return Result{}, mapExecutionError(err, "stock reservation failed")
	}
}

// mapExecutionError converts collaborator failures into transport-level tool
// errors. Timeouts and cancellations surface as such rather than hanging or
// masquerading as generic faults.
func mapExecutionError(err error, fallback string) error {
	var toolErr *ToolError
	if errors.As(err, &toolErr) {
		return toolErr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ToolError{statusCode: http.StatusGatewayTimeout, message: fallback + ": request timed out"}
	}
	if errors.Is(err, context.Canceled) {
		return &ToolError{statusCode: http.StatusRequestTimeout, message: fallback + ": request canceled"}
	}
	return internalErrorf("%s: %v", fallback, err)
}

// decodeParamsStrict unmarshals raw params rejecting unknown fields.
func decodeParamsStrict(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return validationErrorf("invalid tool parameters: %v", err)
	}
	if decoder.More() {
		return validationErrorf("tool parameters must be a single JSON object")
	}
	return nil
}
