// Package store defines persistence contracts for storefront inventory.
package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested stock record does not exist.
var ErrNotFound = errors.New("stock record not found")

// InsufficientStockError reports a reservation that would overdraw stock.
// It carries both quantities so the caller can retry with a smaller amount.
type InsufficientStockError struct {
	Available int
	Requested int
}

// Error implements error.
func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock. Available: %d, Requested: %d", e.Available, e.Requested)
}

// StockedOffer is one in-stock product row joined with its store, as read
// for proximity search. Distance is computed by the caller, not here.
type StockedOffer struct {
	StoreID     string
	StoreName   string
	Latitude    float64
	Longitude   float64
	Address     string
	ProductID   string
	ProductName string
	Price       float64
	Quantity    int
}

// StockLevel is one restock row applied by the inventory-sync path.
type StockLevel struct {
	StoreID   string
	ProductID string
	Quantity  int
}

// Store defines persistence methods needed by the storefront service.
//
// Reserve must serialize concurrent calls for the same (store, product) key:
// the read-check-decrement sequence runs inside one transactional scope so
// available quantity never goes negative.
type Store interface {
	// Ping checks connectivity for readiness probes.
	Ping(ctx context.Context) error

	// FindInStock returns stock rows joined with store and product where the
	// product name contains productQuery case-insensitively and quantity > 0.
	FindInStock(ctx context.Context, productQuery string) ([]StockedOffer, error)

	// Reserve atomically decrements available quantity for the key.
	// Returns ErrNotFound when no stock row exists and
	// *InsufficientStockError when the row cannot cover the quantity.
	Reserve(ctx context.Context, storeID, productID string, quantity int) error

	// UpsertStock applies restock levels, creating rows as needed.
	UpsertStock(ctx context.Context, levels []StockLevel) error
}
