package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// StoreRecord is immutable store reference data held by MemoryStore.
type StoreRecord struct {
	ID        string
	Name      string
	Latitude  float64
	Longitude float64
	Address   string
}

// ProductRecord is immutable product reference data held by MemoryStore.
type ProductRecord struct {
	ID    string
	Name  string
	Price float64
}

type stockKey struct {
	storeID   string
	productID string
}

type stockState struct {
	quantity  int
	updatedAt time.Time
}

// MemoryStore is an in-memory Store used in dev mode and unit tests. A
// single mutex serializes the read-check-decrement sequence, giving the same
// isolation the postgres row lock provides.
type MemoryStore struct {
	mu       sync.RWMutex
	stores   map[string]StoreRecord
	products map[string]ProductRecord
	stock    map[stockKey]stockState
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		stores:   make(map[string]StoreRecord),
		products: make(map[string]ProductRecord),
		stock:    make(map[stockKey]stockState),
	}
}

// AddStore registers store reference data.
func (s *MemoryStore) AddStore(record StoreRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stores[record.ID] = record
}

// AddProduct registers product reference data.
func (s *MemoryStore) AddProduct(record ProductRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[record.ID] = record
}

// SetStock sets the available quantity for a (store, product) key.
func (s *MemoryStore) SetStock(storeID, productID string, quantity int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[stockKey{storeID: storeID, productID: productID}] = stockState{
		quantity:  quantity,
		updatedAt: time.Now().UTC(),
	}
}

// Quantity returns the available quantity for a key, or false if absent.
func (s *MemoryStore) Quantity(storeID, productID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.stock[stockKey{storeID: storeID, productID: productID}]
	return state.quantity, ok
}

// Ping implements Store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// FindInStock implements Store.
func (s *MemoryStore) FindInStock(ctx context.Context, productQuery string) ([]StockedOffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(productQuery))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var offers []StockedOffer
	for key, state := range s.stock {
		if state.quantity <= 0 {
			continue
		}
		product, ok := s.products[key.productID]
		if !ok || !strings.Contains(strings.ToLower(product.Name), needle) {
			continue
		}
		storeRec, ok := s.stores[key.storeID]
		if !ok {
			continue
		}
		offers = append(offers, StockedOffer{
			StoreID:     storeRec.ID,
			StoreName:   storeRec.Name,
			Latitude:    storeRec.Latitude,
			Longitude:   storeRec.Longitude,
			Address:     storeRec.Address,
			ProductID:   product.ID,
			ProductName: product.Name,
			Price:       product.Price,
			Quantity:    state.quantity,
		})
	}
	// Map iteration order is randomized; order rows like the SQL query does
	// so equal-distance ranking downstream stays deterministic.
	sort.Slice(offers, func(i, j int) bool {
		if offers[i].StoreID != offers[j].StoreID {
			return offers[i].StoreID < offers[j].StoreID
		}
		return offers[i].ProductID < offers[j].ProductID
	})
	return offers, nil
}

// Reserve implements Store with mutex-serialized check-and-decrement.
func (s *MemoryStore) Reserve(ctx context.Context, storeID, productID string, quantity int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if quantity <= 0 {
		return fmt.Errorf("reservation quantity must be positive, got %d", quantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := stockKey{storeID: storeID, productID: productID}
	state, ok := s.stock[key]
	if !ok {
		return ErrNotFound
	}
	if state.quantity < quantity {
		return &InsufficientStockError{Available: state.quantity, Requested: quantity}
	}
	state.quantity -= quantity
	state.updatedAt = time.Now().UTC()
	s.stock[key] = state
	return nil
}

// UpsertStock implements Store.
func (s *MemoryStore) UpsertStock(ctx context.Context, levels []StockLevel) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, level := range levels {
		if level.Quantity < 0 {
			return fmt.Errorf("restock quantity for (%s, %s) must be non-negative, got %d",
				level.StoreID, level.ProductID, level.Quantity)
		}
	}
	for _, level := range levels {
		key := stockKey{storeID: level.StoreID, productID: level.ProductID}
		s.stock[key] = stockState{quantity: level.Quantity, updatedAt: now}
	}
	return nil
}
