// Package inventory implements proximity search and stock reservation.
package inventory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/tomwolfe/storefront/internal/store"
)

const (
	// DefaultRadiusMiles bounds a search when the caller does not provide one.
	DefaultRadiusMiles = 10.0

	earthRadiusMiles = 3959
	maxResults       = 10
)

// Offer is one search result: an in-stock product at a nearby store.
type Offer struct {
	StoreID           string  `json:"store_id"`
	StoreName         string  `json:"store_name"`
	ProductName       string  `json:"product_name"`
	Price             float64 `json:"price"`
	AvailableQuantity int     `json:"available_quantity"`
	DistanceMiles     float64 `json:"distance_miles"`
	PickupAddress     string  `json:"pickup_address"`
}

// Service executes inventory operations against the storage collaborator.
type Service struct {
	store store.Store
}

// NewService creates an inventory service.
func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Search returns in-stock offers within maxRadiusMiles of the caller,
// closest first, capped at 10 results. An empty result is not an error.
//
// Distance filtering and ordering use the unrounded value; the two-decimal
// rounding happens only on the returned offers.
func (s *Service) Search(ctx context.Context, productQuery string, lat, lng, maxRadiusMiles float64) ([]Offer, error) {
	if strings.TrimSpace(productQuery) == "" {
		return nil, fmt.Errorf("product query must not be empty")
	}
	if maxRadiusMiles <= 0 {
		maxRadiusMiles = DefaultRadiusMiles
	}

	rows, err := s.store.FindInStock(ctx, productQuery)
	if err != nil {
		return nil, fmt.Errorf("searching stock: %w", err)
	}

	type candidate struct {
		row      store.StockedOffer
		distance float64
	}
	candidates := make([]candidate, 0, len(rows))
	for _, row := range rows {
		distance := distanceMiles(lat, lng, row.Latitude, row.Longitude)
		if distance < maxRadiusMiles {
			candidates = append(candidates, candidate{row: row, distance: distance})
		}
	}

	// Stable sort keeps input order as the deterministic tiebreak.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].distance < candidates[j].distance
	})
	if len(candidates) > maxResults {
		candidates = candidates[:maxResults]
	}

	offers := make([]Offer, 0, len(candidates))
	for _, c := range candidates {
		offers = append(offers, Offer{
			StoreID:           c.row.StoreID,
			StoreName:         c.row.StoreName,
			ProductName:       c.row.ProductName,
			Price:             c.row.Price,
			AvailableQuantity: c.row.Quantity,
			DistanceMiles:     math.Round(c.distance*100) / 100,
			PickupAddress:     c.row.Address,
		})
	}
	return offers, nil
}

// Reserve atomically decrements available stock for the key. Business
// failures surface as store.ErrNotFound or *store.InsufficientStockError.
func (s *Service) Reserve(ctx context.Context, productID, storeID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reservation quantity must be positive, got %d", quantity)
	}
	return s.store.Reserve(ctx, storeID, productID, quantity)
}

// distanceMiles computes great-circle distance with the spherical law of
// cosines, angles in radians, Earth radius 3959 miles.
func distanceMiles(lat1, lng1, lat2, lng2 float64) float64 {
	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	rdlng := (lng2 - lng1) * math.Pi / 180

	arg := math.Cos(rlat1)*math.Cos(rlat2)*math.Cos(rdlng) + math.Sin(rlat1)*math.Sin(rlat2)
	// Floating-point error can push the argument just past ±1 for
	// near-identical coordinates.
	arg = math.Max(-1, math.Min(1, arg))
	return earthRadiusMiles * math.Acos(arg)
}
