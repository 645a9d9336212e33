package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomwolfe/storefront/internal/inventory"
	"github.com/tomwolfe/storefront/internal/store"
)

// failingStore lets tests inject collaborator failures behind the inventory
// service.
type failingStore struct {
	findErr    error
	reserveErr error
}

func (f *failingStore) Ping(ctx context.Context) error { return nil }

func (f *failingStore) FindInStock(ctx context.Context, productQuery string) ([]store.StockedOffer, error) {
	return nil, f.findErr
}

func (f *failingStore) Reserve(ctx context.Context, storeID, productID string, quantity int) error {
	return f.reserveErr
}

func (f *failingStore) UpsertStock(ctx context.Context, levels []store.StockLevel) error {
	return nil
}

func newTestDispatcher(t *testing.T, st store.Store) *Dispatcher {
	t.Helper()
	registry, err := NewRegistry([]byte(`
tools:
  - name: find_product_nearby
  - name: reserve_stock_item
`))
	require.NoError(t, err)
	return NewDispatcher(registry, inventory.NewService(st), zerolog.Nop())
}

func stockedMemoryStore() *store.MemoryStore {
	st := store.NewMemoryStore()
	st.AddStore(store.StoreRecord{ID: "s1", Name: "Downtown", Latitude: 40.0, Longitude: -74.0, Address: "5 Main St"})
	st.AddProduct(store.ProductRecord{ID: "p1", Name: "Widget", Price: 4.25})
	st.SetStock("s1", "p1", 4)
	return st
}

func TestDispatch_UnknownTool(t *testing.T) {
	d := newTestDispatcher(t, stockedMemoryStore())

	_, err := d.Dispatch(context.Background(), "summon_demon", json.RawMessage(`{}`))
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, http.StatusBadRequest, toolErr.StatusCode())
	assert.Equal(t, "Unknown tool", toolErr.Error())
}

func TestDispatch_FindProductNearby_Success(t *testing.T) {
	d := newTestDispatcher(t, stockedMemoryStore())

	result, err := d.Dispatch(context.Background(), ToolFindProductNearby,
		json.RawMessage(`{"product_query":"widg","user_lat":40.0,"user_lng":-74.0}`))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)

	var offers []inventory.Offer
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &offers))
	require.Len(t, offers, 1)
	assert.Equal(t, "s1", offers[0].StoreID)
	assert.Equal(t, 4, offers[0].AvailableQuantity)
}

func TestDispatch_FindProductNearby_NoMatches(t *testing.T) {
	d := newTestDispatcher(t, stockedMemoryStore())

	result, err := d.Dispatch(context.Background(), ToolFindProductNearby,
		json.RawMessage(`{"product_query":"gadget","user_lat":40.0,"user_lng":-74.0,"max_radius_miles":25}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, `No stores found with "gadget" in stock within 25 miles.`, result.Content[0].Text)
}

func TestDispatch_FindProductNearby_Validation(t *testing.T) {
	d := newTestDispatcher(t, stockedMemoryStore())

	cases := map[string]string{
		"empty params":        `{}`,
		"blank query":         `{"product_query":"  ","user_lat":1,"user_lng":1}`,
		"missing lat":         `{"product_query":"widget","user_lng":1}`,
		"missing lng":         `{"product_query":"widget","user_lat":1}`,
		"zero radius":         `{"product_query":"widget","user_lat":1,"user_lng":1,"max_radius_miles":0}`,
		"negative radius":     `{"product_query":"widget","user_lat":1,"user_lng":1,"max_radius_miles":-3}`,
		"unknown field":       `{"product_query":"widget","user_lat":1,"user_lng":1,"radius":5}`,
		"trailing document":   `{"product_query":"widget","user_lat":1,"user_lng":1} {}`,
		"not an object":       `[1,2,3]`,
		"string where number": `{"product_query":"widget","user_lat":"north","user_lng":1}`,
	}
	for name, raw := range cases {
		_, err := d.Dispatch(context.Background(), ToolFindProductNearby, json.RawMessage(raw))
		var toolErr *ToolError
		require.ErrorAs(t, err, &toolErr, "case %s", name)
		assert.Equal(t, http.StatusBadRequest, toolErr.StatusCode(), "case %s", name)
	}
}

func TestDispatch_FindProductNearby_DefaultRadiusInMessage(t *testing.T) {
	d := newTestDispatcher(t, store.NewMemoryStore())

	result, err := d.Dispatch(context.Background(), ToolFindProductNearby,
		json.RawMessage(`{"product_query":"widget","user_lat":1,"user_lng":1}`))
	require.NoError(t, err)
	assert.Contains(t, result.Content[0].Text, "within 10 miles")
}

func TestDispatch_ReserveStockItem_Success(t *testing.T) {
	st := stockedMemoryStore()
	d := newTestDispatcher(t, st)

	result, err := d.Dispatch(context.Background(), ToolReserveStockItem,
		json.RawMessage(`{"product_id":"p1","store_id":"s1","quantity":3}`))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "Successfully reserved 3 items of product p1 at store s1.", result.Content[0].Text)

	qty, _ := st.Quantity("s1", "p1")
	assert.Equal(t, 1, qty)
}

func TestDispatch_ReserveStockItem_InsufficientStockIsBusinessFailure(t *testing.T) {
	st := stockedMemoryStore()
	d := newTestDispatcher(t, st)

	result, err := d.Dispatch(context.Background(), ToolReserveStockItem,
		json.RawMessage(`{"product_id":"p1","store_id":"s1","quantity":9}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "Reservation failed: insufficient stock. Available: 4, Requested: 9")

	qty, _ := st.Quantity("s1", "p1")
	assert.Equal(t, 4, qty)
}

func TestDispatch_ReserveStockItem_MissingRecordIsBusinessFailure(t *testing.T) {
	d := newTestDispatcher(t, stockedMemoryStore())

	result, err := d.Dispatch(context.Background(), ToolReserveStockItem,
		json.RawMessage(`{"product_id":"p9","store_id":"s1","quantity":1}`))
	require.NoError(t, err)
	require.True(t, result.IsError)
	assert.Contains(t, result.Content[0].Text, "stock record not found for product p9 at store s1")
}

func TestDispatch_ReserveStockItem_Validation(t *testing.T) {
	d := newTestDispatcher(t, stockedMemoryStore())

	cases := map[string]string{
		"missing product_id":  `{"store_id":"s1","quantity":1}`,
		"missing store_id":    `{"product_id":"p1","quantity":1}`,
		"missing quantity":    `{"product_id":"p1","store_id":"s1"}`,
		"zero quantity":       `{"product_id":"p1","store_id":"s1","quantity":0}`,
		"negative quantity":   `{"product_id":"p1","store_id":"s1","quantity":-2}`,
		"fractional quantity": `{"product_id":"p1","store_id":"s1","quantity":2.5}`,
		"blank product_id":    `{"product_id":" ","store_id":"s1","quantity":1}`,
	}
	for name, raw := range cases {
		_, err := d.Dispatch(context.Background(), ToolReserveStockItem, json.RawMessage(raw))
		var toolErr *ToolError
		require.ErrorAs(t, err, &toolErr, "case %s", name)
		assert.Equal(t, http.StatusBadRequest, toolErr.StatusCode(), "case %s", name)
	}
}

func TestDispatch_TimeoutAndCancellationMapping(t *testing.T) {
	timeoutDispatcher := newTestDispatcher(t, &failingStore{findErr: context.DeadlineExceeded})
	_, err := timeoutDispatcher.Dispatch(context.Background(), ToolFindProductNearby,
		json.RawMessage(`{"product_query":"widget","user_lat":1,"user_lng":1}`))
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, http.StatusGatewayTimeout, toolErr.StatusCode())

	canceledDispatcher := newTestDispatcher(t, &failingStore{reserveErr: context.Canceled})
	_, err = canceledDispatcher.Dispatch(context.Background(), ToolReserveStockItem,
		json.RawMessage(`{"product_id":"p1","store_id":"s1","quantity":1}`))
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, http.StatusRequestTimeout, toolErr.StatusCode())
}

func TestDispatch_UnexpectedStoreFailureIsInternal(t *testing.T) {
	d := newTestDispatcher(t, &failingStore{findErr: assert.AnError})

	_, err := d.Dispatch(context.Background(), ToolFindProductNearby,
		json.RawMessage(`{"product_query":"widget","user_lat":1,"user_lng":1}`))
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, http.StatusInternalServerError, toolErr.StatusCode())
}

func TestToolError_NilDefaults(t *testing.T) {
	var toolErr *ToolError
	assert.Equal(t, "", toolErr.Error())
	assert.Equal(t, http.StatusInternalServerError, toolErr.StatusCode())
}
