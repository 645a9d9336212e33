package tools

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomwolfe/storefront/api"
)

func TestNewRegistry_ParsesEmbeddedContract(t *testing.T) {
	registry, err := NewRegistry(api.ToolsContract)
	require.NoError(t, err)

	listed := registry.List()
	require.Len(t, listed, 2)
	assert.Equal(t, ToolFindProductNearby, listed[0].Name)
	assert.Equal(t, ToolReserveStockItem, listed[1].Name)

	find, ok := registry.Lookup(ToolFindProductNearby)
	require.True(t, ok)
	assert.NotEmpty(t, find.Description)
	assert.NotEmpty(t, find.InputSchema)

	reserve, ok := registry.Lookup(ToolReserveStockItem)
	require.True(t, ok)
	assert.NotEmpty(t, reserve.InputSchema)
}

func TestNewRegistry_LookupTrimsWhitespace(t *testing.T) {
	registry, err := NewRegistry([]byte(`
tools:
  - name: "  find_product_nearby  "
`))
	require.NoError(t, err)

	_, ok := registry.Lookup("find_product_nearby")
	assert.True(t, ok)
	_, ok = registry.Lookup(" find_product_nearby ")
	assert.True(t, ok)
}

func TestNewRegistry_Invalid(t *testing.T) {
	cases := map[string]string{
		"not yaml":       "::\n\t-",
		"no tools":       "version: 1\ntools: []",
		"empty name":     "tools:\n  - name: \"\"",
		"duplicate name": "tools:\n  - name: a\n  - name: a",
	}
	for name, contract := range cases {
		_, err := NewRegistry([]byte(contract))
		assert.Error(t, err, "case %s", name)
	}
}

func TestRegistry_ListCopyIsIndependent(t *testing.T) {
	registry, err := NewRegistry([]byte("tools:\n  - name: a\n  - name: b"))
	require.NoError(t, err)

	listed := registry.List()
	listed[0].Name = "mutated"

	again := registry.List()
	assert.Equal(t, "a", again[0].Name)
}
