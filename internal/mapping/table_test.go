package mapping

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_LookupsBothWays(t *testing.T) {
	table := NewTable(map[string]string{
		"SKU-1": "111",
		"SKU-2": "222",
	})

	sku, ok := table.SKUForBarcode("222")
	require.True(t, ok)
	assert.Equal(t, "SKU-2", sku)

	barcode, ok := table.BarcodeForSKU("SKU-1")
	require.True(t, ok)
	assert.Equal(t, "111", barcode)

	_, ok = table.SKUForBarcode("999")
	assert.False(t, ok)
	assert.Equal(t, 2, table.Len())
}

func TestFileSource_LoadsJSONObject(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"SKU-1":"111","SKU-2":"222"}`), 0o644))

	table, err := Load(context.Background(), NewFileSource(path))

	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
	sku, ok := table.SKUForBarcode("111")
	require.True(t, ok)
	assert.Equal(t, "SKU-1", sku)
}

func TestFileSource_MissingFileIsAnError(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "absent.json")).Load(context.Background())
	require.Error(t, err)
}

func TestFileSource_EmptyMappingIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	_, err := NewFileSource(path).Load(context.Background())
	require.Error(t, err)
}

func TestFileSource_MalformedJSONIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"SKU-1":`), 0o644))

	_, err := NewFileSource(path).Load(context.Background())
	require.Error(t, err)
}
