package catalogue

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SparkyLarks/ISA95-bottling-simulator/internal/domain"
)

func writeCatalogue(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalogue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadBuildsByIDIndex(t *testing.T) {
	path := writeCatalogue(t, `
skus:
  - id: SKU-A
    volume_ml: 500
  - id: SKU-B
    volume_ml: 2000
`)
	cat, err := FileLoader{Path: path}.Load()
	require.NoError(t, err)

	sku, idx, ok := cat.Get("SKU-B")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, domain.SKU{ID: "SKU-B", VolumeML: 2000}, sku)

	_, _, ok = cat.Get("missing")
	assert.False(t, ok)
}

func TestLoadRejectsDuplicateID(t *testing.T) {
	path := writeCatalogue(t, `
skus:
  - id: SKU-A
    volume_ml: 500
  - id: SKU-A
    volume_ml: 750
`)
	_, err := FileLoader{Path: path}.Load()
	assert.Error(t, err)
}

func TestLoadRejectsMissingVolume(t *testing.T) {
	path := writeCatalogue(t, "skus:\n  - id: SKU-A\n")
	_, err := FileLoader{Path: path}.Load()
	assert.Error(t, err)
}

func TestLoadRejectsEmptyID(t *testing.T) {
	path := writeCatalogue(t, "skus:\n  - volume_ml: 500\n")
	_, err := FileLoader{Path: path}.Load()
	assert.Error(t, err)
}
