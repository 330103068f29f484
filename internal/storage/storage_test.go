package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thredeisacoder/Amazon-Scraper/internal/models"
)

func TestDefaultFilename(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 5, 7, 0, time.UTC)
	assert.Equal(t, "amazon_product_20240301_090507.json", DefaultFilename("product", now))
	assert.Equal(t, "amazon_search_results_20240301_090507.json", DefaultFilename("search_results", now))
}

func TestWriteAndReadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "result.json")

	result := &models.CrawlResult{
		SearchURL:      "https://www.amazon.de/s?k=lampe",
		PagesRequested: 1,
		PagesProcessed: 1,
		TotalProducts:  1,
		Items:          []*models.ItemRecord{{Title: "Stehlampe <Weiß> & Gold"}},
	}
	require.NoError(t, WriteJSON(path, result))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Stehlampe <Weiß> & Gold")
	assert.Contains(t, string(raw), "\n  \"search_url\"")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	var got models.CrawlResult
	require.NoError(t, ReadJSON(path, &got))
	assert.Equal(t, result.SearchURL, got.SearchURL)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Stehlampe <Weiß> & Gold", got.Items[0].Title)
}

func TestReadJSONErrors(t *testing.T) {
	dir := t.TempDir()

	var v map[string]interface{}
	err := ReadJSON(filepath.Join(dir, "missing.json"), &v)
	assert.True(t, os.IsNotExist(err))

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	assert.Error(t, ReadJSON(bad, &v))
}
