package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"stocksync_api/internal/sync"
)

func sampleStats() *sync.Stats {
	start := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	return &sync.Stats{
		Start:           start,
		End:             start.Add(42 * time.Minute),
		Duration:        42 * time.Minute,
		CodesProcessed:  120,
		ProductsUpdated: 87,
		Errors:          2,
		Warnings:        5,
	}
}

func TestCompletionBody(t *testing.T) {
	body := completionBody(sampleStats())

	assert.Contains(t, body, "Product codes processed: 120")
	assert.Contains(t, body, "Products updated: 87")
	assert.Contains(t, body, "Errors: 2")
	assert.Contains(t, body, "Warnings: 5")
	assert.Contains(t, body, "took 42m0s")
}

func TestTokenLimitBody(t *testing.T) {
	body := tokenLimitBody(sampleStats())

	assert.Contains(t, body, "token attempt limit exceeded")
	assert.Contains(t, body, "Products updated: 87")
}

func TestFileAttachment_MissingFile(t *testing.T) {
	_, err := fileAttachment("/does/not/exist.txt")
	assert.Error(t, err)
}
