package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/docstream/internal/domain"
)

func TestRemap(t *testing.T) {
	t.Parallel()

	tests := []struct {
		stage domain.Status
		raw   int
		want  int
	}{
		{domain.StatusParsing, 10, 39},
		{domain.StatusParsing, 30, 47},
		{domain.StatusProcessing, 50, 56},
		{domain.StatusProcessing, 0, 35},
		{domain.StatusProcessing, 100, 78},
		{domain.StatusProcessing, 150, 78},
		{domain.StatusProcessing, -20, 35},
		{domain.StatusUploading, 0, 5},
		{domain.StatusUploading, 100, 34},
		{domain.StatusExtracting, 100, 90},
		{domain.StatusAnalyzing, 0, 91},
		{domain.StatusComplete, 0, 100},
		{domain.StatusPending, 50, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Remap(tt.stage, tt.raw), "%s raw=%d", tt.stage, tt.raw)
	}
}

func TestRemapRange(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 56, RemapRange(domain.StatusParsing, 25, 0, 50))
	assert.Equal(t, 35, RemapRange(domain.StatusParsing, 7, 10, 10), "empty raw range maps to band start")
}

func TestBandsAreDisjointAndOrdered(t *testing.T) {
	t.Parallel()

	order := []domain.Status{
		domain.StatusUploading,
		domain.StatusParsing,
		domain.StatusExtracting,
		domain.StatusAnalyzing,
		domain.StatusComplete,
	}
	for i := 1; i < len(order); i++ {
		assert.Greater(t, BandStart(order[i]), BandEnd(order[i-1]), "%s overlaps %s", order[i], order[i-1])
	}
	assert.Equal(t, bands[domain.StatusParsing], bands[domain.StatusProcessing])
}
