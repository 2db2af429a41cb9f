package util

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToTick(t *testing.T) {
	tests := []struct {
		name string
		x    float64
		tick float64
		want float64
	}{
		{"round down", 452.3, 5, 450},
		{"round up", 453.0, 5, 455},
		{"exact", 450, 5, 450},
		{"penny tick", 1.234, 0.01, 1.23},
		{"large tick", 17480, 100, 17500},
		{"negative tick treated as positive", 452.3, -5, 450},
		{"zero tick passthrough", 452.3, 0, 452.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, RoundToTick(tt.x, tt.tick), 1e-9)
		})
	}
}

func TestFloorCeilToTick(t *testing.T) {
	assert.InDelta(t, 450.0, FloorToTick(454.9, 5), 1e-9)
	assert.InDelta(t, 455.0, CeilToTick(450.1, 5), 1e-9)

	// Boundary drift snaps rather than jumping a full tick.
	assert.InDelta(t, 455.0, FloorToTick(455.0-1e-12, 5), 1e-9)
	assert.InDelta(t, 455.0, CeilToTick(455.0+1e-12, 5), 1e-9)
}

func TestTickHelpers_NonFinite(t *testing.T) {
	assert.True(t, math.IsNaN(RoundToTick(math.NaN(), 5)))
	assert.True(t, math.IsInf(FloorToTick(math.Inf(1), 5), 1))
	assert.True(t, math.IsInf(CeilToTick(math.Inf(-1), 5), -1))
}
