package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name  string
		value float64
		want  float64
	}{
		{"inside", 0.4, 0.4},
		{"below", -3, 0},
		{"above", 7.5, 1},
		{"lower bound", 0, 0},
		{"upper bound", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clamp(tt.value, 0, 1))
		})
	}

	assert.Equal(t, 5, Clamp(9, 1, 5))
}

func TestClampLimit(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		defaultVal int
		maxVal     int
		want       int
	}{
		{"limit within range", 50, 20, 100, 50},
		{"limit zero returns default", 0, 20, 100, 20},
		{"limit negative returns default", -10, 20, 100, 20},
		{"limit exceeds max returns max", 150, 20, 100, 100},
		{"limit equals max", 100, 20, 100, 100},
		{"limit of 1", 1, 20, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClampLimit(tt.limit, tt.defaultVal, tt.maxVal))
		})
	}
}
