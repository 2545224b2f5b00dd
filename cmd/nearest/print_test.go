package nearest

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDistance(t *testing.T) {
	d := func(v int) *int { return &v }

	tests := []struct {
		name     string
		distance *int
		expected string
	}{
		{name: "missing", distance: nil, expected: "-"},
		{name: "zero", distance: d(0), expected: "0 m"},
		{name: "meters", distance: d(999), expected: "999 m"},
		{name: "kilometers", distance: d(1000), expected: "1.0 km"},
		{name: "rounded", distance: d(9417), expected: "9.4 km"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDistance(tt.distance))
		})
	}
}
