package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrimAndNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "trim spaces", input: "  Ada's Flat  ", want: "Ada's Flat"},
		{name: "tabs and newlines", input: "Gate code\t\n 4412", want: "Gate code 4412"},
		{name: "only whitespace", input: "   \t\n  ", want: ""},
		{name: "special characters kept", input: " Café & Spa™ ", want: "Café & Spa™"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TrimAndNormalize(tt.input))
		})
	}
}
