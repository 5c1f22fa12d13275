package sanitizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "E.164 kept", input: "+12125551234", want: "+12125551234"},
		{name: "international with spaces", input: "+44 20 7946 0958", want: "+442079460958"},
		{name: "international with punctuation", input: "+1 (212) 555-1234", want: "+12125551234"},
		{name: "national number uses default region", input: "0803 123 4567", want: "+2348031234567"},
		{name: "invalid number dropped", input: "12345", want: ""},
		{name: "only whitespace", input: "   ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePhone(tt.input))
		})
	}
}

func TestServedRegions_DefaultFirst(t *testing.T) {
	assert.Equal(t, DefaultRegion, regions[0])
	assert.Contains(t, regions, "GB")
}
