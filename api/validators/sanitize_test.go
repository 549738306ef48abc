package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"trims", "  changed my mind \n", 0, "changed my mind"},
		{"drops control runes", "no\x00 longer\x07 needed", 0, "no longer needed"},
		{"caps by rune", "héllo wörld", 5, "héllo"},
		{"trims after cut", "abc def", 4, "abc"},
		{"empty", "   ", 10, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeString(tc.input, tc.max))
		})
	}
}
