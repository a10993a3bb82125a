package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSuggestCommand(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"vouche", "vouch"},
		{"wouch", "vouch"},
		{"vouchs", "vouch"},
		{"recocile", "reconcile"},
		{"backap", "backup"},
		{"qwertyuiop", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SuggestCommand(tt.in))
		})
	}
}

func TestEditDistance(t *testing.T) {
	assert.Equal(t, 0, editDistance("vouch", "vouch"))
	assert.Equal(t, 1, editDistance("vouch", "vouche"))
	assert.Equal(t, 2, editDistance("ab", "ba1"))
	assert.Equal(t, 5, editDistance("", "vouch"))
}
