package phrase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEventPhrase(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"Senate Rejects Bill", true},
		{"Patel Confirmed FBI Director", true},
		{"Court Blocks Deportation Order", true},
		{"White House Ceasefire Deal", true}, // event noun carries it
		{"Kash Patel", false},                // no verb, no event noun
		{"Trump", false},                     // single word
		{"FBI", false},
		{"The Pentagon", false},
		{"One Two Three Four Five Six Seven Rejects", false}, // too long
		{"rejects", false}, // single word even though verb
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, IsEventPhrase(tt.label), "label %q", tt.label)
	}
}

func TestLooksLikeEntity(t *testing.T) {
	tests := []struct {
		label string
		want  bool
	}{
		{"Trump", true},
		{"Kash Patel", true},
		{"President Biden", true},
		{"Senator Warren", true},
		{"FBI", true},
		{"NATO", true},
		{"The Pentagon", true},
		{"The White House", true},
		{"Senate Rejects Bill", false}, // verb present
		{"ceasefire", false},           // event noun, lowercase
		{"lowercase words", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LooksLikeEntity(tt.label), "label %q", tt.label)
	}
}
