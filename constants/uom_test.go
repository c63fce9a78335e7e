package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeUOM(t *testing.T) {
	tests := []struct {
		in   string
		want UOM
		ok   bool
	}{
		{"nos", UOMNos, true},
		{" NOS. ", UOMNos, true},
		{"Pieces", UOMPcs, true},
		{"METER", UOMMeter, true},
		{"litre", UOMLitre, true},
		{"kg", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := CanonicalizeUOM(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEveryGrammarTokenCanonicalizes(t *testing.T) {
	for _, tok := range UOMTokens() {
		_, ok := CanonicalizeUOM(tok)
		assert.True(t, ok, tok)
	}
}
