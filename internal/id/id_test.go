package id

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_Uniqueness(t *testing.T) {
	ids := make(map[string]bool)
	count := 1000

	for range count {
		id, err := Generate()
		require.NoError(t, err)
		assert.False(t, ids[id], "ID should be unique: %s", id)
		ids[id] = true
	}

	assert.Len(t, ids, count)
}

func TestGenerate_Format(t *testing.T) {
	for range 50 {
		id := MustGenerate()
		assert.Len(t, id, Length)
		assert.True(t, Valid(id), "generated id %q should be valid", id)
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"63552a5d00ca2e59a40c1f53", true},
		{"63552a5d00ca2e59a40c1f5", false},
		{"63552a5d00ca2e59a40c1f533", false},
		{"63552A5D00CA2E59A40C1F53", false},
		{"zz552a5d00ca2e59a40c1f53", false},
		{"", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Valid(tt.in), "Valid(%q)", tt.in)
	}
}
