package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateIdentifier(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"t1", false},
		{"emp-42", false},
		{"priya@acme.in", false},
		{"550e8400-e29b-41d4-a716-446655440000", false},
		{"", true},
		{"-leading", true},
		{"has space", true},
		{"semi;colon", true},
		{strings.Repeat("a", 129), true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateIdentifier("user", tt.id)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSanitizeComment(t *testing.T) {
	assert.Equal(t, "looks good", SanitizeComment("  looks\x00 good\x7f "))
	assert.Equal(t, "line one\nline two", SanitizeComment("line one\nline two"))
	assert.Len(t, []rune(SanitizeComment(strings.Repeat("é", MaxCommentLength+10))), MaxCommentLength)
}
