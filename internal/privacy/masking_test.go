package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", ""},
		{"+27821234567", "+*******4567"},
		{"0821234567", "******4567"},
		{"+123", "+***"},
		{"123", "***"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, MaskPhone(tt.input), "input %q", tt.input)
	}
}

func TestMaskEmail(t *testing.T) {
	assert.Equal(t, "j*********@example.com", MaskEmail("jane.smith@example.com"))
	assert.Equal(t, "*@example.com", MaskEmail("a@example.com"))
	assert.Equal(t, "not-an-email", MaskEmail("not-an-email"))
}

func TestMaskID(t *testing.T) {
	assert.Equal(t, "...2f9a1c44", MaskID("b1e7d3a0-9c55-4f2e-8d11-d5742f9a1c44"))
	assert.Equal(t, "short", MaskID("short"))
}

func TestMaskMessageBody(t *testing.T) {
	assert.Equal(t, "", MaskMessageBody(""))
	assert.Equal(t, "**", MaskMessageBody("hi"))
	assert.Equal(t, "********", MaskMessageBody("a long customer message"))
}
