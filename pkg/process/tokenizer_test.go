package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTokenizer(t *testing.T) {
	tok, err := NewTokenizer("cl100k_base")
	require.NoError(t, err)
	assert.Equal(t, "cl100k_base", tok.Encoding())

	tok, err = NewTokenizer("")
	require.NoError(t, err)
	assert.Equal(t, "cl100k_base", tok.Encoding())

	_, err = NewTokenizer("no_such_encoding")
	assert.Error(t, err)
}

func TestTokenizer_Count(t *testing.T) {
	tok, err := NewTokenizer("cl100k_base")
	require.NoError(t, err)

	count := tok.Count("Hello, world!")
	assert.Positive(t, count)
	assert.LessOrEqual(t, count, 10)
	assert.Equal(t, 0, tok.Count(""))
}

func TestTokenizer_NilFallsBackToEstimate(t *testing.T) {
	var tok *Tokenizer
	text := "Hello, world! This is a test."
	assert.Equal(t, len(text)/4, tok.Count(text))
	assert.Equal(t, "estimate", tok.Encoding())
}

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		text     string
		expected int
	}{
		{"", 0},
		{"test", 1},
		{"hello world", 2},
		{"12345678", 2},
		{"1234567890123456", 4},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.expected, estimateTokens(tt.text))
		})
	}
}
