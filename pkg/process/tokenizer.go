package process

import (
	"fmt"

	"github.com/tiktoken-go/tokenizer"
)

// Tokenizer counts tokens of page text for metadata and chunking.
// A nil *Tokenizer, or one without a codec, falls back to estimateTokens.
type Tokenizer struct {
	codec    tokenizer.Codec
	encoding string
}

// NewTokenizer loads the named encoding. Common encodings: "cl100k_base",
// "o200k_base", "p50k_base". Empty selects "cl100k_base".
func NewTokenizer(encoding string) (*Tokenizer, error) {
	if encoding == "" {
		encoding = "cl100k_base"
	}

	var enc tokenizer.Encoding
	switch encoding {
	case "cl100k_base":
		enc = tokenizer.Cl100kBase
	case "p50k_base":
		enc = tokenizer.P50kBase
	case "p50k_edit":
		enc = tokenizer.P50kEdit
	case "r50k_base":
		enc = tokenizer.R50kBase
	case "o200k_base":
		enc = tokenizer.O200kBase
	default:
		return nil, fmt.Errorf("unknown tokenizer encoding '%s'", encoding)
	}

	codec, err := tokenizer.Get(enc)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{codec: codec, encoding: encoding}, nil
}

// Encoding returns the loaded encoding name, or "estimate".
func (t *Tokenizer) Encoding() string {
	if t == nil || t.codec == nil {
		return "estimate"
	}
	return t.encoding
}

// Count returns the token count of text.
func (t *Tokenizer) Count(text string) int {
	if t == nil || t.codec == nil {
		return estimateTokens(text)
	}
	ids, _, err := t.codec.Encode(text)
	if err != nil {
		return estimateTokens(text)
	}
	return len(ids)
}

// estimateTokens approximates 4 characters per token.
func estimateTokens(text string) int {
	return len(text) / 4
}
