package process

import (
	"regexp"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunk is one retrieval-sized piece of a page.
type Chunk struct {
	Content          string   // Includes parent heading context when the page has headings
	HeadingHierarchy []string // Headings found in the chunk, in order
	TokenCount       int
}

// ChunkerConfig holds token limits for chunking.
type ChunkerConfig struct {
	MaxChunkSize int // Maximum chunk size in tokens
	ChunkOverlap int // Overlap between consecutive chunks in tokens
}

// DefaultChunkerConfig returns the limits used when none are configured.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		MaxChunkSize: 512,
		ChunkOverlap: 50,
	}
}

// Chunker splits page Markdown (or plain text) into chunks measured with a Tokenizer.
type Chunker struct {
	cfg       ChunkerConfig
	tokenizer *Tokenizer
}

// NewChunker creates a Chunker. A nil tokenizer measures with the character estimate.
func NewChunker(cfg ChunkerConfig, tokenizer *Tokenizer) *Chunker {
	if cfg.MaxChunkSize <= 0 {
		cfg = DefaultChunkerConfig()
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.MaxChunkSize {
		cfg.ChunkOverlap = 0
	}
	return &Chunker{cfg: cfg, tokenizer: tokenizer}
}

// headingRegex matches markdown headings at the start of lines.
var headingRegex = regexp.MustCompile(`(?m)^(#{1,6})\s+(.+)$`)

// Split cuts content on Markdown headers first, keeping the heading path as
// context, and falls back to recursive character splitting for oversized sections.
func (c *Chunker) Split(content string) ([]Chunk, error) {
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	lenFunc := c.tokenizer.Count

	recursiveSplitter := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(c.cfg.MaxChunkSize),
		textsplitter.WithChunkOverlap(c.cfg.ChunkOverlap),
		textsplitter.WithLenFunc(lenFunc),
	)

	splitter := textsplitter.NewMarkdownTextSplitter(
		textsplitter.WithHeadingHierarchy(true),
		textsplitter.WithChunkSize(c.cfg.MaxChunkSize),
		textsplitter.WithChunkOverlap(c.cfg.ChunkOverlap),
		textsplitter.WithSecondSplitter(recursiveSplitter),
		textsplitter.WithLenFunc(lenFunc),
	)

	parts, err := splitter.SplitText(content)
	if err != nil {
		return nil, err
	}

	chunks := make([]Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		chunks = append(chunks, Chunk{
			Content:          part,
			HeadingHierarchy: extractHeadingHierarchy(part),
			TokenCount:       c.tokenizer.Count(part),
		})
	}
	return chunks, nil
}

// extractHeadingHierarchy returns the headings of a chunk in the order they appear.
func extractHeadingHierarchy(content string) []string {
	matches := headingRegex.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return nil
	}

	hierarchy := make([]string, 0, len(matches))
	for _, match := range matches {
		if heading := strings.TrimSpace(match[2]); heading != "" {
			hierarchy = append(hierarchy, heading)
		}
	}
	return hierarchy
}
