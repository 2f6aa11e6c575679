package process

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunker_Empty(t *testing.T) {
	chunks, err := NewChunker(DefaultChunkerConfig(), nil).Split("   ")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunker_SingleSmallChunk(t *testing.T) {
	markdown := "# Admissions\n\nApplications open in June."

	chunks, err := NewChunker(DefaultChunkerConfig(), nil).Split(markdown)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0].Content, "Applications open in June.")
}

func TestChunker_HeaderHierarchy(t *testing.T) {
	markdown := `# Departments

Overview of the departments.

## Computer Engineering

Intake of 120 students.

### Laboratories

Six laboratories with modern equipment.

## Mechanical Engineering

Intake of 60 students.
`

	chunks, err := NewChunker(ChunkerConfig{MaxChunkSize: 100, ChunkOverlap: 10}, nil).Split(markdown)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(chunks), 2)

	found := false
	for _, chunk := range chunks {
		if len(chunk.HeadingHierarchy) > 0 {
			found = true
			break
		}
	}
	assert.True(t, found, "expected at least one chunk with heading hierarchy")
}

func TestChunker_TokenCount(t *testing.T) {
	tok, err := NewTokenizer("cl100k_base")
	require.NoError(t, err)

	chunks, err := NewChunker(DefaultChunkerConfig(), tok).Split("# Fees\n\nThe fee structure for the academic year is listed below.\n")
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Positive(t, chunks[0].TokenCount)
}

func TestChunker_LargeDocument(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("# Notices\n\n")
	for i := range 50 {
		sb.WriteString("## Notice ")
		sb.WriteString(string(rune('A' + i%26)))
		sb.WriteString("\n\n")
		sb.WriteString("Students are informed that the examination schedule has been revised. ")
		sb.WriteString("Please check the notice board and the portal for the updated timetable. ")
		sb.WriteString("Contact the examination cell for any clarification.\n\n")
	}

	chunks, err := NewChunker(ChunkerConfig{MaxChunkSize: 100, ChunkOverlap: 10}, nil).Split(sb.String())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(chunks), 5)
}

func TestChunker_PlainText(t *testing.T) {
	text := strings.Repeat("The college library is open from nine to five on weekdays. ", 40)

	chunks, err := NewChunker(ChunkerConfig{MaxChunkSize: 50, ChunkOverlap: 5}, nil).Split(text)
	require.NoError(t, err)
	assert.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.Nil(t, chunk.HeadingHierarchy)
	}
}

func TestNewChunker_SanitizesConfig(t *testing.T) {
	c := NewChunker(ChunkerConfig{MaxChunkSize: 0}, nil)
	assert.Equal(t, DefaultChunkerConfig(), c.cfg)

	c = NewChunker(ChunkerConfig{MaxChunkSize: 10, ChunkOverlap: 20}, nil)
	assert.Equal(t, 0, c.cfg.ChunkOverlap)
}

func TestExtractHeadingHierarchy(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{"no headings", "Just some text without headings.", nil},
		{"single heading", "# Main Title\nSome content", []string{"Main Title"}},
		{"multiple headings", "# Title\n## Section\n### Subsection\nContent", []string{"Title", "Section", "Subsection"}},
		{"special chars", "# Hello, World!\n## Fees: 2024-25", []string{"Hello, World!", "Fees: 2024-25"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractHeadingHierarchy(tt.content))
		})
	}
}
