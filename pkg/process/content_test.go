package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractContent(t *testing.T) {
	tests := []struct {
		name      string
		html      string
		wantText  string
		wantEmpty bool
	}{
		{
			name:     "paragraphs",
			html:     "<html><body><h1>About</h1>\n<p>Founded\tin 1984.</p></body></html>",
			wantText: "About Founded in 1984.",
		},
		{
			name:     "scripts and styles removed",
			html:     `<html><head><style>p{}</style></head><body><script>var x = 1;</script><p>Hi</p><noscript>Enable JS</noscript></body></html>`,
			wantText: "Hi",
		},
		{
			name:      "script and style only",
			html:      `<html><body><script>track()</script><style>.a{}</style></body></html>`,
			wantEmpty: true,
		},
		{
			name:      "whitespace only",
			html:      "<html><body>\n\t  \n</body></html>",
			wantEmpty: true,
		},
		{
			name:     "non-ascii dropped",
			html:     "<body><p>Café – menu</p></body>",
			wantText: "Caf menu",
		},
		{
			name:     "head text ignored",
			html:     "<html><head><title>Title</title></head><body><p>Body</p></body></html>",
			wantText: "Body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractContent(mustDoc(t, tt.html))
			assert.Equal(t, tt.wantEmpty, result.Empty)
			assert.Equal(t, tt.wantText, result.Text)
		})
	}
}

func TestExtractContent_NilDoc(t *testing.T) {
	assert.True(t, ExtractContent(nil).Empty)
}

func TestPageTitle(t *testing.T) {
	assert.Equal(t, "Admissions", PageTitle(mustDoc(t, "<html><head><title> Admissions </title></head><body></body></html>")))
	assert.Empty(t, PageTitle(mustDoc(t, "<p>x</p>")))
}

func TestBodyMarkdown(t *testing.T) {
	doc := mustDoc(t, `<html><body><h2>Courses</h2><script>x()</script><p>B.E. in <strong>Civil</strong></p></body></html>`)
	ExtractContent(doc)

	markdown, err := BodyMarkdown(doc)
	require.NoError(t, err)
	assert.Contains(t, markdown, "## Courses")
	assert.Contains(t, markdown, "**Civil**")
	assert.NotContains(t, markdown, "x()")
}
