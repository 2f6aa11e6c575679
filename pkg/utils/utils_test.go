package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- CategorizeError Tests ---

func TestCategorizeError_NilError(t *testing.T) {
	assert.Equal(t, "None", CategorizeError(nil))
}

func TestCategorizeError_SentinelErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"RobotsDisallowed", ErrRobotsDisallowed, "Policy_Robots"},
		{"ScopeViolation", ErrScopeViolation, "Policy_Scope"},
		{"RequestCreation", ErrRequestCreation, "Internal_RequestCreation"},
		{"ResponseBodyRead", ErrResponseBodyRead, "Network_BodyRead"},
		{"UnsupportedType", ErrUnsupportedType, "Content_UnsupportedType"},
		{"ConfigValidation", ErrConfigValidation, "Config_Validation"},
		{"ServerHTTPError", ErrServerHTTPError, "HTTP_5xx"},
		{"OtherHTTPError", ErrOtherHTTPError, "HTTP_OtherStatus"},
		{"Database", ErrDatabase, "Database_Other"},
		{"Filesystem", ErrFilesystem, "Filesystem_Other"},
		{"NoPagesDiscovered", ErrNoPagesDiscovered, "Run_NoPagesDiscovered"},
		{"EmptyCorpus", ErrEmptyCorpus, "Run_EmptyCorpus"},
		{"RunInProgress", ErrRunInProgress, "Run_InProgress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

func TestCategorizeError_WrappedErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"WrappedRobots", fmt.Errorf("some context: %w", ErrRobotsDisallowed), "Policy_Robots"},
		{"WrappedScope", fmt.Errorf("link out of scope: %w", ErrScopeViolation), "Policy_Scope"},
		{"DoubleWrapped", fmt.Errorf("outer: %w", fmt.Errorf("inner: %w", ErrEmptyCorpus)), "Run_EmptyCorpus"},
		{"FilesystemPermission", fmt.Errorf("%w: writing: %w", ErrFilesystem, os.ErrPermission), "Filesystem_Permission"},
		{"RetryFailedServer", fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 503", ErrServerHTTPError)), "RetryFailed_HTTPServer"},
		{"RetryFailedRefused", fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("dial tcp: connection refused")), "RetryFailed_ConnectionRefused"},
		{"RetryFailedClient", fmt.Errorf("%w: %w", ErrRetryFailed, fmt.Errorf("%w: status 429", ErrClientHTTPError)), "RetryFailed_HTTPClient"},
		{"RetryFailedDNS", fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("dial tcp: lookup campus.invalid: no such host")), "RetryFailed_DNSLookup"},
		{"RetryFailedOther", fmt.Errorf("%w: %w", ErrRetryFailed, errors.New("EOF")), "RetryFailed_NetworkOther"},
		{"RetryFailedBare", ErrRetryFailed, "RetryFailed_Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

func TestCategorizeError_ClientHTTPCodes(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"404", fmt.Errorf("%w: status 404 404 Not Found", ErrClientHTTPError), "HTTP_404"},
		{"403", fmt.Errorf("%w: status 403 403 Forbidden", ErrClientHTTPError), "HTTP_403"},
		{"429", fmt.Errorf("%w: status 429 429 Too Many Requests", ErrClientHTTPError), "HTTP_429"},
		{"Generic4xx", fmt.Errorf("%w: status 400", ErrClientHTTPError), "HTTP_4xx"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

func TestCategorizeError_ParsingErrors(t *testing.T) {
	assert.Equal(t, "Content_ParsingURL", CategorizeError(fmt.Errorf("%w: bad URL", ErrParsing)))
	assert.Equal(t, "Content_ParsingHTML", CategorizeError(fmt.Errorf("%w: parsing HTML", ErrParsing)))
	assert.Equal(t, "Content_ParsingOther", CategorizeError(fmt.Errorf("%w: json", ErrParsing)))
}

func TestCategorizeError_FallbackErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"ContextCanceled", context.Canceled, "System_ContextCanceled"},
		{"ContextDeadlineExceeded", context.DeadlineExceeded, "System_ContextDeadlineExceeded"},
		{"Timeout", errors.New("connection timeout occurred"), "Network_TimeoutGeneric"},
		{"ConnectionRefused", errors.New("connection refused"), "Network_ConnectionRefused"},
		{"DNSLookup", errors.New("no such host"), "Network_DNSLookup"},
		{"TLS", errors.New("tls handshake failed"), "Network_TLS"},
		{"ConnectionReset", errors.New("reset by peer"), "Network_ConnectionReset"},
		{"BrokenPipe", errors.New("broken pipe"), "Network_BrokenPipe"},
		{"Unknown", errors.New("some completely unknown error"), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CategorizeError(tt.err))
		})
	}
}

// --- WrapErrorf Tests ---

func TestWrapErrorf(t *testing.T) {
	assert.NoError(t, WrapErrorf(nil, "some context"))

	original := errors.New("original error")
	wrapped := WrapErrorf(original, "context %s", "value")
	require.Error(t, wrapped)
	assert.ErrorIs(t, wrapped, original)
	assert.Equal(t, "context value: original error", wrapped.Error())
}

// --- Filename Tests ---

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Simple", "hello", "hello"},
		{"WithSlash", "path/to/file", "path_to_file"},
		{"WithColon", "coek.dypgroup.edu.in:443", "coek.dypgroup.edu.in_443"},
		{"QueryChars", "index.php?page_id=12", "index.php_page_id_12"},
		{"ConsecutiveUnderscores", "a___b", "a_b"},
		{"LeadingTrailing", "  _file_  ", "file"},
		{"Empty", "", "untitled"},
		{"OnlyInvalidChars", "<>:", "untitled"},
		{"ControlChars", "file\x01\x02name", "file_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_LongNames(t *testing.T) {
	result := SanitizeFilename(strings.Repeat("a", 150))
	assert.LessOrEqual(t, len(result), 100)
}

func TestRouteFilename(t *testing.T) {
	assert.Equal(t, "about.md", RouteFilename("/about", ".md"))
	assert.Equal(t, "about_history.md", RouteFilename("/about/history/", ".md"))
	assert.Equal(t, "index.md", RouteFilename("", ".md"))
	assert.Equal(t, "page_id_12.md", RouteFilename("/?page_id=12", ".md"))
}

// --- CompileRegexPatterns Tests ---

func TestCompileRegexPatterns(t *testing.T) {
	compiled, err := CompileRegexPatterns([]string{`^/gallery/`, "", `\.pdf$`})
	require.NoError(t, err)
	assert.Len(t, compiled, 2)

	compiled, err = CompileRegexPatterns(nil)
	require.NoError(t, err)
	assert.Empty(t, compiled)

	_, err = CompileRegexPatterns([]string{`valid`, `[invalid`})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigValidation)
}

// --- Hash Tests ---

func TestCalculateStringSHA256(t *testing.T) {
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", CalculateStringSHA256(""))
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", CalculateStringSHA256("hello world"))
}

func TestCalculateFileSHA256(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(tmpFile, []byte("hello world"), 0644))

	result, err := CalculateFileSHA256(tmpFile)
	require.NoError(t, err)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", result)

	_, err = CalculateFileSHA256(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
