package parse

import (
	"net/url"
	"testing"
)

func TestNormalizeURL_NilInput(t *testing.T) {
	result := NormalizeURL(nil)
	if result != "" {
		t.Errorf("NormalizeURL(nil) = %q, want empty string", result)
	}
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"UppercaseScheme", "HTTP://example.test/path", "http://example.test/path"},
		{"UppercaseHost", "http://EXAMPLE.TEST/path", "http://example.test/path"},
		{"PathCasePreserved", "HTTPS://Example.TEST/Path", "https://example.test/Path"},
		{"DefaultHTTPSPort", "https://example.test:443/a", "https://example.test/a"},
		{"DefaultHTTPPort", "http://example.test:80/a", "http://example.test/a"},
		{"NonDefaultPort", "http://example.test:8080/a", "http://example.test:8080/a"},
		{"TrailingSlash", "https://example.test/about/", "https://example.test/about"},
		{"MultipleTrailingSlashes", "https://example.test/about//", "https://example.test/about"},
		{"RootWithSlash", "https://example.test/", "https://example.test"},
		{"RootBare", "https://example.test", "https://example.test"},
		{"FragmentRemoved", "https://example.test/about#team", "https://example.test/about"},
		{"RootFragment", "https://example.test/#top", "https://example.test"},
		{"QueryKept", "https://example.test/?page_id=12", "https://example.test/?page_id=12"},
		{"PathQueryKept", "https://example.test/news/?p=3#x", "https://example.test/news?p=3"},
		{"EmptyQueryDropped", "https://example.test/a?", "https://example.test/a"},
		{"DotSegments", "https://example.test/a/./b/../c", "https://example.test/a/c"},
		{"DotSegmentsToRoot", "https://example.test/a/..", "https://example.test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, err := url.Parse(tt.input)
			if err != nil {
				t.Fatalf("url.Parse(%q): %v", tt.input, err)
			}
			if result := NormalizeURL(parsed); result != tt.expected {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestNormalizeURL_Idempotent(t *testing.T) {
	inputs := []string{
		"HTTPS://Example.test:443/About/#x",
		"https://example.test/?page_id=1",
		"https://example.test",
	}
	for _, in := range inputs {
		u, _ := url.Parse(in)
		once := NormalizeURL(u)
		u2, _ := url.Parse(once)
		if twice := NormalizeURL(u2); twice != once {
			t.Errorf("NormalizeURL not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeURL_DoesNotModifyInput(t *testing.T) {
	u, _ := url.Parse("HTTPS://EXAMPLE.test/a/#frag")
	_ = NormalizeURL(u)
	if u.Fragment != "frag" || u.Host != "EXAMPLE.test" {
		t.Errorf("input URL was modified: %+v", u)
	}
}

func TestParseAndNormalize(t *testing.T) {
	normalized, parsed, err := ParseAndNormalize("https://Example.test/path/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if normalized != "https://example.test/path" {
		t.Errorf("normalized = %q", normalized)
	}
	if parsed == nil || parsed.Path != "/path/" {
		t.Errorf("parsed URL should keep original path, got %+v", parsed)
	}

	if _, _, err := ParseAndNormalize("not a url"); err == nil {
		t.Error("expected error for relative input")
	}
}

func TestSameOrigin(t *testing.T) {
	a, _ := url.Parse("https://example.test/a")
	b, _ := url.Parse("HTTPS://EXAMPLE.TEST:443/b")
	c, _ := url.Parse("http://example.test/a")
	d, _ := url.Parse("https://example.test.evil.com/")

	if !SameOrigin(a, b) {
		t.Error("expected a and b to share an origin")
	}
	if SameOrigin(a, c) {
		t.Error("different schemes must not share an origin")
	}
	if SameOrigin(a, d) {
		t.Error("host with matching prefix must not share an origin")
	}
	if SameOrigin(a, nil) {
		t.Error("nil never shares an origin")
	}
}

func TestResolveReference(t *testing.T) {
	base, _ := url.Parse("https://example.test")

	tests := []struct {
		name   string
		href   string
		want   string
		wantOK bool
	}{
		{"RootRelative", "/about", "https://example.test/about", true},
		{"RootRelativeTrailingSlash", "/about/", "https://example.test/about", true},
		{"RootLink", "/", "https://example.test", true},
		{"PlainRelative", "contact", "https://example.test/contact", true},
		{"DotRelative", "./contact", "https://example.test/contact", true},
		{"QueryOnly", "?page_id=7", "https://example.test/?page_id=7", true},
		{"AbsoluteSameOrigin", "https://example.test/news/", "https://example.test/news", true},
		{"AbsoluteUppercaseHost", "HTTPS://EXAMPLE.TEST/x", "https://example.test/x", true},
		{"ProtocolRelativeSameHost", "//example.test/x", "https://example.test/x", true},
		{"WithFragment", "/about#team", "https://example.test/about", true},
		{"Surrounding whitespace", "  /about \n", "https://example.test/about", true},
		{"Empty", "", "", false},
		{"WhitespaceOnly", "   ", "", false},
		{"AnchorOnly", "#top", "", false},
		{"OtherOrigin", "https://other.test/about", "", false},
		{"PrefixHost", "https://example.test.evil.com/x", "", false},
		{"OtherScheme", "http://example.test/about", "", false},
		{"ProtocolRelativeOtherHost", "//cdn.other.test/lib.js", "", false},
		{"Mailto", "mailto:info@example.test", "", false},
		{"Javascript", "javascript:void(0)", "", false},
		{"Tel", "tel:+911234", "", false},
		{"Malformed", "http://[::1", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveReference(base, tt.href)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("ResolveReference(%q) = (%q, %v), want (%q, %v)", tt.href, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestToRoute(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://example.test", ""},
		{"https://example.test/", ""},
		{"https://example.test/about", "/about"},
		{"https://example.test/a/b", "/a/b"},
		{"https://example.test/?page_id=3", "/?page_id=3"},
	}
	for _, tt := range tests {
		if got := ToRoute(tt.url, "https://example.test"); got != tt.want {
			t.Errorf("ToRoute(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestRouteURL(t *testing.T) {
	tests := []struct {
		base, route, want string
	}{
		{"https://example.test", "/about", "https://example.test/about"},
		{"https://example.test/", "/about", "https://example.test/about"},
		{"https://example.test", "about", "https://example.test/about"},
		{"https://example.test", "", "https://example.test"},
	}
	for _, tt := range tests {
		if got := RouteURL(tt.base, tt.route); got != tt.want {
			t.Errorf("RouteURL(%q, %q) = %q, want %q", tt.base, tt.route, got, tt.want)
		}
	}
}
