package parse

import (
	"net"
	"net/url"
	"path"
	"strings"
)

// NormalizeURL standardizes a URL for comparison and storage.
// It lowercases the scheme and host, removes default ports (80 for http, 443 for https),
// removes the fragment and trailing slashes from non-root paths. The query string is kept,
// since pages such as "?page_id=12" are distinct. A root URL without a query renders as the
// bare origin ("https://host").
// Does not modify the input *url.URL
func NormalizeURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	normalized := *u

	normalized.Scheme = strings.ToLower(normalized.Scheme)
	normalized.Host = stripDefaultPort(normalized.Scheme, strings.ToLower(normalized.Host))

	if len(normalized.Path) > 1 && strings.Contains(normalized.Path, "/.") {
		normalized.Path = path.Clean(normalized.Path)
		normalized.RawPath = ""
	}
	for len(normalized.Path) > 1 && strings.HasSuffix(normalized.Path, "/") {
		normalized.Path = normalized.Path[:len(normalized.Path)-1]
		normalized.RawPath = ""
	}

	normalized.Fragment = ""
	normalized.RawFragment = ""
	normalized.ForceQuery = false

	if normalized.Path == "/" || normalized.Path == "" {
		if normalized.RawQuery == "" {
			normalized.Path = ""
			return normalized.String()
		}
		normalized.Path = "/"
	}
	return normalized.String()
}

// ParseAndNormalize parses a URL string using the stricter url.ParseRequestURI (requiring a scheme) and then normalizes it using NormalizeURL
// Returns the normalized string, the parsed URL object, and any parse error
func ParseAndNormalize(urlStr string) (string, *url.URL, error) {
	parsed, err := url.ParseRequestURI(urlStr)
	if err != nil {
		return "", nil, err
	}
	return NormalizeURL(parsed), parsed, nil
}

// Origin returns "scheme://host" for u with the same casing and port rules as NormalizeURL.
func Origin(u *url.URL) string {
	if u == nil {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme + "://" + stripDefaultPort(scheme, strings.ToLower(u.Host))
}

// SameOrigin reports whether a and b share scheme, host and port.
func SameOrigin(a, b *url.URL) bool {
	return a != nil && b != nil && Origin(a) == Origin(b)
}

// ResolveReference turns an href found on a page of base into a canonical absolute URL.
// It returns false for hrefs that do not name a fetchable same-origin page:
// empty values, in-page anchors, non-http(s) schemes and links to other origins.
// Relative references without a leading slash are resolved against the site root.
func ResolveReference(base *url.URL, href string) (string, bool) {
	ref := strings.TrimSpace(href)
	if ref == "" || strings.HasPrefix(ref, "#") || base == nil {
		return "", false
	}

	origin := Origin(base)
	var absolute string
	switch {
	case strings.HasPrefix(ref, "//"):
		absolute = strings.ToLower(base.Scheme) + ":" + ref
	case strings.HasPrefix(ref, "/"):
		absolute = origin + ref
	default:
		parsed, err := url.Parse(ref)
		if err != nil {
			return "", false
		}
		if parsed.Scheme != "" {
			scheme := strings.ToLower(parsed.Scheme)
			if scheme != "http" && scheme != "https" {
				return "", false
			}
			absolute = ref
		} else {
			absolute = origin + "/" + ref
		}
	}

	u, err := url.Parse(absolute)
	if err != nil || u.Host == "" {
		return "", false
	}
	if !SameOrigin(u, base) {
		return "", false
	}
	return NormalizeURL(u), true
}

// ToRoute strips the origin of base from a canonical URL. The root page maps to "".
func ToRoute(canonicalURL, base string) string {
	base = strings.TrimSuffix(base, "/")
	route := strings.TrimPrefix(canonicalURL, base)
	if route == "/" {
		return ""
	}
	return route
}

// RouteURL joins base and a route produced by ToRoute.
func RouteURL(base, route string) string {
	base = strings.TrimSuffix(base, "/")
	if route != "" && !strings.HasPrefix(route, "/") {
		route = "/" + route
	}
	return base + route
}

func stripDefaultPort(scheme, hostport string) string {
	host, port, err := net.SplitHostPort(hostport)
	if err != nil {
		return hostport
	}
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		return host
	}
	return hostport
}
