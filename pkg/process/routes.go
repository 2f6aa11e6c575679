package process

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"campus-crawler/pkg/utils"
)

// IsAllowed reports whether route survives the denylist. A route is rejected when it
// starts with, or merely contains, any non-empty fragment; "/eventsxyz" and
// "/about/media-gallery" are both rejected by "/events" and "media".
func IsAllowed(route string, denylist []string) bool {
	for _, fragment := range denylist {
		if fragment == "" {
			continue
		}
		if strings.HasPrefix(route, fragment) || strings.Contains(route, fragment) {
			return false
		}
	}
	return true
}

// RouteFilter applies the fragment denylist and then the optional regex patterns.
type RouteFilter struct {
	denylist []string
	patterns []*regexp.Regexp
	log      *logrus.Entry
}

// NewRouteFilter compiles patterns and returns a filter.
func NewRouteFilter(denylist, patterns []string, log *logrus.Entry) (*RouteFilter, error) {
	compiled, err := utils.CompileRegexPatterns(patterns)
	if err != nil {
		return nil, err
	}
	return &RouteFilter{
		denylist: append([]string(nil), denylist...),
		patterns: compiled,
		log:      log,
	}, nil
}

// Allowed reports whether a single route passes both the denylist and the patterns.
func (f *RouteFilter) Allowed(route string) bool {
	if !IsAllowed(route, f.denylist) {
		return false
	}
	for _, pattern := range f.patterns {
		if pattern.MatchString(route) {
			return false
		}
	}
	return true
}

// Filter splits routes into kept and rejected, preserving order.
func (f *RouteFilter) Filter(routes []string) (kept, rejected []string) {
	kept = make([]string, 0, len(routes))
	for _, route := range routes {
		if f.Allowed(route) {
			kept = append(kept, route)
			continue
		}
		rejected = append(rejected, route)
		if f.log != nil {
			f.log.WithField("route", route).Debug("Route filtered out")
		}
	}
	return kept, rejected
}
