// Package router maps request paths to registered route patterns. A
// pattern is either exact ("/api/items") or a wildcard ending in "/..."
// ("/static/..."), which matches every path under its fixed prefix. When
// several patterns match, the longest fixed prefix wins; ties go to the
// earlier registration.
package router

import (
	"fmt"
	"strings"
)

// Match is the result of a successful route lookup.
type Match struct {
	Pattern string // pattern as registered
	Index   int    // registration index of the winning pattern
}

// Table is an ordered route table. Register patterns with Add, then look
// paths up with Match. A populated table is safe for concurrent reads.
type Table struct {
	routes []route
}

type route struct {
	pattern  string
	prefix   string // fixed part, normalized without trailing slash
	wildcard bool
}

// Add registers a pattern. Patterns must start with "/" and may be
// registered once.
func (t *Table) Add(pattern string) error {
	if !strings.HasPrefix(pattern, "/") {
		return fmt.Errorf("route %q must start with /", pattern)
	}
	for _, r := range t.routes {
		if r.pattern == pattern {
			return fmt.Errorf("route %q registered twice", pattern)
		}
	}

	prefix, wildcard := strings.CutSuffix(pattern, "/...")
	if !wildcard {
		prefix = pattern
	}
	t.routes = append(t.routes, route{
		pattern:  pattern,
		prefix:   strings.TrimSuffix(prefix, "/"),
		wildcard: wildcard,
	})
	return nil
}

// Match finds the route for path.
func (t *Table) Match(path string) (Match, bool) {
	best := -1
	bestLen := -1
	for i, r := range t.routes {
		n, ok := r.match(path)
		if ok && n > bestLen {
			best, bestLen = i, n
		}
	}
	if best < 0 {
		return Match{}, false
	}
	return Match{Pattern: t.routes[best].pattern, Index: best}, true
}

// Len returns the number of registered routes.
func (t *Table) Len() int {
	return len(t.routes)
}

func (r route) match(path string) (int, bool) {
	trimmed := strings.TrimSuffix(path, "/")
	if !r.wildcard {
		if trimmed == r.prefix {
			return len(r.prefix), true
		}
		return 0, false
	}
	if trimmed == r.prefix || strings.HasPrefix(path, r.prefix+"/") {
		return len(r.prefix), true
	}
	return 0, false
}
