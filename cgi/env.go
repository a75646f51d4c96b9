// Package cgi implements both directions of the gateway's text protocol:
// projecting an inbound request into the CGI variable set and argument
// vector a module consumes, and parsing the module's standard output back
// into an outward response.
package cgi

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/caffeineduck/wagi"
)

const (
	// GatewayInterface is the CGI revision spoken to modules.
	GatewayInterface = "CGI/1.1"
	// ServerSoftware identifies this gateway to modules.
	ServerSoftware = "Wagi/1"
)

// Var is one projected environment variable.
type Var struct {
	Name  string
	Value string
}

// Env projects req into the CGI variable set for the module registered as
// script. The projection is deterministic: identical requests produce an
// identical list, byte for byte. Fixed variables come first, then one
// HTTP_ variable per inbound header in insertion order, duplicate headers
// folded into a single comma-joined value. The Authorization and
// Connection headers never reach the module.
func Env(req *wagi.Request, script string) []Var {
	vars := make([]Var, 0, 19+req.Header.Len())
	add := func(name, value string) {
		vars = append(vars, Var{Name: name, Value: value})
	}

	add("AUTH_TYPE", "")
	if n := len(req.Body); n > 0 {
		add("CONTENT_LENGTH", strconv.Itoa(n))
	}
	add("CONTENT_TYPE", req.Header.Get("Content-Type"))
	add("GATEWAY_INTERFACE", GatewayInterface)
	add("X_FULL_URL", req.FullURL())
	add("X_MATCHED_ROUTE", req.Route)
	add("PATH_INFO", req.Path)
	add("PATH_TRANSLATED", req.Path)
	add("QUERY_STRING", strings.TrimPrefix(req.Query, "?"))
	add("REMOTE_ADDR", req.RemoteAddr)
	add("REMOTE_HOST", req.RemoteAddr)
	add("REMOTE_USER", "")
	add("REQUEST_METHOD", req.Method)
	add("SCRIPT_NAME", script)
	add("SERVER_NAME", req.Host)
	add("SERVER_PORT", serverPort(req.Port))
	add("SERVER_PROTOCOL", req.Scheme)
	add("SERVER_SOFTWARE", ServerSoftware)
	add("X_RELATIVE_PATH", relativePath(req.Route, req.Path))

	for _, name := range req.Header.Names() {
		if dropped(name) {
			continue
		}
		add(httpVarName(name), strings.Join(req.Header.Values(name), ", "))
	}
	return vars
}

// Args derives the module argument vector from the raw query string: one
// argument per &-separated segment, percent-decoded. No program name is
// prepended; an empty query yields an empty vector. Segments with broken
// escape sequences are passed through verbatim.
func Args(query string) []string {
	query = strings.TrimPrefix(query, "?")
	if query == "" {
		return nil
	}
	segments := strings.Split(query, "&")
	args := make([]string, len(segments))
	for i, seg := range segments {
		if dec, err := url.PathUnescape(seg); err == nil {
			args[i] = dec
		} else {
			args[i] = seg
		}
	}
	return args
}

func serverPort(port string) string {
	if port == "" {
		return "80"
	}
	return port
}

func dropped(name string) bool {
	return strings.EqualFold(name, "Authorization") || strings.EqualFold(name, "Connection")
}

func httpVarName(name string) string {
	return "HTTP_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// relativePath returns the path remainder beyond a wildcard route's fixed
// prefix. Exact routes have no remainder.
func relativePath(route, path string) string {
	prefix, ok := strings.CutSuffix(route, "/...")
	if !ok {
		return ""
	}
	rest, ok := strings.CutPrefix(path, prefix)
	if !ok {
		return ""
	}
	return rest
}
