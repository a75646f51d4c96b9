package cgi

import (
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/caffeineduck/wagi"
)

func sampleRequest() *wagi.Request {
	req := &wagi.Request{
		Method:     "POST",
		Path:       "/api/items",
		Query:      "limit=10&verbose",
		Body:       []byte(`{"name":"x"}`),
		RemoteAddr: "203.0.113.7",
		Route:      "/api/...",
		Scheme:     "https",
		Host:       "example.com",
		Port:       "8443",
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Accept", "application/json")
	req.Header.Add("X-Trace-Id", "abc123")
	return req
}

func lookup(vars []Var, name string) (string, bool) {
	for _, v := range vars {
		if v.Name == name {
			return v.Value, true
		}
	}
	return "", false
}

func TestEnvFixedVariables(t *testing.T) {
	vars := Env(sampleRequest(), "items.wasm")

	want := map[string]string{
		"AUTH_TYPE":         "",
		"CONTENT_LENGTH":    "12",
		"CONTENT_TYPE":      "application/json",
		"GATEWAY_INTERFACE": "CGI/1.1",
		"X_FULL_URL":        "https://example.com:8443/api/items?limit=10&verbose",
		"X_MATCHED_ROUTE":   "/api/...",
		"PATH_INFO":         "/api/items",
		"PATH_TRANSLATED":   "/api/items",
		"QUERY_STRING":      "limit=10&verbose",
		"REMOTE_ADDR":       "203.0.113.7",
		"REMOTE_HOST":       "203.0.113.7",
		"REMOTE_USER":       "",
		"REQUEST_METHOD":    "POST",
		"SCRIPT_NAME":       "items.wasm",
		"SERVER_NAME":       "example.com",
		"SERVER_PORT":       "8443",
		"SERVER_PROTOCOL":   "https",
		"SERVER_SOFTWARE":   "Wagi/1",
		"X_RELATIVE_PATH":   "/items",
	}
	for name, wantValue := range want {
		got, ok := lookup(vars, name)
		if !ok {
			t.Errorf("variable %s missing", name)
			continue
		}
		if got != wantValue {
			t.Errorf("%s = %q, want %q", name, got, wantValue)
		}
	}
}

func TestEnvIsDeterministic(t *testing.T) {
	a := Env(sampleRequest(), "items.wasm")
	b := Env(sampleRequest(), "items.wasm")
	if !reflect.DeepEqual(a, b) {
		t.Error("identical requests must project identical variable lists")
	}
}

func TestEnvDropsAuthorizationAndConnection(t *testing.T) {
	req := sampleRequest()
	req.Header.Add("Authorization", "Bearer secret")
	req.Header.Add("Connection", "keep-alive")
	req.Header.Add("authorization", "Basic other")

	vars := Env(req, "items.wasm")
	for _, v := range vars {
		if v.Name == "HTTP_AUTHORIZATION" || v.Name == "HTTP_CONNECTION" {
			t.Errorf("dropped header leaked into environment: %s=%q", v.Name, v.Value)
		}
		if strings.Contains(v.Value, "secret") {
			t.Errorf("authorization value leaked via %s", v.Name)
		}
	}
}

func TestEnvContentLengthOnlyWithBody(t *testing.T) {
	req := sampleRequest()
	req.Body = nil
	vars := Env(req, "items.wasm")
	if _, ok := lookup(vars, "CONTENT_LENGTH"); ok {
		t.Error("CONTENT_LENGTH must be absent for an empty body")
	}
}

func TestEnvFoldsDuplicateHeaders(t *testing.T) {
	req := &wagi.Request{Method: "GET", Path: "/", Scheme: "http", Host: "localhost"}
	req.Header.Add("X-Tag", "one")
	req.Header.Add("X-Tag", "two")

	vars := Env(req, "mod.wasm")
	got, ok := lookup(vars, "HTTP_X_TAG")
	if !ok {
		t.Fatal("HTTP_X_TAG missing")
	}
	if got != "one, two" {
		t.Errorf("HTTP_X_TAG = %q, want folded %q", got, "one, two")
	}

	count := 0
	for _, v := range vars {
		if v.Name == "HTTP_X_TAG" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("HTTP_X_TAG appears %d times, want exactly once", count)
	}
}

func TestEnvServerPortDefaults(t *testing.T) {
	req := &wagi.Request{Method: "GET", Path: "/", Scheme: "http", Host: "localhost"}
	vars := Env(req, "mod.wasm")
	if got, _ := lookup(vars, "SERVER_PORT"); got != "80" {
		t.Errorf("SERVER_PORT = %q, want 80", got)
	}
	if got, _ := lookup(vars, "X_FULL_URL"); got != "http://localhost/" {
		t.Errorf("X_FULL_URL = %q, want http://localhost/", got)
	}
}

func TestRelativePath(t *testing.T) {
	tests := []struct {
		route string
		path  string
		want  string
	}{
		{"/foo/...", "/foo/bar/baz", "/bar/baz"},
		{"/foo/...", "/foo", ""},
		{"/foo", "/foo", ""},
		{"/...", "/anything/here", "/anything/here"},
		{"", "/foo", ""},
		{"/foo/...", "/other", ""},
	}
	for _, tc := range tests {
		if got := relativePath(tc.route, tc.path); got != tc.want {
			t.Errorf("relativePath(%q, %q) = %q, want %q", tc.route, tc.path, got, tc.want)
		}
	}
}

func TestArgs(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"", nil},
		{"a=1", []string{"a=1"}},
		{"a=1&b=2", []string{"a=1", "b=2"}},
		{"?a=1&b", []string{"a=1", "b"}},
		{"name=hello%20world", []string{"name=hello world"}},
		{"bad=%zz", []string{"bad=%zz"}}, // broken escapes pass through
	}
	for _, tc := range tests {
		got := Args(tc.query)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("Args(%q) = %v, want %v", tc.query, got, tc.want)
		}
	}
}

// TestEnvRoundTrip reverses the projection and checks the original request
// details survive: method, path, query string, and every non-dropped
// header.
func TestEnvRoundTrip(t *testing.T) {
	req := sampleRequest()
	req.Header.Add("Authorization", "Bearer secret")
	vars := Env(req, "items.wasm")

	method, _ := lookup(vars, "REQUEST_METHOD")
	path, _ := lookup(vars, "PATH_INFO")
	query, _ := lookup(vars, "QUERY_STRING")
	if method != req.Method || path != req.Path || query != req.Query {
		t.Errorf("recovered %s %s?%s, want %s %s?%s", method, path, query, req.Method, req.Path, req.Query)
	}

	recovered := map[string]string{}
	for _, v := range vars {
		if name, ok := strings.CutPrefix(v.Name, "HTTP_"); ok {
			canonical := http.CanonicalHeaderKey(strings.ReplaceAll(name, "_", "-"))
			recovered[canonical] = v.Value
		}
	}
	for _, name := range req.Header.Names() {
		key := http.CanonicalHeaderKey(name)
		if key == "Authorization" || key == "Connection" {
			continue
		}
		if recovered[key] != req.Header.Get(name) {
			t.Errorf("header %s: recovered %q, want %q", name, recovered[key], req.Header.Get(name))
		}
	}
}
