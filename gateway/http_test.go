package gateway

import (
	"fmt"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/caffeineduck/wagi"
)

func TestFromHTTP(t *testing.T) {
	r := httptest.NewRequest("POST", "http://example.com:8080/app/sub?x=1&y=2", strings.NewReader("payload"))
	r.RemoteAddr = "10.1.2.3:4567"
	r.Header.Set("Accept", "text/html")
	r.Header.Add("X-Multi", "1")
	r.Header.Add("X-Multi", "2")

	req, err := FromHTTP(r)
	if err != nil {
		t.Fatalf("FromHTTP: %v", err)
	}
	if req.Method != "POST" {
		t.Errorf("Method = %q", req.Method)
	}
	if req.Path != "/app/sub" {
		t.Errorf("Path = %q", req.Path)
	}
	if req.Query != "x=1&y=2" {
		t.Errorf("Query = %q", req.Query)
	}
	if got := string(req.Body); got != "payload" {
		t.Errorf("Body = %q", got)
	}
	if req.RemoteAddr != "10.1.2.3" {
		t.Errorf("RemoteAddr = %q, want the port stripped", req.RemoteAddr)
	}
	if req.Scheme != "http" {
		t.Errorf("Scheme = %q", req.Scheme)
	}
	if req.Host != "example.com" || req.Port != "8080" {
		t.Errorf("Host:Port = %q:%q", req.Host, req.Port)
	}
	if got := req.Header.Get("Accept"); got != "text/html" {
		t.Errorf("Accept = %q", got)
	}
	if got := req.Header.Values("X-Multi"); !reflect.DeepEqual(got, []string{"1", "2"}) {
		t.Errorf("X-Multi = %v", got)
	}
}

func TestFromHTTPTLS(t *testing.T) {
	r := httptest.NewRequest("GET", "https://secure.example/", nil)
	req, err := FromHTTP(r)
	if err != nil {
		t.Fatalf("FromHTTP: %v", err)
	}
	if req.Scheme != "https" {
		t.Errorf("Scheme = %q, want https", req.Scheme)
	}
	if req.Host != "secure.example" || req.Port != "" {
		t.Errorf("Host:Port = %q:%q, want bare host", req.Host, req.Port)
	}
}

func TestFromHTTPSortsHeaderNames(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.com/", nil)
	r.Header.Set("Zeta", "z")
	r.Header.Set("Alpha", "a")
	r.Header.Set("Mango", "m")

	req, err := FromHTTP(r)
	if err != nil {
		t.Fatalf("FromHTTP: %v", err)
	}
	want := []string{"Alpha", "Mango", "Zeta"}
	if got := req.Header.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestWriteHTTP(t *testing.T) {
	var resp wagi.Response
	resp.Status = 302
	resp.Header.Add("Location", "/next")
	resp.Header.Add("X-Tag", "a")
	resp.Header.Add("X-Tag", "b")
	resp.Body = []byte("moved")

	rec := httptest.NewRecorder()
	if err := WriteHTTP(rec, resp); err != nil {
		t.Fatalf("WriteHTTP: %v", err)
	}
	if rec.Code != 302 {
		t.Errorf("code = %d", rec.Code)
	}
	if got := rec.Header().Get("Location"); got != "/next" {
		t.Errorf("Location = %q", got)
	}
	if got := rec.Header().Values("X-Tag"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("X-Tag = %v", got)
	}
	if got := rec.Body.String(); got != "moved" {
		t.Errorf("body = %q", got)
	}
}

func TestWriteHTTPDefaultsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	if err := WriteHTTP(rec, wagi.Response{Body: []byte("ok")}); err != nil {
		t.Fatalf("WriteHTTP: %v", err)
	}
	if rec.Code != 200 {
		t.Errorf("code = %d, want 200", rec.Code)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{
			name:   "no route",
			err:    fmt.Errorf("%w: /missing", ErrNoRoute),
			status: 404,
			body:   "no module mounted for path",
		},
		{
			name:   "config error surfaces its reason",
			err:    &wagi.ConfigError{Module: "m", Reason: `entry point "handle" not exported`},
			status: 500,
			body:   `module m: entry point "handle" not exported`,
		},
		{
			name:   "protocol error stays generic",
			err:    &wagi.ProtocolError{Reason: "neither Content-Type nor Location header present"},
			status: 500,
			body:   "module produced an invalid response",
		},
		{
			name:   "exec error stays generic",
			err:    &wagi.ExecError{Module: "m", Entry: "_start", Err: fmt.Errorf("trap")},
			status: 500,
			body:   "module execution failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := ErrorStatus(tt.err)
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
			if body != tt.body {
				t.Errorf("body = %q, want %q", body, tt.body)
			}
		})
	}
}
