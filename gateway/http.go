package gateway

import (
	"errors"
	"io"
	"net"
	"net/http"
	"sort"

	"github.com/caffeineduck/wagi"
)

// FromHTTP converts a net/http request into the transport-independent
// form the gateway consumes. The body is read in full; modules receive
// it on stdin and cannot stream.
func FromHTTP(r *http.Request) (*wagi.Request, error) {
	var body []byte
	if r.Body != nil {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		body = b
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	host, port := r.Host, ""
	if h, p, err := net.SplitHostPort(r.Host); err == nil {
		host, port = h, p
	}

	remote := r.RemoteAddr
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		remote = ip
	}

	req := &wagi.Request{
		Method:     r.Method,
		Path:       r.URL.Path,
		Query:      r.URL.RawQuery,
		Body:       body,
		RemoteAddr: remote,
		Scheme:     scheme,
		Host:       host,
		Port:       port,
	}

	// Go's header map has no iteration order; sort the names so the
	// projected environment is stable across identical requests.
	names := make([]string, 0, len(r.Header))
	for name := range r.Header {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, value := range r.Header[name] {
			req.Header.Add(name, value)
		}
	}
	return req, nil
}

// WriteHTTP sends a module response over a net/http ResponseWriter.
// Reason phrases are dropped; net/http writes only the status code.
func WriteHTTP(w http.ResponseWriter, resp wagi.Response) error {
	for _, name := range resp.Header.Names() {
		for _, value := range resp.Header.Values(name) {
			w.Header().Add(name, value)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, err := w.Write(resp.Body)
	return err
}

// ErrorStatus maps a Process error to an outward status code and body.
// Configuration problems surface their message so operators can fix the
// deployment; execution and protocol failures stay generic because the
// details belong in the log, not the response.
func ErrorStatus(err error) (int, string) {
	var (
		cfgErr   *wagi.ConfigError
		protoErr *wagi.ProtocolError
	)
	switch {
	case errors.Is(err, ErrNoRoute):
		return http.StatusNotFound, "no module mounted for path"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, cfgErr.Error()
	case errors.As(err, &protoErr):
		return http.StatusInternalServerError, "module produced an invalid response"
	default:
		return http.StatusInternalServerError, "module execution failed"
	}
}
