package wagi

import "strings"

// Request is the transport-independent form of one inbound HTTP request.
// The transport layer builds it and the gateway consumes it; it is treated
// as immutable once execution begins.
type Request struct {
	Method     string
	Path       string
	Query      string // raw query string, without the leading "?"
	Header     Header
	Body       []byte
	RemoteAddr string // client IP, without port; "" if unknown
	Route      string // route pattern that matched, "" if none
	Scheme     string // "http" or "https"
	Host       string // server host name, without port
	Port       string // server port, "" if the request named none
}

// FullURL reconstructs the URL the client requested.
func (r *Request) FullURL() string {
	var b strings.Builder
	b.WriteString(r.Scheme)
	b.WriteString("://")
	b.WriteString(r.Host)
	if r.Port != "" {
		b.WriteByte(':')
		b.WriteString(r.Port)
	}
	b.WriteString(r.Path)
	if r.Query != "" {
		b.WriteByte('?')
		b.WriteString(r.Query)
	}
	return b.String()
}
