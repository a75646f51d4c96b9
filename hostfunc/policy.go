package hostfunc

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	DefaultMaxURLLength   = 8192
	DefaultMaxBodySize    = 1 << 20 // 1MB
	DefaultRequestTimeout = 30 * time.Second
)

var (
	ErrInvalidMethod   = errors.New("unsupported request method")
	ErrInvalidURL      = errors.New("invalid request url")
	ErrHostNotAllowed  = errors.New("destination host not allowed")
	ErrTooManyRequests = errors.New("outbound request limit reached")
)

// Doer performs the network call on behalf of the mediator. Tests swap
// it for a fake; production uses [Client].
type Doer interface {
	Do(ctx context.Context, req OutboundRequest) (*OutboundResponse, error)
}

// Outbound polices module-initiated HTTP calls for one request. The
// call counter is owned by the instance, so a fresh Outbound per
// request keeps quotas from leaking across requests.
type Outbound struct {
	allowed []string
	max     int
	used    int
	client  Doer
	mu      sync.Mutex
}

// NewOutbound builds a mediator allowing up to max calls to the given
// hosts. Allowlist entries may be bare hosts or full URIs; matching is
// by host, with subdomains of an allowed host accepted.
func NewOutbound(hosts []string, max int, client Doer) *Outbound {
	allowed := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if entry := allowedHost(h); entry != "" {
			allowed = append(allowed, entry)
		}
	}
	return &Outbound{allowed: allowed, max: max, client: client}
}

// Call validates req against the policy and, if it passes, performs the
// call through the injected client. Response bodies are truncated to
// DefaultMaxBodySize.
func (o *Outbound) Call(ctx context.Context, req OutboundRequest) (*OutboundResponse, error) {
	method := strings.ToUpper(req.Method)
	switch method {
	case "GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS":
	default:
		return nil, ErrInvalidMethod
	}
	req.Method = method

	if req.URL == "" || len(req.URL) > DefaultMaxURLLength {
		return nil, ErrInvalidURL
	}
	parsed, err := url.Parse(req.URL)
	if err != nil {
		return nil, ErrInvalidURL
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, ErrInvalidURL
	}

	// Host policy comes before the quota so a disallowed destination
	// never consumes a call.
	if !o.hostAllowed(parsed.Hostname()) {
		return nil, ErrHostNotAllowed
	}

	o.mu.Lock()
	if o.used >= o.max {
		o.mu.Unlock()
		return nil, ErrTooManyRequests
	}
	o.used++
	o.mu.Unlock()

	resp, err := o.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if int64(len(resp.Body)) > DefaultMaxBodySize {
		resp.Body = resp.Body[:DefaultMaxBodySize]
	}
	return resp, nil
}

// Remaining reports how many calls the current request may still make.
func (o *Outbound) Remaining() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.used >= o.max {
		return 0
	}
	return o.max - o.used
}

func (o *Outbound) hostAllowed(host string) bool {
	host = strings.ToLower(host)
	addr, isIP := parseAddr(host)

	for _, allowed := range o.allowed {
		if isIP {
			if other, ok := parseAddr(allowed); ok && addr == other {
				return true
			}
			continue
		}
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// allowedHost reduces an allowlist entry to a comparable host: URIs are
// stripped to their hostname, host:port forms lose the port, and IPv6
// brackets are removed.
func allowedHost(entry string) string {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return ""
	}
	if u, err := url.Parse(entry); err == nil && u.Host != "" {
		return strings.ToLower(u.Hostname())
	}
	host := entry
	if h, _, err := net.SplitHostPort(entry); err == nil {
		host = h
	}
	return strings.ToLower(strings.Trim(host, "[]"))
}

// parseAddr normalizes textual IPs so equivalent spellings compare
// equal, e.g. "0:0:0:0:0:0:0:1" and "::1".
func parseAddr(host string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(strings.Trim(host, "[]"))
	if err != nil {
		return netip.Addr{}, false
	}
	return addr.Unmap(), true
}
