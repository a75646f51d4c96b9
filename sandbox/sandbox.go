// Package sandbox assembles the execution configuration for one request:
// the projected environment, the argument vector, stdio stream stores,
// filesystem grants, and outbound network grants. A Config is built
// fresh per request and never reused; all I/O is deferred to the
// execution engine.
package sandbox

import (
	"maps"
	"slices"

	"github.com/caffeineduck/wagi/cgi"
)

// DefaultEntry is the exported function invoked when a module does not
// declare its own entry point.
const DefaultEntry = "_start"

// Config is the full sandbox configuration for one module invocation.
type Config struct {
	Args            []string
	Env             []cgi.Var         // ordered; projected variables first
	Volumes         map[string]string // guest path -> host directory
	Streams         *Streams
	Entry           string
	AllowedHosts    []string
	MaxHTTPRequests int
}

// Option adjusts a Config under construction.
type Option func(*Config)

// WithEntry overrides the exported function invoked as the handler.
func WithEntry(name string) Option {
	return func(c *Config) {
		if name != "" {
			c.Entry = name
		}
	}
}

// WithVolumes grants the module access to host directories, keyed by the
// path the module sees. Paths are taken as configured; vetting them is
// the deployment loader's job, not this package's.
func WithVolumes(volumes map[string]string) Option {
	return func(c *Config) {
		if len(volumes) == 0 {
			return
		}
		if c.Volumes == nil {
			c.Volumes = make(map[string]string, len(volumes))
		}
		maps.Copy(c.Volumes, volumes)
	}
}

// WithEnv appends deployment-supplied variables after the projected CGI
// set, in sorted name order so the environment stays deterministic.
func WithEnv(extra map[string]string) Option {
	return func(c *Config) {
		names := make([]string, 0, len(extra))
		for name := range extra {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			c.Env = append(c.Env, cgi.Var{Name: name, Value: extra[name]})
		}
	}
}

// WithHTTP grants outbound HTTP access to the given hosts, capped at max
// calls for the request. An empty host list or a zero cap withholds the
// capability entirely.
func WithHTTP(hosts []string, max int) Option {
	return func(c *Config) {
		c.AllowedHosts = hosts
		c.MaxHTTPRequests = max
	}
}

// New assembles a sandbox configuration from the projected environment,
// the derived argument vector, and the stream stores.
func New(env []cgi.Var, args []string, streams *Streams, opts ...Option) *Config {
	cfg := &Config{
		Args:    args,
		Env:     env,
		Streams: streams,
		Entry:   DefaultEntry,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// OutboundEnabled reports whether the outbound HTTP capability should be
// linked for this configuration.
func (c *Config) OutboundEnabled() bool {
	return len(c.AllowedHosts) > 0 && c.MaxHTTPRequests > 0
}
