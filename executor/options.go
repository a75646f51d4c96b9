package executor

import (
	"github.com/tetratelabs/wazero"

	"github.com/caffeineduck/wagi/hostfunc"
)

// Option configures the Engine at creation time.
type Option func(*config)

type config struct {
	cache            wazero.CompilationCache
	memoryLimitPages uint32 // Max memory pages (each page = 64KB), 0 = wazero default
	client           hostfunc.Doer
}

func defaultConfig() config {
	return config{}
}

// WithCompilationCache shares compiled artifacts across request
// runtimes. Typically this is the resolver's cache.
func WithCompilationCache(cache wazero.CompilationCache) Option {
	return func(c *config) {
		c.cache = cache
	}
}

// WithMemoryLimit sets the maximum memory available to modules.
// Each page is 64KB. Examples:
//   - WithMemoryLimit(16) = 1MB max
//   - WithMemoryLimit(256) = 16MB max
//   - WithMemoryLimit(1024) = 64MB max
//
// Default is 0 (no limit, up to 4GB).
func WithMemoryLimit(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// WithClient overrides the HTTP client handed to linked outbound
// capabilities. Tests use this to avoid the network.
func WithClient(client hostfunc.Doer) Option {
	return func(c *config) {
		c.client = client
	}
}

// Memory limit constants for convenience.
const (
	MemoryLimit1MB   uint32 = 16    // 1 MB
	MemoryLimit16MB  uint32 = 256   // 16 MB
	MemoryLimit64MB  uint32 = 1024  // 64 MB
	MemoryLimit256MB uint32 = 4096  // 256 MB
	MemoryLimit1GB   uint32 = 16384 // 1 GB
)
