// Package resolver loads WebAssembly binaries from disk, compiles them
// once through a shared cache, and hands out metadata handles that
// per-request runtimes use to link and run the modules.
package resolver

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/tetratelabs/wazero"
)

// Handle is a loaded module ready for execution. The raw binary travels
// with the handle because compiled artifacts are bound to the runtime
// that produced them; request runtimes recompile through the shared
// cache instead of borrowing the compiled form.
type Handle struct {
	Name   string
	Source []byte

	exports map[string]struct{}
	imports map[string][]string
}

// HasExport reports whether the module exports a function with the name.
func (h *Handle) HasExport(fn string) bool {
	_, ok := h.exports[fn]
	return ok
}

// ImportsFrom reports whether the module imports any function from the
// named host module.
func (h *Handle) ImportsFrom(module string) bool {
	return len(h.imports[module]) > 0
}

// Store loads module binaries and shares one compilation cache across
// every runtime in the process.
type Store struct {
	runtime wazero.Runtime
	cache   wazero.CompilationCache
	handles map[string]*Handle
	mu      sync.RWMutex
	closed  bool
}

type config struct {
	cacheDir string
}

// Option configures a Store.
type Option func(*config)

// WithCacheDir persists compiled artifacts under dir so later processes
// skip recompilation.
func WithCacheDir(dir string) Option {
	return func(cfg *config) {
		cfg.cacheDir = dir
	}
}

// Open creates a Store. Without WithCacheDir the compilation cache lives
// in memory and lasts for the life of the process.
func Open(ctx context.Context, opts ...Option) (*Store, error) {
	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var cache wazero.CompilationCache
	if cfg.cacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(cfg.cacheDir)
		if err != nil {
			return nil, fmt.Errorf("create disk cache: %w", err)
		}
	} else {
		cache = wazero.NewCompilationCache()
	}

	rtConfig := wazero.NewRuntimeConfig().WithCompilationCache(cache)
	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)

	return &Store{
		runtime: rt,
		cache:   cache,
		handles: make(map[string]*Handle),
	}, nil
}

// Load reads, compiles, and registers the module at path under name.
// Loading an already registered name returns the existing handle.
func (s *Store) Load(ctx context.Context, name, path string) (*Handle, error) {
	s.mu.RLock()
	if h, ok := s.handles[name]; ok {
		s.mu.RUnlock()
		return h, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.handles[name]; ok {
		return h, nil
	}
	if s.closed {
		return nil, fmt.Errorf("load module %s: store is closed", name)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read module %s: %w", name, err)
	}

	compiled, err := s.runtime.CompileModule(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("compile module %s: %w", name, err)
	}

	exports := make(map[string]struct{}, len(compiled.ExportedFunctions()))
	for export := range compiled.ExportedFunctions() {
		exports[export] = struct{}{}
	}

	imports := make(map[string][]string)
	for _, def := range compiled.ImportedFunctions() {
		module, field, ok := def.Import()
		if !ok {
			continue
		}
		imports[module] = append(imports[module], field)
	}

	h := &Handle{
		Name:    name,
		Source:  source,
		exports: exports,
		imports: imports,
	}
	s.handles[name] = h
	return h, nil
}

// Resolve returns the handle registered under name.
func (s *Store) Resolve(name string) (*Handle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.handles[name]
	return h, ok
}

// Cache exposes the shared compilation cache so request runtimes reuse
// the artifacts compiled at load time.
func (s *Store) Cache() wazero.CompilationCache {
	return s.cache
}

// Close releases the probe runtime and the compilation cache.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	ctx := context.Background()

	var errs []error
	if err := s.runtime.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.cache.Close(ctx); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
