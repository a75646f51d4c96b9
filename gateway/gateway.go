// Package gateway runs the request pipeline: route lookup, environment
// projection, sandbox assembly, module execution, and response
// reconstruction. Every request is independent; nothing the gateway
// builds for one request survives into the next.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/caffeineduck/wagi"
	"github.com/caffeineduck/wagi/cgi"
	"github.com/caffeineduck/wagi/config"
	"github.com/caffeineduck/wagi/executor"
	"github.com/caffeineduck/wagi/hostfunc"
	"github.com/caffeineduck/wagi/metrics"
	"github.com/caffeineduck/wagi/resolver"
	"github.com/caffeineduck/wagi/router"
	"github.com/caffeineduck/wagi/sandbox"
)

// ErrNoRoute reports that no registered route matches the request path.
var ErrNoRoute = errors.New("no module mounted for path")

// Gateway executes deployed WebAssembly modules as request handlers.
type Gateway struct {
	store   *resolver.Store
	engine  *executor.Engine
	table   router.Table
	modules []config.Module
	handles []*resolver.Handle // indexed in step with table registrations
	logger  *zap.Logger
	metrics *metrics.Metrics
}

type options struct {
	logger   *zap.Logger
	metrics  *metrics.Metrics
	cacheDir string
	client   hostfunc.Doer
	pages    uint32
}

// Option configures a Gateway.
type Option func(*options)

// WithLogger attaches a logger; without one the gateway is silent.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics attaches a metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithCacheDir persists compiled modules under dir across restarts.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithClient overrides the HTTP client behind module outbound calls.
func WithClient(client hostfunc.Doer) Option {
	return func(o *options) {
		o.client = client
	}
}

// WithMemoryLimit caps guest memory in 64KB pages.
func WithMemoryLimit(pages uint32) Option {
	return func(o *options) {
		o.pages = pages
	}
}

// New loads every module in the deployment, failing fast on any that
// cannot be read, compiled, or routed.
func New(ctx context.Context, modules []config.Module, opts ...Option) (*Gateway, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	var storeOpts []resolver.Option
	if o.cacheDir != "" {
		storeOpts = append(storeOpts, resolver.WithCacheDir(o.cacheDir))
	}
	store, err := resolver.Open(ctx, storeOpts...)
	if err != nil {
		return nil, err
	}

	g := &Gateway{
		store:   store,
		modules: modules,
		logger:  o.logger,
		metrics: o.metrics,
	}

	// Module identifiers come from file stems; when two entries with
	// different binaries share a stem, later ones get an index suffix
	// so diagnostics stay unambiguous.
	names := make(map[string]string, len(modules))
	for i, m := range modules {
		if err := g.table.Add(m.Route); err != nil {
			store.Close()
			return nil, err
		}

		name := m.Name()
		if path, taken := names[name]; taken && path != m.Path {
			name = fmt.Sprintf("%s-%d", name, i+1)
		}
		names[name] = m.Path

		handle, err := store.Load(ctx, name, m.Path)
		if err != nil {
			store.Close()
			return nil, err
		}
		g.handles = append(g.handles, handle)
		g.logger.Info("module loaded",
			zap.String("module", name),
			zap.String("route", m.Route),
			zap.String("path", m.Path))
	}

	engineOpts := []executor.Option{executor.WithCompilationCache(store.Cache())}
	if o.client != nil {
		engineOpts = append(engineOpts, executor.WithClient(o.client))
	}
	if o.pages > 0 {
		engineOpts = append(engineOpts, executor.WithMemoryLimit(o.pages))
	}
	g.engine = executor.New(engineOpts...)

	if g.metrics != nil {
		g.metrics.ModulesLoaded.Set(float64(len(modules)))
	}
	return g, nil
}

// Process runs the module mounted at req.Path and reconstructs its
// response. Errors follow the package taxonomy; ErrorStatus maps them
// to outward status codes.
func (g *Gateway) Process(ctx context.Context, req *wagi.Request) (wagi.Response, error) {
	match, ok := g.table.Match(req.Path)
	if !ok {
		return wagi.Response{}, fmt.Errorf("%w: %s", ErrNoRoute, req.Path)
	}
	mod := g.modules[match.Index]
	handle := g.handles[match.Index]
	req.Route = match.Pattern

	streams := sandbox.NewStreams()
	defer streams.Close()

	if len(req.Body) > 0 {
		if _, err := streams.In.Write(req.Body); err != nil {
			return wagi.Response{}, fmt.Errorf("stage request body: %w", err)
		}
	}

	opts := []sandbox.Option{
		sandbox.WithEntry(mod.Entrypoint),
		sandbox.WithVolumes(mod.Volumes),
		sandbox.WithEnv(mod.Environment),
	}
	if len(mod.AllowedHosts) > 0 {
		opts = append(opts, sandbox.WithHTTP(mod.AllowedHosts, mod.MaxHTTPRequests))
	}
	cfg := sandbox.New(cgi.Env(req, handle.Name), cgi.Args(req.Query), streams, opts...)

	result, err := g.engine.Run(ctx, handle, cfg)
	g.observe(handle.Name, result)
	if err != nil {
		g.fail(handle.Name, err)
		return wagi.Response{}, err
	}

	stdout, err := streams.Out.Bytes()
	if err != nil {
		return wagi.Response{}, fmt.Errorf("read module output: %w", err)
	}
	resp, err := cgi.ParseResponse(stdout)
	if err != nil {
		g.fail(handle.Name, err)
		return wagi.Response{}, err
	}
	return resp, nil
}

// Modules returns the deployment table the gateway serves.
func (g *Gateway) Modules() []config.Module {
	return g.modules
}

// Close releases the module store and its compilation cache.
func (g *Gateway) Close() error {
	return g.store.Close()
}

func (g *Gateway) observe(module string, result executor.Result) {
	if g.metrics != nil {
		g.metrics.RecordExecution(module, result.Duration)
	}
	g.logger.Debug("module executed",
		zap.String("module", module),
		zap.Duration("duration", result.Duration),
		zap.Uint32("exit_code", result.ExitCode))
	for _, line := range result.Stderr {
		g.logger.Info("module stderr",
			zap.String("module", module),
			zap.String("line", line))
	}
}

func (g *Gateway) fail(module string, err error) {
	kind := errorKind(err)
	if g.metrics != nil {
		g.metrics.RecordError(module, kind)
	}
	g.logger.Error("module failed",
		zap.String("module", module),
		zap.String("kind", kind),
		zap.Error(err))
}

func errorKind(err error) string {
	var (
		cfgErr   *wagi.ConfigError
		protoErr *wagi.ProtocolError
	)
	switch {
	case errors.As(err, &cfgErr):
		return "config"
	case errors.As(err, &protoErr):
		return "protocol"
	default:
		return "exec"
	}
}
