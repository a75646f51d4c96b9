package executor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/tetratelabs/wazero/sys"

	"github.com/caffeineduck/wagi"
	"github.com/caffeineduck/wagi/hostfunc"
	"github.com/caffeineduck/wagi/resolver"
	"github.com/caffeineduck/wagi/sandbox"
)

// Result holds metadata from one module invocation. The module's
// stdout stays in the sandbox buffers for the response reconstructor.
type Result struct {
	Duration time.Duration
	ExitCode uint32
	Stderr   []string
}

// Engine runs modules, one fresh runtime per call.
type Engine struct {
	cache  wazero.CompilationCache
	pages  uint32
	client hostfunc.Doer
}

// New builds an Engine. Pass the resolver's cache so request runtimes
// reuse the artifacts compiled at load time.
func New(opts ...Option) *Engine {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	e := &Engine{cache: cfg.cache, pages: cfg.memoryLimitPages, client: cfg.client}
	if e.client == nil {
		e.client = hostfunc.NewClient(hostfunc.DefaultClientConfig())
	}
	return e
}

// Run executes the module once under cfg. The runtime, the instance,
// and any linked capability exist only for this call; timeouts arrive
// through ctx.
func (e *Engine) Run(ctx context.Context, handle *resolver.Handle, cfg *sandbox.Config) (Result, error) {
	start := time.Now()

	entry := cfg.Entry
	if entry == "" {
		entry = sandbox.DefaultEntry
	}
	if !handle.HasExport(entry) {
		return e.finish(start, cfg, 0), &wagi.ConfigError{
			Module: handle.Name,
			Reason: fmt.Sprintf("entry point %q not exported", entry),
		}
	}
	// A module that imports the outbound capability cannot link unless
	// the deployment granted it; say so instead of surfacing a linker
	// diagnostic.
	if handle.ImportsFrom(hostfunc.ModuleName) && !cfg.OutboundEnabled() {
		return e.finish(start, cfg, 0), &wagi.ConfigError{
			Module: handle.Name,
			Reason: "module requires outbound HTTP; configure allowed hosts and a request limit",
		}
	}
	if cfg.Streams == nil {
		return Result{Duration: time.Since(start)}, fmt.Errorf("sandbox streams not configured")
	}

	rtConfig := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if e.cache != nil {
		rtConfig = rtConfig.WithCompilationCache(e.cache)
	}
	if e.pages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(e.pages)
	}
	rt := wazero.NewRuntimeWithConfig(ctx, rtConfig)
	defer rt.Close(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		return e.finish(start, cfg, 0), fmt.Errorf("instantiate WASI: %w", err)
	}
	if cfg.OutboundEnabled() {
		outbound := hostfunc.NewOutbound(cfg.AllowedHosts, cfg.MaxHTTPRequests, e.client)
		if err := hostfunc.Instantiate(ctx, rt, outbound); err != nil {
			return e.finish(start, cfg, 0), fmt.Errorf("instantiate outbound capability: %w", err)
		}
	}

	compiled, err := rt.CompileModule(ctx, handle.Source)
	if err != nil {
		return e.finish(start, cfg, 0), &wagi.ExecError{Module: handle.Name, Entry: entry, Err: err}
	}

	stdin, err := cfg.Streams.In.Reader()
	if err != nil {
		return e.finish(start, cfg, 0), fmt.Errorf("open stdin: %w", err)
	}

	modConfig := wazero.NewModuleConfig().
		WithName("").
		WithStdin(stdin).
		WithStdout(cfg.Streams.Out).
		WithStderr(cfg.Streams.Err).
		WithStartFunctions() // entry point is invoked explicitly below
	if len(cfg.Args) > 0 {
		modConfig = modConfig.WithArgs(cfg.Args...)
	}
	for _, v := range cfg.Env {
		modConfig = modConfig.WithEnv(v.Name, v.Value)
	}
	if len(cfg.Volumes) > 0 {
		fsConfig := wazero.NewFSConfig()
		aliases := make([]string, 0, len(cfg.Volumes))
		for alias := range cfg.Volumes {
			aliases = append(aliases, alias)
		}
		slices.Sort(aliases)
		for _, alias := range aliases {
			fsConfig = fsConfig.WithDirMount(cfg.Volumes[alias], alias)
		}
		modConfig = modConfig.WithFSConfig(fsConfig)
	}

	mod, err := rt.InstantiateModule(ctx, compiled, modConfig)
	if err != nil {
		exit, cerr := classify(ctx, handle.Name, entry, err)
		return e.finish(start, cfg, exit), cerr
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(entry)
	if fn == nil {
		return e.finish(start, cfg, 0), &wagi.ConfigError{
			Module: handle.Name,
			Reason: fmt.Sprintf("entry point %q not exported", entry),
		}
	}

	_, err = fn.Call(ctx)
	exit := uint32(0)
	if err != nil {
		exit, err = classify(ctx, handle.Name, entry, err)
	}
	return e.finish(start, cfg, exit), err
}

func (e *Engine) finish(start time.Time, cfg *sandbox.Config, exit uint32) Result {
	res := Result{Duration: time.Since(start), ExitCode: exit}
	if cfg.Streams != nil {
		res.Stderr = drainStderr(cfg.Streams.Err)
	}
	return res
}

// classify translates a wazero failure into the error taxonomy. The
// context is checked first because a deadline surfaces as a
// module-closed trap.
func classify(ctx context.Context, module, entry string, err error) (uint32, error) {
	if ctx.Err() != nil {
		return 0, &wagi.ExecError{Module: module, Entry: entry, Err: ctx.Err()}
	}
	var exitErr *sys.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 0 {
			return 0, nil
		}
		return exitErr.ExitCode(), &wagi.ExecError{Module: module, Entry: entry, Err: err}
	}
	return 0, &wagi.ExecError{Module: module, Entry: entry, Err: err}
}

// drainStderr splits the module's error stream into lines, stripping
// trailing null padding. Lines that are only padding are dropped.
func drainStderr(buf *sandbox.Buffer) []string {
	r, err := buf.Reader()
	if err != nil {
		return nil
	}

	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\x00")
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
