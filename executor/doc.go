// Package executor runs WebAssembly modules as one-shot request
// handlers in a secure sandbox.
//
// # Overview
//
// Every call gets a fresh runtime: the system interface is linked,
// the outbound HTTP capability is linked only when the sandbox grants
// it, and the module is instantiated against the sandbox's stdio,
// environment, arguments, and mounts. The entry point runs once and
// the runtime is torn down. No state survives a call; compiled code is
// shared between calls through the resolver's compilation cache.
//
// # Basic Usage
//
//	engine := executor.New(executor.WithCompilationCache(store.Cache()))
//	result, err := engine.Run(ctx, handle, cfg)
//
// # Failure Classification
//
// A missing entry point, or a module that needs the outbound capability
// when the deployment withheld it, is a configuration error. Traps,
// linkage failures, and nonzero exits are execution errors carrying the
// underlying diagnostic. Exiting with code zero is success. Deadlines
// arrive through the context and surface as execution errors wrapping
// the context's error.
package executor
