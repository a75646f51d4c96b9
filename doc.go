// Package wagi serves WebAssembly modules as HTTP request handlers.
//
// # Overview
//
// A deployment maps routes to WebAssembly binaries. For each request
// the gateway projects the request into CGI environment variables, runs
// the mounted module in a fresh sandbox with the request body on stdin,
// and reconstructs the HTTP response from the module's stdout. A module
// has no filesystem or network access beyond what its deployment entry
// grants.
//
// # Basic Usage
//
//	modules, _ := config.LoadModules("modules.toml")
//
//	gw, _ := gateway.New(ctx, modules)
//	defer gw.Close()
//
//	req, _ := gateway.FromHTTP(r)
//	resp, err := gw.Process(ctx, req)
//
// # Failure Classification
//
// Process errors branch with errors.As: a ConfigError means the
// deployment cannot run the module at all, an ExecError means the
// module trapped or exited nonzero, and a ProtocolError means the
// module ran but its output does not form a CGI response. The gateway
// package maps each kind to an outward status code.
//
// See the [gateway], [executor], [cgi], [sandbox], and [hostfunc]
// packages for detailed API documentation.
package wagi
