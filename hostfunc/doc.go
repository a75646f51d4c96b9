// Package hostfunc provides the outbound HTTP capability for sandboxed
// WASM modules.
//
// Modules have no implicit network access. When a deployment grants a
// module an allowlist of hosts and a per-request call quota, the
// capability is linked into the module's runtime as the host module
// named by [ModuleName]; otherwise it is absent and imports of it fail
// at instantiation.
//
// # ABI
//
// The function set and errno values mirror the wasi-experimental-http
// ABI: req performs a call and yields a status code plus a response
// handle, header_get / headers_get_all / body_read consume the response
// through that handle, and close releases it. Headers cross the guest
// boundary as newline-separated "name: value" lines.
//
// # Policy
//
// Every call passes through an [Outbound] mediator before any network
// I/O happens:
//
//	outbound := hostfunc.NewOutbound([]string{"api.example.com"}, 2, client)
//	err := hostfunc.Instantiate(ctx, runtime, outbound)
//
// The mediator rejects methods outside the standard set, non-http(s)
// URLs, hosts not covered by the allowlist, and calls past the quota.
// Allowlist matching is by host with subdomains accepted, and textual
// IPs are normalized before comparison. The quota belongs to the
// Outbound instance, so one instance per request keeps counts from
// crossing requests.
//
// # Client
//
// The network side is an injected [Doer]. Production deployments use
// [Client], which retries idempotent failures with backoff and can be
// rate limited process-wide; tests substitute fakes.
package hostfunc
