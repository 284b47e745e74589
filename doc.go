// Package laminar layers resilience around calls to unreliable backends.
//
// The central type is Stack[R, T], which wraps an Invoker with layers
// like response caching, rate limiting, circuit breaking, and retry.
// Layers compose in the order the caller lists them, and stacks report
// health status for Kubernetes readiness probes.
package laminar
