// Package httpx provides a resilient HTTP client adapter
// for the laminar library.
//
// Client wraps a standard http.Client with a laminar stack
// and a user-provided status code classifier that maps HTTP
// response codes to transient or permanent errors, so retry
// and circuit breaker decisions see accurate failure kinds.
package httpx
