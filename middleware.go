package laminar

import "context"

// Pattern: Decorator — each resilience layer wraps the next, forming a
// composable chain where order determines execution semantics.

// Invoker performs the underlying operation a stack protects: one logical
// call against a backend. Implementations must honour ctx cancellation and
// may classify their failures with [Transient] and [Permanent].
type Invoker[R Request, T any] func(ctx context.Context, req R) (T, error)

// Middleware wraps an [Invoker] with additional behavior.
// Each middleware receives the next invoker in the chain and returns a
// wrapped version.
type Middleware[R Request, T any] func(next Invoker[R, T]) Invoker[R, T]

// Chain composes multiple middlewares into a single middleware.
// Middlewares are applied in order: the first middleware is the outermost
// wrapper.
//
// Chain(a, b, c) produces a(b(c(next))) — a is outermost, c is innermost.
// Chain() with zero middlewares returns an identity middleware that passes
// through to next.
func Chain[R Request, T any](middlewares ...Middleware[R, T]) Middleware[R, T] {
	return func(next Invoker[R, T]) Invoker[R, T] {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}

		return next
	}
}
