package laminar

import "context"

// Do is a convenience function that wraps a single invocation with
// resilience layers without creating a named [Stack]. It creates an
// anonymous stack internally and calls [Stack.Do]. The stack is not
// registered with any [Registry], and its layer state is discarded
// afterwards — calls that should share breaker, limiter, or cache state
// belong on a long-lived stack instead.
func Do[R Request, T any](
	ctx context.Context,
	req R,
	invoker Invoker[R, T],
	opts ...any,
) (T, error) {
	s, err := New[R, T]("", invoker, opts...)
	if err != nil {
		var zero T

		return zero, err
	}

	return s.Do(ctx, req)
}
