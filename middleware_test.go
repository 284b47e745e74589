package laminar

import (
	"context"
	"errors"
	"testing"
)

// appendingMiddleware records its tag around the inner call so tests can
// observe wrapping order.
func appendingMiddleware(tag string, order *[]string) Middleware[Keyed, string] {
	return func(next Invoker[Keyed, string]) Invoker[Keyed, string] {
		return func(ctx context.Context, req Keyed) (string, error) {
			*order = append(*order, tag+":before")
			result, err := next(ctx, req)
			*order = append(*order, tag+":after")

			return result, err
		}
	}
}

func TestChainAppliesFirstMiddlewareOutermost(t *testing.T) {
	var order []string

	chain := Chain(
		appendingMiddleware("a", &order),
		appendingMiddleware("b", &order),
		appendingMiddleware("c", &order),
	)

	invoker := chain(func(context.Context, Keyed) (string, error) {
		order = append(order, "invoke")

		return "ok", nil
	})

	got, err := invoker(context.Background(), NewKeyed("api", "k"))
	if err != nil || got != "ok" {
		t.Fatalf("invoker = %q, %v; want %q, nil", got, err, "ok")
	}

	want := []string{
		"a:before", "b:before", "c:before",
		"invoke",
		"c:after", "b:after", "a:after",
	}

	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}

	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %q, want %q (full: %v)", i, order[i], want[i], order)
		}
	}
}

func TestChainEmptyIsIdentity(t *testing.T) {
	chain := Chain[Keyed, string]()

	calls := 0
	invoker := chain(func(context.Context, Keyed) (string, error) {
		calls++

		return "ok", nil
	})

	got, err := invoker(context.Background(), NewKeyed("api", "k"))
	if err != nil || got != "ok" || calls != 1 {
		t.Fatalf("invoker = %q, %v, calls=%d; want %q, nil, 1", got, err, calls, "ok")
	}
}

func TestMiddlewareCanShortCircuit(t *testing.T) {
	sentinel := errors.New("denied")

	blocking := Middleware[Keyed, string](
		func(Invoker[Keyed, string]) Invoker[Keyed, string] {
			return func(context.Context, Keyed) (string, error) {
				return "", sentinel
			}
		},
	)

	calls := 0
	invoker := Chain(blocking)(func(context.Context, Keyed) (string, error) {
		calls++

		return "ok", nil
	})

	_, err := invoker(context.Background(), NewKeyed("api", "k"))
	if !errors.Is(err, sentinel) {
		t.Fatalf("invoker error = %v, want %v", err, sentinel)
	}

	if calls != 0 {
		t.Fatalf("inner invoker called %d times, want 0", calls)
	}
}
