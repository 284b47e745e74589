package laminar_test

import (
	"testing"

	"github.com/byte4ever/laminar"
)

func TestKeyedImplementsRequest(t *testing.T) {
	var _ laminar.Request = laminar.NewKeyed("api", "GET /users/42")
}

func TestKeyedAccessors(t *testing.T) {
	req := laminar.NewKeyed("payments", "POST /charge")

	if got := req.Target(); got != "payments" {
		t.Fatalf("Target() = %q, want %q", got, "payments")
	}

	if got := req.CacheKey(); got != "POST /charge" {
		t.Fatalf("CacheKey() = %q, want %q", got, "POST /charge")
	}
}

func TestKeyedIsComparable(t *testing.T) {
	a := laminar.NewKeyed("api", "k")
	b := laminar.NewKeyed("api", "k")
	c := laminar.NewKeyed("api", "other")

	if a != b {
		t.Fatal("identical Keyed values compare unequal")
	}

	if a == c {
		t.Fatal("distinct Keyed values compare equal")
	}

	// Usable as a map key.
	m := map[laminar.Keyed]int{a: 1}
	if m[b] != 1 {
		t.Fatal("map lookup through an equal Keyed value failed")
	}
}
