package laminar

import (
	"sync"
	"sync/atomic"
)

// ---------------------------------------------------------------------------
// ReadinessStatus — result of checking all registered stacks
// ---------------------------------------------------------------------------.

type (
	// ReadinessStatus is the result of checking all registered stacks.
	ReadinessStatus struct {
		Stacks []StackStatus `json:"stacks"`
		Ready  bool          `json:"ready"`
	}

	// Registry tracks HealthReporter instances and derives readiness
	// status. There is no package-level default: every registry is
	// explicit, handed to stacks via [WithRegistry] or [GetStack], so
	// tests and multi-tenant processes never share hidden state.
	Registry struct {
		reporters atomic.Pointer[[]HealthReporter]
		configs   map[string]StackConfig
		mu        sync.Mutex
	}
)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}

	var empty []HealthReporter

	r.reporters.Store(&empty)

	return r
}

// Register adds a HealthReporter to the registry.
// This is typically called during startup by [New].
// It is safe for concurrent use but intended for initialization only.
func (r *Registry) Register(hr HealthReporter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.reporters.Load()
	// Create a new slice (copy-on-write) to avoid mutating the slice
	// that concurrent readers may be iterating.
	updated := make([]HealthReporter, len(old), len(old)+1)
	copy(updated, old)
	updated = append(updated, hr)
	r.reporters.Store(&updated)
}

// CheckReadiness iterates all registered reporters and builds a
// ReadinessStatus.
// Ready is false if any stack has CriticalityCritical and is unhealthy.
func (r *Registry) CheckReadiness() ReadinessStatus {
	reporters := *r.reporters.Load()

	status := ReadinessStatus{
		Ready:  true,
		Stacks: make([]StackStatus, 0, len(reporters)),
	}

	for _, hr := range reporters {
		ss := hr.HealthStatus()
		status.Stacks = append(status.Stacks, ss)

		// A critical unhealthy stack makes the service not ready.
		if ss.Criticality == CriticalityCritical && !ss.Healthy {
			status.Ready = false
		}
	}

	return status
}
