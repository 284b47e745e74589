package laminar

// ---------------------------------------------------------------------------
// HealthReporter interface
// ---------------------------------------------------------------------------.

type (
	// HealthReporter is implemented by all Stack[R, T] instances.
	// The interface is non-generic, allowing stacks with different type
	// parameters to be used as dependencies of one another.
	HealthReporter interface {
		// Name returns the stack's name.
		Name() string
		// HealthStatus returns the current health state of the stack.
		HealthStatus() StackStatus
	}

	// Criticality represents how a layer's unhealthy state affects
	// readiness.
	Criticality int

	// StackStatus represents the current health state of a stack.
	StackStatus struct {
		Name         string        `json:"name"`
		State        string        `json:"state"`
		OpenTargets  []string      `json:"open_targets,omitempty"`
		Dependencies []StackStatus `json:"dependencies,omitempty"`
		Criticality  Criticality   `json:"criticality"`
		Healthy      bool          `json:"healthy"`
	}
)

const (
	// CriticalityNone means the layer has no persistent health state.
	CriticalityNone Criticality = iota
	// CriticalityDegraded means the service can still serve but is impaired.
	CriticalityDegraded
	// CriticalityCritical means the service cannot reliably serve requests.
	CriticalityCritical
)

// String returns the criticality level as a human-readable string.
func (c Criticality) String() string {
	switch c {
	case CriticalityDegraded:
		return "degraded"
	case CriticalityCritical:
		return "critical"
	default:
		return "none"
	}
}

// ---------------------------------------------------------------------------
// HealthStatus on Stack[R, T]
// ---------------------------------------------------------------------------.

// HealthStatus derives the stack's current health by inspecting stateful
// layers. A stack whose breaker has any open target is unhealthy and
// critical; a saturated rate limiter degrades it without taking it down.
func (s *Stack[R, T]) HealthStatus() StackStatus {
	status := StackStatus{
		Name:    s.name,
		Healthy: true,
		State:   "healthy",
	}

	// Circuit breaker — Critical when any target is open.
	if s.cb != nil {
		if open := s.cb.OpenTargets(); len(open) > 0 {
			status.Healthy = false
			status.Criticality = CriticalityCritical
			status.State = "circuit_open"
			status.OpenTargets = open
		} else if probing := s.cb.HalfOpenTargets(); len(probing) > 0 {
			// half_open is not unhealthy — it's recovering
			status.State = "circuit_half_open"
		}
	}

	// Rate limiter — Degraded (only if not already Critical)
	if s.rl != nil && s.rl.Saturated() {
		if status.Criticality < CriticalityDegraded {
			status.Criticality = CriticalityDegraded
		}

		if status.Healthy && status.State == "healthy" {
			status.State = "rate_limited"
		}
		// Saturation alone doesn't make the stack unhealthy (it's
		// degraded, not down). Combined with an open circuit, the stack
		// stays unhealthy.
	}

	// Dependencies — propagate health from sub-dependencies
	for _, dep := range s.deps {
		depStatus := dep.HealthStatus()
		status.Dependencies = append(status.Dependencies, depStatus)

		// If a dependency is critical → this stack becomes degraded (at
		// minimum)
		if depStatus.Criticality != CriticalityCritical || depStatus.Healthy {
			continue
		}

		if status.Criticality < CriticalityDegraded {
			status.Criticality = CriticalityDegraded
		}
	}

	return status
}
