package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// AuthAttempt is a no-op.
func (n *NoopCollector) AuthAttempt(domain string, success bool) {}

// PolicyRejection is a no-op.
func (n *NoopCollector) PolicyRejection() {}

// ProbeOutcome is a no-op.
func (n *NoopCollector) ProbeOutcome(kind string) {}

// ProbeDuration is a no-op.
func (n *NoopCollector) ProbeDuration(seconds float64) {}

// HTTPRequest is a no-op.
func (n *NoopCollector) HTTPRequest(status int) {}
