package coreretry

// RetryStrategy decides how the client core reacts to failures of
// individual requests.
type RetryStrategy interface {
	// ShouldRetryObserve reports whether per-replica failures during an
	// observe poll should be swallowed, letting the remaining copies still
	// satisfy the durability criterion, instead of failing the operation.
	ShouldRetryObserve() bool
}

type bestEffortRetryStrategy struct{}

func (bestEffortRetryStrategy) ShouldRetryObserve() bool {
	return true
}

type failFastRetryStrategy struct{}

func (failFastRetryStrategy) ShouldRetryObserve() bool {
	return false
}

// BestEffort keeps operations going in the face of transient failures.
// This is the default strategy.
var BestEffort RetryStrategy = bestEffortRetryStrategy{}

// FailFast surfaces every failure to the caller immediately.
var FailFast RetryStrategy = failFastRetryStrategy{}
