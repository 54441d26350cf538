package httpapi

import "sync/atomic"

// RequestLimiter caps the number of authentication probes in flight. Each
// request holds one remote IMAP connection, so the cap bounds pressure on the
// upstream server.
type RequestLimiter struct {
	maxRequests int64
	current     atomic.Int64
}

// NewRequestLimiter creates a limiter with the specified maximum.
func NewRequestLimiter(max int) *RequestLimiter {
	return &RequestLimiter{maxRequests: int64(max)}
}

// TryAcquire attempts to acquire a request slot.
// Returns true if successful, false if at capacity.
func (l *RequestLimiter) TryAcquire() bool {
	for {
		current := l.current.Load()
		if current >= l.maxRequests {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release releases a request slot.
func (l *RequestLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the current in-flight request count.
func (l *RequestLimiter) Current() int64 {
	return l.current.Load()
}
