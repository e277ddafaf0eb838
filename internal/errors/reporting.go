package errors

import (
	"sync"
	"sync/atomic"
)

// Reporter receives enhanced errors as they are built. Sinks such as the
// notification layer register themselves here so that error construction
// stays free of I/O.
type Reporter interface {
	ReportError(ee *EnhancedError)
}

var (
	hasActiveReporting atomic.Bool
	reporterMu         sync.RWMutex
	activeReporter     Reporter
)

// SetReporter installs the process-wide error reporter. Passing nil disables
// reporting and restores the fast build path.
func SetReporter(r Reporter) {
	reporterMu.Lock()
	activeReporter = r
	reporterMu.Unlock()
	hasActiveReporting.Store(r != nil)
}

// report delivers the error to the active reporter, if any.
func report(ee *EnhancedError) {
	reporterMu.RLock()
	r := activeReporter
	reporterMu.RUnlock()
	if r == nil {
		return
	}
	r.ReportError(ee)
	ee.MarkReported()
}
