// Package fault implements the process-wide fault reporting channel
// (§4.9): a single-slot callback registration that lets the traversal
// engine surface recoverable data and I/O errors without aborting
// traversal.
//
// Registration follows an atomic-replace discipline: registering a new
// callback replaces the previous one, and registering nil clears it.
// This mirrors the single-slot semantics the spec calls for, rendered
// with atomic.Pointer rather than Carlodf-cetl's mutex+map registry
// (opener.RegisterOpener) because that registry supports many
// independently-keyed entries and rejects duplicates, while the fault
// channel is deliberately one replaceable slot.
package fault

import (
	"sync/atomic"

	"github.com/carlodf/archtrav/pathhierarchy"

	"github.com/sirupsen/logrus"
)

// Fault describes one recoverable error encountered during traversal.
// Its lifetime is only guaranteed for the duration of the callback
// invocation.
type Fault struct {
	// Hierarchy is the best-known identity of the entry the fault is
	// attached to.
	Hierarchy pathhierarchy.Hierarchy
	// Message is a human-readable description of what went wrong.
	Message string
	// Errno is a short platform error string (e.g. "no such file or
	// directory"), when one is available; empty otherwise.
	Errno string
}

// Callback receives a Fault. It may be called from any goroutine that
// was executing traversal at the time of the fault; implementations
// must be safe to invoke concurrently with themselves and with
// Register.
type Callback func(Fault)

var (
	callback atomic.Pointer[Callback]
	logger   atomic.Pointer[logrus.Logger]
)

// Register atomically replaces the process-wide fault callback.
// Registering nil clears it.
func Register(cb Callback) {
	if cb == nil {
		callback.Store(nil)
		return
	}
	callback.Store(&cb)
}

// Registered returns the currently registered callback, or nil if none
// is registered.
func Registered() Callback {
	p := callback.Load()
	if p == nil {
		return nil
	}
	return *p
}

// SetLogger installs a *logrus.Logger used for the internal debug trace
// of fault delivery (§2.1 AMBIENT STACK). When unset, Report logs
// through logrus's package-level standard logger, matching the
// ambient-logging convention used across the pack (rclone, nydus-
// snapshotter configure the shared logrus logger rather than threading
// one through every call site).
func SetLogger(l *logrus.Logger) {
	if l == nil {
		logger.Store(nil)
		return
	}
	logger.Store(l)
}

func log() *logrus.Logger {
	if l := logger.Load(); l != nil {
		return l
	}
	return logrus.StandardLogger()
}

// Report constructs a Fault and, if a callback is registered, invokes
// it. Faults never abort traversal by themselves; callers that want to
// stop must do so by ceasing to advance the iterator.
func Report(hierarchy pathhierarchy.Hierarchy, message string, errno string) {
	f := Fault{Hierarchy: hierarchy, Message: message, Errno: errno}
	log().WithFields(logrus.Fields{
		"hierarchy": hierarchy.Display(),
		"errno":     errno,
	}).Debug(message)
	if cb := Registered(); cb != nil {
		cb(f)
	}
}
