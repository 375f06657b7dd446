// Package rootstream implements the Root Stream Factory (§4.9): a
// single process-wide, atomically-replaceable hook that lets a host
// application substitute its own byte source for a root-level hierarchy
// (e.g. reading archives out of object storage instead of the local
// filesystem) in place of the default System File Stream.
//
// Like package fault, this is rendered with atomic.Pointer rather than
// Carlodf-cetl/opener's sync.RWMutex-backed multi-key registry
// (RegisterOpener/OpenerFromSpec), because the factory here is a single
// replaceable slot, not a set of independently named openers.
package rootstream

import (
	"sync/atomic"

	"github.com/carlodf/archtrav/datastream"
	"github.com/carlodf/archtrav/pathhierarchy"
)

// Factory opens a Stream for a root-level hierarchy. Returning
// (nil, nil) declines the hierarchy, telling the caller to fall back to
// the default System File Stream.
type Factory func(pathhierarchy.Hierarchy) (datastream.Stream, error)

var factory atomic.Pointer[Factory]

// Register atomically replaces the process-wide root stream factory.
// Registering nil clears it, restoring the default filesystem-only
// behavior.
func Register(f Factory) {
	if f == nil {
		factory.Store(nil)
		return
	}
	factory.Store(&f)
}

// Registered returns the currently registered Factory, or nil if none
// is registered.
func Registered() Factory {
	p := factory.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Open consults the registered Factory for hierarchy, returning
// (nil, nil) if none is registered or the registered one declines.
func Open(hierarchy pathhierarchy.Hierarchy) (datastream.Stream, error) {
	f := Registered()
	if f == nil {
		return nil, nil
	}
	return f(hierarchy)
}
