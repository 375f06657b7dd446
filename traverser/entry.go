package traverser

import (
	"fmt"
	"io"

	"github.com/carlodf/archtrav/archivewrap"
	"github.com/carlodf/archtrav/cursor"
	"github.com/carlodf/archtrav/datastream"
	"github.com/carlodf/archtrav/pathhierarchy"
)

// Entry is one discovered node: a filesystem path or an archive member
// (§3). An Entry returned by Next is live only until the next call to
// Next; Detach produces a copy that stays usable afterward.
type Entry struct {
	hierarchy pathhierarchy.Hierarchy
	kind      datastream.EntryKind
	size      int64
	metadata  map[string]any
	descent   bool

	grouped       bool
	groupBase     string
	groupOrdering pathhierarchy.Ordering

	decoder   archivewrap.Decoder
	decodeOpt archivewrap.DecodeOptions

	live  *cursor.Cursor // shared with the owning Traverser; nil once detached
	own   *cursor.Cursor // private cursor, built lazily on first detached Read
	owner *Traverser     // the Traverser that yielded this entry, for staleness checks
}

// PathHierarchy identifies this entry (§3).
func (e *Entry) PathHierarchy() pathhierarchy.Hierarchy { return e.hierarchy }

// Kind reports whether this entry is a file or a directory.
func (e *Entry) Kind() datastream.EntryKind { return e.kind }

// Size is the entry's reported byte size; 0 means unknown.
func (e *Entry) Size() int64 { return e.size }

// Depth is len(PathHierarchy())-1.
func (e *Entry) Depth() int { return e.hierarchy.Depth() }

// DescentEnabled reports whether this entry will be probed and
// descended into as an archive after it is yielded (file-kind entries
// only). It defaults to the owning Traverser's Options.DescendArchives
// and is cleared by Read.
func (e *Entry) DescentEnabled() bool { return e.descent }

// SetDescent overrides the descent flag before the next iterator
// advance.
func (e *Entry) SetDescent(v bool) { e.descent = v }

// Metadata returns the captured metadata map, keyed by the configured
// MetadataKeys. Never nil for a file-kind entry from a filesystem walk;
// may be empty for archive-member entries, whose decoder does not
// surface per-key filesystem metadata.
func (e *Entry) Metadata() map[string]any {
	if e.metadata == nil {
		return map[string]any{}
	}
	return e.metadata
}

// SetMultiVolumeGroup registers this entry as one part of a named
// multi-volume group (§4.8). base is opaque to the engine; all parts
// sharing a base registered within the same enclosing container (one
// directory listing, or one open archive level) are collected into a
// single synthetic root hierarchy, emitted once that container's own
// traversal reaches EOF. Calling this also implies descent into the
// group should happen only once it surfaces as its own root - it has no
// effect on this entry's own descent flag.
func (e *Entry) SetMultiVolumeGroup(base string, ordering pathhierarchy.Ordering) {
	e.grouped = true
	e.groupBase = base
	e.groupOrdering = ordering
}

// Read reads from the entry's payload, disabling its descent flag as a
// side effect (§4.8: a partially-consumed entry is no longer implicitly
// reopened as an archive).
//
// Calling Read on a live (non-detached) entry after the iterator has
// advanced past it is a programmer error: the shared cursor has moved
// on to a different entry, so it panics rather than silently returning
// the wrong bytes, matching transform.NewDecodeMapTransform's
// panic-on-misuse precedent for a caller that outlives what it was
// handed.
func (e *Entry) Read(p []byte) (int, error) {
	if e.live != nil && e.owner.current != e {
		panic(fmt.Sprintf("traverser: Read called on a stale entry %q after the iterator advanced past it; call Detach first", e.hierarchy.Display()))
	}
	e.descent = false
	if e.kind == datastream.KindDirectory {
		return 0, io.EOF
	}
	if e.live != nil {
		return e.live.Read(p)
	}
	if e.own == nil {
		e.own = cursor.New(e.decoder)
		e.own.Configure(e.decodeOpt)
		if err := e.own.SynchronizeToHierarchy(e.hierarchy); err != nil {
			return 0, err
		}
	}
	return e.own.Read(p)
}

// Detach returns a copy of e that no longer depends on the Traverser
// that produced it. The copy's Read reopens its own cursor against the
// same hierarchy on first use, via cursor.SynchronizeToHierarchy,
// recovering the payload even after the owning iterator has moved on or
// been closed (§8 property 7).
func (e *Entry) Detach() *Entry {
	d := *e
	d.live = nil
	d.own = nil
	return &d
}
