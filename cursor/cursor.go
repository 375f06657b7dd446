// Package cursor implements the Archive Stack Cursor (§4.7): the stack
// of (stream, decoder) pairs forming the traverser's current descent
// path, with the operations that move it forward, down, and back up.
//
// New, composing this from the datastream/volume/entrystream/archivewrap/
// rootstream packages the way Carlodf-cetl/transform composes a Decoder
// with a Mapper into a Transformer: this is new code (the teacher has no
// analogue for a navigable stack of nested decoders), but the pieces it
// wires together are each grounded in their own package.
package cursor

import (
	"context"
	"errors"
	"io"

	"github.com/carlodf/archtrav/archivewrap"
	"github.com/carlodf/archtrav/datastream"
	"github.com/carlodf/archtrav/entrystream"
	"github.com/carlodf/archtrav/fault"
	"github.com/carlodf/archtrav/pathhierarchy"
	"github.com/carlodf/archtrav/rootstream"
	"github.com/carlodf/archtrav/volume"

	"github.com/sirupsen/logrus"
)

// ErrEmptyStack is returned by operations that require at least one open
// stack level.
var ErrEmptyStack = errors.New("cursor: operation requires a non-empty stack")

// Cursor is the Archive Stack Cursor. It is not safe for concurrent use
// by more than one goroutine at a time (§5).
type Cursor struct {
	decoder archivewrap.Decoder
	opt     archivewrap.DecodeOptions

	// stack holds one stream per open depth level. A nil slot means the
	// level has descended into an archive (current) but has not yet
	// advanced to a named entry - the "archive-open" state of §4.7's
	// state machine.
	stack []datastream.Stream
	// stackHierarchy[i] is the hierarchy that produced stack[i], or the
	// zero Hierarchy for a nil (not-yet-positioned) slot.
	stackHierarchy []pathhierarchy.Hierarchy

	// current is the innermost open Stream Archive, or nil when the top
	// of stack is a root-level stream with no archive descended yet.
	current *archivewrap.StreamArchive
}

// New constructs a Cursor that decodes archives with decoder.
func New(decoder archivewrap.Decoder) *Cursor {
	return &Cursor{decoder: decoder}
}

// Configure snapshots opt. Must be called before the first Descend.
func (c *Cursor) Configure(opt archivewrap.DecodeOptions) {
	c.opt = opt
}

// CreateStream constructs the stream for hierarchy. When hierarchy has
// a single element, it first offers the hierarchy to the Root Stream
// Factory; if that declines, a System File Stream (or, for a
// MultiVolume root, a Multi-Volume Stream Base over filesystem parts)
// is constructed. For a deeper hierarchy, an Entry Payload Stream (or a
// Multi-Volume Stream Base over archive-entry parts) is constructed
// against the current innermost archive.
//
// When the stack is currently empty and hierarchy has a single
// element, CreateStream also pushes the new stream as stack[0] - the
// "empty -> stream" transition of §4.7's state machine. Every other
// call is a pure factory: callers (Next, SynchronizeToHierarchy) place
// the result on the stack themselves.
func (c *Cursor) CreateStream(hierarchy pathhierarchy.Hierarchy) (datastream.Stream, error) {
	stream, err := c.buildStream(hierarchy)
	if err != nil {
		return nil, err
	}
	if len(hierarchy) == 1 && len(c.stack) == 0 {
		c.stack = append(c.stack, stream)
		c.stackHierarchy = append(c.stackHierarchy, hierarchy)
	}
	return stream, nil
}

func (c *Cursor) buildStream(hierarchy pathhierarchy.Hierarchy) (datastream.Stream, error) {
	if len(hierarchy) == 0 {
		return nil, errors.New("cursor: empty hierarchy")
	}
	if len(hierarchy) == 1 {
		s, err := rootstream.Open(hierarchy)
		if err != nil {
			return nil, err
		}
		if s != nil {
			return s, nil
		}
		return c.systemFileStream(hierarchy)
	}
	if c.current == nil {
		return nil, errors.New("cursor: no open archive to build a nested stream from")
	}
	last := hierarchy[len(hierarchy)-1]
	if last.Kind() == pathhierarchy.KindMultiVolume {
		opener := entrystream.PartOpener{Parent: c.current, Logical: hierarchy}
		return volume.New(hierarchy, opener), nil
	}
	return entrystream.New(c.current, hierarchy, last.SingleName()), nil
}

func (c *Cursor) systemFileStream(hierarchy pathhierarchy.Hierarchy) (datastream.Stream, error) {
	root := hierarchy[0]
	if root.Kind() == pathhierarchy.KindMultiVolume {
		return volume.New(hierarchy, datastream.FilePartOpener{Logical: hierarchy}), nil
	}
	return datastream.NewFileStream(hierarchy, root.SingleName()), nil
}

// Next advances the innermost archive to its next non-empty header and
// places a freshly created Entry Payload Stream at the top of the
// stack representing that entry. ok is false once the archive is
// exhausted.
func (c *Cursor) Next() (hierarchy pathhierarchy.Hierarchy, ok bool, err error) {
	if c.current == nil {
		return nil, false, errors.New("cursor: next called with no open archive")
	}
	if len(c.stack) == 0 {
		return nil, false, ErrEmptyStack
	}
	for {
		info, found, err := c.current.SkipToNextHeader()
		if err != nil {
			return nil, false, err
		}
		if !found {
			return nil, false, nil
		}
		if info.Name == "" {
			continue
		}
		h := c.current.SourceHierarchy().AppendSingle(info.Name)
		stream, err := c.buildStream(h)
		if err != nil {
			return nil, false, err
		}
		c.replaceTop(stream, h)
		return h, true, nil
	}
}

func (c *Cursor) replaceTop(stream datastream.Stream, hierarchy pathhierarchy.Hierarchy) {
	i := len(c.stack) - 1
	if c.stack[i] != nil {
		_ = c.stack[i].Close()
	}
	c.stack[i] = stream
	c.stackHierarchy[i] = hierarchy
}

// Descend opens a new Stream Archive over the top-of-stack stream and
// pushes a null slot representing the freshly opened, not-yet-
// positioned archive level. The top of stack must currently hold a
// stream (not a nil "archive-open" slot).
func (c *Cursor) Descend() error {
	if len(c.stack) == 0 {
		return ErrEmptyStack
	}
	top := c.stack[len(c.stack)-1]
	if top == nil {
		return errors.New("cursor: descend requires a positioned stream at the top of stack")
	}
	archive, err := c.openArchiveOver(top)
	if err != nil {
		return err
	}
	logrus.Debugf("cursor: descend opened archive over %s", top.SourceHierarchy().Display())
	c.current = archive
	c.stack = append(c.stack, nil)
	c.stackHierarchy = append(c.stackHierarchy, nil)
	return nil
}

// openArchiveOver constructs and opens a Stream Archive over stream,
// rewinding stream first if the current archive had already delivered
// bytes from it (§4.7: "if the stream's content has already been read,
// rewind it so the new decoder sees bytes from offset 0").
func (c *Cursor) openArchiveOver(stream datastream.Stream) (*archivewrap.StreamArchive, error) {
	if c.current != nil && c.current.ContentReady() {
		if err := stream.Rewind(); err != nil {
			return nil, err
		}
	}
	archive := archivewrap.New(c.decoder, stream, c.opt)
	if err := archive.Open(context.Background()); err != nil {
		return nil, err
	}
	return archive, nil
}

// Ascend pops the top stack slot and restores current to the previous
// level's archive, read via the just-closed archive's ParentArchive().
func (c *Cursor) Ascend() error {
	if len(c.stack) == 0 {
		return ErrEmptyStack
	}
	closing := c.current
	popped := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	c.stackHierarchy = c.stackHierarchy[:len(c.stackHierarchy)-1]

	if popped != nil {
		if err := popped.Close(); err != nil {
			return err
		}
	}
	if closing == nil {
		return nil
	}
	parent, ok := closing.ParentArchive()
	logrus.Debugf("cursor: ascend closing archive over %s", closing.SourceHierarchy().Display())
	if err := closing.Close(); err != nil {
		return err
	}
	if !ok {
		c.current = nil
		return nil
	}
	archive, ok := parent.(*archivewrap.StreamArchive)
	if !ok {
		return errors.New("cursor: parent archive is not a *archivewrap.StreamArchive")
	}
	c.current = archive
	return nil
}

// SynchronizeToHierarchy reopens the cursor's stack so its top slot is
// the stream identified by target, reusing (and rewinding) any matching
// prefix already on the stack and rebuilding the rest. Used by detached
// entries to regain byte-level access after their owning iterator has
// advanced past them.
func (c *Cursor) SynchronizeToHierarchy(target pathhierarchy.Hierarchy) error {
	if len(target) == 0 {
		return errors.New("cursor: empty target hierarchy")
	}
	keep := 0
	for keep < len(c.stack) && keep < len(target) && hierarchyEqual(c.stackHierarchy[keep], target.PrefixUntil(keep)) {
		keep++
	}
	for len(c.stack) > keep {
		if err := c.Ascend(); err != nil {
			return err
		}
	}
	for depth := 0; depth < len(target); depth++ {
		prefix := target.PrefixUntil(depth)
		if depth >= len(c.stack) {
			stream, err := c.buildStream(prefix)
			if err != nil {
				return err
			}
			c.stack = append(c.stack, stream)
			c.stackHierarchy = append(c.stackHierarchy, prefix)
		}
		if err := c.stack[depth].Rewind(); err != nil {
			return err
		}
		if depth < len(target)-1 {
			archive, err := c.openArchiveOver(c.stack[depth])
			if err != nil {
				return err
			}
			c.current = archive
		}
	}
	return nil
}

func hierarchyEqual(a, b pathhierarchy.Hierarchy) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

// Read delegates to the top-of-stack stream, reporting a fault on
// error.
func (c *Cursor) Read(p []byte) (int, error) {
	if len(c.stack) == 0 {
		return 0, ErrEmptyStack
	}
	top := c.stack[len(c.stack)-1]
	if top == nil {
		return 0, errors.New("cursor: read with no positioned stream at the top of stack")
	}
	n, err := top.Read(p)
	if err != nil && err != io.EOF {
		fault.Report(c.CurrentEntryHierarchy(), "read error on cursor's current entry", "")
	}
	return n, err
}

// CurrentEntryInfo returns the innermost archive's full EntryInfo (name,
// kind, size) for the entry the cursor is positioned on, complementing
// Next's hierarchy-only return for callers - the traverser - that also
// need kind and size to build an Entry without re-deriving them.
func (c *Cursor) CurrentEntryInfo() (archivewrap.EntryInfo, bool) {
	if c.current == nil {
		return archivewrap.EntryInfo{}, false
	}
	return c.current.CurrentInfo()
}

// CurrentEntryHierarchy returns the innermost archive's source hierarchy
// extended by the current entry name, if any; otherwise the hierarchy
// of the top-of-stack stream.
func (c *Cursor) CurrentEntryHierarchy() pathhierarchy.Hierarchy {
	if c.current != nil {
		h := c.current.SourceHierarchy()
		if name, ok := c.current.CurrentEntryName(); ok {
			return h.AppendSingle(name)
		}
		return h
	}
	if len(c.stackHierarchy) == 0 {
		return nil
	}
	return c.stackHierarchy[len(c.stackHierarchy)-1]
}

// Close tears down every open stack level in LIFO order (§5).
func (c *Cursor) Close() error {
	var first error
	for len(c.stack) > 0 {
		if err := c.Ascend(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
