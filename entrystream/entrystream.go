// Package entrystream implements the Entry Payload Stream (§4.5): a
// datastream.Stream over the currently-positioned entry of a parent
// decoder, used as the byte source handed to a freshly-opened inner
// Stream Archive when the cursor descends one level.
//
// Grounded on the read-only, header-offset-based entry views in
// other_examples' claircore tarfs (fs.File backed by one tar header's
// byte range) and zipfuse's node_zipfile.go (a FUSE node that seeks
// into its parent zip's decompressed stream per entry): both read a
// single archived entry's payload through a handle that stays bound to
// its parent container and can be "rewound" by re-navigating to the
// same entry rather than by seeking backwards through compressed data.
package entrystream

import (
	"errors"
	"io"

	"github.com/carlodf/archtrav/datastream"
	"github.com/carlodf/archtrav/fault"
	"github.com/carlodf/archtrav/pathhierarchy"
)

// ParentArchive is the subset of the Stream Archive (decoder wrapper,
// §4.6) that an Entry Payload Stream needs. It is declared here, not in
// package archivewrap, so that archivewrap can depend on entrystream
// (to recognize and unwrap its own Entry Payload Stream inputs) without
// creating an import cycle.
type ParentArchive interface {
	// Rewind rewinds the underlying stream and re-opens the decoder,
	// per §4.6.
	Rewind() error
	// SkipToEntry scans forward until the current entry's name equals
	// name, reporting whether it was found before EOF.
	SkipToEntry(name string) (found bool, err error)
	// ReadCurrent reads decompressed bytes from the current entry.
	ReadCurrent(p []byte) (int, error)
	// SkipData discards the remainder of the current entry's payload.
	SkipData() error
	// CurrentEntryName reports the name of the entry the parent is
	// currently positioned on, if any.
	CurrentEntryName() (name string, ok bool)
	// SourceHierarchy identifies the parent's underlying stream.
	SourceHierarchy() pathhierarchy.Hierarchy
}

// ErrParentMissingEntry is returned (and reported as a fault) when the
// parent archive does not contain the requested entry name.
var ErrParentMissingEntry = errors.New("entrystream: parent archive does not contain requested stream part")

// Stream is a datastream.Stream over one named entry of a parent
// decoder.
type Stream struct {
	parent    ParentArchive
	name      string
	hierarchy pathhierarchy.Hierarchy

	opened bool
	atEnd  bool
}

// New constructs a Stream for the entry named name inside parent,
// identified by hierarchy (whose last element is name).
func New(parent ParentArchive, hierarchy pathhierarchy.Hierarchy, name string) *Stream {
	return &Stream{parent: parent, hierarchy: hierarchy, name: name}
}

// Parent returns the parent archive this stream reads from - used by
// the cursor's Ascend to recover the enclosing decoder.
func (s *Stream) Parent() ParentArchive { return s.parent }

func (s *Stream) open() error {
	if s.opened {
		return nil
	}
	found, err := s.parent.SkipToEntry(s.name)
	if err != nil {
		return err
	}
	if !found {
		msg := "Parent archive does not contain requested stream part"
		fault.Report(s.hierarchy, msg, "")
		return ErrParentMissingEntry
	}
	s.opened = true
	return nil
}

// Read implements datastream.Stream.
func (s *Stream) Read(p []byte) (int, error) {
	if err := s.open(); err != nil {
		return 0, err
	}
	n, err := s.parent.ReadCurrent(p)
	if err == io.EOF {
		s.atEnd = true
	}
	return n, err
}

// Rewind implements datastream.Stream: re-skips the parent archive back
// to this entry from the very beginning, enabling decoder probing
// (passphrase retries, format autodetection) that needs to re-read an
// entry's bytes from offset 0.
func (s *Stream) Rewind() error {
	if err := s.parent.Rewind(); err != nil {
		return err
	}
	s.opened = false
	s.atEnd = false
	return s.open()
}

// CanSeek implements datastream.Stream: Entry Payload Streams never
// support seeking (§4.5).
func (s *Stream) CanSeek() bool { return false }

// Seek implements datastream.Stream: always unsupported.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	return 0, datastream.ErrSeekUnsupported
}

// Tell implements datastream.Stream: always unsupported.
func (s *Stream) Tell() (int64, error) {
	return 0, datastream.ErrSeekUnsupported
}

// AtEnd implements datastream.Stream.
func (s *Stream) AtEnd() bool { return s.atEnd }

// SourceHierarchy implements datastream.Stream.
func (s *Stream) SourceHierarchy() pathhierarchy.Hierarchy { return s.hierarchy }

// Close implements datastream.Stream: if the parent is still positioned
// on this entry, skip the remaining payload so the parent's header
// stream is left at the next record boundary (§4.5).
func (s *Stream) Close() error {
	if !s.opened {
		return nil
	}
	s.opened = false
	name, ok := s.parent.CurrentEntryName()
	if ok && name == s.name {
		return s.parent.SkipData()
	}
	return nil
}

var _ datastream.Stream = (*Stream)(nil)
