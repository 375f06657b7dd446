// Package datastream defines the abstract byte-source contract shared by
// every stream the traversal engine reads from — plain files, entry
// payloads inside an open archive, and multi-volume concatenations of
// either — and provides the System File Stream implementation over the
// local filesystem (§4.2, §4.4).
package datastream

import (
	"errors"
	"io"

	"github.com/carlodf/archtrav/pathhierarchy"
)

// ErrSeekUnsupported is returned by Seek/Tell on a Stream whose CanSeek
// reports false.
var ErrSeekUnsupported = errors.New("datastream: seek not supported by this stream")

// Stream is the abstract byte source every decoder and the cursor read
// through. Every Stream must support Rewind; Seek/Tell are optional and
// advertised via CanSeek.
//
// Read follows the stdlib io.Reader contract: Read returns (0, io.EOF)
// once the stream is exhausted, not a negative sentinel. Implementations
// that also need to surface a fault on error do so through the fault
// package (§4.9), in addition to returning the error from Read.
type Stream interface {
	io.Reader

	// Rewind returns the stream to its very beginning. It must succeed
	// for every stream used as archive input, since decoders rewind to
	// retry with different passphrases or formats.
	Rewind() error

	// CanSeek reports whether Seek and Tell are meaningful for this
	// stream instance.
	CanSeek() bool

	// Seek repositions the stream per io.Seeker semantics. It returns
	// ErrSeekUnsupported if CanSeek() is false.
	Seek(offset int64, whence int) (int64, error)

	// Tell returns the current logical offset. It returns
	// ErrSeekUnsupported if CanSeek() is false.
	Tell() (int64, error)

	// AtEnd reports whether a prior Read has returned io.EOF.
	AtEnd() bool

	// SourceHierarchy identifies this stream for diagnostics and for
	// root stream factory matching.
	SourceHierarchy() pathhierarchy.Hierarchy

	// Close releases any underlying OS handle. It is safe to call
	// multiple times.
	io.Closer
}

// EntryKind distinguishes the two kinds of entry the traverser yields.
type EntryKind int

const (
	// KindFile identifies a leaf entry with byte content.
	KindFile EntryKind = iota
	// KindDirectory identifies a container entry with no byte content
	// of its own.
	KindDirectory
)

func (k EntryKind) String() string {
	if k == KindDirectory {
		return "directory"
	}
	return "file"
}
