// Package volume implements the Multi-Volume Stream Base (§4.3): a
// datastream.Stream that presents an ordered list of single-part
// streams concatenated into one logical byte stream.
//
// It generalizes Carlodf-cetl/connector's muxReader (which concatenates
// a slice of openers into one io.ReadCloser with boundary tracking) to
// the full Stream contract required here: Rewind (muxReader has none -
// ETL pipelines only read forward once), and an optional Seek/Tell when
// the PartOpener can report each part's size (SizedPartOpener).
package volume

import (
	"errors"
	"io"
	"sort"

	"github.com/carlodf/archtrav/datastream"
	"github.com/carlodf/archtrav/pathhierarchy"
)

// PartOpener opens one physical part of a multi-volume group by index,
// in the order the parts should be concatenated. Subclasses of the
// Multi-Volume Stream Base (§4.3's open_single_part/close_single_part/
// read_from_single_part/seek_within_single_part/size_of_single_part
// hooks) are rendered here simply as implementations of this interface
// plus datastream.Stream's own Read/Seek/Close, since Go's Stream
// interface already bundles those operations.
type PartOpener interface {
	// OpenPart opens the index-th part, in [0, PartCount()).
	OpenPart(index int) (datastream.Stream, error)
	// PartCount reports the total number of parts.
	PartCount() int
}

// SizedPartOpener is a PartOpener that can report a part's size without
// opening it, which Stream needs to support Seek/Tell across part
// boundaries.
type SizedPartOpener interface {
	PartOpener
	// PartSize returns the size in bytes of the index-th part.
	PartSize(index int) (int64, error)
}

// Stream concatenates the parts produced by a PartOpener into a single
// logical byte stream (§4.3).
type Stream struct {
	logical pathhierarchy.Hierarchy
	opener  PartOpener

	activeIndex int
	active      datastream.Stream
	atEnd       bool

	cumulativeOffsets []int64 // cumulativeOffsets[i] = sum of sizes of parts [0,i)
}

// New constructs a Stream over the parts produced by opener, identified
// for diagnostics by logical (whose last element is Single or
// MultiVolume, per §4.3).
func New(logical pathhierarchy.Hierarchy, opener PartOpener) *Stream {
	return &Stream{logical: logical, opener: opener, activeIndex: -1}
}

// SourceHierarchy implements datastream.Stream.
func (s *Stream) SourceHierarchy() pathhierarchy.Hierarchy { return s.logical }

// AtEnd implements datastream.Stream.
func (s *Stream) AtEnd() bool { return s.atEnd }

func (s *Stream) openPart(index int) error {
	if s.active != nil {
		_ = s.active.Close()
		s.active = nil
	}
	if index >= s.opener.PartCount() {
		s.active = nil
		s.activeIndex = index
		return nil
	}
	part, err := s.opener.OpenPart(index)
	if err != nil {
		return err
	}
	s.active = part
	s.activeIndex = index
	return nil
}

// Rewind implements datastream.Stream: closes any active part, reopens
// part 0, and clears AtEnd.
func (s *Stream) Rewind() error {
	s.atEnd = false
	if s.opener.PartCount() == 0 {
		if s.active != nil {
			_ = s.active.Close()
			s.active = nil
		}
		s.activeIndex = 0
		return nil
	}
	return s.openPart(0)
}

// Read implements datastream.Stream: reads from the active part, and on
// that part's EOF, advances to the next part and retries until a part
// yields bytes or no parts remain.
func (s *Stream) Read(p []byte) (int, error) {
	if s.activeIndex < 0 {
		if err := s.Rewind(); err != nil {
			return 0, err
		}
	}
	for {
		if s.active == nil {
			s.atEnd = true
			return 0, io.EOF
		}
		n, err := s.active.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == io.EOF {
			if openErr := s.openPart(s.activeIndex + 1); openErr != nil {
				return 0, openErr
			}
			continue
		}
		if err != nil {
			return 0, err
		}
		// n == 0, err == nil: degenerate zero-byte read from the part;
		// loop to avoid busy-spinning the caller on an empty buffer.
		if len(p) == 0 {
			return 0, nil
		}
	}
}

// CanSeek implements datastream.Stream: true only when the PartOpener
// can report part sizes without opening them.
func (s *Stream) CanSeek() bool {
	_, ok := s.opener.(SizedPartOpener)
	return ok
}

// ErrPartNotSeekable is returned by Seek when the underlying PartOpener
// doesn't support size queries.
var ErrPartNotSeekable = errors.New("volume: underlying parts do not support seeking")

func (s *Stream) ensureCumulativeOffsets() error {
	if s.cumulativeOffsets != nil {
		return nil
	}
	sized, ok := s.opener.(SizedPartOpener)
	if !ok {
		return ErrPartNotSeekable
	}
	n := sized.PartCount()
	offsets := make([]int64, n+1)
	for i := 0; i < n; i++ {
		sz, err := sized.PartSize(i)
		if err != nil {
			return err
		}
		offsets[i+1] = offsets[i] + sz
	}
	s.cumulativeOffsets = offsets
	return nil
}

// Tell implements datastream.Stream.
func (s *Stream) Tell() (int64, error) {
	if !s.CanSeek() {
		return 0, datastream.ErrSeekUnsupported
	}
	if err := s.ensureCumulativeOffsets(); err != nil {
		return 0, err
	}
	if s.activeIndex < 0 {
		// Nothing opened or read yet: logical offset 0.
		return 0, nil
	}
	if s.activeIndex >= len(s.cumulativeOffsets)-1 {
		// Past the last part: logical EOF offset.
		return s.cumulativeOffsets[len(s.cumulativeOffsets)-1], nil
	}
	local, err := s.active.Tell()
	if err != nil {
		return 0, err
	}
	return s.cumulativeOffsets[s.activeIndex] + local, nil
}

// Seek implements datastream.Stream: computes the absolute logical
// offset, binary-searches cumulativeOffsets to find the containing
// part, opens that part, and seeks within it.
func (s *Stream) Seek(offset int64, whence int) (int64, error) {
	if !s.CanSeek() {
		return 0, datastream.ErrSeekUnsupported
	}
	if err := s.ensureCumulativeOffsets(); err != nil {
		return 0, err
	}
	total := s.cumulativeOffsets[len(s.cumulativeOffsets)-1]

	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		cur, err := s.Tell()
		if err != nil {
			return 0, err
		}
		abs = cur + offset
	case io.SeekEnd:
		abs = total + offset
	default:
		return 0, errors.New("volume: invalid whence")
	}
	if abs < 0 {
		return 0, errors.New("volume: negative seek position")
	}

	idx := locatePart(s.cumulativeOffsets, abs)
	if idx != s.activeIndex || s.active == nil {
		if err := s.openPart(idx); err != nil {
			return 0, err
		}
	}
	s.atEnd = false
	if s.active != nil {
		local := abs - s.cumulativeOffsets[idx]
		if _, err := s.active.Seek(local, io.SeekStart); err != nil {
			return 0, err
		}
	}
	return abs, nil
}

// locatePart returns the index i such that cumulativeOffsets[i] <= abs <
// cumulativeOffsets[i+1], or the part count (one past the last part
// index) if abs is at or past the end.
func locatePart(cumulativeOffsets []int64, abs int64) int {
	n := len(cumulativeOffsets) - 1
	i := sort.Search(n, func(i int) bool {
		return cumulativeOffsets[i+1] > abs
	})
	if i >= n {
		return n
	}
	return i
}

// Close implements datastream.Stream.
func (s *Stream) Close() error {
	if s.active == nil {
		return nil
	}
	err := s.active.Close()
	s.active = nil
	return err
}

var _ datastream.Stream = (*Stream)(nil)
