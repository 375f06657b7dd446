package datastream

import (
	"fmt"
	"io"
	"os"

	"github.com/carlodf/archtrav/fault"
	"github.com/carlodf/archtrav/pathhierarchy"
)

// FileStream is a Stream over a single on-disk file. It opens the file
// lazily on the first Read, Seek, or Rewind call - construction alone
// performs no I/O, the same discipline Carlodf-cetl's regular file
// opener uses.
//
// FileStream does not check for existence or file type at construction
// time; open errors surface from the first operation that actually
// needs the handle.
type FileStream struct {
	path      string
	hierarchy pathhierarchy.Hierarchy

	f      *os.File
	atEnd  bool
	opened bool
}

// NewFileStream constructs a FileStream for path, identified by
// hierarchy for diagnostics and fault reporting.
func NewFileStream(hierarchy pathhierarchy.Hierarchy, path string) *FileStream {
	return &FileStream{path: path, hierarchy: hierarchy}
}

func (s *FileStream) open() error {
	if s.opened {
		return nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		msg := fmt.Sprintf("Failed to open root file %s: %s", s.path, err)
		fault.Report(s.hierarchy, msg, errnoOf(err))
		return fmt.Errorf("%s", msg)
	}
	s.f = f
	s.opened = true
	return nil
}

// Read implements Stream.
func (s *FileStream) Read(p []byte) (int, error) {
	if err := s.open(); err != nil {
		return 0, err
	}
	n, err := s.f.Read(p)
	if err != nil {
		if err == io.EOF {
			s.atEnd = true
		} else {
			msg := fmt.Sprintf("Failed to read root file %s: %s", s.path, err)
			fault.Report(s.hierarchy, msg, errnoOf(err))
		}
	}
	return n, err
}

// Rewind implements Stream.
func (s *FileStream) Rewind() error {
	if err := s.open(); err != nil {
		return err
	}
	s.atEnd = false
	_, err := s.f.Seek(0, io.SeekStart)
	return err
}

// CanSeek implements Stream: a single on-disk file always supports
// seeking.
func (s *FileStream) CanSeek() bool { return true }

// Seek implements Stream.
func (s *FileStream) Seek(offset int64, whence int) (int64, error) {
	if err := s.open(); err != nil {
		return 0, err
	}
	off, err := s.f.Seek(offset, whence)
	if err == nil {
		s.atEnd = false
	}
	return off, err
}

// Tell implements Stream.
func (s *FileStream) Tell() (int64, error) {
	return s.Seek(0, io.SeekCurrent)
}

// AtEnd implements Stream.
func (s *FileStream) AtEnd() bool { return s.atEnd }

// SourceHierarchy implements Stream.
func (s *FileStream) SourceHierarchy() pathhierarchy.Hierarchy { return s.hierarchy }

// Size returns the file's size via stat, matching §4.4's
// size_of_single_part.
func (s *FileStream) Size() (int64, error) {
	fi, err := os.Stat(s.path)
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Close implements Stream. It is safe to call multiple times.
func (s *FileStream) Close() error {
	if !s.opened || s.f == nil {
		return nil
	}
	f := s.f
	s.f = nil
	s.opened = false
	return f.Close()
}

// errnoOf extracts a short errno-style string from err for fault
// messages, falling back to err.Error() when err isn't a *PathError.
func errnoOf(err error) string {
	if pe, ok := err.(*os.PathError); ok {
		return pe.Err.Error()
	}
	return err.Error()
}
