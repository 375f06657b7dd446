// Package archivewraptest provides a synthetic, in-memory archivewrap.Decoder
// for tests that need a round-trip through the Stream Archive wrapper
// without depending on real compressed archive bytes, mirroring the
// role Carlodf-cetl's opener/openertest fakes play for datastream tests.
package archivewraptest

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/carlodf/archtrav/archivewrap"
)

// Entry is one synthetic archive member.
type Entry struct {
	Name string
	Data string
}

// Synthetic is an archivewrap.Decoder whose "archive format" is just a
// slice of Entry values, independent of whatever bytes the source
// stream actually contains (the source is never read). Passphrase
// is, if set, the only accepted value in DecodeOptions.Passphrases;
// a mismatch fails every candidate, mimicking a real encrypted format.
type Synthetic struct {
	Entries    []Entry
	Passphrase string
}

// ErrBadPassphrase is returned when Passphrase is set and none of the
// candidates offered to Open match it.
var ErrBadPassphrase = errors.New("archivewraptest: no candidate passphrase matched")

func (s Synthetic) Open(ctx context.Context, src io.Reader, opt archivewrap.DecodeOptions) (archivewrap.Session, error) {
	if s.Passphrase != "" {
		ok := false
		for _, p := range opt.Passphrases {
			if p == s.Passphrase {
				ok = true
				break
			}
		}
		if !ok {
			return nil, ErrBadPassphrase
		}
	}
	return &syntheticSession{entries: s.Entries}, nil
}

type syntheticSession struct {
	entries []Entry
	idx     int
	started bool
}

func (s *syntheticSession) Next(ctx context.Context) (archivewrap.EntryInfo, error) {
	if s.started {
		s.idx++
	}
	s.started = true
	if s.idx >= len(s.entries) {
		return archivewrap.EntryInfo{}, io.EOF
	}
	e := s.entries[s.idx]
	return archivewrap.EntryInfo{Name: e.Name, Size: int64(len(e.Data))}, nil
}

func (s *syntheticSession) OpenCurrent(ctx context.Context) (io.Reader, error) {
	if s.idx >= len(s.entries) {
		return nil, io.EOF
	}
	return strings.NewReader(s.entries[s.idx].Data), nil
}

func (s *syntheticSession) Close() error { return nil }

var _ archivewrap.Decoder = Synthetic{}
