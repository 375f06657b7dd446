package archivewrap

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/carlodf/archtrav/datastream"
	"github.com/carlodf/archtrav/entrystream"
	"github.com/carlodf/archtrav/fault"
	"github.com/carlodf/archtrav/pathhierarchy"

	"github.com/sirupsen/logrus"
)

// StreamArchive is the Stream Archive (decoder wrapper, §4.6): it opens
// a Decoder session over a datastream.Stream and exposes the
// header-at-a-time navigation the Archive Stack Cursor drives (Open,
// SkipToNextHeader, SkipToEntry, ReadCurrent, SkipData, Rewind), plus
// enough identity (SourceHierarchy, ParentArchive) for the cursor to
// move back up the stack.
//
// It satisfies entrystream.ParentArchive structurally, so an entrystream.Stream
// opened against a StreamArchive (the nested-archive case, §4.6) needs
// no further adaptation.
type StreamArchive struct {
	decoder   Decoder
	source    datastream.Stream
	hierarchy pathhierarchy.Hierarchy
	opt       DecodeOptions
	ctx       context.Context

	session       Session
	current       EntryInfo
	positioned    bool
	currentReader io.Reader
	contentReady  bool
}

// New constructs a StreamArchive over source, not yet opened. source is
// expected to already be positioned at its start; Open does not rewind
// it, since the cursor's Descend decides whether a rewind is actually
// needed (§4.7) before constructing a StreamArchive.
func New(decoder Decoder, source datastream.Stream, opt DecodeOptions) *StreamArchive {
	return &StreamArchive{decoder: decoder, source: source, hierarchy: source.SourceHierarchy(), opt: opt}
}

// Open begins decoding, handing the source stream to the configured
// Decoder from its current position (§4.6).
func (a *StreamArchive) Open(ctx context.Context) error {
	a.ctx = ctx
	session, err := a.decoder.Open(ctx, asReader{a.source}, a.opt)
	if err != nil {
		fault.Report(a.hierarchy, fmt.Sprintf("failed to open archive decoder: %s", err), "")
		return fmt.Errorf("archivewrap: open decoder: %w", err)
	}
	logrus.Debugf("archivewrap: opened decoder over %s", a.hierarchy.Display())
	a.session = session
	a.positioned = false
	a.currentReader = nil
	a.contentReady = false
	return nil
}

// asReader adapts a datastream.Stream (which also exposes Seek/Tell/etc)
// to a plain io.Reader, since Decoder.Open only needs sequential reads.
type asReader struct{ s datastream.Stream }

func (r asReader) Read(p []byte) (int, error) { return r.s.Read(p) }

func (a *StreamArchive) ctxOrBackground() context.Context {
	if a.ctx != nil {
		return a.ctx
	}
	return context.Background()
}

// SkipToNextHeader advances to the next entry, returning ok=false once
// the archive is exhausted.
func (a *StreamArchive) SkipToNextHeader() (info EntryInfo, ok bool, err error) {
	info, err = a.session.Next(a.ctxOrBackground())
	if errors.Is(err, io.EOF) {
		a.positioned = false
		return EntryInfo{}, false, nil
	}
	if err != nil {
		fault.Report(a.hierarchy, fmt.Sprintf("archive decoding error: %s", err), "")
		return EntryInfo{}, false, err
	}
	a.current = info
	a.positioned = true
	a.currentReader = nil
	a.contentReady = false
	return info, true, nil
}

// SkipToEntry scans forward from the current position until an entry
// named name is found, per entrystream.ParentArchive. If the archive is
// already positioned on an entry named name, it stays there.
func (a *StreamArchive) SkipToEntry(name string) (bool, error) {
	if a.positioned && a.current.Name == name {
		return true, nil
	}
	for {
		info, ok, err := a.SkipToNextHeader()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if info.Name == name {
			return true, nil
		}
	}
}

// ReadCurrent reads decompressed bytes from the entry the cursor is
// currently positioned on.
func (a *StreamArchive) ReadCurrent(p []byte) (int, error) {
	if !a.positioned {
		return 0, io.EOF
	}
	if a.currentReader == nil {
		r, err := a.session.OpenCurrent(a.ctxOrBackground())
		if err != nil {
			fault.Report(a.hierarchy, "failed to open archive entry", "")
			return 0, err
		}
		a.currentReader = r
	}
	n, err := a.currentReader.Read(p)
	if n > 0 {
		a.contentReady = true
	}
	return n, err
}

// ContentReady reports whether the current entry has had at least one
// successful ReadCurrent call since the last SkipToNextHeader/
// SkipToEntry, the §4.7 Descend signal for whether the positioned
// stream needs a rewind before a new archive is opened over it.
func (a *StreamArchive) ContentReady() bool { return a.contentReady }

// SkipData discards any unread bytes of the current entry so the next
// SkipToNextHeader call can proceed; per §4.6 this does not require
// fully consuming the entry's decompressed bytes.
func (a *StreamArchive) SkipData() error {
	a.currentReader = nil
	return nil
}

// CurrentEntryName reports the entry name the cursor is positioned on.
func (a *StreamArchive) CurrentEntryName() (string, bool) {
	if !a.positioned {
		return "", false
	}
	return a.current.Name, true
}

// CurrentInfo returns the full EntryInfo (name, kind, size) of the entry
// the cursor is positioned on, for callers that need more than the name
// CurrentEntryName already exposes.
func (a *StreamArchive) CurrentInfo() (EntryInfo, bool) {
	if !a.positioned {
		return EntryInfo{}, false
	}
	return a.current, true
}

// Rewind rewinds the source stream and re-opens the decoding session
// from offset 0 (§4.6): compressed archive formats generally cannot
// seek backward, so every rewind re-decodes from the start.
func (a *StreamArchive) Rewind() error {
	logrus.Debugf("archivewrap: rewinding %s", a.hierarchy.Display())
	if a.session != nil {
		_ = a.session.Close()
		a.session = nil
	}
	if err := a.source.Rewind(); err != nil {
		return fmt.Errorf("archivewrap: rewind source: %w", err)
	}
	return a.Open(a.ctxOrBackground())
}

// SourceHierarchy identifies the underlying stream this archive decodes.
func (a *StreamArchive) SourceHierarchy() pathhierarchy.Hierarchy { return a.hierarchy }

// ParentArchive returns the enclosing decoder when this archive's source
// is itself an entry of another archive (the nested-archive case,
// §4.6), by unwrapping an *entrystream.Stream source back to its
// parent. ok is false for a root-level archive whose source is a plain
// file or device stream.
func (a *StreamArchive) ParentArchive() (entrystream.ParentArchive, bool) {
	es, ok := a.source.(*entrystream.Stream)
	if !ok {
		return nil, false
	}
	return es.Parent(), true
}

// Close releases the decoding session. It does not close the source
// stream: the source is owned by whichever cursor stack slot it was
// constructed from, and stays open for reuse after this archive level
// is torn down (e.g. the source is itself the parent level's positioned
// entry, still needed once the cursor ascends past this archive).
func (a *StreamArchive) Close() error {
	if a.session == nil {
		return nil
	}
	logrus.Debugf("archivewrap: closing decoder over %s", a.hierarchy.Display())
	err := a.session.Close()
	a.session = nil
	return err
}

var _ entrystream.ParentArchive = (*StreamArchive)(nil)
