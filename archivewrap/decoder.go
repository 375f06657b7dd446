// Package archivewrap implements the Stream Archive (decoder wrapper,
// §4.6): it adapts an external, format-specific archive decoder to the
// pull-based header-iteration contract the Archive Stack Cursor needs
// (open, skip to next header, read current entry, skip current entry,
// rewind), translating every decoder error into a fault (§4.9).
//
// The concrete decoder is github.com/mholt/archiver/v4 (§2.2 DOMAIN
// STACK), reached through the small Decoder interface below so that
// tests can substitute archivewraptest.Synthetic, matching the
// Decoder/RecordIterator split Carlodf-cetl/transform uses to keep a
// format-specific concern (there, CSV; here, tar/zip/7z/rar/...) behind
// a narrow interface the rest of the pipeline codes against.
package archivewrap

import (
	"context"
	"io"
)

// DecodeOptions configures a decoding session: candidate passphrases
// tried in order, and an allowlist of format names (empty meaning "all
// formats this Decoder supports"), per TraverserOptions (§3).
type DecodeOptions struct {
	Passphrases []string
	Formats     []string
}

// EntryInfo describes one entry yielded by a Session, in decoder-defined
// order.
type EntryInfo struct {
	Name  string
	IsDir bool
	Size  int64
}

// Session pulls entries one at a time from an archive a Decoder has
// opened. Next/OpenCurrent/Close map directly onto the cursor's
// skip_to_next_header/read_current/close operations (§4.6).
type Session interface {
	// Next advances to the next entry, returning io.EOF once the
	// archive is exhausted. Entries with empty names are returned like
	// any other; the cursor's Next skips them.
	Next(ctx context.Context) (EntryInfo, error)
	// OpenCurrent returns a reader for the entry Next most recently
	// returned. Valid until the next call to Next or to Close.
	OpenCurrent(ctx context.Context) (io.Reader, error)
	// Close releases any resources the session holds, including
	// stopping in-flight format decoding goroutines.
	Close() error
}

// Decoder opens a decoding Session over src, which is positioned at
// offset 0 and must support being read sequentially from the start.
// Implementations try each of opt.Passphrases in turn when the format
// is encrypted, and must reject formats not named in opt.Formats when
// that allowlist is non-empty.
type Decoder interface {
	Open(ctx context.Context, src io.Reader, opt DecodeOptions) (Session, error)
}
