package archivewrap

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/mholt/archiver/v4"
)

// archiverDecoder is the Decoder grounded on github.com/mholt/archiver/v4
// (§2.2 DOMAIN STACK). archiver/v4's Extraction interface is push-based:
// Extract walks the whole archive synchronously, invoking a FileHandler
// per entry. The cursor's contract (§4.6) is pull-based: open, then
// repeatedly skip-to-next-header and read-current on demand. archiverSession
// bridges the two the way Carlodf-cetl/connector.muxReader bridges a
// push-style upstream to a pull-style io.Reader: a background goroutine
// drives Extract, handing each entry to the consumer over an unbuffered
// channel and blocking until the consumer signals it is done with that
// entry's bytes.
type archiverDecoder struct{}

// NewArchiverDecoder returns the Decoder backed by archiver/v4's format
// auto-detection and extraction.
func NewArchiverDecoder() Decoder { return archiverDecoder{} }

func (archiverDecoder) Open(ctx context.Context, src io.Reader, opt DecodeOptions) (Session, error) {
	format, reader, err := archiver.Identify("", src)
	if err != nil {
		return nil, fmt.Errorf("archivewrap: identify format: %w", err)
	}
	extractor, ok := format.(archiver.Extraction)
	if !ok {
		return nil, fmt.Errorf("archivewrap: format %s does not support extraction", format.Name())
	}
	if len(opt.Formats) > 0 && !containsFold(opt.Formats, format.Name()) {
		return nil, fmt.Errorf("archivewrap: format %s not in configured allowlist", format.Name())
	}

	sessCtx, cancel := context.WithCancel(ctx)
	s := &archiverSession{
		cancel:  cancel,
		entryCh: make(chan archiverEntry),
		resumeCh: make(chan struct{}),
		doneCh:  make(chan error, 1),
	}

	passphrases := opt.Passphrases
	if len(passphrases) == 0 {
		passphrases = []string{""}
	}

	go s.run(sessCtx, extractor, reader, passphrases)
	return s, nil
}

func containsFold(set []string, name string) bool {
	for _, s := range set {
		if equalFold(s, name) {
			return true
		}
	}
	return false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// archiverEntry is what the run goroutine hands to the consumer for each
// file archiver/v4 discovers.
type archiverEntry struct {
	info EntryInfo
	file archiver.File
	err  error
}

type archiverSession struct {
	cancel   context.CancelFunc
	entryCh  chan archiverEntry
	resumeCh chan struct{}
	doneCh   chan error

	mu         sync.Mutex
	current    archiver.File
	hasCurrent bool
	closed     bool
	doneOnce   sync.Once
	doneErr    error
}

// waitDone reads the run goroutine's final error exactly once, caching it
// for any later caller (Next after exhaustion, then Close, or vice versa).
func (s *archiverSession) waitDone() error {
	s.doneOnce.Do(func() {
		s.doneErr = <-s.doneCh
	})
	return s.doneErr
}

// run drives archiver/v4's push-based Extract, retrying once per
// candidate passphrase on failure, and forwards each entry to the
// consumer through entryCh.
func (s *archiverSession) run(ctx context.Context, extractor archiver.Extraction, reader io.Reader, passphrases []string) {
	defer close(s.entryCh)

	var lastErr error
	for _, pass := range passphrases {
		lastErr = withPassphrase(extractor, pass).Extract(ctx, reader, func(ctx context.Context, f archiver.File) error {
			select {
			case s.entryCh <- archiverEntry{info: EntryInfo{Name: f.NameInArchive, IsDir: f.IsDir(), Size: f.Size()}, file: f}:
			case <-ctx.Done():
				return ctx.Err()
			}
			select {
			case <-s.resumeCh:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
		if lastErr == nil || !isAuthError(lastErr) {
			break
		}
	}
	s.doneCh <- lastErr
}

// withPassphrase returns an Extraction configured with pass where the
// concrete format supports one (Zip, Rar, SevenZip all carry a Password
// field on the value archiver.Identify returns); formats with no such
// field are returned unchanged, so a passphrase list is harmless against
// a plain, unencrypted archive.
func withPassphrase(extractor archiver.Extraction, pass string) archiver.Extraction {
	if pass == "" {
		return extractor
	}
	switch f := extractor.(type) {
	case archiver.Zip:
		f.Password = pass
		return f
	case archiver.Rar:
		f.Password = pass
		return f
	case archiver.SevenZip:
		f.Password = pass
		return f
	default:
		return extractor
	}
}

func isAuthError(err error) bool {
	// archiver/v4 formats surface a generic wrapped error on bad
	// passphrase; without a sentinel to compare against, any
	// extraction failure is treated as retryable across the passphrase
	// list, and the final failure (after exhausting passphrases) is
	// surfaced to the caller of Open/Next.
	return err != nil
}

func (s *archiverSession) Next(ctx context.Context) (EntryInfo, error) {
	s.mu.Lock()
	hadCurrent := s.hasCurrent
	s.mu.Unlock()
	if hadCurrent {
		select {
		case s.resumeCh <- struct{}{}:
		case <-ctx.Done():
			return EntryInfo{}, ctx.Err()
		}
	}

	select {
	case e, ok := <-s.entryCh:
		if !ok {
			err := s.waitDone()
			if err == nil {
				err = io.EOF
			}
			return EntryInfo{}, err
		}
		if e.err != nil {
			return EntryInfo{}, e.err
		}
		s.mu.Lock()
		s.current = e.file
		s.hasCurrent = true
		s.mu.Unlock()
		return e.info, nil
	case <-ctx.Done():
		return EntryInfo{}, ctx.Err()
	}
}

func (s *archiverSession) OpenCurrent(ctx context.Context) (io.Reader, error) {
	s.mu.Lock()
	f, ok := s.current, s.hasCurrent
	s.mu.Unlock()
	if !ok {
		return nil, fs.ErrInvalid
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func (s *archiverSession) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	s.cancel()
	s.waitDone()
	return nil
}
