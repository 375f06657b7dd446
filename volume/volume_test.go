package volume

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/carlodf/archtrav/datastream"
	"github.com/carlodf/archtrav/pathhierarchy"
)

// ---- fakes ----

type fakePart struct {
	data   []byte
	pos    int
	closed bool
	readErrN int // inject error once pos reaches this index; <0 disables
}

func (p *fakePart) Read(buf []byte) (int, error) {
	if p.readErrN >= 0 && p.pos >= p.readErrN {
		return 0, errInjected
	}
	if p.pos >= len(p.data) {
		return 0, io.EOF
	}
	end := len(p.data)
	if p.readErrN >= 0 && p.readErrN < end {
		end = p.readErrN
	}
	n := copy(buf, p.data[p.pos:end])
	p.pos += n
	return n, nil
}
func (p *fakePart) Rewind() error { p.pos = 0; return nil }
func (p *fakePart) CanSeek() bool { return true }
func (p *fakePart) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		p.pos = int(offset)
	case io.SeekCurrent:
		p.pos += int(offset)
	case io.SeekEnd:
		p.pos = len(p.data) + int(offset)
	}
	return int64(p.pos), nil
}
func (p *fakePart) Tell() (int64, error)                          { return int64(p.pos), nil }
func (p *fakePart) AtEnd() bool                                   { return p.pos >= len(p.data) }
func (p *fakePart) SourceHierarchy() pathhierarchy.Hierarchy       { return nil }
func (p *fakePart) Close() error                                  { p.closed = true; return nil }

var errInjected = errors.New("injected read error")

type fakeOpener struct {
	parts []*fakePart
	sized bool
}

func (o *fakeOpener) OpenPart(index int) (datastream.Stream, error) {
	part := o.parts[index]
	part.pos = 0
	return part, nil
}
func (o *fakeOpener) PartCount() int { return len(o.parts) }
func (o *fakeOpener) PartSize(index int) (int64, error) {
	if !o.sized {
		return 0, errors.New("not sized")
	}
	return int64(len(o.parts[index].data)), nil
}

var _ SizedPartOpener = (*fakeOpener)(nil)

func newOpener(parts ...string) *fakeOpener {
	o := &fakeOpener{sized: true}
	for _, p := range parts {
		o.parts = append(o.parts, &fakePart{data: []byte(p), readErrN: -1})
	}
	return o
}

// ---- tests ----

func TestStream_ConcatenatesPartsInOrder(t *testing.T) {
	t.Parallel()

	s := New(pathhierarchy.MakeMultiVolumePath([]string{"p1", "p2"}, pathhierarchy.Given), newOpener("hello", "world"))
	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "helloworld" {
		t.Fatalf("got %q, want %q", got, "helloworld")
	}
}

func TestStream_EqualsIndependentPartReads(t *testing.T) {
	// §8 property 9: concatenation equals reading each part independently.
	t.Parallel()

	parts := []string{"alpha", "beta", "gamma"}
	o := newOpener(parts...)
	s := New(pathhierarchy.MakeMultiVolumePath(parts, pathhierarchy.Given), o)
	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	var want bytes.Buffer
	for _, p := range parts {
		want.WriteString(p)
	}
	if got2 := got; string(got2) != want.String() {
		t.Fatalf("got %q, want %q", got2, want.String())
	}
}

func TestStream_Rewind(t *testing.T) {
	t.Parallel()

	s := New(pathhierarchy.MakeMultiVolumePath([]string{"p1", "p2"}, pathhierarchy.Given), newOpener("AB", "CD"))
	first, _ := io.ReadAll(s)
	if err := s.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	second, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll after rewind: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("rewind did not reproduce the same bytes: %q vs %q", first, second)
	}
}

func TestStream_SinglePart(t *testing.T) {
	// Boundary behavior: a single-part group behaves like a plain stream.
	t.Parallel()

	s := New(pathhierarchy.MakeSinglePath("only"), newOpener("onlydata"))
	got, err := io.ReadAll(s)
	if err != nil || string(got) != "onlydata" {
		t.Fatalf("got (%q, %v)", got, err)
	}
}

func TestStream_ReadErrorStopsTraversal(t *testing.T) {
	t.Parallel()

	o := &fakeOpener{sized: true}
	o.parts = []*fakePart{{data: []byte("abcdef"), readErrN: 3}}
	s := New(pathhierarchy.MakeSinglePath("x"), o)

	buf := make([]byte, 16)
	n, err := s.Read(buf)
	if n != 3 {
		t.Fatalf("n = %d, want 3 (partial read before error)", n)
	}
	_, err = s.Read(buf)
	if !errors.Is(err, errInjected) {
		t.Fatalf("err = %v, want errInjected", err)
	}
}

func TestStream_SeekAcrossPartBoundary(t *testing.T) {
	t.Parallel()

	o := newOpener("0123", "4567", "89")
	s := New(pathhierarchy.MakeMultiVolumePath([]string{"p1", "p2", "p3"}, pathhierarchy.Given), o)

	if !s.CanSeek() {
		t.Fatalf("expected CanSeek() true for a sized opener")
	}
	off, err := s.Seek(5, io.SeekStart)
	if err != nil || off != 5 {
		t.Fatalf("Seek = (%d, %v)", off, err)
	}
	buf := make([]byte, 3)
	n, err := s.Read(buf)
	if err != nil || n != 3 || string(buf) != "567" {
		t.Fatalf("Read after seek = (%d, %q, %v)", n, buf, err)
	}

	tell, err := s.Tell()
	if err != nil || tell != 8 {
		t.Fatalf("Tell = (%d, %v), want 8", tell, err)
	}

	off, err = s.Seek(0, io.SeekEnd)
	if err != nil || off != 10 {
		t.Fatalf("Seek(SeekEnd) = (%d, %v), want 10", off, err)
	}
}

func TestStream_SeekUnsupportedWithoutSizedOpener(t *testing.T) {
	// Boundary behavior: seek on a non-seekable multi-volume stream
	// returns failure without modifying state.
	t.Parallel()

	o := &fakeOpener{sized: false}
	o.parts = []*fakePart{{data: []byte("abc"), readErrN: -1}}
	s := New(pathhierarchy.MakeSinglePath("x"), o)

	if s.CanSeek() {
		t.Fatalf("expected CanSeek() false without a SizedPartOpener")
	}
	if _, err := s.Seek(1, io.SeekStart); !errors.Is(err, datastream.ErrSeekUnsupported) {
		t.Fatalf("Seek err = %v, want ErrSeekUnsupported", err)
	}

	// State (read position) must be untouched.
	got, err := io.ReadAll(s)
	if err != nil || string(got) != "abc" {
		t.Fatalf("got (%q, %v), want full content unaffected", got, err)
	}
}

func TestStream_EmptyGroup(t *testing.T) {
	t.Parallel()

	o := &fakeOpener{sized: true}
	s := New(pathhierarchy.MakeMultiVolumePath(nil, pathhierarchy.Given), o)
	buf := make([]byte, 1)
	n, err := s.Read(buf)
	if n != 0 || !errors.Is(err, io.EOF) {
		t.Fatalf("Read on empty group = (%d, %v), want (0, io.EOF)", n, err)
	}
}
