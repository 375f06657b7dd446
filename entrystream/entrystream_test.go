package entrystream

import (
	"errors"
	"io"
	"testing"

	"github.com/carlodf/archtrav/datastream"
	"github.com/carlodf/archtrav/pathhierarchy"
)

type fakeParent struct {
	entries     map[string]string
	currentName string
	currentPos  int
	rewound     int
	skippedData []string
}

func newFakeParent(entries map[string]string) *fakeParent {
	return &fakeParent{entries: entries}
}

func (p *fakeParent) Rewind() error {
	p.rewound++
	p.currentName = ""
	p.currentPos = 0
	return nil
}

func (p *fakeParent) SkipToEntry(name string) (bool, error) {
	if _, ok := p.entries[name]; !ok {
		return false, nil
	}
	p.currentName = name
	p.currentPos = 0
	return true, nil
}

func (p *fakeParent) ReadCurrent(buf []byte) (int, error) {
	data := p.entries[p.currentName]
	if p.currentPos >= len(data) {
		return 0, io.EOF
	}
	n := copy(buf, data[p.currentPos:])
	p.currentPos += n
	return n, nil
}

func (p *fakeParent) SkipData() error {
	p.skippedData = append(p.skippedData, p.currentName)
	p.currentName = ""
	return nil
}

func (p *fakeParent) CurrentEntryName() (string, bool) {
	if p.currentName == "" {
		return "", false
	}
	return p.currentName, true
}

func (p *fakeParent) SourceHierarchy() pathhierarchy.Hierarchy {
	return pathhierarchy.MakeSinglePath("parent.tar")
}

func TestStream_ReadsCurrentEntry(t *testing.T) {
	t.Parallel()

	parent := newFakeParent(map[string]string{"x.txt": "hello"})
	h := pathhierarchy.MakeSinglePath("parent.tar").AppendSingle("x.txt")
	s := New(parent, h, "x.txt")

	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got %q, want hello", got)
	}
}

func TestStream_OpenMissingEntry_ReportsFault(t *testing.T) {
	var faults int
	restore := installFaultRecorder(t, &faults)
	defer restore()

	parent := newFakeParent(map[string]string{})
	h := pathhierarchy.MakeSinglePath("parent.tar").AppendSingle("missing.txt")
	s := New(parent, h, "missing.txt")

	_, err := s.Read(make([]byte, 1))
	if !errors.Is(err, ErrParentMissingEntry) {
		t.Fatalf("err = %v, want ErrParentMissingEntry", err)
	}
	if faults != 1 {
		t.Fatalf("faults = %d, want 1", faults)
	}
}

func TestStream_CloseSkipsRemainingPayload(t *testing.T) {
	t.Parallel()

	parent := newFakeParent(map[string]string{"x.txt": "hello world"})
	h := pathhierarchy.MakeSinglePath("parent.tar").AppendSingle("x.txt")
	s := New(parent, h, "x.txt")

	buf := make([]byte, 2)
	if _, err := s.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(parent.skippedData) != 1 || parent.skippedData[0] != "x.txt" {
		t.Fatalf("expected SkipData to be called for x.txt, got %v", parent.skippedData)
	}
}

func TestStream_CloseDoesNotSkipIfParentMovedOn(t *testing.T) {
	t.Parallel()

	parent := newFakeParent(map[string]string{"x.txt": "hello"})
	h := pathhierarchy.MakeSinglePath("parent.tar").AppendSingle("x.txt")
	s := New(parent, h, "x.txt")
	if _, err := s.Read(make([]byte, 1)); err != nil {
		t.Fatalf("Read: %v", err)
	}
	parent.currentName = "other.txt" // parent advanced past our entry
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if len(parent.skippedData) != 0 {
		t.Fatalf("expected no SkipData call, got %v", parent.skippedData)
	}
}

func TestStream_RewindReopensFromStart(t *testing.T) {
	t.Parallel()

	parent := newFakeParent(map[string]string{"x.txt": "hello"})
	h := pathhierarchy.MakeSinglePath("parent.tar").AppendSingle("x.txt")
	s := New(parent, h, "x.txt")

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
	if parent.rewound != 1 {
		t.Fatalf("expected parent.Rewind to be called once, got %d", parent.rewound)
	}
}

func TestStream_SeekUnsupported(t *testing.T) {
	t.Parallel()

	parent := newFakeParent(map[string]string{"x.txt": "hello"})
	h := pathhierarchy.MakeSinglePath("parent.tar").AppendSingle("x.txt")
	s := New(parent, h, "x.txt")
	if s.CanSeek() {
		t.Fatalf("expected CanSeek() false")
	}
	if _, err := s.Seek(0, io.SeekStart); !errors.Is(err, datastream.ErrSeekUnsupported) {
		t.Fatalf("Seek err = %v, want ErrSeekUnsupported", err)
	}
	if _, err := s.Tell(); !errors.Is(err, datastream.ErrSeekUnsupported) {
		t.Fatalf("Tell err = %v, want ErrSeekUnsupported", err)
	}
}
