package datastream

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/carlodf/archtrav/pathhierarchy"
)

func TestFileStream_ReadRewind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	s := NewFileStream(pathhierarchy.MakeSinglePath(path), path)
	got, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "hello world" {
		t.Fatalf("content = %q", got)
	}
	if !s.AtEnd() {
		t.Fatalf("expected AtEnd() after full read")
	}

	if err := s.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if s.AtEnd() {
		t.Fatalf("expected AtEnd() to reset after Rewind")
	}
	got2, err := io.ReadAll(s)
	if err != nil {
		t.Fatalf("ReadAll after rewind: %v", err)
	}
	if string(got2) != "hello world" {
		t.Fatalf("content after rewind = %q", got2)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestFileStream_SeekAndTell(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("0123456789"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := NewFileStream(pathhierarchy.MakeSinglePath(path), path)
	defer s.Close()

	if !s.CanSeek() {
		t.Fatalf("expected CanSeek() true for a file stream")
	}
	off, err := s.Seek(5, io.SeekStart)
	if err != nil || off != 5 {
		t.Fatalf("Seek = (%d, %v)", off, err)
	}
	buf := make([]byte, 2)
	n, err := s.Read(buf)
	if err != nil || n != 2 || string(buf) != "56" {
		t.Fatalf("Read after seek = (%d, %q, %v)", n, buf, err)
	}
	tell, err := s.Tell()
	if err != nil || tell != 7 {
		t.Fatalf("Tell = (%d, %v), want 7", tell, err)
	}
}

func TestFileStream_OpenErrorReportsFault(t *testing.T) {
	var faults int
	fault := faultRecorder(t, &faults)
	defer fault()

	s := NewFileStream(pathhierarchy.MakeSinglePath("/nonexistent/path/x"), "/nonexistent/path/x")
	_, err := s.Read(make([]byte, 1))
	if err == nil {
		t.Fatalf("expected error opening nonexistent file")
	}
	if faults != 1 {
		t.Fatalf("expected exactly one fault, got %d", faults)
	}
}

func TestFileStream_Size(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("abcd"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	s := NewFileStream(pathhierarchy.MakeSinglePath(path), path)
	size, err := s.Size()
	if err != nil || size != 4 {
		t.Fatalf("Size() = (%d, %v), want (4, nil)", size, err)
	}
}
