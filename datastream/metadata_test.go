package datastream

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCollectMetadata_OmitsUnrequestedKeys(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	size, kind, meta := CollectMetadata(path, NewAllowedKeys([]string{"size"}))
	if size != 5 {
		t.Fatalf("size = %d, want 5", size)
	}
	if kind != KindFile {
		t.Fatalf("kind = %v, want file", kind)
	}
	if _, ok := meta["pathname"]; ok {
		t.Fatalf("did not request pathname but got it: %v", meta)
	}
	if v, ok := meta["size"]; !ok || v != int64(5) {
		t.Fatalf("meta[size] = %v, want 5", v)
	}
}

func TestCollectMetadata_Directory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	_, kind, _ := CollectMetadata(dir, NewAllowedKeys([]string{"filetype"}))
	if kind != KindDirectory {
		t.Fatalf("kind = %v, want directory", kind)
	}
}

func TestCollectMetadata_NonexistentPath_NoPanic(t *testing.T) {
	t.Parallel()

	size, kind, meta := CollectMetadata(filepath.Join(t.TempDir(), "missing"), NewAllowedKeys([]string{"size", "pathname"}))
	if size != 0 || kind != KindFile {
		t.Fatalf("size=%d kind=%v for missing path, want zero values", size, kind)
	}
	if meta == nil {
		t.Fatalf("expected non-nil empty map for missing path")
	}
}
