package fault

import (
	"sync"
	"testing"

	"github.com/carlodf/archtrav/pathhierarchy"
)

func TestRegister_ReplacesPrevious(t *testing.T) {
	defer Register(nil)

	var got1, got2 []Fault
	Register(func(f Fault) { got1 = append(got1, f) })
	Report(pathhierarchy.MakeSinglePath("a"), "first", "")
	if len(got1) != 1 {
		t.Fatalf("expected first callback to observe 1 fault, got %d", len(got1))
	}

	Register(func(f Fault) { got2 = append(got2, f) })
	Report(pathhierarchy.MakeSinglePath("b"), "second", "")
	if len(got1) != 1 {
		t.Fatalf("old callback should not have been invoked again, got %d", len(got1))
	}
	if len(got2) != 1 || got2[0].Message != "second" {
		t.Fatalf("new callback should have observed the second fault, got %+v", got2)
	}
}

func TestRegister_NilClears(t *testing.T) {
	defer Register(nil)

	called := false
	Register(func(Fault) { called = true })
	Register(nil)
	Report(pathhierarchy.MakeSinglePath("a"), "msg", "")
	if called {
		t.Fatalf("callback should not be invoked after being cleared")
	}
}

func TestReport_NoCallback_DoesNotPanic(t *testing.T) {
	Register(nil)
	Report(pathhierarchy.MakeSinglePath("a"), "msg", "ENOENT")
}

func TestReport_FaultFields(t *testing.T) {
	defer Register(nil)

	var got Fault
	Register(func(f Fault) { got = f })
	h := pathhierarchy.MakeSinglePath("root.tar").AppendSingle("inner")
	Report(h, "boom", "EIO")
	if got.Message != "boom" || got.Errno != "EIO" {
		t.Fatalf("got = %+v", got)
	}
	if !got.Hierarchy.Equal(h) {
		t.Fatalf("Hierarchy = %v, want %v", got.Hierarchy.Display(), h.Display())
	}
}

func TestRegister_ConcurrentReportsDoNotRace(t *testing.T) {
	defer Register(nil)

	var mu sync.Mutex
	count := 0
	Register(func(Fault) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			Report(pathhierarchy.MakeSinglePath("x"), "concurrent", "")
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if count != 32 {
		t.Fatalf("count = %d, want 32", count)
	}
}
