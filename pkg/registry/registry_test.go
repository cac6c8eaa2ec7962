package registry

import (
	"fmt"
	"sync"
	"testing"
)

func TestBaseRegistryRegisterAndGet(t *testing.T) {
	r := NewBaseRegistry[string]()

	if err := r.Register("a", "alpha"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	got, ok := r.Get("a")
	if !ok || got != "alpha" {
		t.Errorf("Get(a) = %q, %v; want alpha, true", got, ok)
	}

	if _, ok := r.Get("missing"); ok {
		t.Error("Get(missing) should report not found")
	}
}

func TestBaseRegistryDuplicate(t *testing.T) {
	r := NewBaseRegistry[int]()

	if err := r.Register("x", 1); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := r.Register("x", 2); err == nil {
		t.Error("duplicate Register should fail")
	}
	if err := r.Register("", 3); err == nil {
		t.Error("empty name should fail")
	}
}

func TestBaseRegistryNames(t *testing.T) {
	r := NewBaseRegistry[int]()
	for i, name := range []string{"c", "a", "b"} {
		if err := r.Register(name, i); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	names := r.Names()
	want := []string{"a", "b", "c"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %s, want %s", i, names[i], want[i])
		}
	}
}

func TestBaseRegistryRemoveAndClear(t *testing.T) {
	r := NewBaseRegistry[int]()
	_ = r.Register("x", 1)
	_ = r.Register("y", 2)

	if err := r.Remove("x"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := r.Remove("x"); err == nil {
		t.Error("Remove of missing item should fail")
	}
	if r.Count() != 1 {
		t.Errorf("Count = %d, want 1", r.Count())
	}

	r.Clear()
	if r.Count() != 0 {
		t.Errorf("Count after Clear = %d, want 0", r.Count())
	}
}

func TestBaseRegistryConcurrent(t *testing.T) {
	r := NewBaseRegistry[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = r.Register(fmt.Sprintf("item-%d", n), n)
			r.Get(fmt.Sprintf("item-%d", n))
			r.List()
		}(i)
	}
	wg.Wait()

	if r.Count() != 50 {
		t.Errorf("Count = %d, want 50", r.Count())
	}
}
