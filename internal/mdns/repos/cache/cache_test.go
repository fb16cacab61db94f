package cache

import "testing"

type testEntry struct {
	Generation int
}

func TestTable_SetGet(t *testing.T) {
	table, err := New[testEntry](8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table.Set("alpha.local.|A|IN", testEntry{Generation: 1})

	got, ok := table.Get("alpha.local.|A|IN")
	if !ok {
		t.Fatalf("expected entry to be present")
	}
	if got.Generation != 1 {
		t.Errorf("Generation = %d, want 1", got.Generation)
	}
}

func TestTable_Delete(t *testing.T) {
	table, err := New[testEntry](8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table.Set("k", testEntry{})
	table.Delete("k")
	if _, ok := table.Get("k"); ok {
		t.Errorf("expected entry removed")
	}
}

func TestTable_LenAndKeys(t *testing.T) {
	table, err := New[testEntry](8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table.Set("a", testEntry{})
	table.Set("b", testEntry{})
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
	keys := table.Keys()
	if len(keys) != 2 {
		t.Errorf("Keys() returned %d keys, want 2", len(keys))
	}
}

func TestTable_Eviction(t *testing.T) {
	table, err := New[testEntry](1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	table.Set("a", testEntry{})
	table.Set("b", testEntry{})
	if _, ok := table.Get("a"); ok {
		t.Errorf("expected 'a' evicted once capacity exceeded")
	}
	if _, ok := table.Get("b"); !ok {
		t.Errorf("expected 'b' present")
	}
}
