package task

import (
	"path/filepath"
	"sync"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "tasks_results.json"))
}

func TestStoreAbsentFileReadsEmpty(t *testing.T) {
	store := newTestStore(t)

	records, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty store, got %d records", len(records))
	}

	count, err := store.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected count 0, got %d", count)
	}
}

func TestStorePutAndGet(t *testing.T) {
	store := newTestStore(t)

	rec := Record{Description: "business plan for coffee shop", Status: StatusProcessing}
	if err := store.Put("batch_abc", rec); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, ok, err := store.Get("batch_abc")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok {
		t.Fatal("record not found after put")
	}
	if got.Description != rec.Description || got.Status != StatusProcessing {
		t.Fatalf("unexpected record: %+v", got)
	}
	if got.Result != nil {
		t.Fatalf("result should be nil for a processing record, got %q", *got.Result)
	}
}

func TestStorePutReplacesExisting(t *testing.T) {
	store := newTestStore(t)

	if err := store.Put("batch_abc", Record{Description: "plan", Status: StatusProcessing}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	result := "Plan: open near the station."
	if err := store.Put("batch_abc", Record{
		Description: "plan",
		Status:      StatusCompleted,
		Result:      &result,
	}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	got, _, err := store.Get("batch_abc")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Result == nil || *got.Result != result {
		t.Fatalf("result not persisted: %+v", got)
	}
}

func TestStorePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks_results.json")

	first := NewStore(path)
	if err := first.Put("batch_abc", Record{Description: "report", Status: StatusFailed}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	second := NewStore(path)
	got, ok, err := second.Get("batch_abc")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !ok || got.Status != StatusFailed {
		t.Fatalf("record not visible through new store instance: %+v", got)
	}
}

func TestStoreUpdateAborted(t *testing.T) {
	store := newTestStore(t)

	if err := store.Put("batch_abc", Record{Description: "plan", Status: StatusProcessing}); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	wantErr := errTest
	err := store.Update(func(records map[string]Record) error {
		delete(records, "batch_abc")
		return wantErr
	})
	if err == nil {
		t.Fatal("expected update error")
	}

	// Aborted update must not persist its mutations.
	if _, ok, _ := store.Get("batch_abc"); !ok {
		t.Fatal("aborted update should not modify the store")
	}
}

func TestStoreConcurrentWrites(t *testing.T) {
	store := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := string(rune('a' + n%26))
			_ = store.Put("batch_"+id, Record{Description: "task", Status: StatusProcessing})
		}(i)
	}
	wg.Wait()

	records, err := store.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(records) == 0 {
		t.Fatal("expected records after concurrent writes")
	}
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "test error" }
