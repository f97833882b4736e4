package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type testDoc struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestMemoryStorageDocumentRoundTrip(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	if err := storage.Set(ctx, "doc", testDoc{Name: "a", Count: 3}, time.Minute); err != nil {
		t.Fatal(err)
	}
	var got testDoc
	if err := storage.Get(ctx, "doc", &got); err != nil {
		t.Fatal(err)
	}
	if got.Name != "a" || got.Count != 3 {
		t.Fatalf("unexpected document: %+v", got)
	}

	if err := storage.Delete(ctx, "doc"); err != nil {
		t.Fatal(err)
	}
	if err := storage.Get(ctx, "doc", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryStorageKeyExpiry(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	if err := storage.Set(ctx, "doc", testDoc{Name: "a"}, time.Minute); err != nil {
		t.Fatal(err)
	}
	if err := storage.Expire(ctx, "doc", time.Now().Add(-time.Second)); err != nil {
		t.Fatal(err)
	}
	var got testDoc
	if err := storage.Get(ctx, "doc", &got); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired key still readable: %v", err)
	}
}

func TestMemoryStorageIncrAttrCreatesField(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	n, err := storage.IncrAttr(ctx, "counters", "count", 1)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("first increment returned %d, want 1", n)
	}
	if n, _ = storage.IncrAttr(ctx, "counters", "count", 2); n != 3 {
		t.Fatalf("got %d, want 3", n)
	}
	var count int64
	if err := storage.GetAttr(ctx, "counters", "count", &count); err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("GetAttr returned %d, want 3", count)
	}
}

func TestMemoryStorageIncrAttrConcurrent(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := storage.IncrAttr(ctx, "counters", "count", 1); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	var count int64
	if err := storage.GetAttr(ctx, "counters", "count", &count); err != nil {
		t.Fatal(err)
	}
	if count != 50 {
		t.Fatalf("got %d, want 50", count)
	}
}

func TestMemoryStorageFieldExpiry(t *testing.T) {
	ctx := context.Background()
	storage := NewMemoryStorage()

	if err := storage.SetAttr(ctx, "h", "keep", "x"); err != nil {
		t.Fatal(err)
	}
	if err := storage.SetAttr(ctx, "h", "drop", "y"); err != nil {
		t.Fatal(err)
	}
	if err := storage.ExpireAttr(ctx, "h", time.Now().Add(-time.Second), "drop"); err != nil {
		t.Fatal(err)
	}

	var v string
	if err := storage.GetAttr(ctx, "h", "drop", &v); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired field still readable: %v", err)
	}
	if err := storage.GetAttr(ctx, "h", "keep", &v); err != nil || v != "x" {
		t.Fatalf("unexpired field lost: %q %v", v, err)
	}
}

func TestPrefixedStorageIsolation(t *testing.T) {
	ctx := context.Background()
	backing := NewMemoryStorage()
	a := StorageWithPrefix(backing, "a:")
	b := StorageWithPrefix(backing, "b:")

	if _, err := a.IncrAttr(ctx, "k", "count", 1); err != nil {
		t.Fatal(err)
	}
	var count int64
	if err := b.GetAttr(ctx, "k", "count", &count); !errors.Is(err, ErrNotFound) {
		t.Fatalf("prefixes share state: %v", err)
	}
	if err := backing.GetAttr(ctx, "a:k", "count", &count); err != nil || count != 1 {
		t.Fatalf("prefixed write not visible at full key: %d %v", count, err)
	}
}

func TestTypedStore(t *testing.T) {
	ctx := context.Background()
	docs := New[testDoc](NewMemoryStorage(), "doc:")

	if err := docs.Set(ctx, "1", testDoc{Name: "a", Count: 1}, time.Minute); err != nil {
		t.Fatal(err)
	}
	got, err := docs.Get(ctx, "1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "a" || got.Count != 1 {
		t.Fatalf("unexpected document: %+v", got)
	}
	if _, err := docs.Get(ctx, "2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
