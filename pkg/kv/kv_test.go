package kv_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Hua914255/media/pkg/kv"
)

func stores(t *testing.T) map[string]kv.Store {
	t.Helper()
	b, err := kv.NewBadger(kv.BadgerOptions{InMemory: true})
	if err != nil {
		t.Fatalf("NewBadger: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	sq, err := kv.NewSQLite(filepath.Join(t.TempDir(), "kv.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })
	return map[string]kv.Store{
		"memory": kv.NewMemory(),
		"badger": b,
		"sqlite": sq,
	}
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			key := kv.Key{"story", "abc", "meta"}

			if _, err := s.Get(ctx, key); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("Get missing error = %v, want ErrNotFound", err)
			}
			if err := s.Set(ctx, key, []byte("v1")); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if err := s.Set(ctx, key, []byte("v2")); err != nil {
				t.Fatalf("Set overwrite: %v", err)
			}
			got, err := s.Get(ctx, key)
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			if string(got) != "v2" {
				t.Errorf("Get = %q, want v2", got)
			}
		})
	}
}

func TestListOrderAndBoundary(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			err := s.BatchSet(ctx, []kv.Entry{
				{Key: kv.Key{"story", "a", "turn", "00000002"}, Value: []byte("2")},
				{Key: kv.Key{"story", "a", "turn", "00000001"}, Value: []byte("1")},
				{Key: kv.Key{"story", "ab", "turn", "00000001"}, Value: []byte("x")},
				{Key: kv.Key{"story", "a", "turn", "00000010"}, Value: []byte("10")},
			})
			if err != nil {
				t.Fatalf("BatchSet: %v", err)
			}

			var got []string
			for e, err := range s.List(ctx, kv.Key{"story", "a", "turn"}) {
				if err != nil {
					t.Fatalf("List: %v", err)
				}
				got = append(got, string(e.Value))
			}
			want := []string{"1", "2", "10"}
			if len(got) != len(want) {
				t.Fatalf("List = %v, want %v", got, want)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("List[%d] = %q, want %q", i, got[i], want[i])
				}
			}
		})
	}
}

func TestListDecodesKey(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s.Set(ctx, kv.Key{"story", "x", "meta"}, []byte("m"))
			for e, err := range s.List(ctx, kv.Key{"story"}) {
				if err != nil {
					t.Fatal(err)
				}
				if e.Key.String() != "story:x:meta" || len(e.Key) != 3 {
					t.Errorf("Key = %v", e.Key)
				}
			}
		})
	}
}

func TestMemoryValueIsolation(t *testing.T) {
	ctx := context.Background()
	s := kv.NewMemory()
	v := []byte("abc")
	s.Set(ctx, kv.Key{"k"}, v)
	v[0] = 'X'

	got, _ := s.Get(ctx, kv.Key{"k"})
	if string(got) != "abc" {
		t.Errorf("stored value mutated: %q", got)
	}
	got[1] = 'Y'
	again, _ := s.Get(ctx, kv.Key{"k"})
	if string(again) != "abc" {
		t.Errorf("returned value aliases storage: %q", again)
	}
}

func TestNewBadgerRequiresDir(t *testing.T) {
	if _, err := kv.NewBadger(kv.BadgerOptions{}); err == nil {
		t.Fatal("NewBadger without Dir error = nil")
	}
}
