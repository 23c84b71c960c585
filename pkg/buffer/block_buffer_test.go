package buffer

import (
	"errors"
	"io"
	"testing"
	"time"
)

func TestBlockBuffer_FIFO(t *testing.T) {
	bb := BlockN[int](2)
	done := make(chan error, 1)
	go func() {
		for i := 1; i <= 5; i++ {
			if err := bb.Add(i); err != nil {
				done <- err
				return
			}
		}
		done <- bb.CloseWrite()
	}()

	for want := 1; want <= 5; want++ {
		got, err := bb.Next()
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		if got != want {
			t.Fatalf("Next() = %d, want %d", got, want)
		}
	}
	if _, err := bb.Next(); !errors.Is(err, ErrIteratorDone) {
		t.Fatalf("Next() after CloseWrite error = %v, want ErrIteratorDone", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("producer error = %v", err)
	}
}

func TestBlockBuffer_CloseWriteDrains(t *testing.T) {
	bb := BlockN[string](4)
	_ = bb.Add("a")
	_ = bb.Add("b")
	_ = bb.CloseWrite()

	if err := bb.Add("c"); !errors.Is(err, io.ErrClosedPipe) {
		t.Errorf("Add after CloseWrite error = %v, want io.ErrClosedPipe", err)
	}
	if bb.Len() != 2 {
		t.Errorf("Len() = %d, want 2", bb.Len())
	}
	for _, want := range []string{"a", "b"} {
		got, err := bb.Next()
		if err != nil || got != want {
			t.Fatalf("Next() = %q, %v; want %q", got, err, want)
		}
	}
}

func TestBlockBuffer_CloseWithErrorUnblocks(t *testing.T) {
	bb := BlockN[int](1)
	boom := errors.New("boom")

	errc := make(chan error, 1)
	go func() {
		_, err := bb.Next()
		errc <- err
	}()

	time.Sleep(10 * time.Millisecond)
	_ = bb.CloseWithError(boom)

	select {
	case err := <-errc:
		if !errors.Is(err, boom) {
			t.Fatalf("Next() error = %v, want %v", err, boom)
		}
	case <-time.After(time.Second):
		t.Fatal("Next() did not unblock after CloseWithError")
	}

	if err := bb.Add(1); !errors.Is(err, boom) {
		t.Errorf("Add after close error = %v, want %v", err, boom)
	}
	if !errors.Is(bb.Error(), boom) {
		t.Errorf("Error() = %v", bb.Error())
	}
	// First close error wins.
	_ = bb.Close()
	if !errors.Is(bb.Error(), boom) {
		t.Errorf("Error() after Close = %v, want %v", bb.Error(), boom)
	}
}

func TestBlockBuffer_AddBlocksWhenFull(t *testing.T) {
	bb := BlockN[int](1)
	if err := bb.Add(1); err != nil {
		t.Fatal(err)
	}

	added := make(chan struct{})
	go func() {
		_ = bb.Add(2)
		close(added)
	}()

	select {
	case <-added:
		t.Fatal("Add returned while buffer was full")
	case <-time.After(20 * time.Millisecond):
	}

	if v, _ := bb.Next(); v != 1 {
		t.Fatalf("Next() = %d, want 1", v)
	}
	select {
	case <-added:
	case <-time.After(time.Second):
		t.Fatal("Add did not unblock after Next")
	}
}
