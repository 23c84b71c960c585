// Package buffer provides a bounded, blocking FIFO used to hand elements
// from a producer goroutine (an upstream puller) to a consumer.
package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrIteratorDone is returned by Next once the write side is closed and all
// elements have been consumed.
var ErrIteratorDone = errors.New("buffer: iterator done")

// BlockBuffer is a thread-safe fixed-size circular queue. Add blocks while
// the queue is full and Next blocks while it is empty.
type BlockBuffer[T any] struct {
	cond *sync.Cond

	mu         sync.Mutex
	buf        []T
	head, tail int64
	closeWrite bool
	closeErr   error
}

// BlockN creates a new BlockBuffer holding at most size elements.
func BlockN[T any](size int) *BlockBuffer[T] {
	if size <= 0 {
		size = 1
	}
	bb := &BlockBuffer[T]{buf: make([]T, size)}
	bb.cond = sync.NewCond(&bb.mu)
	return bb
}

// Add appends t, blocking while the buffer is full.
//
// Returns an error if the buffer is closed for writing or has been closed
// with an error.
func (bb *BlockBuffer[T]) Add(t T) error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if err := bb.writeErrLocked(); err != nil {
		return err
	}
	size := int64(len(bb.buf))
	for bb.tail-bb.head == size {
		bb.cond.Wait()
		if err := bb.writeErrLocked(); err != nil {
			return err
		}
	}
	bb.buf[bb.tail%size] = t
	bb.tail++
	bb.cond.Broadcast()
	return nil
}

func (bb *BlockBuffer[T]) writeErrLocked() error {
	if bb.closeErr != nil {
		return fmt.Errorf("buffer: write to closed buffer: %w", bb.closeErr)
	}
	if bb.closeWrite {
		return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	return nil
}

// Next removes and returns the oldest element, blocking while the buffer is
// empty. It returns ErrIteratorDone once the write side is closed and the
// buffer is drained, or the close error if the buffer was closed with one.
func (bb *BlockBuffer[T]) Next() (t T, err error) {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	for {
		if bb.closeErr != nil {
			return t, fmt.Errorf("buffer: read from closed buffer: %w", bb.closeErr)
		}
		if bb.head != bb.tail {
			break
		}
		if bb.closeWrite {
			return t, ErrIteratorDone
		}
		bb.cond.Wait()
	}
	size := int64(len(bb.buf))
	var zero T
	t, bb.buf[bb.head%size] = bb.buf[bb.head%size], zero
	bb.head++
	bb.cond.Broadcast()
	return t, nil
}

// Len returns the number of buffered elements.
func (bb *BlockBuffer[T]) Len() int {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return int(bb.tail - bb.head)
}

// CloseWrite closes the write side. Buffered elements can still be read;
// after that Next returns ErrIteratorDone.
func (bb *BlockBuffer[T]) CloseWrite() error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if bb.closeWrite {
		return nil
	}
	bb.closeWrite = true
	bb.cond.Broadcast()
	return nil
}

// CloseWithError closes both sides immediately. Pending and future calls
// fail with err (io.ErrClosedPipe when err is nil). Only the first close
// error is kept.
func (bb *BlockBuffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	bb.mu.Lock()
	defer bb.mu.Unlock()
	if bb.closeErr != nil {
		return nil
	}
	bb.closeErr = err
	bb.closeWrite = true
	bb.cond.Broadcast()
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe).
func (bb *BlockBuffer[T]) Close() error {
	return bb.CloseWithError(io.ErrClosedPipe)
}

// Error returns the error the buffer was closed with, if any.
func (bb *BlockBuffer[T]) Error() error {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return bb.closeErr
}
