package genx

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Hua914255/media/pkg/buffer"
)

type Status int

const (
	StatusOK Status = iota
	StatusDone
	StatusTruncated
	StatusBlocked
	StatusError
)

type StreamEvent struct {
	Chunk   *MessageChunk
	Status  Status
	Usage   Usage
	Refusal string
	Error   error
}

// StreamBuilder is the producer side of a Stream. A puller goroutine adds
// chunks and finishes with exactly one of Done, Truncated, Blocked,
// Unexpected or Abort.
type StreamBuilder struct {
	rb *buffer.BlockBuffer[*StreamEvent]

	closeOnce sync.Once
	onClose   func()
}

func NewStreamBuilder(size int) *StreamBuilder {
	return &StreamBuilder{
		rb: buffer.BlockN[*StreamEvent](size),
	}
}

// OnClose registers fn to run once when the consumer closes the stream,
// typically the cancel func of the upstream request.
func (sb *StreamBuilder) OnClose(fn func()) {
	sb.onClose = fn
}

func (sb *StreamBuilder) Done(stats Usage) error {
	return sb.finish(&StreamEvent{
		Status: StatusDone,
		Usage:  stats,
	})
}

func (sb *StreamBuilder) Truncated(stats Usage) error {
	return sb.finish(&StreamEvent{
		Status: StatusTruncated,
		Usage:  stats,
	})
}

func (sb *StreamBuilder) Blocked(stats Usage, refusal string) error {
	return sb.finish(&StreamEvent{
		Status:  StatusBlocked,
		Usage:   stats,
		Refusal: refusal,
	})
}

func (sb *StreamBuilder) Unexpected(stats Usage, err error) error {
	return sb.finish(&StreamEvent{
		Status: StatusError,
		Usage:  stats,
		Error:  err,
	})
}

func (sb *StreamBuilder) finish(evt *StreamEvent) error {
	if err := sb.rb.Add(evt); err != nil {
		return err
	}
	return sb.rb.CloseWrite()
}

func (sb *StreamBuilder) Add(chunks ...*MessageChunk) error {
	for _, c := range chunks {
		if err := sb.rb.Add(&StreamEvent{Chunk: c}); err != nil {
			return err
		}
	}
	return nil
}

// Abort fails the stream with err. Buffered chunks are discarded.
func (sb *StreamBuilder) Abort(err error) error {
	return sb.rb.CloseWithError(err)
}

func (sb *StreamBuilder) Stream() Stream {
	return (*streamImpl)(sb)
}

type streamImpl StreamBuilder

func (s *streamImpl) Next() (*MessageChunk, error) {
	evt, err := s.rb.Next()
	if err != nil {
		if errors.Is(err, buffer.ErrIteratorDone) {
			return nil, Done(Usage{})
		}
		return nil, err
	}
	switch evt.Status {
	case StatusOK:
		return evt.Chunk, nil
	case StatusDone:
		err = Done(evt.Usage)
	case StatusTruncated:
		err = Truncated(evt.Usage)
	case StatusBlocked:
		err = Blocked(evt.Usage, evt.Refusal)
	case StatusError:
		err = Error(evt.Usage, evt.Error)
	default:
		err = fmt.Errorf("unexpected stream status: %v", evt.Status)
	}
	s.rb.CloseWithError(err)
	return nil, err
}

func (s *streamImpl) Close() error {
	return s.CloseWithError(nil)
}

func (s *streamImpl) CloseWithError(err error) error {
	s.closeOnce.Do(func() {
		if s.onClose != nil {
			s.onClose()
		}
	})
	return s.rb.CloseWithError(err)
}
