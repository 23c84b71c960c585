package genx

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestDone(t *testing.T) {
	usage := Usage{
		PromptTokenCount:    100,
		GeneratedTokenCount: 50,
	}

	state := Done(usage)

	if state.Status() != StatusDone {
		t.Errorf("Status() = %v, want %v", state.Status(), StatusDone)
	}
	if state.Usage().PromptTokenCount != 100 {
		t.Errorf("Usage().PromptTokenCount = %d, want 100", state.Usage().PromptTokenCount)
	}
	if !errors.Is(state, ErrDone) {
		t.Errorf("errors.Is(Done, ErrDone) = false")
	}
	if state.Error() != "genx: generate done" {
		t.Errorf("Error() = %q, want %q", state.Error(), "genx: generate done")
	}
}

func TestBlocked(t *testing.T) {
	state := Blocked(Usage{}, "content policy violation")

	if state.Status() != StatusBlocked {
		t.Errorf("Status() = %v, want %v", state.Status(), StatusBlocked)
	}
	want := "genx: generate blocked: content policy violation"
	if state.Error() != want {
		t.Errorf("Error() = %q, want %q", state.Error(), want)
	}
}

func TestError(t *testing.T) {
	boom := errors.New("boom")
	state := Error(Usage{}, boom)

	if state.Status() != StatusError {
		t.Errorf("Status() = %v, want %v", state.Status(), StatusError)
	}
	if !errors.Is(state, boom) {
		t.Errorf("errors.Is(Error, boom) = false")
	}
}

func TestEndOfStream(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"done", Done(Usage{}), true},
		{"wrapped done", fmt.Errorf("read: %w", Done(Usage{})), true},
		{"sentinel", ErrDone, true},
		{"truncated", Truncated(Usage{}), true},
		{"blocked", Blocked(Usage{}, "safety"), true},
		{"generate error", Error(Usage{}, errors.New("bad finish")), false},
		{"transport", &TransportError{Op: "stream", Err: errors.New("reset")}, false},
		{"plain", errors.New("plain"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EndOfStream(tt.err); got != tt.want {
				t.Errorf("EndOfStream(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTransportError(t *testing.T) {
	err := fmt.Errorf("attempt 2: %w", &TransportError{Op: "call", Err: context.DeadlineExceeded})

	if !IsTransport(err) {
		t.Fatal("IsTransport() = false, want true")
	}
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatal("errors.As(*TransportError) = false")
	}
	if !te.Timeout() {
		t.Error("Timeout() = false, want true")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("errors.Is(DeadlineExceeded) = false")
	}
	if got, want := te.Error(), "genx: call: context deadline exceeded"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	if IsTransport(errors.New("plain")) {
		t.Error("IsTransport(plain) = true, want false")
	}
	refused := &TransportError{Op: "stream", Err: errors.New("connection refused")}
	if refused.Timeout() {
		t.Error("Timeout() = true for connection refused")
	}
}
