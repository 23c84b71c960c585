package continuation

import (
	"errors"
	"testing"
)

func TestRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantErr bool
	}{
		{"default mode", Request{Rounds: 1}, false},
		{"max rounds", Request{Rounds: 10, Mode: ModeAIOnly}, false},
		{"human only", Request{Rounds: 3, Mode: ModeHumanOnly}, false},
		{"zero rounds", Request{Rounds: 0}, true},
		{"too many rounds", Request{Rounds: 11}, true},
		{"unknown mode", Request{Rounds: 1, Mode: "robot"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRequest) {
				t.Errorf("Validate() error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestRequest_ValidateDefaultsMode(t *testing.T) {
	req := Request{Rounds: 2}
	if err := req.Validate(); err != nil {
		t.Fatal(err)
	}
	if req.Mode != ModeHumanAI {
		t.Errorf("Mode = %q, want %q", req.Mode, ModeHumanAI)
	}
}

func TestState_String(t *testing.T) {
	if StateExhausted.String() != "exhausted" {
		t.Errorf("StateExhausted.String() = %q", StateExhausted.String())
	}
	if State(99).String() != "unknown" {
		t.Errorf("State(99).String() = %q", State(99).String())
	}
	if StateAccumulating.Terminal() || !StateCancelled.Terminal() {
		t.Error("Terminal() misclassifies states")
	}
}

func TestState_TextRoundTrip(t *testing.T) {
	for s := StateRequesting; s <= StateOffline; s++ {
		b, _ := s.MarshalText()
		var got State
		if err := got.UnmarshalText(b); err != nil || got != s {
			t.Errorf("UnmarshalText(%q) = %v, %v; want %v", b, got, err, s)
		}
	}
	var s State
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("UnmarshalText(bogus) error = nil")
	}
}
