package screencap

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorSentinelMatching(t *testing.T) {
	tests := []struct {
		err      error
		sentinel *Error
	}{
		{notAuthorized("permission denied", nil), ErrNotAuthorized},
		{sourceNotFound("display 9"), ErrSourceNotFound},
		{invalidConfigf("depth %d out of range", 9), ErrInvalidConfiguration},
		{captureFailed("engine died", errors.New("io error")), ErrCaptureFailed},
		{cancelled("stop raced start"), ErrCancelled},
	}
	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Errorf("errors.Is(%v, %v) = false", tt.err, tt.sentinel)
		}
	}

	// Codes never cross-match.
	if errors.Is(captureFailed("x", nil), ErrCancelled) {
		t.Error("capture failed matched cancelled sentinel")
	}
}

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("dlopen failed")
	err := captureFailed("engine start failed", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}

	wrapped := fmt.Errorf("session: %w", err)
	var cerr *Error
	if !errors.As(wrapped, &cerr) {
		t.Fatal("errors.As failed through wrapping")
	}
	if cerr.Code != ErrCodeCaptureFailed || cerr.Detail != "engine start failed" {
		t.Fatalf("unexpected error: %+v", cerr)
	}
}

func TestAsErrorNormalization(t *testing.T) {
	// Taxonomy errors pass through unchanged.
	orig := sourceNotFound("window 3")
	if got := asError(orig); got != orig {
		t.Fatalf("asError rewrapped a taxonomy error: %v", got)
	}

	// Anything else becomes a capture failure carrying the cause.
	plain := errors.New("boom")
	got := asError(plain)
	if got.Code != ErrCodeCaptureFailed {
		t.Fatalf("code = %v, want capture failed", got.Code)
	}
	if !errors.Is(got, plain) {
		t.Fatal("cause lost in normalization")
	}
}

func TestErrorMessageFormat(t *testing.T) {
	err := captureFailed("engine died", errors.New("io error"))
	want := "screencap: capture failed: engine died: io error"
	if got := err.Error(); got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
