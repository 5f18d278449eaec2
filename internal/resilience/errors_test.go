package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"transient wrapper", NewTransientError(errors.New("x"), 503), true},
		{"wrapped transient", fmt.Errorf("call: %w", NewTransientError(errors.New("x"), 429)), true},
		{"permanent wrapper", NewPermanentError(errors.New("x"), 401), false},
		{"permanent wins over message", NewPermanentError(errors.New("rate limit"), 400), false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"rate limit message", errors.New("429 rate limit exceeded"), true},
		{"plain error", errors.New("no such column"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestClassifyHTTPStatus(t *testing.T) {
	base := errors.New("boom")

	if err := ClassifyHTTPStatus(base, 503); !IsTransient(err) {
		t.Error("503 should classify transient")
	}
	if err := ClassifyHTTPStatus(base, 429); !IsTransient(err) {
		t.Error("429 should classify transient")
	}
	if err := ClassifyHTTPStatus(base, 401); !IsPermanent(err) {
		t.Error("401 should classify permanent")
	}
	if err := ClassifyHTTPStatus(base, 400); !IsPermanent(err) {
		t.Error("400 should classify permanent")
	}
	if err := ClassifyHTTPStatus(nil, 500); err != nil {
		t.Error("nil error stays nil")
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientHTTPStatus(code) {
			t.Errorf("status %d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		if IsTransientHTTPStatus(code) {
			t.Errorf("status %d should not be transient", code)
		}
	}
}
