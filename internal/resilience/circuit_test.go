package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(3, time.Hour)
	transient := NewTransientError(errors.New("503"), 503)

	for i := 0; i < 3; i++ {
		if !b.Allow() {
			t.Fatalf("call %d should be allowed", i)
		}
		b.Record(transient)
	}
	if b.Allow() {
		t.Error("circuit should be open after threshold failures")
	}
}

func TestBreaker_SuccessResets(t *testing.T) {
	b := NewBreaker(3, time.Hour)
	transient := NewTransientError(errors.New("503"), 503)

	b.Record(transient)
	b.Record(transient)
	b.Record(nil)
	b.Record(transient)
	b.Record(transient)
	if !b.Allow() {
		t.Error("success should have reset the failure count")
	}
}

func TestBreaker_PermanentDoesNotTrip(t *testing.T) {
	b := NewBreaker(2, time.Hour)
	permanent := NewPermanentError(errors.New("401"), 401)

	for i := 0; i < 10; i++ {
		b.Record(permanent)
	}
	if !b.Allow() {
		t.Error("permanent errors must not open the circuit")
	}
}

func TestBreaker_ProbeAfterReset(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)
	b.Record(NewTransientError(errors.New("503"), 503))
	if b.Allow() {
		t.Fatal("circuit should be open")
	}

	time.Sleep(15 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("probe should be admitted after reset timeout")
	}
	// Second concurrent probe rejected.
	if b.Allow() {
		t.Error("only one probe should be admitted")
	}

	b.Record(nil)
	if !b.Allow() {
		t.Error("successful probe should close the circuit")
	}
}
