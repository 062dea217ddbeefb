package task

import (
	"errors"
	"testing"
	"time"
)

func TestSubmissionGateFirstAttempt(t *testing.T) {
	gate := NewSubmissionGate(60 * time.Second)

	if err := gate.TryAcquire(); err != nil {
		t.Fatalf("first acquire should succeed, got %v", err)
	}
}

func TestSubmissionGateRejectsWithinCooldown(t *testing.T) {
	now := time.Now()
	gate := NewSubmissionGate(60 * time.Second)
	gate.now = func() time.Time { return now }

	if err := gate.TryAcquire(); err != nil {
		t.Fatalf("first acquire should succeed, got %v", err)
	}

	now = now.Add(30 * time.Second)
	err := gate.TryAcquire()
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestSubmissionGateAllowsAfterCooldown(t *testing.T) {
	now := time.Now()
	gate := NewSubmissionGate(60 * time.Second)
	gate.now = func() time.Time { return now }

	if err := gate.TryAcquire(); err != nil {
		t.Fatalf("first acquire should succeed, got %v", err)
	}

	now = now.Add(61 * time.Second)
	if err := gate.TryAcquire(); err != nil {
		t.Fatalf("acquire after cooldown should succeed, got %v", err)
	}
}

func TestSubmissionGateConcurrentAttempts(t *testing.T) {
	gate := NewSubmissionGate(60 * time.Second)

	results := make(chan error, 10)
	for i := 0; i < 10; i++ {
		go func() {
			results <- gate.TryAcquire()
		}()
	}

	var admitted int
	for i := 0; i < 10; i++ {
		if err := <-results; err == nil {
			admitted++
		}
	}

	if admitted != 1 {
		t.Fatalf("expected exactly 1 admitted submission, got %d", admitted)
	}
}
