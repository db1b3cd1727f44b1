package taskq

import (
	"testing"
	"time"
)

func TestBackoffCounterGrowsAndCaps(t *testing.T) {
	bc := backoffCounter{BackoffConfig{
		InitialInterval: 10 * time.Millisecond,
		MaxInterval:     100 * time.Millisecond,
		Multiplier:      2,
	}}

	d1, ok := bc.next(1)
	if !ok {
		t.Fatal("expected attempt 1 to be allowed")
	}
	if d1 != 10*time.Millisecond {
		t.Fatalf("expected first delay to equal InitialInterval, got %v", d1)
	}

	d2, ok := bc.next(2)
	if !ok {
		t.Fatal("expected attempt 2 to be allowed")
	}
	if d2 != 20*time.Millisecond {
		t.Fatalf("expected delay to double, got %v", d2)
	}

	d5, ok := bc.next(10)
	if !ok {
		t.Fatal("expected attempt 10 to be allowed with MaxRetries unset")
	}
	if d5 != 100*time.Millisecond {
		t.Fatalf("expected delay to cap at MaxInterval, got %v", d5)
	}
}

func TestBackoffCounterRespectsMaxRetries(t *testing.T) {
	bc := backoffCounter{BackoffConfig{
		MaxRetries:      3,
		InitialInterval: time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2,
	}}

	if _, ok := bc.next(3); !ok {
		t.Fatal("expected attempt == MaxRetries to be allowed")
	}
	if _, ok := bc.next(4); ok {
		t.Fatal("expected attempt > MaxRetries to stop retrying")
	}
}
