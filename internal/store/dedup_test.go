package store

import (
	"sync"
	"testing"
	"time"
)

func TestDedupSeen(t *testing.T) {
	d := NewDedup(5 * time.Minute)

	if d.Seen("pending_pix", "5511987654321", "X1") {
		t.Fatal("first sighting reported as duplicate")
	}
	if !d.Seen("pending_pix", "5511987654321", "X1") {
		t.Fatal("second sighting not reported as duplicate")
	}

	// Different component in the composite key is a different event.
	if d.Seen("approved_sale", "5511987654321", "X1") {
		t.Fatal("different kind collided")
	}
	if d.Seen("pending_pix", "5511987654321", "X2") {
		t.Fatal("different order collided")
	}
	if d.Seen("pending_pix", "5511900000000", "X1") {
		t.Fatal("different customer collided")
	}
}

func TestDedupTTLExpiry(t *testing.T) {
	d := NewDedup(5 * time.Minute)
	current := time.Unix(1_700_000_000, 0)
	d.now = func() time.Time { return current }

	if d.Seen("pending_pix", "55119", "X1") {
		t.Fatal("first sighting reported as duplicate")
	}

	// Within the TTL it stays a duplicate.
	current = current.Add(4 * time.Minute)
	if !d.Seen("pending_pix", "55119", "X1") {
		t.Fatal("expected duplicate within TTL")
	}

	// Past the TTL the entry is discarded and the event reprocessed.
	current = current.Add(6 * time.Minute)
	if d.Seen("pending_pix", "55119", "X1") {
		t.Fatal("expected reprocessing after TTL expiry")
	}
}

func TestDedupSweep(t *testing.T) {
	d := NewDedup(5 * time.Minute)
	current := time.Unix(1_700_000_000, 0)
	d.now = func() time.Time { return current }

	d.Seen("a", "k", "1")
	d.Seen("b", "k", "2")
	if d.Size() != 2 {
		t.Fatalf("Size = %d", d.Size())
	}
	if removed := d.Sweep(current.Add(10 * time.Minute)); removed != 2 {
		t.Fatalf("Sweep removed %d, want 2", removed)
	}
	if d.Size() != 0 {
		t.Fatalf("Size after sweep = %d", d.Size())
	}
}

// Two identical deliveries racing must resolve to exactly one "new".
func TestDedupConcurrentCheckAndSet(t *testing.T) {
	d := NewDedup(time.Minute)

	const workers = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	fresh := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if !d.Seen("pending_pix", "5511987654321", "X1") {
				mu.Lock()
				fresh++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if fresh != 1 {
		t.Fatalf("fresh sightings = %d, want 1", fresh)
	}
}
