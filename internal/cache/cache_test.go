package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)}
}

func TestGetOrComputeWithinTTL(t *testing.T) {
	clk := newClock()
	c := New[string, int]("test", WithClock(clk.Now))

	calls := 0
	compute := func(context.Context) (int, error) {
		calls++
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		got, err := c.GetOrCompute(context.Background(), "k", time.Minute, compute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(42, got); diff != "" {
			t.Errorf("value mismatch (-want +got):\n%s", diff)
		}
		clk.Advance(20 * time.Second)
	}

	if diff := cmp.Diff(1, calls); diff != "" {
		t.Errorf("compute calls mismatch (-want +got):\n%s", diff)
	}
}

func TestGetOrComputeExpiry(t *testing.T) {
	tests := []struct {
		name      string
		advance   time.Duration
		wantCalls int
	}{
		{name: "exactly at ttl still fresh", advance: time.Minute, wantCalls: 1},
		{name: "past ttl recomputes", advance: time.Minute + time.Nanosecond, wantCalls: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clk := newClock()
			c := New[string, int]("test", WithClock(clk.Now))
			calls := 0
			compute := func(context.Context) (int, error) {
				calls++
				return calls, nil
			}

			if _, err := c.GetOrCompute(context.Background(), "k", time.Minute, compute); err != nil {
				t.Fatalf("first call: %v", err)
			}
			clk.Advance(tt.advance)
			got, err := c.GetOrCompute(context.Background(), "k", time.Minute, compute)
			if err != nil {
				t.Fatalf("second call: %v", err)
			}

			if diff := cmp.Diff(tt.wantCalls, calls); diff != "" {
				t.Errorf("compute calls mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.wantCalls, got); diff != "" {
				t.Errorf("value mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGetOrComputeErrorNotCached(t *testing.T) {
	c := New[string, string]("test")
	boom := errors.New("boom")

	calls := 0
	_, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (string, error) {
		calls++
		return "", boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	got, err := c.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff("ok", got); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(2, calls); diff != "" {
		t.Errorf("compute calls mismatch (-want +got):\n%s", diff)
	}
}

func TestGetOrComputeKeysIndependent(t *testing.T) {
	c := New[int64, int64]("test")
	for _, k := range []int64{1, 2, 1, 2} {
		got, err := c.GetOrCompute(context.Background(), k, time.Minute, func(context.Context) (int64, error) { return k * 10, nil })
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if diff := cmp.Diff(k*10, got); diff != "" {
			t.Errorf("value mismatch for key %d (-want +got):\n%s", k, diff)
		}
	}
	if diff := cmp.Diff(2, c.Len()); diff != "" {
		t.Errorf("Len mismatch (-want +got):\n%s", diff)
	}
}

func TestGetOrComputeConcurrentMissesCoalesced(t *testing.T) {
	c := New[string, int]("test")

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (int, error) {
		calls.Add(1)
		<-release
		return 7, nil
	}

	var wg sync.WaitGroup
	results := make(chan int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), "k", time.Minute, compute)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			results <- v
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for v := range results {
		if v != 7 {
			t.Errorf("expected 7, got %d", v)
		}
	}
	if diff := cmp.Diff(int32(1), calls.Load()); diff != "" {
		t.Errorf("compute calls mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidateAndObserver(t *testing.T) {
	var hits, misses int
	c := New[string, int]("named", WithObserver(func(name string, hit bool) {
		if name != "named" {
			t.Errorf("unexpected cache name %q", name)
		}
		if hit {
			hits++
		} else {
			misses++
		}
	}))

	compute := func(context.Context) (int, error) { return 1, nil }
	_, _ = c.GetOrCompute(context.Background(), "k", time.Minute, compute)
	_, _ = c.GetOrCompute(context.Background(), "k", time.Minute, compute)
	c.Invalidate("k")
	_, _ = c.GetOrCompute(context.Background(), "k", time.Minute, compute)

	if diff := cmp.Diff([2]int{1, 2}, [2]int{hits, misses}); diff != "" {
		t.Errorf("hits/misses mismatch (-want +got):\n%s", diff)
	}
}

func TestGetOrComputeCancelledCallerDoesNotFailOthers(t *testing.T) {
	c := New[string, int]("test")

	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (int, error) {
		close(started)
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-release:
			return 7, nil
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := c.GetOrCompute(ctx, "k", time.Minute, compute)
		first <- err
	}()
	<-started

	second := make(chan int, 1)
	go func() {
		v, err := c.GetOrCompute(context.Background(), "k", time.Minute, compute)
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		second <- v
	}()

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled for the cancelled caller, got %v", err)
	}
	close(release)

	if diff := cmp.Diff(7, <-second); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(1, c.Len()); diff != "" {
		t.Errorf("Len mismatch (-want +got):\n%s", diff)
	}
}
