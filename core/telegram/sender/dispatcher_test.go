package sender

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestDispatcherPreservesPerChatOrder(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 32})
	defer d.Close()

	var mu sync.Mutex
	var got []int
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		n := i
		wg.Add(1)
		err := d.Enqueue(context.Background(), 7, func() error {
			defer wg.Done()
			mu.Lock()
			got = append(got, n)
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Enqueue #%d: %v", n, err)
		}
	}
	wg.Wait()

	for i, n := range got {
		if n != i {
			t.Fatalf("order violated at %d: %v", i, got)
		}
	}
}

func TestDispatcherDoReturnsJobError(t *testing.T) {
	d := NewDispatcher(Options{})
	defer d.Close()

	boom := errors.New("boom")
	err := d.Do(context.Background(), 1, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Do err = %v, want boom", err)
	}

	if err := d.Do(context.Background(), 1, func() error { return nil }); err != nil {
		t.Fatalf("Do after failure: %v", err)
	}
}

func TestDispatcherClosedQueue(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()

	err := d.Do(context.Background(), 1, func() error { return nil })
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("err = %v, want ErrQueueClosed", err)
	}
	if err := d.Enqueue(context.Background(), 1, func() error { return nil }); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("Enqueue err = %v, want ErrQueueClosed", err)
	}
	// Closing twice is safe.
	d.Close()
}

func TestDispatcherQueueFull(t *testing.T) {
	d := NewDispatcher(Options{QueueSize: 1})
	defer d.Close()

	release := make(chan struct{})
	if err := d.Enqueue(context.Background(), 2, func() error {
		<-release
		return nil
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	// Fill the single buffered slot, then expect rejection.
	var full bool
	for i := 0; i < 3; i++ {
		if err := d.Enqueue(context.Background(), 2, func() error { return nil }); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	close(release)
	if !full {
		t.Fatal("expected ErrQueueFull on saturated queue")
	}
}

func TestDispatcherChatsRunConcurrently(t *testing.T) {
	d := NewDispatcher(Options{})
	defer d.Close()

	block := make(chan struct{})
	if err := d.Enqueue(context.Background(), 1, func() error {
		<-block
		return nil
	}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	done := make(chan struct{})
	go func() {
		_ = d.Do(context.Background(), 2, func() error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("chat 2 blocked behind chat 1")
	}
	close(block)
}
