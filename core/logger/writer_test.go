package logger

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer guards a bytes.Buffer so the writer goroutine and the
// test can touch it concurrently.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestAsyncWriterFlushDeliversBufferedRecords(t *testing.T) {
	buf := &syncBuffer{}
	// A long interval keeps the ticker out of the way.
	aw := newAsyncWriter([]io.Writer{buf}, writerOptions{flushEvery: time.Hour})
	defer aw.Close()

	if err := aw.Write([]byte("first\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := aw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got := buf.String(); got != "first\n" {
		t.Fatalf("buf = %q, want first", got)
	}
}

func TestAsyncWriterPeriodicFlush(t *testing.T) {
	buf := &syncBuffer{}
	aw := newAsyncWriter([]io.Writer{buf}, writerOptions{flushEvery: 10 * time.Millisecond})
	defer aw.Close()

	if err := aw.Write([]byte("beat\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(buf.String(), "beat") {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("record not flushed within the interval")
}

func TestAsyncWriterCloseDrains(t *testing.T) {
	buf := &syncBuffer{}
	aw := newAsyncWriter([]io.Writer{buf}, writerOptions{flushEvery: time.Hour})

	for i := 0; i < 10; i++ {
		if err := aw.Write([]byte("line\n")); err != nil {
			t.Fatalf("Write #%d: %v", i, err)
		}
	}
	if err := aw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := strings.Count(buf.String(), "line"); got != 10 {
		t.Fatalf("flushed lines = %d, want 10", got)
	}
	if err := aw.Write([]byte("late\n")); err == nil {
		t.Fatal("expected error writing after Close")
	}
	// Closing twice is safe.
	if err := aw.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
