package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
	"time"
)

// writerOptions sizes the async pipeline. Zero values fall back to
// defaults; see LoggingConfig for the user-facing knobs.
type writerOptions struct {
	queueLen   int
	bufSize    int
	flushEvery time.Duration
}

func (o writerOptions) withDefaults() writerOptions {
	if o.queueLen <= 0 {
		o.queueLen = 256
	}
	if o.bufSize <= 0 {
		o.bufSize = 64 * 1024
	}
	if o.flushEvery <= 0 {
		o.flushEvery = 500 * time.Millisecond
	}
	return o
}

// asyncWriter decouples log record emission from sink I/O: records are
// queued, buffered per sink, and flushed periodically rather than per
// record. Explicit Flush and Close force the buffers out.
type asyncWriter struct {
	in     chan []byte
	syncCh chan chan error
	closed chan struct{}
	stop   sync.Once

	flushEvery time.Duration

	mu    sync.Mutex
	outs  []*bufio.Writer
	fail  error
	dirty bool
}

func newAsyncWriter(writers []io.Writer, opts writerOptions) *asyncWriter {
	opts = opts.withDefaults()
	outs := make([]*bufio.Writer, 0, len(writers))
	for _, w := range writers {
		if w == nil {
			continue
		}
		outs = append(outs, bufio.NewWriterSize(w, opts.bufSize))
	}
	aw := &asyncWriter{
		in:         make(chan []byte, opts.queueLen),
		syncCh:     make(chan chan error),
		closed:     make(chan struct{}),
		flushEvery: opts.flushEvery,
		outs:       outs,
	}
	go aw.run()
	return aw
}

func (w *asyncWriter) run() {
	ticker := time.NewTicker(w.flushEvery)
	defer ticker.Stop()
	for {
		select {
		case p, ok := <-w.in:
			if !ok {
				w.recordErr(w.flush())
				close(w.closed)
				return
			}
			w.recordErr(w.buffer(p))
		case <-ticker.C:
			if w.hasDirty() {
				w.recordErr(w.flush())
			}
		case ack := <-w.syncCh:
			ack <- w.flush()
		}
	}
}

// Write enqueues the record. It blocks when the queue is saturated so
// records are never dropped.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.err(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	select {
	case <-w.closed:
		return errors.New("logger: writer closed")
	default:
	}
	record := make([]byte, len(p))
	copy(record, p)
	w.in <- record
	return nil
}

// Flush forces buffered content out to every sink.
func (w *asyncWriter) Flush() error {
	ack := make(chan error, 1)
	select {
	case w.syncCh <- ack:
		return <-ack
	case <-w.closed:
		return w.err()
	}
}

// Close drains the queue, flushes, and reports the first write error.
func (w *asyncWriter) Close() error {
	w.stop.Do(func() { close(w.in) })
	<-w.closed
	return w.err()
}

func (w *asyncWriter) buffer(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, out := range w.outs {
		if _, err := out.Write(p); err != nil {
			return err
		}
	}
	w.dirty = true
	return nil
}

func (w *asyncWriter) flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	var errs []error
	for _, out := range w.outs {
		if err := out.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	w.dirty = false
	return errors.Join(errs...)
}

func (w *asyncWriter) hasDirty() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dirty
}

func (w *asyncWriter) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fail
}

func (w *asyncWriter) recordErr(err error) {
	if err == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail == nil {
		w.fail = err
	}
}
