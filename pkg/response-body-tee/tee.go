package tee

import (
	"context"
	"io"
	"sync"
)

const chunkSize = 32 << 10

// Buffer saves a response body while it is being read from the origin.
// Any number of readers can consume the body from the start, concurrently with the
// download: readers block until more data arrives, the body is complete or their
// context is done.
type Buffer struct {
	mutex   sync.Mutex
	b       []byte
	err     error
	done    chan struct{}
	changed chan struct{}
}

// NewBuffer returns an empty, incomplete buffer.
func NewBuffer() *Buffer {
	return &Buffer{
		done:    make(chan struct{}),
		changed: make(chan struct{}),
	}
}

// ReadFrom copies r into the buffer until EOF or a read error.
// Reaching EOF completes the buffer; a read error completes it with that error,
// which readers will receive after the data saved so far.
// ReadFrom must be called at most once.
func (t *Buffer) ReadFrom(r io.Reader) (int64, error) {
	chunk := make([]byte, chunkSize)
	var total int64
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			t.write(chunk[:n])
			total += int64(n)
		}
		if err == io.EOF {
			t.CloseWithError(nil)
			return total, nil
		}
		if err != nil {
			t.CloseWithError(err)
			return total, err
		}
	}
}

// CloseWithError completes the buffer. With a nil error readers get io.EOF.
// Only the first call has an effect.
func (t *Buffer) CloseWithError(err error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	select {
	case <-t.done:
		return
	default:
	}
	t.err = err
	close(t.done)
	t.notify()
}

func (t *Buffer) write(p []byte) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.b = append(t.b, p...)
	t.notify()
}

// notify wakes up waiting readers. The mutex must be held.
func (t *Buffer) notify() {
	close(t.changed)
	t.changed = make(chan struct{})
}

// Done returns a channel that is closed once the body is complete.
func (t *Buffer) Done() <-chan struct{} {
	return t.done
}

// Len returns the number of bytes saved so far.
func (t *Buffer) Len() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.b)
}

// Bytes waits for the body to complete and returns it, together with the read error
// if the download failed. The returned slice is shared and must not be modified.
func (t *Buffer) Bytes(ctx context.Context) ([]byte, error) {
	select {
	case <-t.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.b, t.err
}

// NewReader returns a reader over the whole body, starting at the first byte.
func (t *Buffer) NewReader(ctx context.Context) io.Reader {
	return &reader{t: t, ctx: ctx}
}

type reader struct {
	t   *Buffer
	ctx context.Context
	off int
}

// Implementation of io.Reader
func (r *reader) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for {
		r.t.mutex.Lock()
		if r.off < len(r.t.b) {
			n := copy(p, r.t.b[r.off:])
			r.off += n
			r.t.mutex.Unlock()
			return n, nil
		}
		select {
		case <-r.t.done:
			err := r.t.err
			r.t.mutex.Unlock()
			if err == nil {
				err = io.EOF
			}
			return 0, err
		default:
		}
		changed := r.t.changed
		r.t.mutex.Unlock()

		select {
		case <-changed:
		case <-r.ctx.Done():
			return 0, r.ctx.Err()
		}
	}
}
