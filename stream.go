package preload

import (
	"context"
	"errors"
	"io"
	"time"

	"golang.org/x/sync/errgroup"
)

const streamChunkSize = 16 << 10

// Chunk is a piece of one of the responses passed to Stream.
type Chunk struct {
	Response *Response
	// Body data. Empty for the first and the last chunk.
	Data []byte
	// Set on the first chunk of a response: its headers are available.
	First bool
	// Set on the last chunk of a response. No more chunks follow for it.
	Last bool
	// Set on the last chunk if the response failed, or timed out.
	Err error
}

// Stream yields the chunks of the given responses, in the order they arrive.
// For every response there is one First chunk, any number of data chunks, and one Last
// chunk; if the request failed the First chunk is skipped.
//
// A positive timeout bounds the time spent waiting for the responses; when it expires
// every unfinished response gets a Last chunk carrying context.DeadlineExceeded.
// The channel is closed once every response has had its Last chunk, or once ctx is done.
// The caller must drain the channel or cancel ctx.
func (c *Client) Stream(ctx context.Context, timeout time.Duration, responses ...*Response) <-chan Chunk {
	readCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		readCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	out := make(chan Chunk)
	var g errgroup.Group
	for _, res := range responses {
		if res == nil {
			continue
		}
		g.Go(func() error {
			return stream(ctx, readCtx, res, out)
		})
	}
	go func() {
		if err := g.Wait(); err != nil {
			c.log.Trace().Err(err).Msg("Stream stopped")
		}
		cancel()
		close(out)
	}()
	return out
}

// stream sends the chunks of a single response.
// Reads stop when readCtx is done; sends stop when ctx is done.
func stream(ctx, readCtx context.Context, res *Response, out chan<- Chunk) error {
	send := func(chunk Chunk) error {
		select {
		case out <- chunk:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r, err := res.NewReader(readCtx)
	if err != nil {
		return send(Chunk{Response: res, Last: true, Err: err})
	}
	if err := send(Chunk{Response: res, First: true}); err != nil {
		return err
	}
	for {
		p := make([]byte, streamChunkSize)
		n, err := r.Read(p)
		if n > 0 {
			if err := send(Chunk{Response: res, Data: p[:n]}); err != nil {
				return err
			}
		}
		if errors.Is(err, io.EOF) {
			return send(Chunk{Response: res, Last: true})
		}
		if err != nil {
			return send(Chunk{Response: res, Last: true, Err: err})
		}
	}
}
