// Package stream relays a pull-based byte source into a push-based sink
// through a fixed set of buffers, so a slow sink pauses the source.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Defaults used when Options leaves a field at zero.
const (
	DefaultChunkSize = 32 * 1024
	DefaultDepth     = 4
)

// Options bounds the memory used by Relay to ChunkSize * Depth bytes.
type Options struct {
	ChunkSize int
	Depth     int
}

// Flusher is implemented by sinks that buffer writes, such as HTTP responses.
type Flusher interface {
	Flush() error
}

// RelayError reports a failure after Written bytes already reached the sink.
type RelayError struct {
	Written int64
	Err     error
}

func (e *RelayError) Error() string {
	return fmt.Sprintf("relay failed after %d bytes: %v", e.Written, e.Err)
}

func (e *RelayError) Unwrap() error { return e.Err }

type chunk struct {
	buf []byte
	n   int
	err error
}

// Relay copies src into dst until src is exhausted, either side fails, or ctx
// is done. It takes ownership of src and closes it exactly once, as soon as
// Relay returns or ctx is done. The close runs in its own goroutine, so Relay
// never waits behind a Read that is still in flight.
func Relay(ctx context.Context, dst io.Writer, src io.ReadCloser, opts Options) (int64, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Depth <= 0 {
		opts.Depth = DefaultDepth
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	context.AfterFunc(ctx, func() { _ = src.Close() })

	free := make(chan []byte, opts.Depth)
	for i := 0; i < opts.Depth; i++ {
		free <- make([]byte, opts.ChunkSize)
	}
	full := make(chan chunk, opts.Depth)

	go func() {
		defer close(full)
		for {
			var buf []byte
			select {
			case buf = <-free:
			case <-ctx.Done():
				return
			}
			n, err := src.Read(buf)
			select {
			case full <- chunk{buf: buf, n: n, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	flusher, _ := dst.(Flusher)
	var written int64
	for {
		var c chunk
		var ok bool
		select {
		case c, ok = <-full:
		case <-ctx.Done():
			return written, relayErr(written, ctx.Err())
		}
		if !ok {
			return written, relayErr(written, ctx.Err())
		}

		if c.n > 0 {
			nw, err := dst.Write(c.buf[:c.n])
			written += int64(nw)
			if err != nil {
				return written, relayErr(written, err)
			}
			if flusher != nil {
				if err := flusher.Flush(); err != nil {
					return written, relayErr(written, err)
				}
			}
		}
		if c.err != nil {
			// A read failing because cancellation closed src is a cancellation.
			if ctx.Err() != nil {
				return written, relayErr(written, ctx.Err())
			}
			if errors.Is(c.err, io.EOF) {
				return written, nil
			}
			return written, relayErr(written, c.err)
		}
		free <- c.buf
	}
}

func relayErr(written int64, err error) error {
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	return &RelayError{Written: written, Err: err}
}
