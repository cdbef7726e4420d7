package serial

import (
	"context"
	"io"
	"sync"
)

const connReadSize = 4096

// Conn is a blocking port object over any Binding. It satisfies
// io.ReadWriteCloser; the Context variants bound each call by ctx.
//
// Reads go through an internal buffer. When ctx ends while a read is
// outstanding the binding read stays pending and its data is returned by
// the next ReadContext.
type Conn struct {
	b Binding

	rmu      sync.Mutex
	rbuf     []byte
	pending  *Future[ReadResult]
	leftover []byte

	wmu sync.Mutex
}

var _ io.ReadWriteCloser = (*Conn)(nil)

// NewConn wraps an already opened binding.
func NewConn(b Binding) *Conn {
	return &Conn{b: b, rbuf: make([]byte, connReadSize)}
}

// OpenConn opens path on b and waits for the open to complete.
func OpenConn(ctx context.Context, b Binding, path string, opts OpenOptions) (*Conn, error) {
	f, err := b.Open(path, opts)
	if err != nil {
		return nil, err
	}
	if _, err := f.Wait(ctx); err != nil {
		return nil, err
	}
	return NewConn(b), nil
}

// Binding returns the underlying binding.
func (c *Conn) Binding() Binding {
	return c.b
}

func (c *Conn) Read(p []byte) (int, error) {
	return c.ReadContext(context.Background(), p)
}

// ReadContext blocks until at least one byte is available or ctx is done.
func (c *Conn) ReadContext(ctx context.Context, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	c.rmu.Lock()
	defer c.rmu.Unlock()

	if len(c.leftover) > 0 {
		n := copy(p, c.leftover)
		c.leftover = c.leftover[n:]
		return n, nil
	}

	if c.pending == nil {
		f, err := c.b.Read(c.rbuf, 0, len(c.rbuf))
		if err != nil {
			return 0, err
		}
		c.pending = f
	}

	select {
	case <-c.pending.Done():
	case <-ctx.Done():
		// keep the read for the next call
		return 0, ctx.Err()
	}
	res, err := c.pending.Wait(context.Background())
	c.pending = nil
	if err != nil {
		return 0, err
	}
	n := copy(p, c.rbuf[:res.BytesRead])
	c.leftover = c.rbuf[n:res.BytesRead]
	if len(c.leftover) > 0 {
		// rbuf is reused by the next binding read, so detach the rest
		c.leftover = append([]byte(nil), c.leftover...)
	}
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	return c.WriteContext(context.Background(), p)
}

// WriteContext writes all of p. The binding does not keep p, so it may be
// reused as soon as this returns, even when ctx ended first.
func (c *Conn) WriteContext(ctx context.Context, p []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	f, err := c.b.Write(p)
	if err != nil {
		return 0, err
	}
	if _, err := f.Wait(ctx); err != nil {
		return 0, err
	}
	return len(p), nil
}

// DrainContext waits until written data has been transmitted.
func (c *Conn) DrainContext(ctx context.Context) error {
	_, err := c.b.Drain().Wait(ctx)
	return err
}

func (c *Conn) Close() error {
	return c.CloseContext(context.Background())
}

// CloseContext closes the binding. A read left pending by an earlier
// cancelled call is rejected by the binding.
func (c *Conn) CloseContext(ctx context.Context) error {
	_, err := c.b.Close().Wait(ctx)
	return err
}
