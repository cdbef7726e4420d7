package serial

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// Handle is the opaque resource a Mechanism returns from Open, such as a
// file descriptor or a driver port object.
type Handle any

// Mechanism is a native backend. Its methods block and report failures as
// plain errors; Delegating turns them into Futures. Open must return a
// non-nil, comparable Handle when it succeeds.
type Mechanism interface {
	List() ([]PortInfo, error)
	Open(path string, opts OpenOptions) (Handle, error)
	Close(h Handle) error
	Read(h Handle, buf []byte) (int, error)
	Write(h Handle, data []byte) error
	Update(h Handle, opts UpdateOptions) error
	Set(h Handle, opts SetOptions) error
	Get(h Handle) (ModemStatus, error)
	Drain(h Handle) error
	Flush(h Handle) error
}

// DisconnectDetector is implemented by mechanisms that can tell a removed
// device apart from other read failures.
type DisconnectDetector interface {
	IsDisconnect(err error) bool
}

// Delegating is a Binding that validates arguments and tracks the open
// handle, forwarding everything else to a Mechanism unchanged.
type Delegating struct {
	mech       Mechanism
	disconnect DisconnectFunc
	log        zerolog.Logger
	platform   Tunables
	tunables   Tunables
	stats      Stats

	mu      sync.Mutex
	handle  Handle
	path    string
	opening bool
	closing bool
	reading bool
	readEnd chan struct{} // closed once the in-flight read has settled
	isOpen  atomic.Bool
}

// Ensure Delegating implements Binding at compile time
var _ Binding = (*Delegating)(nil)

// NewDelegating returns a closed binding backed by m.
func NewDelegating(m Mechanism, disconnect DisconnectFunc, opts ...BindingOption) (*Delegating, error) {
	if disconnect == nil {
		return nil, ErrMissingDisconnect
	}
	if m == nil {
		return nil, invalidArgument("mechanism", "is nil")
	}
	cfg := NewBindingConfig(opts...)
	return &Delegating{
		mech:       m,
		disconnect: disconnect,
		log:        cfg.Logger.With().Str("component", "delegating").Logger(),
		tunables:   cfg.Tunables,
	}, nil
}

// IsOpen implements Binding.
func (b *Delegating) IsOpen() bool {
	return b.isOpen.Load()
}

// Path returns the path of the open port, or "" when closed.
func (b *Delegating) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.path
}

// Stats returns the operation counters of this binding.
func (b *Delegating) Stats() *Stats {
	return &b.stats
}

// List implements Binding.
func (b *Delegating) List() *Future[[]PortInfo] {
	f := NewFuture[[]PortInfo]()
	go func() {
		ports, err := b.mech.List()
		finish(b, f, "list", ports, err)
	}()
	return f
}

// Open implements Binding.
func (b *Delegating) Open(path string, opts OpenOptions) (*Future[struct{}], error) {
	if err := ValidateOpen(path, opts); err != nil {
		return nil, err
	}
	opts = opts.Normalize().Clone()
	opts.Tunables = MergeTunables(b.platform, b.tunables, opts.Tunables)

	f := NewFuture[struct{}]()
	b.mu.Lock()
	if b.handle != nil || b.opening {
		b.mu.Unlock()
		b.rejectLater(f, "open", ErrAlreadyOpen)
		return f, nil
	}
	b.opening = true
	b.mu.Unlock()

	b.log.Debug().Str("path", path).Int("baud", opts.BaudRate).Interface("tunables", opts.Tunables).Msg("opening")
	go func() {
		h, err := b.mech.Open(path, opts)
		b.mu.Lock()
		b.opening = false
		if err == nil {
			b.handle = h
			b.path = path
			b.isOpen.Store(true)
		}
		b.mu.Unlock()
		if err == nil {
			b.stats.Opens.Inc()
		}
		finish(b, f, "open", struct{}{}, err)
	}()
	return f, nil
}

// Close implements Binding.
func (b *Delegating) Close() *Future[struct{}] {
	f := NewFuture[struct{}]()
	b.mu.Lock()
	h := b.handle
	if h == nil || b.closing {
		b.mu.Unlock()
		b.rejectLater(f, "close", ClosedPortError("close"))
		return f
	}
	b.closing = true
	readEnd := b.readEnd
	b.mu.Unlock()

	go func() {
		err := b.mech.Close(h)
		if err == nil && readEnd != nil {
			<-readEnd
		}
		b.mu.Lock()
		b.closing = false
		if err == nil {
			b.handle = nil
			b.path = ""
			b.isOpen.Store(false)
		}
		b.mu.Unlock()
		if err == nil {
			b.stats.Closes.Inc()
		}
		finish(b, f, "close", struct{}{}, err)
	}()
	return f
}

// Read implements Binding.
func (b *Delegating) Read(buf []byte, offset, length int) (*Future[ReadResult], error) {
	if err := ValidateRead(buf, offset, length); err != nil {
		return nil, err
	}
	f := NewFuture[ReadResult]()
	b.mu.Lock()
	h := b.handle
	switch {
	case h == nil || b.closing:
		b.mu.Unlock()
		b.rejectLater(f, "read", ClosedPortError("read"))
		return f, nil
	case b.reading:
		b.mu.Unlock()
		b.rejectLater(f, "read", ErrReadPending)
		return f, nil
	}
	b.reading = true
	readEnd := make(chan struct{})
	b.readEnd = readEnd
	b.mu.Unlock()

	go func() {
		defer close(readEnd)
		n, err := b.mech.Read(h, buf[offset:offset+length])
		b.mu.Lock()
		b.reading = false
		closedUnder := b.closing || b.handle != h
		b.mu.Unlock()

		if err != nil {
			if d, ok := b.mech.(DisconnectDetector); ok && d.IsDisconnect(err) && !closedUnder {
				b.stats.Disconnects.Inc()
				b.log.Warn().Err(err).Msg("device disconnected")
				b.disconnect(err)
			}
			if closedUnder {
				err = fmt.Errorf("%w: read: %w", ErrPortClosed, err)
			}
			finish(b, f, "read", ReadResult{}, err)
			return
		}
		b.stats.RecordRead(n)
		finish(b, f, "read", ReadResult{BytesRead: n, Buffer: buf}, nil)
	}()
	return f, nil
}

// Write implements Binding.
func (b *Delegating) Write(data []byte) (*Future[struct{}], error) {
	if err := ValidateWrite(data); err != nil {
		return nil, err
	}
	data = append([]byte(nil), data...)
	return forward(b, "write", func(h Handle) (struct{}, error) {
		if err := b.mech.Write(h, data); err != nil {
			return struct{}{}, err
		}
		b.stats.RecordWrite(len(data))
		return struct{}{}, nil
	}), nil
}

// Update implements Binding.
func (b *Delegating) Update(opts UpdateOptions) (*Future[struct{}], error) {
	if err := ValidateUpdate(opts); err != nil {
		return nil, err
	}
	return forward(b, "update", func(h Handle) (struct{}, error) {
		return struct{}{}, b.mech.Update(h, opts)
	}), nil
}

// Set implements Binding.
func (b *Delegating) Set(opts SetOptions) (*Future[struct{}], error) {
	if err := ValidateSet(opts); err != nil {
		return nil, err
	}
	return forward(b, "set", func(h Handle) (struct{}, error) {
		return struct{}{}, b.mech.Set(h, opts)
	}), nil
}

// Get implements Binding.
func (b *Delegating) Get() *Future[ModemStatus] {
	return forward(b, "get", b.mech.Get)
}

// Drain implements Binding.
func (b *Delegating) Drain() *Future[struct{}] {
	return forward(b, "drain", func(h Handle) (struct{}, error) {
		return struct{}{}, b.mech.Drain(h)
	})
}

// Flush implements Binding.
func (b *Delegating) Flush() *Future[struct{}] {
	return forward(b, "flush", func(h Handle) (struct{}, error) {
		return struct{}{}, b.mech.Flush(h)
	})
}

// forward runs fn with the current handle on a new goroutine, or rejects
// with ErrPortClosed when there is no handle.
func forward[T any](b *Delegating, op string, fn func(Handle) (T, error)) *Future[T] {
	f := NewFuture[T]()
	b.mu.Lock()
	h := b.handle
	b.mu.Unlock()
	if h == nil {
		b.rejectLater(f, op, ClosedPortError(op))
		return f
	}
	go func() {
		v, err := fn(h)
		finish(b, f, op, v, err)
	}()
	return f
}

func (b *Delegating) rejectLater(f interface{ Reject(error) }, op string, err error) {
	b.stats.Failures.Inc()
	b.log.Debug().Str("op", op).Err(err).Msg("rejected")
	go f.Reject(err)
}

func finish[T any](b *Delegating, f *Future[T], op string, v T, err error) {
	if err != nil {
		b.stats.Failures.Inc()
		if !errors.Is(err, ErrPortClosed) {
			b.log.Warn().Str("op", op).Err(err).Msg("operation failed")
		}
	}
	f.Resolve(v, err)
}
