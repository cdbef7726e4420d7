package mock

import (
	"fmt"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	serial "github.com/allbin/go-serial-bindings"
)

// Binding is a serial.Binding backed by a virtual port of a Registry.
// Every operation is queued on the registry's scheduler, so results are
// delivered in call order and never before the call returns.
type Binding struct {
	reg        *Registry
	disconnect serial.DisconnectFunc
	log        zerolog.Logger
	tunables   serial.Tunables
	stats      serial.Stats
	isOpen     atomic.Bool

	// scheduler only
	port    *virtualPort
	pending *pendingRead
	session uint64 // bumped on every open and close
}

type pendingRead struct {
	buf    []byte
	offset int
	length int
	f      *serial.Future[serial.ReadResult]
}

var _ serial.Binding = (*Binding)(nil)

// New returns a closed binding on reg. The logger and tunable options of
// the serial package apply; WithMechanism is ignored.
func New(reg *Registry, disconnect serial.DisconnectFunc, opts ...serial.BindingOption) (*Binding, error) {
	if disconnect == nil {
		return nil, serial.ErrMissingDisconnect
	}
	if reg == nil {
		return nil, fmt.Errorf("%w: %q is nil", serial.ErrInvalidArgument, "registry")
	}
	cfg := serial.NewBindingConfig(opts...)
	return &Binding{
		reg:        reg,
		disconnect: disconnect,
		log:        cfg.Logger.With().Str("component", "mock").Logger(),
		tunables:   cfg.Tunables,
	}, nil
}

func (b *Binding) IsOpen() bool {
	return b.isOpen.Load()
}

// Stats returns the operation counters of this binding.
func (b *Binding) Stats() *serial.Stats {
	return &b.stats
}

// run queues task, rejecting f if the registry no longer accepts work.
func (b *Binding) run(f interface{ Reject(error) }, task func()) {
	if err := b.reg.sched.post(task); err != nil {
		b.stats.Failures.Inc()
		go f.Reject(err)
	}
}

func reject[T any](b *Binding, f *serial.Future[T], op string, err error) {
	b.stats.Failures.Inc()
	b.log.Debug().Str("op", op).Err(err).Msg("rejected")
	f.Reject(err)
}

func (b *Binding) List() *serial.Future[[]serial.PortInfo] {
	f := serial.NewFuture[[]serial.PortInfo]()
	b.run(f, func() {
		f.Fulfill(b.reg.list())
	})
	return f
}

func (b *Binding) Open(path string, opts serial.OpenOptions) (*serial.Future[struct{}], error) {
	if err := serial.ValidateOpen(path, opts); err != nil {
		return nil, err
	}
	opts = opts.Normalize().Clone()
	opts.Tunables = serial.MergeTunables(b.tunables, opts.Tunables)

	f := serial.NewFuture[struct{}]()
	b.run(f, func() {
		p, ok := b.reg.ports[path]
		switch {
		case !ok:
			reject(b, f, "open", fmt.Errorf("%w: %s", serial.ErrPortNotFound, path))
			return
		case p.openOpts != nil && p.openOpts.Lock:
			reject(b, f, "open", fmt.Errorf("%w: %s", serial.ErrPortLocked, path))
			return
		case b.port != nil || p.holder != nil:
			reject(b, f, "open", serial.ErrAlreadyOpen)
			return
		}

		p.openOpts = &opts
		p.holder = b
		p.lines = serial.DefaultSetOptions()
		b.port = p
		b.session++
		b.isOpen.Store(true)
		b.stats.Opens.Inc()
		b.log.Debug().Str("path", path).Int("baud", opts.BaudRate).Msg("opened")
		f.Fulfill(struct{}{})

		if p.echo && len(p.readyData) > 0 {
			b.emitLater(p, append([]byte(nil), p.readyData...))
		}
	})
	return f, nil
}

func (b *Binding) Close() *serial.Future[struct{}] {
	f := serial.NewFuture[struct{}]()
	b.run(f, func() {
		p := b.port
		if p == nil {
			reject(b, f, "close", serial.ClosedPortError("close"))
			return
		}
		p.openOpts = nil
		p.data = nil
		if p.holder == b {
			p.holder = nil
		}
		b.port = nil
		b.session++
		b.isOpen.Store(false)
		b.stats.Closes.Inc()

		if pr := b.pending; pr != nil {
			b.pending = nil
			reject(b, pr.f, "read", serial.ClosedPortError("read"))
		}
		b.log.Debug().Str("path", p.info.Path).Msg("closed")
		f.Fulfill(struct{}{})
	})
	return f
}

// Read resolves with whatever the port has buffered, up to length bytes.
// When nothing is buffered the read waits for the next emitted data.
func (b *Binding) Read(buf []byte, offset, length int) (*serial.Future[serial.ReadResult], error) {
	if err := serial.ValidateRead(buf, offset, length); err != nil {
		return nil, err
	}
	f := serial.NewFuture[serial.ReadResult]()
	b.run(f, func() {
		switch {
		case b.port == nil:
			reject(b, f, "read", serial.ClosedPortError("read"))
			return
		case b.pending != nil:
			reject(b, f, "read", serial.ErrReadPending)
			return
		}
		b.pending = &pendingRead{buf: buf, offset: offset, length: length, f: f}
		b.drivePending()
	})
	return f, nil
}

// drivePending satisfies the pending read if the port has data.
func (b *Binding) drivePending() {
	pr := b.pending
	if pr == nil || b.port == nil || len(b.port.data) == 0 {
		return
	}
	b.pending = nil
	n := copy(pr.buf[pr.offset:pr.offset+pr.length], b.port.data)
	b.port.data = b.port.data[n:]
	if len(b.port.data) == 0 {
		b.port.data = nil
	}
	b.stats.RecordRead(n)
	pr.f.Fulfill(serial.ReadResult{BytesRead: n, Buffer: pr.buf})
}

// EmitData simulates data arriving from the device. It is dropped when
// the binding is not open.
func (b *Binding) EmitData(data []byte) {
	data = append([]byte(nil), data...)
	if err := b.reg.sched.post(func() {
		if b.port != nil {
			b.reg.emit(b.port, data)
		}
	}); err != nil {
		b.log.Warn().Err(err).Msg("emit dropped")
	}
}

// emitLater queues data for p as a follow-up task. The data is dropped if
// the session that produced it has ended by the time the task runs.
// Scheduler only.
func (b *Binding) emitLater(p *virtualPort, data []byte) {
	session := b.session
	b.reg.post(func() {
		if b.port == p && b.session == session {
			b.reg.emit(p, data)
		}
	})
}

func (b *Binding) Write(data []byte) (*serial.Future[struct{}], error) {
	if err := serial.ValidateWrite(data); err != nil {
		return nil, err
	}
	data = append([]byte{}, data...)
	f := serial.NewFuture[struct{}]()
	b.run(f, func() {
		p := b.port
		if p == nil {
			reject(b, f, "write", serial.ClosedPortError("write"))
			return
		}
		p.lastWrite = data
		b.stats.RecordWrite(len(data))
		f.Fulfill(struct{}{})
		if p.echo {
			b.emitLater(p, data)
		}
	})
	return f, nil
}

func (b *Binding) Update(opts serial.UpdateOptions) (*serial.Future[struct{}], error) {
	if err := serial.ValidateUpdate(opts); err != nil {
		return nil, err
	}
	return b.whileOpen("update", func(p *virtualPort) {
		p.openOpts.BaudRate = opts.BaudRate
	}), nil
}

func (b *Binding) Set(opts serial.SetOptions) (*serial.Future[struct{}], error) {
	if err := serial.ValidateSet(opts); err != nil {
		return nil, err
	}
	return b.whileOpen("set", func(p *virtualPort) {
		p.lines = opts
	}), nil
}

// Get always reports CTS asserted and DSR and DCD clear.
func (b *Binding) Get() *serial.Future[serial.ModemStatus] {
	f := serial.NewFuture[serial.ModemStatus]()
	b.run(f, func() {
		if b.port == nil {
			reject(b, f, "get", serial.ClosedPortError("get"))
			return
		}
		f.Fulfill(serial.ModemStatus{CTS: true})
	})
	return f
}

func (b *Binding) Drain() *serial.Future[struct{}] {
	return b.whileOpen("drain", nil)
}

func (b *Binding) Flush() *serial.Future[struct{}] {
	return b.whileOpen("flush", nil)
}

// whileOpen queues apply against the open port, or rejects when closed.
func (b *Binding) whileOpen(op string, apply func(*virtualPort)) *serial.Future[struct{}] {
	f := serial.NewFuture[struct{}]()
	b.run(f, func() {
		if b.port == nil {
			reject(b, f, op, serial.ClosedPortError(op))
			return
		}
		if apply != nil {
			apply(b.port)
		}
		f.Fulfill(struct{}{})
	})
	return f
}

// Disconnect calls the disconnect callback with err, or with
// serial.ErrDisconnected when err is nil. The binding stays open.
func (b *Binding) Disconnect(err error) {
	if err == nil {
		err = serial.ErrDisconnected
	}
	b.stats.Disconnects.Inc()
	b.log.Debug().Err(err).Msg("disconnect")
	b.disconnect(err)
}
