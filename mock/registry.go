package mock

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	serial "github.com/allbin/go-serial-bindings"
)

// DefaultManufacturer is reported by ports created without WithManufacturer.
const DefaultManufacturer = "The J5 Robotics Company"

// DefaultReadyData is sent by ports created without WithReadyData.
const DefaultReadyData = "READY"

// ErrRegistryClosed is returned once Registry.Close has been called.
var ErrRegistryClosed = errors.New("mock registry is closed")

// virtualPort is the in-memory device behind a path. Only scheduler tasks
// touch it.
type virtualPort struct {
	info      serial.PortInfo
	echo      bool
	readyData []byte

	data      []byte // received, not yet read
	lastWrite []byte
	lines     serial.SetOptions
	openOpts  *serial.OpenOptions // non-nil iff held open
	holder    *Binding
}

// PortOption configures a virtual port at creation.
type PortOption func(*virtualPort)

// WithEcho makes the port send back everything written to it. On by default.
func WithEcho(echo bool) PortOption {
	return func(p *virtualPort) { p.echo = echo }
}

// WithReadyData sets bytes the port sends once right after it is opened,
// replacing DefaultReadyData. Empty data sends nothing. They are only sent
// when echo is enabled.
func WithReadyData(data []byte) PortOption {
	return func(p *virtualPort) { p.readyData = append([]byte(nil), data...) }
}

// WithManufacturer sets the manufacturer reported by List.
func WithManufacturer(s string) PortOption {
	return func(p *virtualPort) { p.info.Manufacturer = s }
}

// WithSerialNumber sets the serial number reported by List.
func WithSerialNumber(s string) PortOption {
	return func(p *virtualPort) { p.info.SerialNumber = s }
}

// WithPnpID sets the plug and play id reported by List.
func WithPnpID(s string) PortOption {
	return func(p *virtualPort) { p.info.PnpID = s }
}

// WithLocationID sets the physical location reported by List.
func WithLocationID(s string) PortOption {
	return func(p *virtualPort) { p.info.LocationID = s }
}

// WithVendorID sets the USB vendor id reported by List.
func WithVendorID(s string) PortOption {
	return func(p *virtualPort) { p.info.VendorID = s }
}

// WithProductID sets the USB product id reported by List.
func WithProductID(s string) PortOption {
	return func(p *virtualPort) { p.info.ProductID = s }
}

// PortState is a copy of a virtual port's state, for inspection in tests.
type PortState struct {
	Info      serial.PortInfo
	Echo      bool
	ReadyData []byte
	Data      []byte
	LastWrite []byte
	Lines     serial.SetOptions

	// OpenOptions is nil unless the port is open.
	OpenOptions *serial.OpenOptions
}

// Registry owns a set of virtual ports and the scheduler every binding
// created against it runs on. The zero value is not usable; use NewRegistry.
type Registry struct {
	sched *scheduler
	log   zerolog.Logger

	ports map[string]*virtualPort
	order []string
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the logger port lifecycle events are written to.
func WithRegistryLogger(l zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry with a running scheduler. Call
// Close to stop it.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		log:   zerolog.Nop(),
		ports: make(map[string]*virtualPort),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With().Str("component", "mock").Logger()
	r.sched = newScheduler()
	return r
}

// CreatePort registers a virtual port at path. Creating an existing path
// replaces its record and keeps its place in List order.
func (r *Registry) CreatePort(path string, opts ...PortOption) error {
	if path == "" {
		return fmt.Errorf("%w: %q is not a valid port", serial.ErrInvalidArgument, "path")
	}
	p := &virtualPort{
		info:      serial.PortInfo{Path: path, Manufacturer: DefaultManufacturer},
		echo:      true,
		readyData: []byte(DefaultReadyData),
	}
	for _, opt := range opts {
		opt(p)
	}
	return r.sched.do(func() {
		if _, ok := r.ports[path]; !ok {
			r.order = append(r.order, path)
		}
		r.ports[path] = p
		r.log.Debug().Str("path", path).Bool("echo", p.echo).Msg("port created")
	})
}

// Reset removes every virtual port. Bindings that still hold a port keep
// their reference, but the port is no longer listed or openable.
func (r *Registry) Reset() error {
	return r.sched.do(func() {
		r.ports = make(map[string]*virtualPort)
		r.order = nil
		r.log.Debug().Msg("registry reset")
	})
}

// Snapshot returns a copy of the state of the port at path.
func (r *Registry) Snapshot(path string) (PortState, bool) {
	var (
		st PortState
		ok bool
	)
	err := r.sched.do(func() {
		var p *virtualPort
		if p, ok = r.ports[path]; ok {
			st = p.state()
		}
	})
	return st, err == nil && ok
}

// Settle waits until no work is queued, including echoes and ready data
// scheduled by earlier operations. Reads still waiting for data do not
// keep it from returning.
func (r *Registry) Settle(ctx context.Context) error {
	return r.sched.settle(ctx)
}

// Close stops the scheduler after running the work already queued.
// Operations issued afterwards are rejected with ErrRegistryClosed.
func (r *Registry) Close() {
	r.sched.close()
}

// list returns identity metadata in registration order. Scheduler only.
func (r *Registry) list() []serial.PortInfo {
	infos := make([]serial.PortInfo, 0, len(r.order))
	for _, path := range r.order {
		infos = append(infos, r.ports[path].info)
	}
	return infos
}

// emit appends data to p and wakes the reader waiting on it, if any.
// Data sent to a port that is not open is dropped. Scheduler only.
func (r *Registry) emit(p *virtualPort, data []byte) {
	if p.openOpts == nil || len(data) == 0 {
		return
	}
	p.data = append(p.data, data...)
	if h := p.holder; h != nil && h.pending != nil {
		r.post(h.drivePending)
	}
}

// post queues follow-up work from inside a task.
func (r *Registry) post(task func()) {
	if err := r.sched.post(task); err != nil {
		r.log.Warn().Err(err).Msg("dropped follow-up task")
	}
}

func (p *virtualPort) state() PortState {
	st := PortState{
		Info:      p.info,
		Echo:      p.echo,
		ReadyData: append([]byte(nil), p.readyData...),
		Data:      append([]byte(nil), p.data...),
		LastWrite: append([]byte(nil), p.lastWrite...),
		Lines:     p.lines,
	}
	if p.openOpts != nil {
		o := p.openOpts.Clone()
		st.OpenOptions = &o
	}
	return st
}
