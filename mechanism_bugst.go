package serial

import (
	"errors"
	"fmt"
	"sync"
	"time"

	bugst "go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// bugstBreak is how long Set holds the line in break. The driver has no
// way to leave break asserted until a later call.
const bugstBreak = 250 * time.Millisecond

var errEndOfStream = errors.New("read returned no data")

// Bugst is a portable mechanism built on go.bug.st/serial. It is the
// default outside Linux.
type Bugst struct {
	open func(name string, mode *bugst.Mode) (bugst.Port, error)
}

var (
	_ Mechanism          = (*Bugst)(nil)
	_ DisconnectDetector = (*Bugst)(nil)
)

// NewBugstMechanism returns a mechanism backed by go.bug.st/serial.
func NewBugstMechanism() *Bugst {
	return &Bugst{open: bugst.Open}
}

func (m *Bugst) List() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		names, lerr := bugst.GetPortsList()
		if lerr != nil {
			return nil, fmt.Errorf("failed to list ports: %w", errors.Join(err, lerr))
		}
		ports := make([]PortInfo, 0, len(names))
		for _, name := range names {
			ports = append(ports, PortInfo{Path: name})
		}
		return ports, nil
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		info := PortInfo{Path: d.Name}
		applyPortDetails(&info, d)
		ports = append(ports, info)
	}
	return ports, nil
}

// bugstMode converts open options to the driver's mode.
func bugstMode(opts OpenOptions) (*bugst.Mode, error) {
	mode := &bugst.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		InitialStatusBits: &bugst.ModemOutputBits{
			DTR: true,
			RTS: true,
		},
	}
	switch opts.StopBits {
	case 2:
		mode.StopBits = bugst.TwoStopBits
	default:
		mode.StopBits = bugst.OneStopBit
	}
	switch opts.Parity {
	case ParityOdd:
		mode.Parity = bugst.OddParity
	case ParityEven:
		mode.Parity = bugst.EvenParity
	case ParityMark:
		mode.Parity = bugst.MarkParity
	case ParitySpace:
		mode.Parity = bugst.SpaceParity
	default:
		mode.Parity = bugst.NoParity
	}
	if opts.FlowControl != FlowControlNone {
		return nil, fmt.Errorf("%w: flow control %s", ErrNotImplemented, opts.FlowControl)
	}
	return mode, nil
}

func (m *Bugst) Open(path string, opts OpenOptions) (Handle, error) {
	mode, err := bugstMode(opts)
	if err != nil {
		return nil, err
	}
	p, err := m.open(path, mode)
	if err != nil {
		return nil, translateBugstError(path, err)
	}
	return &bugstPort{Port: p, mode: *mode}, nil
}

// bugstPort is the Handle of the bugst mechanism. It remembers the mode
// so Update can change the rate without resetting the framing.
type bugstPort struct {
	bugst.Port

	mu   sync.Mutex
	mode bugst.Mode
}

// translateBugstError maps driver error codes onto this package's errors.
func translateBugstError(path string, err error) error {
	var pe *bugst.PortError
	if !errors.As(err, &pe) {
		return err
	}
	switch pe.Code() {
	case bugst.PortNotFound:
		return fmt.Errorf("%w: %s: %w", ErrPortNotFound, path, err)
	case bugst.PortBusy:
		return fmt.Errorf("%w: %s: %w", ErrPortLocked, path, err)
	case bugst.PortClosed:
		return fmt.Errorf("%w: %w", ErrPortClosed, err)
	case bugst.InvalidSpeed:
		return fmt.Errorf("%w: %w", ErrInvalidBaudRate, err)
	case bugst.FunctionNotImplemented:
		return fmt.Errorf("%w: %w", ErrNotImplemented, err)
	}
	return err
}

func bugstHandle(h Handle) (*bugstPort, error) {
	p, ok := h.(*bugstPort)
	if !ok {
		return nil, invalidArgument("handle", "does not belong to the bugst mechanism")
	}
	return p, nil
}

func (m *Bugst) Close(h Handle) error {
	p, err := bugstHandle(h)
	if err != nil {
		return err
	}
	return translateBugstError("", p.Close())
}

func (m *Bugst) Read(h Handle, buf []byte) (int, error) {
	p, err := bugstHandle(h)
	if err != nil {
		return 0, err
	}
	n, err := p.Read(buf)
	if err != nil {
		return 0, translateBugstError("", err)
	}
	if n == 0 {
		return 0, errEndOfStream
	}
	return n, nil
}

func (m *Bugst) Write(h Handle, data []byte) error {
	p, err := bugstHandle(h)
	if err != nil {
		return err
	}
	for len(data) > 0 {
		n, err := p.Write(data)
		if err != nil {
			return translateBugstError("", err)
		}
		data = data[n:]
	}
	return nil
}

func (m *Bugst) Update(h Handle, opts UpdateOptions) error {
	p, err := bugstHandle(h)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	mode := p.mode
	mode.BaudRate = opts.BaudRate
	mode.InitialStatusBits = nil
	if err := p.SetMode(&mode); err != nil {
		return translateBugstError("", err)
	}
	p.mode = mode
	return nil
}

func (m *Bugst) Set(h Handle, opts SetOptions) error {
	p, err := bugstHandle(h)
	if err != nil {
		return err
	}
	if err := p.SetDTR(opts.DTR); err != nil {
		return fmt.Errorf("failed to set DTR: %w", translateBugstError("", err))
	}
	if err := p.SetRTS(opts.RTS); err != nil {
		return fmt.Errorf("failed to set RTS: %w", translateBugstError("", err))
	}
	if opts.Brk {
		if err := p.Break(bugstBreak); err != nil {
			return fmt.Errorf("failed to send break: %w", translateBugstError("", err))
		}
	}
	return nil
}

func (m *Bugst) Get(h Handle) (ModemStatus, error) {
	p, err := bugstHandle(h)
	if err != nil {
		return ModemStatus{}, err
	}
	bits, err := p.GetModemStatusBits()
	if err != nil {
		return ModemStatus{}, translateBugstError("", err)
	}
	return ModemStatus{CTS: bits.CTS, DSR: bits.DSR, DCD: bits.DCD}, nil
}

func (m *Bugst) Drain(h Handle) error {
	p, err := bugstHandle(h)
	if err != nil {
		return err
	}
	return translateBugstError("", p.Drain())
}

func (m *Bugst) Flush(h Handle) error {
	p, err := bugstHandle(h)
	if err != nil {
		return err
	}
	if err := p.ResetInputBuffer(); err != nil {
		return translateBugstError("", err)
	}
	return translateBugstError("", p.ResetOutputBuffer())
}

// IsDisconnect reports whether err came from a device that went away.
func (m *Bugst) IsDisconnect(err error) bool {
	return errors.Is(err, errEndOfStream)
}
