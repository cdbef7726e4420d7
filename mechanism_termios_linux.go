package serial

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

var errHangup = errors.New("device hung up")

// termiosPort is the Handle of the termios mechanism.
type termiosPort struct {
	fd   int
	wake [2]int // pipe that interrupts a blocked poll on close

	closeOnce sync.Once
	closed    chan struct{}

	// The fds stay open until the last call using them has returned, so a
	// poll never sees a number the process has already reused.
	mu       sync.Mutex
	users    int
	closing  bool
	released bool
}

// Termios drives ttys directly through termios ioctls.
type Termios struct {
	devDir string
}

var (
	_ Mechanism          = (*Termios)(nil)
	_ DisconnectDetector = (*Termios)(nil)
)

// NewTermiosMechanism returns the native Linux mechanism.
func NewTermiosMechanism() *Termios {
	return &Termios{devDir: "/dev"}
}

func (m *Termios) List() ([]PortInfo, error) {
	return listPorts(m.devDir)
}

func (m *Termios) Open(path string, opts OpenOptions) (Handle, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("%w: %s", ErrPortNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	if opts.Lock {
		if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
			unix.Close(fd)
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, fmt.Errorf("%w: %s", ErrPortLocked, path)
			}
			return nil, fmt.Errorf("failed to lock %s: %w", path, err)
		}
	}
	if err := configureTermios(fd, opts); err != nil {
		unix.Close(fd)
		return nil, err
	}

	p := &termiosPort{fd: fd, closed: make(chan struct{})}
	if err := unix.Pipe2(p.wake[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("failed to create wake pipe: %w", err)
	}
	return p, nil
}

// configureTermios puts fd in raw mode with the framing in opts.
func configureTermios(fd int, opts OpenOptions) error {
	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}

	t.Cflag = unix.CREAD | unix.CLOCAL
	t.Iflag = 0
	t.Oflag = 0
	t.Lflag = 0

	t.Cc[unix.VMIN] = ccValue(opts.Tunables.Int(TunableVMin, 1))
	t.Cc[unix.VTIME] = ccValue(opts.Tunables.Int(TunableVTime, 0))

	speed, err := speedFlag(opts.BaudRate)
	if err != nil {
		return err
	}
	t.Cflag |= speed
	t.Ispeed = speed
	t.Ospeed = speed

	switch opts.DataBits {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	default:
		t.Cflag |= unix.CS8
	}

	if opts.StopBits == 2 {
		t.Cflag |= unix.CSTOPB
	}

	switch opts.Parity {
	case ParityOdd:
		t.Cflag |= unix.PARENB | unix.PARODD
	case ParityEven:
		t.Cflag |= unix.PARENB
	case ParityMark:
		t.Cflag |= unix.PARENB | unix.CMSPAR | unix.PARODD
	case ParitySpace:
		t.Cflag |= unix.PARENB | unix.CMSPAR
	}

	switch opts.FlowControl {
	case FlowControlRTSCTS:
		t.Cflag |= unix.CRTSCTS
	case FlowControlXONXOFF:
		t.Iflag |= unix.IXON | unix.IXOFF
	}

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

func ccValue(v int) uint8 {
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// termiosHandle resolves h and registers the caller as a user of its fds.
// Every successful call must be paired with leave.
func termiosHandle(h Handle) (*termiosPort, error) {
	p, ok := h.(*termiosPort)
	if !ok {
		return nil, invalidArgument("handle", "does not belong to the termios mechanism")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closing {
		return nil, ErrPortClosed
	}
	p.users++
	return p, nil
}

func (p *termiosPort) leave() {
	p.mu.Lock()
	p.users--
	last := p.closing && p.users == 0 && !p.released
	if last {
		p.released = true
	}
	p.mu.Unlock()
	if last {
		p.release()
	}
}

func (p *termiosPort) release() error {
	err := unix.Close(p.fd)
	unix.Close(p.wake[0])
	unix.Close(p.wake[1])
	return err
}

// Close wakes any blocked Read. The fds are released here when the port is
// idle, otherwise by the last call still using them.
func (m *Termios) Close(h Handle) error {
	p, ok := h.(*termiosPort)
	if !ok {
		return invalidArgument("handle", "does not belong to the termios mechanism")
	}
	err := ErrPortClosed
	p.closeOnce.Do(func() {
		err = nil
		close(p.closed)
		unix.Write(p.wake[1], []byte{0})

		p.mu.Lock()
		p.closing = true
		idle := p.users == 0
		if idle {
			p.released = true
		}
		p.mu.Unlock()
		if idle {
			err = p.release()
		}
	})
	return err
}

// Read waits for the tty to become readable, then reads what is there.
func (m *Termios) Read(h Handle, buf []byte) (int, error) {
	p, err := termiosHandle(h)
	if err != nil {
		return 0, err
	}
	defer p.leave()
	fds := []unix.PollFd{
		{Fd: int32(p.fd), Events: unix.POLLIN},
		{Fd: int32(p.wake[0]), Events: unix.POLLIN},
	}
	for {
		select {
		case <-p.closed:
			return 0, ErrPortClosed
		default:
		}
		if _, err := unix.Poll(fds, -1); err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("poll: %w", err)
		}
		if fds[1].Revents != 0 {
			return 0, ErrPortClosed
		}
		rev := fds[0].Revents
		if rev&unix.POLLNVAL != 0 {
			return 0, ErrPortClosed
		}
		if rev&unix.POLLIN == 0 && rev&(unix.POLLHUP|unix.POLLERR) != 0 {
			return 0, errHangup
		}
		n, err := unix.Read(p.fd, buf)
		switch {
		case errors.Is(err, unix.EINTR), errors.Is(err, unix.EAGAIN):
			continue
		case err != nil:
			return 0, err
		case n == 0:
			return 0, errHangup
		}
		return n, nil
	}
}

func (m *Termios) Write(h Handle, data []byte) error {
	p, err := termiosHandle(h)
	if err != nil {
		return err
	}
	defer p.leave()
	for len(data) > 0 {
		n, err := unix.Write(p.fd, data)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return err
		}
		data = data[n:]
	}
	return nil
}

func (m *Termios) Update(h Handle, opts UpdateOptions) error {
	p, err := termiosHandle(h)
	if err != nil {
		return err
	}
	defer p.leave()
	speed, err := speedFlag(opts.BaudRate)
	if err != nil {
		return err
	}
	t, err := unix.IoctlGetTermios(p.fd, unix.TCGETS)
	if err != nil {
		return fmt.Errorf("failed to get termios: %w", err)
	}
	t.Cflag = (t.Cflag &^ unix.CBAUD) | speed
	t.Ispeed = speed
	t.Ospeed = speed
	if err := unix.IoctlSetTermios(p.fd, unix.TCSETS, t); err != nil {
		return fmt.Errorf("failed to set termios: %w", err)
	}
	return nil
}

// Set drives the output lines. CTS and DSR are inputs on a DTE and are
// ignored.
func (m *Termios) Set(h Handle, opts SetOptions) error {
	p, err := termiosHandle(h)
	if err != nil {
		return err
	}
	defer p.leave()
	if err := setModemBit(p.fd, unix.TIOCM_DTR, opts.DTR); err != nil {
		return fmt.Errorf("failed to set DTR: %w", err)
	}
	if err := setModemBit(p.fd, unix.TIOCM_RTS, opts.RTS); err != nil {
		return fmt.Errorf("failed to set RTS: %w", err)
	}
	brk := uint(unix.TIOCCBRK)
	if opts.Brk {
		brk = unix.TIOCSBRK
	}
	if err := unix.IoctlSetInt(p.fd, brk, 0); err != nil {
		return fmt.Errorf("failed to set break: %w", err)
	}
	return nil
}

func setModemBit(fd, bit int, state bool) error {
	if state {
		return unix.IoctlSetPointerInt(fd, unix.TIOCMBIS, bit)
	}
	return unix.IoctlSetPointerInt(fd, unix.TIOCMBIC, bit)
}

func (m *Termios) Get(h Handle) (ModemStatus, error) {
	p, err := termiosHandle(h)
	if err != nil {
		return ModemStatus{}, err
	}
	defer p.leave()
	status, err := unix.IoctlGetInt(p.fd, unix.TIOCMGET)
	if err != nil {
		return ModemStatus{}, err
	}
	return ModemStatus{
		CTS: status&unix.TIOCM_CTS != 0,
		DSR: status&unix.TIOCM_DSR != 0,
		DCD: status&unix.TIOCM_CAR != 0,
	}, nil
}

// Drain blocks until the output queue has been transmitted.
func (m *Termios) Drain(h Handle) error {
	p, err := termiosHandle(h)
	if err != nil {
		return err
	}
	defer p.leave()
	return unix.IoctlSetInt(p.fd, unix.TCSBRK, 1)
}

// Flush discards both the input and output queues.
func (m *Termios) Flush(h Handle) error {
	p, err := termiosHandle(h)
	if err != nil {
		return err
	}
	defer p.leave()
	return unix.IoctlSetInt(p.fd, unix.TCFLSH, unix.TCIOFLUSH)
}

// IsDisconnect reports whether err means the device went away.
func (m *Termios) IsDisconnect(err error) bool {
	return errors.Is(err, errHangup) ||
		errors.Is(err, unix.EIO) ||
		errors.Is(err, unix.ENXIO) ||
		errors.Is(err, unix.ENODEV)
}
