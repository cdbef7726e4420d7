package serial

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

func TestSpeedFlag(t *testing.T) {
	tests := []struct {
		rate     int
		expected uint32
		wantErr  bool
	}{
		{9600, unix.B9600, false},
		{19200, unix.B19200, false},
		{38400, unix.B38400, false},
		{57600, unix.B57600, false},
		{115200, unix.B115200, false},
		{230400, unix.B230400, false},
		{12345, 0, true},
	}

	for _, test := range tests {
		result, err := speedFlag(test.rate)
		if test.wantErr {
			if !errors.Is(err, ErrInvalidBaudRate) {
				t.Errorf("speedFlag(%d) error = %v, want %v", test.rate, err, ErrInvalidBaudRate)
			}
			continue
		}
		if err != nil {
			t.Errorf("speedFlag(%d) failed: %v", test.rate, err)
		}
		if result != test.expected {
			t.Errorf("speedFlag(%d) = %d, expected %d", test.rate, result, test.expected)
		}
	}
}

func TestCCValue(t *testing.T) {
	if got := ccValue(10); got != 10 {
		t.Errorf("ccValue(10) = %d, want 10", got)
	}
	if got := ccValue(1000); got != 255 {
		t.Errorf("ccValue(1000) = %d, want 255", got)
	}
}

func TestTermiosIsDisconnect(t *testing.T) {
	m := NewTermiosMechanism()
	tests := []struct {
		err  error
		want bool
	}{
		{unix.EIO, true},
		{unix.ENXIO, true},
		{fmt.Errorf("read: %w", unix.ENODEV), true},
		{errHangup, true},
		{unix.EINVAL, false},
		{ErrPortClosed, false},
	}
	for _, tt := range tests {
		if got := m.IsDisconnect(tt.err); got != tt.want {
			t.Errorf("IsDisconnect(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestTermiosOpenErrors(t *testing.T) {
	m := NewTermiosMechanism()

	_, err := m.Open("/dev/nonexistent_serial_port", DefaultOpenOptions())
	if !errors.Is(err, ErrPortNotFound) {
		t.Errorf("Open(missing) error = %v, want %v", err, ErrPortNotFound)
	}

	// /dev/null opens but is not a tty
	if _, err := m.Open("/dev/null", DefaultOpenOptions()); err == nil {
		t.Error("Open(/dev/null) succeeded, want a termios error")
	}
}

// openPTY returns the master side of a new pseudo-terminal and the path
// of its slave.
func openPTY(t *testing.T) (int, string) {
	t.Helper()
	master, err := unix.Open("/dev/ptmx", unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		t.Skipf("no pseudo-terminal support: %v", err)
	}
	if err := unix.IoctlSetPointerInt(master, unix.TIOCSPTLCK, 0); err != nil {
		unix.Close(master)
		t.Skipf("unlockpt failed: %v", err)
	}
	n, err := unix.IoctlGetInt(master, unix.TIOCGPTN)
	if err != nil {
		unix.Close(master)
		t.Skipf("ptsname failed: %v", err)
	}
	t.Cleanup(func() { unix.Close(master) })
	return master, fmt.Sprintf("/dev/pts/%d", n)
}

func readMaster(t *testing.T, fd, want int) []byte {
	t.Helper()
	got := make(chan []byte, 1)
	go func() {
		var out []byte
		buf := make([]byte, 64)
		for len(out) < want {
			n, err := unix.Read(fd, buf)
			if err != nil || n == 0 {
				break
			}
			out = append(out, buf[:n]...)
		}
		got <- out
	}()
	select {
	case b := <-got:
		return b
	case <-time.After(2 * time.Second):
		t.Fatal("timed out reading from pty master")
		return nil
	}
}

func TestTermiosOverPTY(t *testing.T) {
	master, slave := openPTY(t)

	b, err := NewBinding(noDisconnect, WithMechanism(NewTermiosMechanism()))
	if err != nil {
		t.Fatalf("NewBinding failed: %v", err)
	}
	of, err := b.Open(slave, OpenOptions{BaudRate: 115200})
	if err != nil {
		t.Fatalf("Open returned argument error: %v", err)
	}
	if _, err := await(t, of); err != nil {
		t.Fatalf("Open(%s) failed: %v", slave, err)
	}

	wf, _ := b.Write([]byte("ping"))
	if _, err := await(t, wf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if got := readMaster(t, master, 4); string(got) != "ping" {
		t.Errorf("master read %q, want %q", got, "ping")
	}

	buf := make([]byte, 16)
	rf, _ := b.Read(buf, 0, len(buf))
	if _, err := unix.Write(master, []byte("pong")); err != nil {
		t.Fatalf("master write failed: %v", err)
	}
	res, err := await(t, rf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:res.BytesRead]) != "pong" {
		t.Errorf("Read = %q, want %q", buf[:res.BytesRead], "pong")
	}

	uf, _ := b.Update(UpdateOptions{BaudRate: 9600})
	if _, err := await(t, uf); err != nil {
		t.Errorf("Update failed: %v", err)
	}
	if _, err := await(t, b.Flush()); err != nil {
		t.Errorf("Flush failed: %v", err)
	}

	pending, _ := b.Read(buf, 0, len(buf))
	if _, err := await(t, b.Close()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := await(t, pending); !errors.Is(err, ErrPortClosed) {
		t.Errorf("pending Read error = %v, want %v", err, ErrPortClosed)
	}
}

func TestTermiosCloseKeepsFdsUntilReadReturns(t *testing.T) {
	_, slave := openPTY(t)

	m := NewTermiosMechanism()
	h, err := m.Open(slave, DefaultOpenOptions())
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", slave, err)
	}
	p := h.(*termiosPort)

	done := make(chan error, 1)
	go func() {
		_, err := m.Read(h, make([]byte, 8))
		done <- err
	}()

	// wait until the read holds the fds
	deadline := time.Now().Add(2 * time.Second)
	for {
		p.mu.Lock()
		users := p.users
		p.mu.Unlock()
		if users == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("read never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := m.Close(h); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	select {
	case err := <-done:
		if !errors.Is(err, ErrPortClosed) {
			t.Errorf("Read error = %v, want %v", err, ErrPortClosed)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read did not return after Close")
	}

	p.mu.Lock()
	released, users := p.released, p.users
	p.mu.Unlock()
	if !released || users != 0 {
		t.Errorf("after read returned: released = %v, users = %d, want true, 0", released, users)
	}
	if err := m.Close(h); !errors.Is(err, ErrPortClosed) {
		t.Errorf("second Close error = %v, want %v", err, ErrPortClosed)
	}
}

func TestTermiosCloseWaitsForLastUser(t *testing.T) {
	_, slave := openPTY(t)

	m := NewTermiosMechanism()
	h, err := m.Open(slave, DefaultOpenOptions())
	if err != nil {
		t.Fatalf("Open(%s) failed: %v", slave, err)
	}
	p := h.(*termiosPort)

	// a call in progress holds the fds past Close
	if _, err := termiosHandle(h); err != nil {
		t.Fatalf("termiosHandle failed: %v", err)
	}
	if err := m.Close(h); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if p.released {
		t.Fatal("fds released while still in use")
	}
	p.leave()
	if !p.released {
		t.Error("fds not released by the last user")
	}

	if _, err := m.Get(h); !errors.Is(err, ErrPortClosed) {
		t.Errorf("Get after Close error = %v, want %v", err, ErrPortClosed)
	}
}
