package serial

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errGone = errors.New("device gone")

type fakeHandle struct {
	path string
}

type readReply struct {
	data []byte
	err  error
}

// fakeMechanism records what it is asked to do. Reads block until a reply
// is sent on reads or the handle is closed.
type fakeMechanism struct {
	mu      sync.Mutex
	opened  []OpenOptions
	written [][]byte
	lines   SetOptions
	baud    int
	drains  int
	flushes int

	openErr error
	status  ModemStatus
	ports   []PortInfo

	reads  chan readReply
	closed chan struct{}
}

func newFakeMechanism() *fakeMechanism {
	return &fakeMechanism{
		reads:  make(chan readReply, 1),
		closed: make(chan struct{}),
		status: ModemStatus{CTS: true, DCD: true},
	}
}

func (m *fakeMechanism) List() ([]PortInfo, error) {
	return m.ports, nil
}

func (m *fakeMechanism) Open(path string, opts OpenOptions) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opened = append(m.opened, opts)
	return &fakeHandle{path: path}, nil
}

func (m *fakeMechanism) Close(Handle) error {
	close(m.closed)
	return nil
}

func (m *fakeMechanism) Read(_ Handle, buf []byte) (int, error) {
	select {
	case r := <-m.reads:
		if r.err != nil {
			return 0, r.err
		}
		return copy(buf, r.data), nil
	case <-m.closed:
		return 0, errors.New("bad file descriptor")
	}
}

func (m *fakeMechanism) Write(_ Handle, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.written = append(m.written, data)
	return nil
}

func (m *fakeMechanism) Update(_ Handle, opts UpdateOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.baud = opts.BaudRate
	return nil
}

func (m *fakeMechanism) Set(_ Handle, opts SetOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lines = opts
	return nil
}

func (m *fakeMechanism) Get(Handle) (ModemStatus, error) {
	return m.status, nil
}

func (m *fakeMechanism) Drain(Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drains++
	return nil
}

func (m *fakeMechanism) Flush(Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return nil
}

func (m *fakeMechanism) IsDisconnect(err error) bool {
	return errors.Is(err, errGone)
}

func await[T any](t *testing.T, f *Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	select {
	case <-f.Done():
	case <-ctx.Done():
		t.Fatal("future did not settle")
	}
	return f.Wait(ctx)
}

func noDisconnect(error) {}

func openFake(t *testing.T, opts ...BindingOption) (*Delegating, *fakeMechanism) {
	t.Helper()
	m := newFakeMechanism()
	b, err := NewDelegating(m, noDisconnect, opts...)
	if err != nil {
		t.Fatalf("NewDelegating failed: %v", err)
	}
	f, err := b.Open("/dev/ttyFAKE0", OpenOptions{})
	if err != nil {
		t.Fatalf("Open returned argument error: %v", err)
	}
	if _, err := await(t, f); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return b, m
}

func TestNewDelegatingRequiresDisconnect(t *testing.T) {
	_, err := NewDelegating(newFakeMechanism(), nil)
	if !errors.Is(err, ErrMissingDisconnect) {
		t.Errorf("NewDelegating(nil callback) error = %v, want %v", err, ErrMissingDisconnect)
	}
}

func TestDelegatingArgumentErrors(t *testing.T) {
	b, _ := openFake(t)

	tests := []struct {
		name string
		call func() error
	}{
		{"open empty path", func() error { _, err := b.Open("", OpenOptions{}); return err }},
		{"open bad data bits", func() error { _, err := b.Open("/dev/x", OpenOptions{DataBits: 9}); return err }},
		{"read nil buffer", func() error { _, err := b.Read(nil, 0, 1); return err }},
		{"read negative offset", func() error { _, err := b.Read(make([]byte, 4), -1, 1); return err }},
		{"read zero length", func() error { _, err := b.Read(make([]byte, 4), 0, 0); return err }},
		{"read past end", func() error { _, err := b.Read(make([]byte, 4), 2, 3); return err }},
		{"write nil buffer", func() error { _, err := b.Write(nil); return err }},
		{"update zero baud", func() error { _, err := b.Update(UpdateOptions{}); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("error = %v, want %v", err, ErrInvalidArgument)
			}
		})
	}
}

func mustFuture[T any](t *testing.T, f *Future[T], err error) *Future[T] {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected argument error: %v", err)
	}
	return f
}

func TestDelegatingRequiresOpen(t *testing.T) {
	b, err := NewDelegating(newFakeMechanism(), noDisconnect)
	if err != nil {
		t.Fatalf("NewDelegating failed: %v", err)
	}

	tests := []struct {
		name string
		call func(t *testing.T) error
	}{
		{"close", func(t *testing.T) error { _, err := await(t, b.Close()); return err }},
		{"write", func(t *testing.T) error {
			f, err := b.Write([]byte("x"))
			_, err = await(t, mustFuture(t, f, err))
			return err
		}},
		{"update", func(t *testing.T) error {
			f, err := b.Update(UpdateOptions{BaudRate: 19200})
			_, err = await(t, mustFuture(t, f, err))
			return err
		}},
		{"set", func(t *testing.T) error {
			f, err := b.Set(DefaultSetOptions())
			_, err = await(t, mustFuture(t, f, err))
			return err
		}},
		{"get", func(t *testing.T) error { _, err := await(t, b.Get()); return err }},
		{"drain", func(t *testing.T) error { _, err := await(t, b.Drain()); return err }},
		{"flush", func(t *testing.T) error { _, err := await(t, b.Flush()); return err }},
		{"read", func(t *testing.T) error {
			f, err := b.Read(make([]byte, 1), 0, 1)
			_, err = await(t, mustFuture(t, f, err))
			return err
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(t); !errors.Is(err, ErrPortClosed) {
				t.Errorf("error = %v, want %v", err, ErrPortClosed)
			}
		})
	}
}

func TestDelegatingOpenTwice(t *testing.T) {
	b, _ := openFake(t)
	if !b.IsOpen() {
		t.Fatal("IsOpen() = false after open")
	}
	if b.Path() != "/dev/ttyFAKE0" {
		t.Errorf("Path() = %q, want %q", b.Path(), "/dev/ttyFAKE0")
	}

	f, err := b.Open("/dev/ttyFAKE1", OpenOptions{})
	if err != nil {
		t.Fatalf("Open returned argument error: %v", err)
	}
	if _, err := await(t, f); !errors.Is(err, ErrAlreadyOpen) {
		t.Errorf("second Open error = %v, want %v", err, ErrAlreadyOpen)
	}
}

func TestDelegatingOpenDefaultsAndTunables(t *testing.T) {
	m := newFakeMechanism()
	b, err := NewDelegating(m, noDisconnect, WithBindingTunables(Tunables{TunableVTime: 5, "custom": 1}))
	if err != nil {
		t.Fatalf("NewDelegating failed: %v", err)
	}
	b.platform = Tunables{TunableVMin: 1, TunableVTime: 0}

	f, err := b.Open("/dev/ttyFAKE0", OpenOptions{Tunables: Tunables{"custom": 7}})
	if err != nil {
		t.Fatalf("Open returned argument error: %v", err)
	}
	if _, err := await(t, f); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	got := m.opened[0]
	if got.BaudRate != 9600 || got.DataBits != 8 || got.StopBits != 1 {
		t.Errorf("framing = %d %d %d, want 9600 8 1", got.BaudRate, got.DataBits, got.StopBits)
	}
	want := Tunables{TunableVMin: 1, TunableVTime: 5, "custom": 7}
	for name, v := range want {
		if got.Tunables[name] != v {
			t.Errorf("tunable %s = %d, want %d", name, got.Tunables[name], v)
		}
	}
}

func TestDelegatingOpenErrorPassesThrough(t *testing.T) {
	native := errors.New("permission denied")
	m := newFakeMechanism()
	m.openErr = native
	b, _ := NewDelegating(m, noDisconnect)

	f, err := b.Open("/dev/ttyFAKE0", OpenOptions{})
	if err != nil {
		t.Fatalf("Open returned argument error: %v", err)
	}
	if _, err := await(t, f); !errors.Is(err, native) {
		t.Errorf("Open error = %v, want %v", err, native)
	}
	if b.IsOpen() {
		t.Error("IsOpen() = true after failed open")
	}
}

func TestDelegatingReadSinglePending(t *testing.T) {
	b, m := openFake(t)

	buf := make([]byte, 8)
	first, err := b.Read(buf, 2, 4)
	if err != nil {
		t.Fatalf("Read returned argument error: %v", err)
	}
	second, err := b.Read(make([]byte, 4), 0, 4)
	if err != nil {
		t.Fatalf("Read returned argument error: %v", err)
	}
	if _, err := await(t, second); !errors.Is(err, ErrReadPending) {
		t.Errorf("second Read error = %v, want %v", err, ErrReadPending)
	}

	m.reads <- readReply{data: []byte("hi")}
	res, err := await(t, first)
	if err != nil {
		t.Fatalf("first Read failed: %v", err)
	}
	if res.BytesRead != 2 || string(buf[2:4]) != "hi" {
		t.Errorf("Read = %d %q, want 2 %q", res.BytesRead, buf[2:4], "hi")
	}
}

func TestDelegatingCloseRejectsPendingRead(t *testing.T) {
	b, _ := openFake(t)

	f, err := b.Read(make([]byte, 4), 0, 4)
	if err != nil {
		t.Fatalf("Read returned argument error: %v", err)
	}
	if _, err := await(t, b.Close()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !f.Ready() {
		t.Fatal("Close resolved before the pending read settled")
	}
	if _, err := await(t, f); !errors.Is(err, ErrPortClosed) {
		t.Errorf("pending Read error = %v, want %v", err, ErrPortClosed)
	}
	if b.IsOpen() {
		t.Error("IsOpen() = true after close")
	}
}

func TestDelegatingDisconnect(t *testing.T) {
	m := newFakeMechanism()
	got := make(chan error, 1)
	b, err := NewDelegating(m, func(err error) { got <- err })
	if err != nil {
		t.Fatalf("NewDelegating failed: %v", err)
	}
	f, _ := b.Open("/dev/ttyFAKE0", OpenOptions{})
	if _, err := await(t, f); err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	rf, _ := b.Read(make([]byte, 4), 0, 4)
	m.reads <- readReply{err: errGone}
	if _, err := await(t, rf); !errors.Is(err, errGone) {
		t.Errorf("Read error = %v, want %v", err, errGone)
	}

	select {
	case err := <-got:
		if !errors.Is(err, errGone) {
			t.Errorf("disconnect callback error = %v, want %v", err, errGone)
		}
	case <-time.After(time.Second):
		t.Fatal("disconnect callback was not called")
	}
	if n := b.Stats().Snapshot().Disconnects; n != 1 {
		t.Errorf("Disconnects = %d, want 1", n)
	}
}

func TestDelegatingWriteCopiesBuffer(t *testing.T) {
	b, m := openFake(t)

	data := []byte("hello")
	f, err := b.Write(data)
	if err != nil {
		t.Fatalf("Write returned argument error: %v", err)
	}
	copy(data, "XXXXX")
	if _, err := await(t, f); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if string(m.written[0]) != "hello" {
		t.Errorf("written = %q, want %q", m.written[0], "hello")
	}

	empty, err := b.Write([]byte{})
	if err != nil {
		t.Fatalf("Write of empty buffer returned error: %v", err)
	}
	if _, err := await(t, empty); err != nil {
		t.Errorf("Write of empty buffer failed: %v", err)
	}
}

func TestDelegatingForwardsControl(t *testing.T) {
	b, m := openFake(t)

	uf, _ := b.Update(UpdateOptions{BaudRate: 115200})
	if _, err := await(t, uf); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	sf, _ := b.Set(SetOptions{Brk: true})
	if _, err := await(t, sf); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	status, err := await(t, b.Get())
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if _, err := await(t, b.Drain()); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if _, err := await(t, b.Flush()); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if m.baud != 115200 {
		t.Errorf("baud = %d, want 115200", m.baud)
	}
	if !m.lines.Brk || m.lines.DTR {
		t.Errorf("lines = %+v, want only Brk", m.lines)
	}
	if status != m.status {
		t.Errorf("Get = %+v, want %+v", status, m.status)
	}
	if m.drains != 1 || m.flushes != 1 {
		t.Errorf("drains, flushes = %d, %d, want 1, 1", m.drains, m.flushes)
	}
}

func TestDelegatingStats(t *testing.T) {
	b, m := openFake(t)

	wf, _ := b.Write([]byte("abc"))
	if _, err := await(t, wf); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	rf, _ := b.Read(make([]byte, 8), 0, 8)
	m.reads <- readReply{data: []byte("xy")}
	if _, err := await(t, rf); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if _, err := await(t, b.Close()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	got := b.Stats().Snapshot()
	want := StatsSnapshot{Opens: 1, Closes: 1, ReadOps: 1, WriteOps: 1, BytesRead: 2, BytesWritten: 3}
	if got != want {
		t.Errorf("Snapshot() = %+v, want %+v", got, want)
	}
}
