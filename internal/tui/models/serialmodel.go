package models

import (
	"context"
	"sync"
	"time"

	serial "github.com/allbin/go-serial-bindings"
)

// InputMode represents the current input mode (vim-like)
type InputMode int

const (
	InputModeNormal InputMode = iota
	InputModeInsert
)

func (m InputMode) String() string {
	if m == InputModeInsert {
		return "INSERT"
	}
	return "NORMAL"
}

// ConnectionStatusMsg reports the outcome of opening the port, or its loss.
type ConnectionStatusMsg struct {
	Connected bool
	Error     error
}

// SerialModel is the state shared by the TUI commands: the connection and
// the session context its goroutines run under.
type SerialModel struct {
	conn     *serial.Conn
	portPath string

	connected bool
	err       error
	ready     bool
	inputMode InputMode
	lines     serial.SetOptions
	nextTxID  int

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
}

func NewSerialModel(portPath string) *SerialModel {
	ctx, cancel := context.WithCancel(context.Background())
	return &SerialModel{
		portPath: portPath,
		lines:    serial.DefaultSetOptions(),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Conn returns the open connection, or nil before the open completes.
func (m *SerialModel) Conn() *serial.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.conn
}

func (m *SerialModel) SetConn(conn *serial.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conn = conn
}

func (m *SerialModel) PortPath() string {
	return m.portPath
}

func (m *SerialModel) IsConnected() bool {
	return m.connected
}

func (m *SerialModel) SetConnected(connected bool) {
	m.connected = connected
}

func (m *SerialModel) Err() error {
	return m.err
}

func (m *SerialModel) SetError(err error) {
	m.err = err
}

func (m *SerialModel) IsReady() bool {
	return m.ready
}

func (m *SerialModel) SetReady(ready bool) {
	m.ready = ready
}

// Lines returns the output line states last applied with Set.
func (m *SerialModel) Lines() serial.SetOptions {
	return m.lines
}

func (m *SerialModel) SetLines(lines serial.SetOptions) {
	m.lines = lines
}

// NextTxID numbers writes so their completion can be matched to the display.
func (m *SerialModel) NextTxID() int {
	m.nextTxID++
	return m.nextTxID
}

func (m *SerialModel) InputMode() InputMode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inputMode
}

func (m *SerialModel) SetInputMode(mode InputMode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inputMode = mode
}

func (m *SerialModel) IsInInsertMode() bool {
	return m.InputMode() == InputModeInsert
}

func (m *SerialModel) Context() context.Context {
	return m.ctx
}

// Cleanup stops the session goroutines and closes the connection.
func (m *SerialModel) Cleanup() {
	m.cancel()

	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = conn.CloseContext(ctx)
	}
}
