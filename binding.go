package serial

// Binding is the operation set every serial-port implementation satisfies.
//
// Operations that take arguments validate them first and return a non-nil
// error immediately when they are unusable; in that case no Future is
// returned and nothing is forwarded. Everything that can only be known by
// performing the operation (port closed, port missing, native I/O failure)
// is reported by rejecting the returned Future on a later turn.
type Binding interface {
	// List returns identity metadata for the ports this binding can see.
	List() *Future[[]PortInfo]

	// Open starts a session on path. It fails with ErrAlreadyOpen when the
	// binding already holds a port.
	Open(path string, opts OpenOptions) (*Future[struct{}], error)

	// Close ends the session. It fails with ErrPortClosed when nothing is open.
	Close() *Future[struct{}]

	// Read copies at most length bytes of received data into buf starting at
	// offset. It resolves as soon as at least one byte is available and never
	// waits for length bytes. Only one read may be outstanding at a time.
	Read(buf []byte, offset, length int) (*Future[ReadResult], error)

	// Write sends data. The binding does not retain data after the call returns.
	Write(data []byte) (*Future[struct{}], error)

	// Update changes the baud rate of an open port.
	Update(opts UpdateOptions) (*Future[struct{}], error)

	// Set drives the output control lines.
	Set(opts SetOptions) (*Future[struct{}], error)

	// Get reads the input control lines.
	Get() *Future[ModemStatus]

	// Drain waits until written data has been transmitted.
	Drain() *Future[struct{}]

	// Flush discards data received but not read and data written but not sent.
	Flush() *Future[struct{}]

	// IsOpen reports whether the binding currently holds a port.
	IsOpen() bool
}

// DisconnectFunc is called when the device behind an open binding goes away.
// It is the only way disconnects are reported.
type DisconnectFunc func(err error)

// PortInfo describes a serial port.
type PortInfo struct {
	Path         string
	Manufacturer string
	SerialNumber string
	PnpID        string
	LocationID   string
	VendorID     string
	ProductID    string
}

// ModemStatus holds the input control line states returned by Get.
type ModemStatus struct {
	CTS bool // Clear To Send
	DSR bool // Data Set Ready
	DCD bool // Data Carrier Detect
}

// ReadResult is the value a successful Read resolves with.
type ReadResult struct {
	BytesRead int
	Buffer    []byte
}

// UpdateOptions are the settings that can change while a port is open.
type UpdateOptions struct {
	BaudRate int
}

// SetOptions are the output control line states applied by Set.
type SetOptions struct {
	Brk bool
	CTS bool
	DSR bool
	DTR bool
	RTS bool
}

// DefaultSetOptions returns the line states of a freshly opened port:
// DTR and RTS asserted, break off.
func DefaultSetOptions() SetOptions {
	return SetOptions{DTR: true, RTS: true}
}
