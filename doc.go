// Package serial provides asynchronous serial port bindings with a uniform
// operation set over several native mechanisms.
//
// A Binding is one port session. Every operation returns a Future that is
// settled later, never inside the call that started it. Bad arguments are
// the exception: they are reported synchronously as an error wrapping
// ErrInvalidArgument, and no Future is returned.
//
// # Basic Usage
//
// Create a binding for the running platform and open a port:
//
//	b, err := serial.NewBinding(func(err error) {
//	    log.Printf("device went away: %v", err)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	f, err := b.Open("/dev/ttyUSB0", serial.OpenOptions{BaudRate: 115200})
//	if err != nil {
//	    log.Fatal(err) // bad arguments
//	}
//	if _, err := f.Wait(ctx); err != nil {
//	    log.Fatal(err) // ErrPortNotFound, ErrPortLocked, ...
//	}
//
// Zero fields in OpenOptions take the defaults of DefaultOpenOptions
// (9600 8N1, no flow control).
//
// # Reading and Writing
//
// Read resolves as soon as at least one byte is available. Only one read
// may be outstanding per binding:
//
//	buf := make([]byte, 256)
//	rf, _ := b.Read(buf, 0, len(buf))
//	res, err := rf.Wait(ctx)
//	fmt.Printf("% X\n", res.Buffer[:res.BytesRead])
//
// Conn wraps a binding as an io.ReadWriteCloser for code that prefers
// blocking calls:
//
//	conn, err := serial.OpenConn(ctx, b, "/dev/ttyUSB0", serial.OpenOptions{})
//	n, err := conn.ReadContext(ctx, buf)
//
// # Mechanisms
//
// Delegating turns any Mechanism into a Binding. NewBinding picks termios
// on Linux and go.bug.st/serial elsewhere; WithMechanism and
// MechanismByName select another one. The mock subpackage provides an
// in-memory Binding with virtual ports for tests.
//
// # Tunables
//
// Tunables are low-level mechanism settings such as TunableVMin and
// TunableVTime. They are layered: platform defaults, then
// WithBindingTunables, then OpenOptions.Tunables.
//
// # Error Handling
//
// Use errors.Is to classify failures:
//
//	if errors.Is(err, serial.ErrPortClosed) {
//	    // the port was closed before or during the operation
//	}
//
// Device removal is reported only through the DisconnectFunc given at
// construction.
package serial
