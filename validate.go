package serial

// The Validate functions implement the argument rules shared by every
// Binding. They only look at the arguments, never at binding state.

// ValidateOpen checks the arguments of Binding.Open.
func ValidateOpen(path string, opts OpenOptions) error {
	if path == "" {
		return invalidArgument("path", "is not a valid port")
	}
	if opts.BaudRate < 0 {
		return invalidArgument("options.baudRate", "must not be negative")
	}
	switch opts.DataBits {
	case 0, 5, 6, 7, 8:
	default:
		return invalidArgument("options.dataBits", "must be 5, 6, 7 or 8")
	}
	switch opts.StopBits {
	case 0, 1, 2:
	default:
		return invalidArgument("options.stopBits", "must be 1 or 2")
	}
	if opts.Parity < ParityNone || opts.Parity > ParitySpace {
		return invalidArgument("options.parity", "is not a known parity")
	}
	if opts.FlowControl < FlowControlNone || opts.FlowControl > FlowControlXONXOFF {
		return invalidArgument("options.flowControl", "is not a known flow control mode")
	}
	for name, v := range opts.Tunables {
		if name == "" || v < 0 {
			return invalidArgument("options.tunables", "must have names and non-negative values")
		}
	}
	return nil
}

// ValidateRead checks the arguments of Binding.Read.
func ValidateRead(buf []byte, offset, length int) error {
	if buf == nil {
		return invalidArgument("buffer", "is not a buffer")
	}
	if offset < 0 {
		return invalidArgument("offset", "must not be negative")
	}
	if length <= 0 {
		return invalidArgument("length", "must be positive")
	}
	if offset+length > len(buf) {
		return invalidArgument("length", "exceeds the buffer")
	}
	return nil
}

// ValidateWrite checks the arguments of Binding.Write.
func ValidateWrite(data []byte) error {
	if data == nil {
		return invalidArgument("buffer", "is not a buffer")
	}
	return nil
}

// ValidateUpdate checks the arguments of Binding.Update.
func ValidateUpdate(opts UpdateOptions) error {
	if opts.BaudRate <= 0 {
		return invalidArgument("options.baudRate", "is not a valid baud rate")
	}
	return nil
}

// ValidateSet checks the arguments of Binding.Set. Every combination of
// line states is acceptable, so it only exists to keep the operation set
// uniform.
func ValidateSet(opts SetOptions) error {
	return nil
}
