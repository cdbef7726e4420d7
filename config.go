package serial

// Parity represents the parity mode
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
	ParityMark
	ParitySpace
)

func (p Parity) String() string {
	switch p {
	case ParityOdd:
		return "O"
	case ParityEven:
		return "E"
	case ParityMark:
		return "M"
	case ParitySpace:
		return "S"
	default:
		return "N"
	}
}

// FlowControl represents the flow control mode
type FlowControl int

const (
	FlowControlNone FlowControl = iota
	FlowControlRTSCTS
	FlowControlXONXOFF
)

func (fc FlowControl) String() string {
	switch fc {
	case FlowControlRTSCTS:
		return "RTS/CTS"
	case FlowControlXONXOFF:
		return "XON/XOFF"
	default:
		return "None"
	}
}

// Names of the low-level tunables understood by the termios mechanism.
const (
	TunableVMin  = "vmin"  // minimum bytes for a non-canonical read
	TunableVTime = "vtime" // read timeout in tenths of a second
)

// Tunables are mechanism-specific low-level settings. Mechanisms ignore
// names they do not know.
type Tunables map[string]int

// MergeTunables layers the given sets left to right: later sets win.
// The result is always a fresh map.
func MergeTunables(layers ...Tunables) Tunables {
	merged := Tunables{}
	for _, layer := range layers {
		for name, v := range layer {
			merged[name] = v
		}
	}
	return merged
}

// Int returns the value of name, or def when it is not set.
func (t Tunables) Int(name string, def int) int {
	if v, ok := t[name]; ok {
		return v
	}
	return def
}

// OpenOptions holds the configuration for opening a serial port.
// Zero fields take the values of DefaultOpenOptions.
type OpenOptions struct {
	BaudRate    int
	DataBits    int
	StopBits    int
	Parity      Parity
	FlowControl FlowControl

	// Lock prevents any other binding from opening the port while it is open.
	Lock bool

	Tunables Tunables
}

// Option is a functional option for building OpenOptions
type Option func(*OpenOptions) error

// DefaultOpenOptions returns a configuration with sensible defaults
func DefaultOpenOptions() OpenOptions {
	return OpenOptions{
		BaudRate:    9600,
		DataBits:    8,
		StopBits:    1,
		Parity:      ParityNone,
		FlowControl: FlowControlNone,
	}
}

// NewOpenOptions applies opts on top of DefaultOpenOptions.
func NewOpenOptions(opts ...Option) (OpenOptions, error) {
	o := DefaultOpenOptions()
	for _, opt := range opts {
		if err := opt(&o); err != nil {
			return OpenOptions{}, err
		}
	}
	return o, nil
}

// Normalize fills zero fields from DefaultOpenOptions.
func (o OpenOptions) Normalize() OpenOptions {
	def := DefaultOpenOptions()
	if o.BaudRate == 0 {
		o.BaudRate = def.BaudRate
	}
	if o.DataBits == 0 {
		o.DataBits = def.DataBits
	}
	if o.StopBits == 0 {
		o.StopBits = def.StopBits
	}
	return o
}

// Clone returns a copy that shares no memory with o.
func (o OpenOptions) Clone() OpenOptions {
	if o.Tunables != nil {
		o.Tunables = MergeTunables(o.Tunables)
	}
	return o
}

// WithBaudRate sets the baud rate
func WithBaudRate(rate int) Option {
	return func(o *OpenOptions) error {
		if rate <= 0 {
			return ErrInvalidBaudRate
		}
		o.BaudRate = rate
		return nil
	}
}

// WithDataBits sets the number of data bits (5, 6, 7, or 8)
func WithDataBits(bits int) Option {
	return func(o *OpenOptions) error {
		if bits < 5 || bits > 8 {
			return ErrInvalidConfig
		}
		o.DataBits = bits
		return nil
	}
}

// WithStopBits sets the number of stop bits (1 or 2)
func WithStopBits(bits int) Option {
	return func(o *OpenOptions) error {
		if bits != 1 && bits != 2 {
			return ErrInvalidConfig
		}
		o.StopBits = bits
		return nil
	}
}

// WithParity sets the parity mode
func WithParity(parity Parity) Option {
	return func(o *OpenOptions) error {
		if parity < ParityNone || parity > ParitySpace {
			return ErrInvalidConfig
		}
		o.Parity = parity
		return nil
	}
}

// WithFlowControl sets the flow control mode
func WithFlowControl(fc FlowControl) Option {
	return func(o *OpenOptions) error {
		if fc < FlowControlNone || fc > FlowControlXONXOFF {
			return ErrInvalidConfig
		}
		o.FlowControl = fc
		return nil
	}
}

// WithLock makes the port exclusive while it is open
func WithLock(lock bool) Option {
	return func(o *OpenOptions) error {
		o.Lock = lock
		return nil
	}
}

// WithTunable sets a call-time tunable, overriding platform and binding values
func WithTunable(name string, value int) Option {
	return func(o *OpenOptions) error {
		if name == "" || value < 0 {
			return ErrInvalidConfig
		}
		if o.Tunables == nil {
			o.Tunables = Tunables{}
		}
		o.Tunables[name] = value
		return nil
	}
}
