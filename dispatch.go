package serial

import "fmt"

// NewBinding returns the binding for the running platform: the termios
// mechanism on Linux and go.bug.st/serial elsewhere, unless WithMechanism
// picks another one.
func NewBinding(disconnect DisconnectFunc, opts ...BindingOption) (*Delegating, error) {
	cfg := NewBindingConfig(opts...)
	m := cfg.Mechanism
	if m == nil {
		m = platformMechanism()
	}
	b, err := NewDelegating(m, disconnect, opts...)
	if err != nil {
		return nil, err
	}
	b.platform = PlatformTunables()
	return b, nil
}

// List enumerates ports with the platform mechanism, without needing a
// binding.
func List() ([]PortInfo, error) {
	return platformMechanism().List()
}

// MechanismByName returns a native mechanism by name. "" selects the
// platform default.
func MechanismByName(name string) (Mechanism, error) {
	switch name {
	case "":
		return platformMechanism(), nil
	case "bugst":
		return NewBugstMechanism(), nil
	}
	if m := namedPlatformMechanism(name); m != nil {
		return m, nil
	}
	return nil, fmt.Errorf("%w: unknown mechanism %q", ErrInvalidConfig, name)
}
