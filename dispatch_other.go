//go:build !linux && !darwin

package serial

func platformMechanism() Mechanism {
	return NewBugstMechanism()
}

func namedPlatformMechanism(string) Mechanism {
	return nil
}

// PlatformTunables returns the tunable defaults of the running platform.
// Windows has no vmin/vtime equivalent.
func PlatformTunables() Tunables {
	return nil
}
