package serial

func platformMechanism() Mechanism {
	return NewTermiosMechanism()
}

func namedPlatformMechanism(name string) Mechanism {
	if name == "termios" {
		return NewTermiosMechanism()
	}
	return nil
}

// PlatformTunables returns the tunable defaults of the running platform.
func PlatformTunables() Tunables {
	return Tunables{TunableVMin: 1, TunableVTime: 0}
}
