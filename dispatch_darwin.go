package serial

func platformMechanism() Mechanism {
	return NewBugstMechanism()
}

func namedPlatformMechanism(string) Mechanism {
	return nil
}

// PlatformTunables returns the tunable defaults of the running platform.
func PlatformTunables() Tunables {
	return Tunables{TunableVMin: 1, TunableVTime: 0}
}
