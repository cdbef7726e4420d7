package serial

import "github.com/rs/zerolog"

// BindingConfig holds the construction-time settings of a binding.
type BindingConfig struct {
	Logger zerolog.Logger

	// Tunables override the platform defaults and are overridden by
	// OpenOptions.Tunables.
	Tunables Tunables

	// Mechanism replaces the platform mechanism chosen by NewBinding.
	Mechanism Mechanism
}

// BindingOption is a functional option for constructing a binding
type BindingOption func(*BindingConfig)

// NewBindingConfig applies opts to the default configuration.
func NewBindingConfig(opts ...BindingOption) BindingConfig {
	cfg := BindingConfig{Logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets the logger operations are reported to
func WithLogger(l zerolog.Logger) BindingOption {
	return func(c *BindingConfig) {
		c.Logger = l
	}
}

// WithBindingTunables sets binding-level tunable overrides
func WithBindingTunables(t Tunables) BindingOption {
	return func(c *BindingConfig) {
		c.Tunables = MergeTunables(c.Tunables, t)
	}
}

// WithMechanism selects the native mechanism used by NewBinding
func WithMechanism(m Mechanism) BindingOption {
	return func(c *BindingConfig) {
		c.Mechanism = m
	}
}
