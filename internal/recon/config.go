package recon

import (
	"fmt"
	"time"
)

const (
	defaultBatchSize         = 10
	defaultProbeTimeout      = 2000 * time.Millisecond
	defaultQuickProbeTimeout = 1000 * time.Millisecond
	defaultMaxPorts          = 100
	defaultResolveTimeout    = 5 * time.Second

	maxPortNumber = 65535
)

// Config holds the tunables of the engine. Tests shrink the timeouts; the
// algorithm does not change.
type Config struct {
	// BatchSize is the number of probes run concurrently in one group.
	BatchSize int `yaml:"batch_size" json:"batch_size" mapstructure:"batch_size" validate:"min=1"`
	// ProbeTimeout bounds a single connect attempt in a full scan.
	ProbeTimeout time.Duration `yaml:"probe_timeout" json:"probe_timeout" mapstructure:"probe_timeout" validate:"gt=0"`
	// QuickProbeTimeout bounds a single connect attempt in a liveness check.
	QuickProbeTimeout time.Duration `yaml:"quick_probe_timeout" json:"quick_probe_timeout" mapstructure:"quick_probe_timeout" validate:"gt=0"`
	// MaxPorts caps the number of ports in one scan request.
	MaxPorts int `yaml:"max_ports" json:"max_ports" mapstructure:"max_ports" validate:"min=1,max=65535"`
	// QuickPorts is the fixed port subset probed by a liveness check.
	QuickPorts []uint16 `yaml:"quick_ports" json:"quick_ports" mapstructure:"quick_ports" validate:"min=1,dive,min=1"`
	// ResolveTimeout bounds the single forward lookup.
	ResolveTimeout time.Duration `yaml:"resolve_timeout" json:"resolve_timeout" mapstructure:"resolve_timeout" validate:"gt=0"`
}

// DefaultConfig returns the engine configuration used in production.
func DefaultConfig() Config {
	return Config{
		BatchSize:         defaultBatchSize,
		ProbeTimeout:      defaultProbeTimeout,
		QuickProbeTimeout: defaultQuickProbeTimeout,
		MaxPorts:          defaultMaxPorts,
		QuickPorts:        []uint16{80, 443, 22, 445},
		ResolveTimeout:    defaultResolveTimeout,
	}
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.BatchSize < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive")
	}
	if c.QuickProbeTimeout <= 0 {
		return fmt.Errorf("quick probe timeout must be positive")
	}
	if c.ResolveTimeout <= 0 {
		return fmt.Errorf("resolve timeout must be positive")
	}
	if c.MaxPorts < 1 || c.MaxPorts > maxPortNumber {
		return fmt.Errorf("max ports must be between 1 and %d, got %d", maxPortNumber, c.MaxPorts)
	}
	if len(c.QuickPorts) == 0 {
		return fmt.Errorf("quick ports must not be empty")
	}
	for _, p := range c.QuickPorts {
		if p == 0 {
			return fmt.Errorf("quick port 0 is not a valid port")
		}
	}
	return nil
}
