package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents a scan profile file. Every field mirrors a CLI flag;
// flags given on the command line win over the file.
type Config struct {
	Target        string       `yaml:"target"`
	Ports         string       `yaml:"ports"`          // e.g. "7000,8000-8010"
	Length        int          `yaml:"length"`         // knocks per sequence
	Protocol      string       `yaml:"protocol"`       // "tcp", "udp", "mixed"
	Monitor       int          `yaml:"monitor"`        // port probed after each sequence
	Delay         Duration     `yaml:"delay"`          // between knocks
	ProbeWait     Duration     `yaml:"probe_wait"`     // before the monitor probe
	Timeout       Duration     `yaml:"timeout"`        // per connection attempt
	Concurrency   int          `yaml:"concurrency"`    // sequences in flight
	Rate          float64      `yaml:"rate"`           // knocks per second, 0 = unlimited
	ServiceDetect bool         `yaml:"service_detect"` // banner grab on the monitor port
	Ping          bool         `yaml:"ping"`           // ICMP pre-check
	Log           string       `yaml:"log"`            // "dev", "prod", "none"
	Output        OutputConfig `yaml:"output"`
}

// OutputConfig controls how results are reported.
type OutputConfig struct {
	File   string `yaml:"file"`   // report file, written atomically
	Format string `yaml:"format"` // "text" or "json"
}

// Duration wraps time.Duration for YAML unmarshalling from strings like "200ms", "1s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	d.Duration = dur
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// Default returns the built-in scan settings.
func Default() Config {
	return Config{
		Length:      3,
		Protocol:    "tcp",
		Monitor:     22,
		Delay:       Duration{200 * time.Millisecond},
		Timeout:     Duration{time.Second},
		Concurrency: 10,
		Log:         "prod",
		Output:      OutputConfig{Format: "text"},
	}
}

// LoadConfig reads a YAML configuration file from the specified path.
// Keys missing from the file keep their Default values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &cfg, nil
}
