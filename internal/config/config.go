// Package config holds the runtime settings of the anerun command.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"github.com/23skdu/longbow-ane/internal/device"
)

// Config is loaded from a TOML file and then overridden by flags.
type Config struct {
	// Device is the render node of the engine.
	Device string `toml:"device"`

	// Strict turns on port checks against the declared input and output
	// counts.
	Strict bool `toml:"strict"`

	// Model is the path of the CBOR model descriptor.
	Model string `toml:"model"`

	// Inputs are dense input tensors, one file per input port.
	Inputs []string `toml:"inputs"`

	// Float32 marks input files as float32 instead of fp16.
	Float32 bool `toml:"float32"`

	// Output is where the Arrow stream of outputs goes; "-" is stdout.
	Output string `toml:"output"`

	// Listen starts the HTTP server on this address when set.
	Listen string `toml:"listen"`

	// MaxQueue bounds the number of requests waiting for the engine.
	MaxQueue int `toml:"max_queue"`

	LogLevel string `toml:"log_level"`
	OTel     bool   `toml:"otel"`
}

// Default returns the settings used when nothing else is given.
func Default() Config {
	return Config{
		Device:   device.DefaultPath,
		Output:   "-",
		MaxQueue: 64,
		LogLevel: "info",
	}
}

// Load reads path on top of the defaults. Keys missing from the file keep
// their default value.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	if undec := md.Undecoded(); len(undec) > 0 {
		return Config{}, fmt.Errorf("config %s: unknown key %q", path, undec[0].String())
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the command cannot run with.
func (c Config) Validate() error {
	if c.Device == "" {
		return fmt.Errorf("config: device path is empty")
	}
	if c.MaxQueue <= 0 {
		return fmt.Errorf("config: max_queue must be positive, got %d", c.MaxQueue)
	}
	return nil
}
