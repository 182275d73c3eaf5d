package semantic

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config tunes what the analyzer reports. The zero value disables every
// optional diagnostic; use DefaultConfig for the usual behavior.
type Config struct {
	// WarnUnused reports symbols that are never referenced.
	WarnUnused bool `yaml:"warn_unused"`
	// AdvisoryBorrows runs the final borrow consistency check and reports
	// its findings as warnings.
	AdvisoryBorrows bool `yaml:"advisory_borrows"`
	// MaxErrors caps the number of errors kept. Zero means no cap.
	MaxErrors int `yaml:"max_errors"`
	// WarningsAsErrors makes Analyze fail when only warnings were found.
	WarningsAsErrors bool `yaml:"warnings_as_errors"`
}

func DefaultConfig() Config {
	return Config{
		WarnUnused:      true,
		AdvisoryBorrows: true,
	}
}

// LoadConfig reads a YAML config file. Keys missing from the file keep their
// default values; unknown keys are an error.
func LoadConfig(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	cfg, err := DecodeConfig(f)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.MaxErrors < 0 {
		return Config{}, fmt.Errorf("max_errors must not be negative, got %d", cfg.MaxErrors)
	}
	return cfg, nil
}
