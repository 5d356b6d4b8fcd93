package warp

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration file.
type Config struct {
	Regularization *float64    `yaml:"regularization,omitempty"` // λ, default 1.0
	Precision      *int        `yaml:"precision,omitempty"`      // output decimals, default 6
	Overwrite      bool        `yaml:"overwrite,omitempty"`
	Workers        int         `yaml:"workers,omitempty"` // batch pool size, 0 = GOMAXPROCS
	Jobs           []JobConfig `yaml:"jobs,omitempty"`
}

// JobConfig describes one batch warp.
type JobConfig struct {
	ID             string   `yaml:"id,omitempty"`
	Vertices       string   `yaml:"vertices"`
	ControlLeft    string   `yaml:"controlLeft"`
	ControlRight   string   `yaml:"controlRight"`
	Output         string   `yaml:"output"`
	Regularization *float64 `yaml:"regularization,omitempty"` // overrides the top-level value
}

// DefaultConfig returns a configuration with no jobs and default settings.
func DefaultConfig() *Config {
	return &Config{}
}

// GetRegularization returns λ or DefaultRegularization if not set
func (c *Config) GetRegularization() float64 {
	if c.Regularization != nil {
		return *c.Regularization
	}
	return DefaultRegularization
}

// GetPrecision returns the output precision or DefaultPrecision if not set
func (c *Config) GetPrecision() int {
	if c.Precision != nil {
		return *c.Precision
	}
	return DefaultPrecision
}

// BatchJobs converts the configured jobs to driver jobs. Relative paths are
// resolved against baseDir, normally the directory holding the config file.
func (c *Config) BatchJobs(baseDir string) []Job {
	jobs := make([]Job, len(c.Jobs))
	for i, jc := range c.Jobs {
		lambda := c.GetRegularization()
		if jc.Regularization != nil {
			lambda = *jc.Regularization
		}
		jobs[i] = Job{
			ID:               jc.ID,
			VerticesPath:     resolvePath(baseDir, jc.Vertices),
			ControlLeftPath:  resolvePath(baseDir, jc.ControlLeft),
			ControlRightPath: resolvePath(baseDir, jc.ControlRight),
			OutputPath:       resolvePath(baseDir, jc.Output),
			Regularization:   lambda,
			Precision:        c.GetPrecision(),
			Overwrite:        c.Overwrite,
		}
	}
	return jobs
}

func resolvePath(baseDir, p string) string {
	if baseDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}

// LoadConfig loads the configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: config file not found: %s", ErrInput, path)
		}
		return nil, fmt.Errorf("%w: reading config file: %w", ErrInput, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: parsing config YAML: %w", ErrInput, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks value ranges and that every job names all of its files.
func (c *Config) Validate() error {
	if err := validateRegularization("regularization", c.Regularization); err != nil {
		return err
	}
	if p := c.GetPrecision(); p < 0 || p > MaxPrecision {
		return fmt.Errorf("%w: precision must be between 0 and %d, got %d", ErrInput, MaxPrecision, p)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative", ErrInput)
	}

	for i, jc := range c.Jobs {
		name := fmt.Sprintf("jobs[%d]", i)
		if jc.ID != "" {
			name += " (" + jc.ID + ")"
		}
		switch {
		case jc.Vertices == "":
			return fmt.Errorf("%w: %s.vertices is required", ErrInput, name)
		case jc.ControlLeft == "":
			return fmt.Errorf("%w: %s.controlLeft is required", ErrInput, name)
		case jc.ControlRight == "":
			return fmt.Errorf("%w: %s.controlRight is required", ErrInput, name)
		case jc.Output == "":
			return fmt.Errorf("%w: %s.output is required", ErrInput, name)
		}
		if err := validateRegularization(name+".regularization", jc.Regularization); err != nil {
			return err
		}
	}
	return nil
}

func validateRegularization(field string, v *float64) error {
	if v == nil {
		return nil
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || *v < 0 {
		return fmt.Errorf("%w: %s must be finite and non-negative, got %v", ErrInput, field, *v)
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(path string, config *Config) error {
	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("marshaling config YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("%w: writing config file: %w", ErrOutput, err)
	}

	return nil
}
