package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the runtime configuration shared by the command-line
// tools.
type Config struct {
	LogLevel   string  `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat  string  `yaml:"log_format"` // Log format: text, json
	DBPath     string  `yaml:"db_path"`    // SQLite database path (":memory:" for testing)
	Solvers    string  `yaml:"solvers"`    // Solvers description file
	TasksRoot  string  `yaml:"tasks_root"` // Root directory of task instances
	Budget     float64 `yaml:"budget"`     // Per-task CPU-seconds budget
	Interval   float64 `yaml:"interval"`   // Planning bin width in CPU-seconds
	RunsLimit  int     `yaml:"runs_limit"` // Invocation cap per episode
	Portfolio  string  `yaml:"portfolio"`  // Portfolio variant name
	TimeRatio  float64 `yaml:"time_ratio"` // Budget scaling for machine speed differences
	Seed       int64   `yaml:"seed"`       // Seed for stochastic variants
	Collection string  `yaml:"collection"` // Task name collection in the run archive
}

// Default returns sensible defaults.
func Default() Config {
	return Config{
		LogLevel:   "info",
		LogFormat:  "text",
		Budget:     5000,
		Interval:   50,
		RunsLimit:  256,
		Portfolio:  "pure-model",
		TimeRatio:  1.0,
		Collection: "default",
	}
}

// Load reads a YAML configuration file over the defaults. Unset fields
// keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
