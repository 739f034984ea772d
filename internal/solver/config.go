package solver

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// solversFile is the on-disk description of named solvers. Files can
// include further files, resolved relative to the including file.
type solversFile struct {
	Solvers map[string]struct {
		Command []string `yaml:"command"`
	} `yaml:"solvers"`
	Includes []string `yaml:"includes"`
}

// LoadSolversFile reads a solvers description and registers every named
// solver (recursively through includes) into a fresh Environment.
func LoadSolversFile(path string, logger *slog.Logger) (*Environment, error) {
	env := NewEnvironment(logger)
	if err := loadSolversInto(env, path, logger); err != nil {
		return nil, err
	}
	return env, nil
}

func loadSolversInto(env *Environment, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read solvers file: %w", err)
	}

	var file solversFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse solvers file %s: %w", path, err)
	}

	logger.Debug("solvers file read", "path", path, "solvers", len(file.Solvers))

	for name, desc := range file.Solvers {
		if len(desc.Command) == 0 {
			return fmt.Errorf("solver %q in %s has no command", name, path)
		}
		env.RegisterSolver(NewCommandSolver(name, desc.Command, logger))
	}

	dir := filepath.Dir(path)
	for _, include := range file.Includes {
		if !filepath.IsAbs(include) {
			include = filepath.Join(dir, include)
		}
		if err := loadSolversInto(env, include, logger); err != nil {
			return err
		}
	}

	return nil
}
