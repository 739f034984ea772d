package rundata

import (
	"encoding/csv"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/me/armada/pkg/model"
)

// SidecarSuffix is appended to an instance path to name its recorded-run
// file.
const SidecarSuffix = ".rtd.csv"

// LoadDir walks root for instance files matching the glob patterns and
// loads each instance's recorded runs from its sidecar CSV (columns:
// solver, seed, budget, cost, answer). Instances without a sidecar are
// still returned as tasks; they simply contribute no outcomes.
func LoadDir(root string, patterns []string, logger *slog.Logger) ([]*model.Task, *Dataset, error) {
	data := New()
	var tasks []*model.Task

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		matched := false
		for _, pattern := range patterns {
			ok, err := filepath.Match(pattern, d.Name())
			if err != nil {
				return fmt.Errorf("bad pattern %q: %w", pattern, err)
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = d.Name()
		}
		tasks = append(tasks, model.NewTask(rel, path))

		if err := loadSidecar(data, rel, path+SidecarSuffix); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk %s: %w", root, err)
	}

	logger.Info("run data loaded", "root", root, "tasks", len(tasks), "common_budget", data.CommonBudget())
	return tasks, data, nil
}

// loadSidecar appends one instance's recorded runs, if the sidecar
// exists.
func loadSidecar(data *Dataset, task, path string) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open run data: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = 5

	records, err := reader.ReadAll()
	if err != nil {
		return fmt.Errorf("parse run data %s: %w", path, err)
	}

	for i, record := range records {
		outcome, err := parseOutcome(record)
		if err != nil {
			return fmt.Errorf("run data %s row %d: %w", path, i+1, err)
		}
		data.Add(task, outcome)
	}
	return nil
}

// parseOutcome interprets one CSV row. The answer column is "" for no
// answer, "True" for satisfiable, "False" for unsatisfiable.
func parseOutcome(record []string) (Outcome, error) {
	seed, err := strconv.ParseInt(record[1], 10, 64)
	if err != nil {
		return Outcome{}, fmt.Errorf("bad seed %q: %w", record[1], err)
	}
	budget, err := strconv.ParseFloat(record[2], 64)
	if err != nil {
		return Outcome{}, fmt.Errorf("bad budget %q: %w", record[2], err)
	}
	cost, err := strconv.ParseFloat(record[3], 64)
	if err != nil {
		return Outcome{}, fmt.Errorf("bad cost %q: %w", record[3], err)
	}

	outcome := Outcome{
		Solver: record[0],
		Seed:   seed,
		Budget: budget,
		Cost:   cost,
	}
	switch record[4] {
	case "":
	case "True":
		outcome.Succeeded = true
		outcome.Answer = "SATISFIABLE"
	case "False":
		outcome.Succeeded = true
		outcome.Answer = "UNSATISFIABLE"
	default:
		return Outcome{}, fmt.Errorf("bad answer %q", record[4])
	}
	return outcome, nil
}
