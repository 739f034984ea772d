// Package training builds portfolios from recorded runs and serializes
// the result as a snapshot that solve-time tools can rehydrate without
// access to the training data.
package training

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/me/armada/internal/planner"
	"github.com/me/armada/internal/portfolio"
	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/internal/survival"
)

// Snapshot is the on-disk form of a trained portfolio: enough to
// rebuild the variant without retraining. Model-free variants leave the
// curve fields empty.
type Snapshot struct {
	Portfolio   string      `json:"portfolio"`
	Domain      string      `json:"domain"`
	Interval    float64     `json:"interval"`
	RunsLimit   int         `json:"runs_limit"`
	Seed        int64       `json:"seed"`
	SolverNames []string    `json:"solver_names"`
	Baseline    string      `json:"baseline,omitempty"`
	LogSurvival [][]float64 `json:"log_survival,omitempty"`
	LogWeights  []float64   `json:"log_weights,omitempty"`
}

// Train builds the named portfolio variant from the training data and
// returns it together with its snapshot.
func Train(variant, domainName string, names []string, training *rundata.Dataset, cfg portfolio.Config, seed int64, logger *slog.Logger) (portfolio.Portfolio, *Snapshot, error) {
	built, err := portfolio.Train(variant, names, training, cfg, seed, logger)
	if err != nil {
		return nil, nil, err
	}

	snap := &Snapshot{
		Portfolio:   variant,
		Domain:      domainName,
		Interval:    cfg.Interval,
		RunsLimit:   cfg.RunsLimit,
		Seed:        seed,
		SolverNames: append([]string(nil), names...),
	}

	switch variant {
	case "baseline":
		snap.Baseline = built.(*portfolio.BaselinePortfolio).SolverName()
	case "preplanning", "pure-model":
		m, err := portfolio.TrainModel(training, names, cfg.Interval)
		if err != nil {
			return nil, nil, err
		}
		snap.LogSurvival = m.LogSurvival()
		snap.LogWeights = m.LogWeights()
	}

	logger.Info("portfolio training complete", "variant", variant, "solvers", len(names))
	return built, snap, nil
}

// Model rebuilds the survival model captured in the snapshot. Returns
// an error when the snapshot has no model.
func (s *Snapshot) Model() (*survival.Model, error) {
	if len(s.LogSurvival) == 0 {
		return nil, fmt.Errorf("snapshot of %q portfolio carries no model", s.Portfolio)
	}
	m := survival.New(s.LogSurvival, s.Interval)
	if len(s.LogWeights) > 0 {
		return m.WithWeights(s.LogWeights)
	}
	return m, nil
}

// Rebuild reconstructs the snapshot's portfolio without training data.
func (s *Snapshot) Rebuild(logger *slog.Logger) (portfolio.Portfolio, error) {
	cfg := portfolio.Config{
		Interval:  s.Interval,
		RunsLimit: s.RunsLimit,
		Planner:   planner.NewKnapsackPlanner(),
	}

	switch s.Portfolio {
	case "random":
		return portfolio.NewRandomPortfolio(s.Seed), nil
	case "uniform":
		return portfolio.NewUniformPortfolio(logger), nil
	case "oracle":
		return portfolio.NewOraclePortfolio(logger), nil
	case "baseline":
		if s.Baseline == "" {
			return nil, fmt.Errorf("baseline snapshot names no solver")
		}
		return portfolio.NewBaselineWithSolver(s.Baseline), nil
	case "preplanning":
		m, err := s.Model()
		if err != nil {
			return nil, err
		}
		return portfolio.NewPreplanningPortfolio(m, cfg.Planner, logger)
	case "pure-model":
		m, err := s.Model()
		if err != nil {
			return nil, err
		}
		return portfolio.NewPureModelPortfolio(m, cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown portfolio variant %q in snapshot", s.Portfolio)
	}
}

// Save writes the snapshot as indented JSON.
func Save(path string, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads a snapshot written by Save.
func Load(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &snap, nil
}
