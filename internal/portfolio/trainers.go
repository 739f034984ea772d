package portfolio

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/internal/survival"
)

// TrainModel builds a survival model from a training dataset at the
// given bin width, with one terminal overflow bin for unfinished runs.
func TrainModel(training *rundata.Dataset, solverNames []string, interval float64) (*survival.Model, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("non-positive interval %v", interval)
	}
	binCount := int(math.Ceil(training.CommonBudget() / interval))
	if binCount < 1 {
		return nil, fmt.Errorf("training data has no usable budget (common budget %v)", training.CommonBudget())
	}
	return survival.Build(training.ToBinsArray(solverNames, binCount), interval)
}

// Trainer builds a ready-to-run portfolio from training data. Variants
// that do not learn ignore the dataset.
type Trainer func(names []string, training *rundata.Dataset, cfg Config, seed int64, logger *slog.Logger) (Portfolio, error)

// Named maps portfolio variant names to their trainers. Every variant
// conforms to the same Solve contract; they differ only in how (or
// whether) they consult the model and planner.
var Named = map[string]Trainer{
	"random": func(names []string, training *rundata.Dataset, cfg Config, seed int64, logger *slog.Logger) (Portfolio, error) {
		return NewRandomPortfolio(seed), nil
	},
	"uniform": func(names []string, training *rundata.Dataset, cfg Config, seed int64, logger *slog.Logger) (Portfolio, error) {
		return NewUniformPortfolio(logger), nil
	},
	"baseline": func(names []string, training *rundata.Dataset, cfg Config, seed int64, logger *slog.Logger) (Portfolio, error) {
		return NewBaselinePortfolio(names, training)
	},
	"oracle": func(names []string, training *rundata.Dataset, cfg Config, seed int64, logger *slog.Logger) (Portfolio, error) {
		return NewOraclePortfolio(logger), nil
	},
	"preplanning": func(names []string, training *rundata.Dataset, cfg Config, seed int64, logger *slog.Logger) (Portfolio, error) {
		m, err := TrainModel(training, names, cfg.Interval)
		if err != nil {
			return nil, err
		}
		return NewPreplanningPortfolio(m, cfg.Planner, logger)
	},
	"pure-model": func(names []string, training *rundata.Dataset, cfg Config, seed int64, logger *slog.Logger) (Portfolio, error) {
		m, err := TrainModel(training, names, cfg.Interval)
		if err != nil {
			return nil, err
		}
		return NewPureModelPortfolio(m, cfg, logger), nil
	},
}

// Names returns the registered variant names, sorted.
func Names() []string {
	names := make([]string, 0, len(Named))
	for name := range Named {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Train builds the named portfolio variant, or errors on an unknown
// name.
func Train(variant string, names []string, training *rundata.Dataset, cfg Config, seed int64, logger *slog.Logger) (Portfolio, error) {
	trainer, ok := Named[variant]
	if !ok {
		return nil, fmt.Errorf("unknown portfolio variant %q (have %v)", variant, Names())
	}
	return trainer(names, training, cfg, seed, logger)
}
