// Package domain defines the problem-domain collaborator: the component
// that knows what a task's features are, which answers are definitive,
// and how to present an answer. The portfolio core consults it only
// through this interface.
package domain

import (
	"fmt"
	"io"

	"github.com/me/armada/pkg/model"
)

// Domain describes one problem domain (satisfiability, optimization...).
type Domain interface {
	// Name returns the domain identifier.
	Name() string

	// ComputeFeatures extracts per-task feature names and values, used
	// by feature-based weight predictors.
	ComputeFeatures(task *model.Task) (names []string, values []float64, err error)

	// IsFinal reports whether an answer is definitive for the task.
	IsFinal(task *model.Task, answer *model.Answer) bool

	// ShowAnswer writes the answer in the domain's output format.
	ShowAnswer(w io.Writer, task *model.Task, answer *model.Answer)
}

// SAT is the bundled satisfiability domain. Decision instances are
// final on SATISFIABLE or UNSATISFIABLE; optimization instances accept
// OPTIMUM FOUND in place of SATISFIABLE.
type SAT struct{}

// Name returns "sat".
func (SAT) Name() string { return "sat" }

// ComputeFeatures is a hook for an external feature extractor; the
// bundled domain extracts none.
func (SAT) ComputeFeatures(task *model.Task) ([]string, []float64, error) {
	return nil, nil, nil
}

// IsFinal reports whether the answer decides the instance.
func (SAT) IsFinal(task *model.Task, answer *model.Answer) bool {
	if answer == nil {
		return false
	}
	if task.Objective {
		return answer.Text == "OPTIMUM FOUND" || answer.Text == "UNSATISFIABLE"
	}
	return answer.Text == "SATISFIABLE" || answer.Text == "UNSATISFIABLE"
}

// ShowAnswer prints competition-style output: an "s" status line and,
// when a certificate is present, a "v" values line.
func (SAT) ShowAnswer(w io.Writer, task *model.Task, answer *model.Answer) {
	if answer == nil {
		fmt.Fprintln(w, "s UNKNOWN")
		return
	}

	fmt.Fprintf(w, "s %s\n", answer.Text)
	if len(answer.Certificate) > 0 {
		fmt.Fprint(w, "v")
		for _, lit := range answer.Certificate {
			fmt.Fprintf(w, " %s", lit)
		}
		fmt.Fprintln(w)
	}
}
