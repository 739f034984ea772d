package solver

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/me/armada/internal/logging"
	"github.com/me/armada/pkg/model"

	"log/slog"
)

// CommandSolver runs an external solver binary. The command is a
// template whose "{task}" arguments are replaced with the instance path
// at start time.
type CommandSolver struct {
	name    string
	command []string
	logger  *slog.Logger
}

// NewCommandSolver creates a solver for the given command template.
func NewCommandSolver(name string, command []string, logger *slog.Logger) *CommandSolver {
	return &CommandSolver{
		name:    name,
		command: command,
		logger:  logging.Component(logger, "solver", "solver", name),
	}
}

// Name returns the solver's stable name.
func (s *CommandSolver) Name() string { return s.name }

// Start spawns the solver process against the task. The process begins
// suspended; time is consumed only inside RunThenStop/RunThenPause.
func (s *CommandSolver) Start(ctx context.Context, task *model.Task) (Process, error) {
	if len(s.command) == 0 {
		return nil, fmt.Errorf("solver %q has an empty command", s.name)
	}

	argv := make([]string, len(s.command))
	for i, arg := range s.command {
		argv[i] = strings.ReplaceAll(arg, "{task}", task.Path)
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	proc := &commandProcess{
		cmd:    cmd,
		logger: s.logger,
		run:    model.NewRun(time.Now().UTC(), 0),
	}
	cmd.Stdout = &proc.stdout
	cmd.Stderr = &proc.stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start solver %q: %w", s.name, err)
	}

	// Suspend immediately; the budget clock starts at the first run call.
	if err := cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		cmd.Process.Kill()
		return nil, fmt.Errorf("suspend solver %q: %w", s.name, err)
	}

	proc.waitCh = make(chan error, 1)
	go func() { proc.waitCh <- cmd.Wait() }()

	s.logger.Debug("solver started", "task", task.Name, "pid", cmd.Process.Pid)
	return proc, nil
}

// Solve runs one complete bounded attempt with a fresh process.
func (s *CommandSolver) Solve(ctx context.Context, task *model.Task, budget float64) (model.Attempt, error) {
	process, err := s.Start(ctx, task)
	if err != nil {
		return nil, err
	}
	answer, err := process.RunThenStop(ctx, budget)
	if err != nil {
		return nil, err
	}

	proc := process.(*commandProcess)
	return &model.DirectAttempt{
		Ref:       model.SolverRef{Name: s.name},
		Allotted:  budget,
		Consumed:  process.Elapsed(),
		Task:      task.UUID,
		Result:    answer,
		RunRecord: proc.Record(),
	}, nil
}

// commandProcess drives one external solver process through bounded
// run segments, pausing with SIGSTOP and resuming with SIGCONT.
type commandProcess struct {
	cmd    *exec.Cmd
	logger *slog.Logger

	stdout bytes.Buffer
	stderr bytes.Buffer
	waitCh chan error

	mu         sync.Mutex
	elapsed    float64
	terminated bool
	run        *model.Run
}

// RunThenStop resumes the process for up to seconds, then kills it.
func (p *commandProcess) RunThenStop(ctx context.Context, seconds float64) (*model.Answer, error) {
	return p.runBounded(ctx, seconds, true)
}

// RunThenPause resumes the process for up to seconds, then suspends it.
func (p *commandProcess) RunThenPause(ctx context.Context, seconds float64) (*model.Answer, error) {
	return p.runBounded(ctx, seconds, false)
}

func (p *commandProcess) runBounded(ctx context.Context, seconds float64, stop bool) (*model.Answer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.terminated {
		return nil, fmt.Errorf("process already terminated")
	}
	if seconds <= 0 {
		if stop {
			p.kill()
		}
		return nil, nil
	}

	if err := p.cmd.Process.Signal(syscall.SIGCONT); err != nil {
		p.kill()
		return nil, fmt.Errorf("resume process: %w", err)
	}

	started := time.Now()
	timer := time.NewTimer(time.Duration(seconds * float64(time.Second)))
	defer timer.Stop()

	finished := false
	select {
	case <-p.waitCh:
		finished = true
	case <-timer.C:
	case <-ctx.Done():
		p.elapsed += time.Since(started).Seconds()
		p.kill()
		return nil, ctx.Err()
	}
	p.elapsed += time.Since(started).Seconds()

	if finished {
		p.finish()
		return p.parseAnswer(), nil
	}

	if stop {
		p.kill()
		return nil, nil
	}

	if err := p.cmd.Process.Signal(syscall.SIGSTOP); err != nil {
		p.kill()
		return nil, fmt.Errorf("suspend process: %w", err)
	}
	return nil, nil
}

// kill forcibly ends the process, waits for it, and records the run.
// Callers hold p.mu.
func (p *commandProcess) kill() {
	if p.terminated {
		return
	}
	p.cmd.Process.Kill()
	<-p.waitCh
	p.finish()
}

// finish marks the process terminated and completes its run record.
// Callers hold p.mu.
func (p *commandProcess) finish() {
	if p.terminated {
		return
	}
	p.terminated = true

	p.run.ProcElapsed = time.Duration(p.elapsed * float64(time.Second))
	p.run.Stdout = append([]byte(nil), p.stdout.Bytes()...)
	p.run.Stderr = append([]byte(nil), p.stderr.Bytes()...)

	if state := p.cmd.ProcessState; state != nil {
		if usage, ok := state.SysUsage().(*syscall.Rusage); ok {
			cpu := time.Duration(usage.Utime.Nano() + usage.Stime.Nano())
			p.run.UsageElapsed = cpu
			// Prefer real CPU accounting over the wall-clock segments.
			p.elapsed = cpu.Seconds()
		}
		if code := state.ExitCode(); code >= 0 {
			p.run.ExitStatus = &code
		}
		if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			sig := int(ws.Signal())
			p.run.ExitSignal = &sig
		}
	}
}

// parseAnswer reads a competition-style answer from captured stdout:
// an "s ..." status line plus optional "v ..." certificate lines.
func (p *commandProcess) parseAnswer() *model.Answer {
	var answer *model.Answer
	for _, line := range strings.Split(p.stdout.String(), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "s "):
			answer = &model.Answer{Text: strings.TrimPrefix(line, "s ")}
		case strings.HasPrefix(line, "v ") && answer != nil:
			answer.Certificate = append(answer.Certificate, strings.Fields(strings.TrimPrefix(line, "v "))...)
		}
	}
	if answer != nil && answer.Text == "UNKNOWN" {
		return nil
	}
	return answer
}

// Elapsed is the CPU time consumed so far, in seconds.
func (p *commandProcess) Elapsed() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elapsed
}

// Terminated reports whether the process has stopped for good.
func (p *commandProcess) Terminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.terminated
}

// Record returns the run record; complete once the process terminates.
func (p *commandProcess) Record() *model.Run {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run
}
