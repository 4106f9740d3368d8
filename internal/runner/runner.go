// Package runner executes targets from a task file: dependencies first, each
// target at most once per invocation, strictly one command at a time.
package runner

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/VoxDroid/devtask/internal/executor"
	"github.com/VoxDroid/devtask/internal/history"
	"github.com/VoxDroid/devtask/internal/release"
	"github.com/VoxDroid/devtask/internal/taskfile"
)

var (
	// ErrNoTarget is returned when nothing was requested and the task file has no default.
	ErrNoTarget = eris.New("no target given and no default target set")
	// ErrAborted is returned when a release confirmation is declined.
	ErrAborted = eris.New("aborted")
)

// Recorder persists one history row per requested target.
type Recorder interface {
	RecordRun(run history.Run) (int64, error)
}

// Engine runs targets of File through Exec.
type Engine struct {
	File   *taskfile.File
	Exec   executor.Runner
	Stdout io.Writer
	Stderr io.Writer

	// Recorder is optional.
	Recorder Recorder
	// DryRun is only stored in history; Exec decides what dry-run means.
	DryRun bool
	// ConfirmRelease, when set, is asked before a release bump runs.
	ConfirmRelease func(target string, res release.Result) bool

	now func() time.Time
}

type runState int

const (
	pending runState = iota
	running
	done
)

// Run executes the named targets in order. With no names the task file's
// default target runs. Every name is resolved before anything runs; the
// first failure stops the invocation.
func (e *Engine) Run(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		if e.File.Default == "" {
			return ErrNoTarget
		}
		names = []string{e.File.Default}
	}
	for _, name := range names {
		if _, err := e.File.Lookup(name); err != nil {
			return err
		}
	}

	state := make(map[string]runState, len(e.File.Targets))
	for _, name := range names {
		start := e.clock()
		err := e.runTarget(ctx, name, state)
		e.record(ctx, name, start, err)
		if err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) runTarget(ctx context.Context, name string, state map[string]runState) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrapf(err, "target %s", name)
	}
	log := zerolog.Ctx(ctx).With().Str("target", name).Logger()

	switch state[name] {
	case done:
		log.Debug().Msg("already run")
		return nil
	case running:
		return eris.Errorf("target %s was called recursively", name)
	}
	state[name] = running

	t, err := e.File.Lookup(name)
	if err != nil {
		return err
	}
	for _, dep := range t.Deps {
		if err := e.runTarget(ctx, dep, state); err != nil {
			return eris.Wrapf(err, "target %s failed due to its dependency %s", name, dep)
		}
	}

	ctx = log.WithContext(ctx)
	dir := e.File.TargetDir(t)
	env := e.File.TargetEnviron(t)
	switch {
	case t.Release != nil:
		if err := e.release(ctx, t, dir, env); err != nil {
			return eris.Wrapf(err, "target %s", name)
		}
	case t.Echo != "":
		_, _ = fmt.Fprintln(e.stdout(), t.Echo)
	default:
		for _, line := range t.Commands {
			if err := ctx.Err(); err != nil {
				return eris.Wrapf(err, "target %s", name)
			}
			log.Info().Msg(line)
			cmd := executor.Command{Line: line, Dir: dir, Env: env}
			if err := e.Exec.Execute(ctx, cmd, e.stdout(), e.stderr()); err != nil {
				return eris.Wrapf(err, "target %s", name)
			}
		}
	}

	state[name] = done
	return nil
}

func (e *Engine) release(ctx context.Context, t *taskfile.Target, dir string, env []string) error {
	r := &release.Releaser{Exec: e.Exec}
	res, err := r.Plan(ctx, t.Release, dir, env)
	if err != nil {
		return err
	}
	if e.ConfirmRelease != nil && !e.ConfirmRelease(t.Name, res) {
		return ErrAborted
	}
	if err := r.Bump(ctx, t.Release, res, dir, env, e.stdout(), e.stderr()); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(e.stdout(), "%s -> %s\n", res.Current, res.Next)
	return nil
}

func (e *Engine) record(ctx context.Context, name string, start time.Time, runErr error) {
	if e.Recorder == nil {
		return
	}
	run := history.Run{
		Target:    name,
		Status:    StatusOf(runErr),
		ExitCode:  ExitCode(runErr),
		StartedAt: start,
		Duration:  e.clock().Sub(start),
		DryRun:    e.DryRun,
		Dir:       e.File.BaseDir(),
	}
	if run.Dir == "" {
		run.Dir, _ = os.Getwd()
	}
	if runErr != nil {
		run.Error = sql.NullString{String: runErr.Error(), Valid: true}
	}
	if _, err := e.Recorder.RecordRun(run); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("target", name).Msg("could not record run history")
	}
}

// ExitCode maps an invocation error to a process exit status: the failing
// tool's own status when there is one, 130 for cancellation, 1 otherwise.
// A declined release is not a failure.
func ExitCode(err error) int {
	if err == nil || eris.Is(err, ErrAborted) {
		return 0
	}
	var exitErr *executor.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}

// StatusOf classifies an invocation error for history.
func StatusOf(err error) history.Status {
	switch {
	case err == nil:
		return history.StatusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded), eris.Is(err, ErrAborted):
		return history.StatusCanceled
	default:
		return history.StatusFailed
	}
}

func (e *Engine) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *Engine) stdout() io.Writer {
	if e.Stdout == nil {
		return io.Discard
	}
	return e.Stdout
}

func (e *Engine) stderr() io.Writer {
	if e.Stderr == nil {
		return io.Discard
	}
	return e.Stderr
}
