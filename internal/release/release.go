// Package release implements the version bump flow: read the current version
// from the project's version tool, compute the next one and hand it back to
// the tool.
package release

import (
	"context"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"github.com/VoxDroid/devtask/internal/executor"
	"github.com/VoxDroid/devtask/internal/taskfile"
	"github.com/VoxDroid/devtask/internal/versioning"
)

const (
	EnvCurrentVersion = "CURRENT_VERSION"
	EnvNewVersion     = "NEW_VERSION"
)

// Result holds the versions a release moved between.
type Result struct {
	Current string
	Next    string
}

// Releaser runs a taskfile.Release through an executor.Runner.
type Releaser struct {
	Exec executor.Runner
}

// Plan reads the current version and computes the next one without running
// the bump command.
func (r *Releaser) Plan(ctx context.Context, rel *taskfile.Release, dir string, env []string) (Result, error) {
	if rel == nil {
		return Result{}, eris.New("no release settings")
	}
	part, err := versioning.ParsePart(rel.Part)
	if err != nil {
		return Result{}, err
	}
	out, err := r.Exec.Capture(ctx, executor.Command{Line: rel.VersionCommand, Dir: dir, Env: env})
	if err != nil {
		return Result{}, eris.Wrap(err, "read current version")
	}
	current, err := versioning.Extract(out)
	if err != nil {
		return Result{}, eris.Wrapf(err, "read current version from %q", strings.TrimSpace(out))
	}
	next, err := versioning.Next(current, part)
	if err != nil {
		return Result{}, eris.Wrap(err, "compute next version")
	}
	return Result{Current: current, Next: next}, nil
}

// Run plans the release and bumps it.
func (r *Releaser) Run(ctx context.Context, rel *taskfile.Release, dir string, env []string, stdout, stderr io.Writer) (Result, error) {
	res, err := r.Plan(ctx, rel, dir, env)
	if err != nil {
		return Result{}, err
	}
	return res, r.Bump(ctx, rel, res, dir, env, stdout, stderr)
}

// Bump invokes the bump command for a planned release with CURRENT_VERSION
// and NEW_VERSION set.
func (r *Releaser) Bump(ctx context.Context, rel *taskfile.Release, res Result, dir string, env []string, stdout, stderr io.Writer) error {
	zerolog.Ctx(ctx).Info().
		Str("current", res.Current).
		Str("next", res.Next).
		Msgf("bumping version %s -> %s", res.Current, res.Next)

	bumpEnv := append(append([]string{}, env...),
		EnvCurrentVersion+"="+res.Current,
		EnvNewVersion+"="+res.Next,
	)
	cmd := executor.Command{Line: rel.BumpCommand, Dir: dir, Env: bumpEnv}
	if err := r.Exec.Execute(ctx, cmd, stdout, stderr); err != nil {
		return eris.Wrap(err, "bump version")
	}
	return nil
}
