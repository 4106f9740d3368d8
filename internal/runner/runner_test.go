package runner

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/require"

	"github.com/VoxDroid/devtask/internal/db"
	"github.com/VoxDroid/devtask/internal/executor"
	"github.com/VoxDroid/devtask/internal/history"
	"github.com/VoxDroid/devtask/internal/release"
	"github.com/VoxDroid/devtask/internal/taskfile"
)

// fakeRunner records commands and fails the ones listed in fail.
type fakeRunner struct {
	executed   []executor.Command
	fail       map[string]error
	captureOut string
	onExecute  func()
}

func (f *fakeRunner) Execute(_ context.Context, cmd executor.Command, stdout, _ io.Writer) error {
	f.executed = append(f.executed, cmd)
	if f.onExecute != nil {
		f.onExecute()
	}
	if err, ok := f.fail[cmd.Line]; ok {
		return err
	}
	_, _ = io.WriteString(stdout, "ran: "+cmd.Line+"\n")
	return nil
}

func (f *fakeRunner) Capture(_ context.Context, cmd executor.Command) (string, error) {
	return f.captureOut, nil
}

func (f *fakeRunner) lines() []string {
	out := make([]string, 0, len(f.executed))
	for _, c := range f.executed {
		out = append(out, c.Line)
	}
	return out
}

type memRecorder struct {
	runs []history.Run
}

func (m *memRecorder) RecordRun(run history.Run) (int64, error) {
	m.runs = append(m.runs, run)
	return int64(len(m.runs)), nil
}

func newEngine(f *taskfile.File, fake *fakeRunner) (*Engine, *bytes.Buffer) {
	var out bytes.Buffer
	return &Engine{File: f, Exec: fake, Stdout: &out, Stderr: io.Discard}, &out
}

func TestEachTargetInvokesExpectedCommands(t *testing.T) {
	cases := map[string][]string{
		"tests":   {"poetry run pytest tests"},
		"install": {"poetry install"},
		"fmt":     {"poetry run isort $SOURCES", "poetry run black $SOURCES"},
		"lint":    {"poetry run flake8 $SOURCES"},
		"all": {
			"poetry run isort $SOURCES", "poetry run black $SOURCES",
			"poetry run flake8 $SOURCES",
			"poetry run pytest tests",
		},
		"test-docs": {},
	}
	for name, want := range cases {
		fake := &fakeRunner{}
		e, _ := newEngine(taskfile.Default(), fake)
		require.NoError(t, e.Run(context.Background(), name), name)
		require.Equal(t, want, fake.lines(), name)
		for _, c := range fake.executed {
			require.Contains(t, c.Env, "SOURCES=citrex rysk_v2 tests")
		}
	}
}

func TestTestDocsPrintsPlaceholder(t *testing.T) {
	fake := &fakeRunner{}
	e, out := newEngine(taskfile.Default(), fake)
	require.NoError(t, e.Run(context.Background(), "test-docs"))
	require.Equal(t, "Not implemented yet\n", out.String())
	require.Empty(t, fake.executed)
}

func TestReleaseTarget(t *testing.T) {
	fake := &fakeRunner{captureOut: "0.9.9\n"}
	e, out := newEngine(taskfile.Default(), fake)
	require.NoError(t, e.Run(context.Background(), "release"))

	require.Equal(t, []string{`poetry version "$NEW_VERSION"`}, fake.lines())
	require.Contains(t, fake.executed[0].Env, "NEW_VERSION=0.9.10")
	require.Contains(t, out.String(), "0.9.9 -> 0.9.10")
}

func TestReleaseConfirmationDeclined(t *testing.T) {
	fake := &fakeRunner{captureOut: "1.0.0"}
	e, _ := newEngine(taskfile.Default(), fake)
	var asked release.Result
	e.ConfirmRelease = func(target string, res release.Result) bool {
		require.Equal(t, "release", target)
		asked = res
		return false
	}
	rec := &memRecorder{}
	e.Recorder = rec

	err := e.Run(context.Background(), "release")
	require.Error(t, err)
	require.True(t, eris.Is(err, ErrAborted))
	require.Equal(t, "1.0.1", asked.Next)
	require.Empty(t, fake.executed)
	require.Equal(t, history.StatusCanceled, rec.runs[0].Status)
	require.Equal(t, 0, rec.runs[0].ExitCode)
	require.Equal(t, 0, ExitCode(err))
}

func TestDependenciesRunOnce(t *testing.T) {
	src := `
[targets.a]
commands = ["echo a"]
[targets.b]
deps = ["a"]
commands = ["echo b"]
[targets.c]
deps = ["a", "b"]
commands = ["echo c"]
`
	f, err := taskfile.Parse([]byte(src), taskfile.FormatTOML)
	require.NoError(t, err)

	fake := &fakeRunner{}
	e, _ := newEngine(f, fake)
	require.NoError(t, e.Run(context.Background(), "c", "a"))
	require.Equal(t, []string{"echo a", "echo b", "echo c"}, fake.lines())
}

func TestFirstFailureStops(t *testing.T) {
	lintErr := &executor.ExitError{Line: "poetry run flake8 $SOURCES", Code: 2}
	fake := &fakeRunner{fail: map[string]error{"poetry run flake8 $SOURCES": lintErr}}
	e, _ := newEngine(taskfile.Default(), fake)
	rec := &memRecorder{}
	e.Recorder = rec

	err := e.Run(context.Background(), "all", "install")
	require.Error(t, err)
	require.Contains(t, err.Error(), "dependency lint")
	require.Equal(t, 2, ExitCode(err))
	require.Equal(t, []string{"poetry run isort $SOURCES", "poetry run black $SOURCES", "poetry run flake8 $SOURCES"}, fake.lines())

	require.Len(t, rec.runs, 1)
	require.Equal(t, "all", rec.runs[0].Target)
	require.Equal(t, history.StatusFailed, rec.runs[0].Status)
	require.Equal(t, 2, rec.runs[0].ExitCode)
	require.True(t, rec.runs[0].Error.Valid)
}

func TestUnknownTargetRunsNothing(t *testing.T) {
	fake := &fakeRunner{}
	e, _ := newEngine(taskfile.Default(), fake)
	err := e.Run(context.Background(), "tests", "deploy")
	require.True(t, eris.Is(err, taskfile.ErrUnknownTarget))
	require.Empty(t, fake.executed)
}

func TestDefaultTarget(t *testing.T) {
	f, err := taskfile.Parse([]byte("default = \"b\"\n[targets.a]\ncommands = [\"x\"]\n[targets.b]\ncommands = [\"y\"]\n"), taskfile.FormatTOML)
	require.NoError(t, err)
	fake := &fakeRunner{}
	e, _ := newEngine(f, fake)
	require.NoError(t, e.Run(context.Background()))
	require.Equal(t, []string{"y"}, fake.lines())

	e, _ = newEngine(taskfile.Default(), &fakeRunner{})
	require.True(t, eris.Is(e.Run(context.Background()), ErrNoTarget))
}

func TestCancellationStopsBeforeNextCommand(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeRunner{onExecute: cancel}
	e, _ := newEngine(taskfile.Default(), fake)
	rec := &memRecorder{}
	e.Recorder = rec

	err := e.Run(ctx, "fmt")
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	require.Equal(t, 130, ExitCode(err))
	require.Len(t, fake.executed, 1)
	require.Equal(t, history.StatusCanceled, rec.runs[0].Status)
}

func TestRecordsDurationAndDryRun(t *testing.T) {
	ticks := []time.Time{
		time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC),
		time.Date(2026, 10, 17, 9, 0, 3, 0, time.UTC),
	}
	fake := &fakeRunner{}
	e, _ := newEngine(taskfile.Default(), fake)
	e.DryRun = true
	rec := &memRecorder{}
	e.Recorder = rec
	e.now = func() time.Time {
		t := ticks[0]
		if len(ticks) > 1 {
			ticks = ticks[1:]
		}
		return t
	}

	require.NoError(t, e.Run(context.Background(), "tests"))
	require.Len(t, rec.runs, 1)
	require.Equal(t, history.StatusOK, rec.runs[0].Status)
	require.Equal(t, 3*time.Second, rec.runs[0].Duration)
	require.True(t, rec.runs[0].DryRun)
	require.NotEmpty(t, rec.runs[0].Dir)
}

func TestTargetDirAndEnv(t *testing.T) {
	src := `
[vars]
py = ["pkg"]
[targets.docs]
dir = "docs"
env = { SPHINXOPTS = "-W" }
commands = ["make html"]
`
	f, err := taskfile.Parse([]byte(src), taskfile.FormatTOML)
	require.NoError(t, err)
	f.Path = filepath.Join(string(filepath.Separator), "proj", "devtask.toml")

	fake := &fakeRunner{}
	e, _ := newEngine(f, fake)
	require.NoError(t, e.Run(context.Background(), "docs"))
	require.Equal(t, filepath.Join(string(filepath.Separator), "proj", "docs"), fake.executed[0].Dir)
	require.Equal(t, []string{"PY=pkg", "SPHINXOPTS=-W"}, fake.executed[0].Env)
}

func TestHistoryRecorderIntegration(t *testing.T) {
	conn, err := db.Open(filepath.Join(t.TempDir(), "h.db"))
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	repo := history.NewRepository(conn)

	fake := &fakeRunner{}
	e, _ := newEngine(taskfile.Default(), fake)
	e.Recorder = repo
	require.NoError(t, e.Run(context.Background(), "install", "tests"))

	runs, err := repo.ListRuns("", 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
}

func TestRealInterpreter(t *testing.T) {
	src := `
[vars]
words = ["alpha", "beta"]
[targets.hello]
commands = ["for w in $WORDS; do echo $w; done"]
[targets.fail]
deps = ["hello"]
commands = ["exit 7", "echo unreachable"]
`
	f, err := taskfile.Parse([]byte(src), taskfile.FormatTOML)
	require.NoError(t, err)

	var out bytes.Buffer
	e := &Engine{File: f, Exec: executor.New(false, false, false), Stdout: &out, Stderr: io.Discard}
	err = e.Run(context.Background(), "fail")
	require.Error(t, err)
	require.Equal(t, 7, ExitCode(err))
	require.Equal(t, "alpha\nbeta\n", out.String())
}

func TestExitCodeAndStatus(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 1, ExitCode(eris.New("boom")))
	require.Equal(t, 0, ExitCode(eris.Wrap(ErrAborted, "target release")))
	require.Equal(t, 5, ExitCode(eris.Wrap(&executor.ExitError{Code: 5}, "target x")))

	require.Equal(t, history.StatusOK, StatusOf(nil))
	require.Equal(t, history.StatusFailed, StatusOf(eris.New("boom")))
	require.Equal(t, history.StatusCanceled, StatusOf(eris.Wrap(context.DeadlineExceeded, "slow")))
}
