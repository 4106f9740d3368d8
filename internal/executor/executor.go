// Package executor runs task command lines through an embedded POSIX shell
// interpreter, so task files behave the same on every platform.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/VoxDroid/devtask/internal/security"
)

// Command is a single command line plus where and with what environment it runs.
type Command struct {
	Line string
	// Dir is the working directory; empty means the process working directory.
	Dir string
	// Env entries (NAME=value) are layered over the process environment.
	Env []string
}

// Runner is an interface for executing commands. It allows tests to inject
// fake implementations without running real tools.
type Runner interface {
	// Execute runs cmd, streaming its output to stdout and stderr.
	Execute(ctx context.Context, cmd Command, stdout, stderr io.Writer) error
	// Capture runs cmd and returns its standard output. It runs even in
	// dry-run mode; callers only use it for read-only queries.
	Capture(ctx context.Context, cmd Command) (string, error)
}

// ExitError reports a command that ran and exited non-zero. Code is the
// tool's own exit status.
type ExitError struct {
	Line   string
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command %q exited with status %d: %s", e.Line, e.Code, e.Stderr)
	}
	return fmt.Sprintf("command %q exited with status %d", e.Line, e.Code)
}

// Executor is the interpreter-backed Runner.
type Executor struct {
	DryRun  bool
	Verbose bool
	// Force skips the destructive-command check.
	Force bool
	// Stdin is handed to every command; nil means no input.
	Stdin io.Reader
}

var _ Runner = (*Executor)(nil)

// New returns an Executor with the given switches.
func New(dry, verbose, force bool) *Executor {
	return &Executor{DryRun: dry, Verbose: verbose, Force: force}
}

// Execute sanitizes and validates the command line, checks it against the
// destructive-command list and interprets it with errexit set, so the first
// failing statement ends the line.
func (e *Executor) Execute(ctx context.Context, cmd Command, stdout, stderr io.Writer) error {
	line, err := e.prepare(cmd.Line)
	if err != nil {
		return err
	}
	if e.DryRun {
		_, _ = fmt.Fprintf(stdout, "dry-run: %s\n", line)
		return nil
	}
	return e.run(ctx, line, cmd, e.Stdin, stdout, stderr)
}

// Capture runs the command and returns what it printed on stdout. A failing
// command's stderr is attached to the returned ExitError.
func (e *Executor) Capture(ctx context.Context, cmd Command) (string, error) {
	line, err := e.prepare(cmd.Line)
	if err != nil {
		return "", err
	}
	var bout, berr bytes.Buffer
	if err := e.run(ctx, line, cmd, nil, &bout, &berr); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			exitErr.Stderr = strings.TrimSpace(berr.String())
		}
		return bout.String(), err
	}
	return bout.String(), nil
}

func (e *Executor) prepare(raw string) (string, error) {
	line, err := validateAndSanitize(raw)
	if err != nil {
		return "", err
	}
	if !e.Force {
		if err := security.CheckAllowed(line); err != nil {
			return "", eris.Wrapf(err, "refusing to run potentially dangerous command %q (use --force to override)", line)
		}
	}
	return line, nil
}

func (e *Executor) run(ctx context.Context, line string, cmd Command, stdin io.Reader, stdout, stderr io.Writer) error {
	file, err := syntax.NewParser().Parse(strings.NewReader(line), "")
	if err != nil {
		return eris.Wrapf(err, "parse command %q", line)
	}

	env := append(os.Environ(), cmd.Env...)
	runner, err := interp.New(
		interp.Dir(cmd.Dir),
		interp.Env(expand.ListEnviron(env...)),
		interp.ExecHandlers(e.logExec),
		interp.StdIO(stdin, stdout, stderr),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "failed to initialize shell")
	}

	if err := runner.Run(ctx, file); err != nil {
		if status, ok := interp.IsExitStatus(err); ok {
			return &ExitError{Line: line, Code: int(status)}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return eris.Wrapf(ctxErr, "command %q interrupted", line)
		}
		return eris.Wrapf(err, "command %q failed", line)
	}
	return nil
}

// logExec logs every external process the interpreter starts. Builtins such
// as echo never reach exec handlers.
func (e *Executor) logExec(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(ctx context.Context, args []string) error {
		evt := zerolog.Ctx(ctx).Debug()
		if e.Verbose {
			evt = zerolog.Ctx(ctx).Info()
		}
		evt.Str("dir", interp.HandlerCtx(ctx).Dir).Msg("exec " + shellquote.Join(args...))
		return next(ctx, args)
	}
}

// sanitizeCommand normalizes common unicode characters that often get
// inserted by editors (e.g., smart quotes, NBSP, zero-width spaces) and
// converts them to their ASCII equivalents where sensible.
func sanitizeCommand(s string) string {
	r := strings.NewReplacer(
		"\u2018", "'", // left single quote
		"\u2019", "'", // right single quote
		"\u201C", "\"", // left double quote
		"\u201D", "\"", // right double quote
		"\u00A0", " ", // NO-BREAK SPACE
		"\u200B", "", // zero width space
		"\u200E", "", // left-to-right mark
		"\u200F", "", // right-to-left mark
		"\r\n", "\n",
	)
	return strings.Map(func(r rune) rune {
		if r == 0 {
			return -1
		}
		return r
	}, r.Replace(s))
}

func validateAndSanitize(command string) (string, error) {
	command = strings.TrimSpace(sanitizeCommand(command))
	if err := ValidateCommand(command); err != nil {
		return "", err
	}
	return command, nil
}

// ValidateCommand rejects empty command lines and control characters other
// than tab and newline.
func ValidateCommand(s string) error {
	if strings.TrimSpace(s) == "" {
		return eris.New("invalid command: empty")
	}
	if strings.IndexFunc(s, func(r rune) bool { return r == 0 || (r < 32 && r != '\t' && r != '\n') || r == 0x7f }) != -1 {
		return eris.New("invalid command: contains control characters; remove non-printable characters")
	}
	return nil
}

// Sanitize normalizes common unicode characters and removes embedded NULs.
func Sanitize(s string) string {
	return sanitizeCommand(s)
}
