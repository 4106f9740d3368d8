// Package utils provides utility functions.
package utils

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Confirm prompts the user with msg and expects y/n on stdin. Returns true for yes.
// For non-interactive environments (stdin not a terminal) it returns false
// without prompting.
func Confirm(msg string) bool {
	if !IsTerminal(os.Stdin) {
		return false
	}
	return ConfirmReader(msg, os.Stdin, os.Stderr)
}

// ConfirmReader prompts on out and reads the answer from r (useful for tests).
func ConfirmReader(msg string, r io.Reader, out io.Writer) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", msg)
	line, _ := bufio.NewReader(r).ReadString('\n')
	resp := strings.TrimSpace(strings.ToLower(line))
	return resp == "y" || resp == "yes"
}

// IsTerminal reports whether f is attached to a terminal, including Cygwin/MSYS ptys.
func IsTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
