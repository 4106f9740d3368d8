// Package security provides security-related utilities.
package security

import (
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
)

// ErrBlocked is returned for commands that look destructive.
var ErrBlocked = eris.New("command appears destructive or unsafe")

var dangerousPatterns = []*regexp.Regexp{
	// recursive rm of the root, everything under it, or the home dir;
	// rm -rf /tmp/build and friends stay allowed
	regexp.MustCompile(`(?i)\brm\s+(?:-\S+\s+)*-{1,2}[a-z-]*r[a-z-]*\s+(?:\S+\s+)*(?:/\*?|~/?|\$HOME/?)(?:[\s;&|]|$)`),
	regexp.MustCompile(`(?i)\bmkfs(?:\.\w+)?\b`),
	// raw writes to a block device
	regexp.MustCompile(`(?i)\bdd\b.*\bof=/dev/(?:sd|hd|nvme|disk|mmcblk|vd|xvd)`),
	// fork bombs (e.g. :(){ :|:& };:)
	regexp.MustCompile(`:\(\)\s*\{`),
	// removing every package
	regexp.MustCompile(`(?i)\b(?:apt-get|apt|yum|dnf)\s+(?:-\S+\s+)*(?:remove|purge)\s+(?:-\S+\s+)*['"]?\*`),
	regexp.MustCompile(`(?i)\bwipefs\b`),
}

// CheckAllowed returns nil if the command line is allowed to run, or an error
// describing why it's blocked. Checking is conservative and not exhaustive.
func CheckAllowed(line string) error {
	cmd := strings.TrimSpace(line)
	if cmd == "" {
		return eris.New("empty command")
	}
	for _, re := range dangerousPatterns {
		if re.MatchString(cmd) {
			return eris.Wrapf(ErrBlocked, "matched %s", re.String())
		}
	}
	return nil
}
