package robot

import (
	"os"
	"slices"
	"strings"
)

// quietFlags never open the browser, so their output must stay free of
// terminal queries.
var quietFlags = []string{"--version", "--help", "-h", "--sqlite-export"}

// Importing this package marks non-interactive jw runs with CI=1 before any
// bubbletea or lipgloss init code looks at the terminal. termenv skips its
// background colour query when CI is set; the query's escape sequences would
// otherwise land in the JSON on stdout.
func init() {
	if _, set := os.LookupEnv("CI"); set {
		return
	}
	if nonInteractive(os.Args[1:], os.Getenv) {
		os.Setenv("CI", "1")
	}
}

// nonInteractive reports whether a jw invocation produces machine output:
// JW_ROBOT=1, JW_TEST_MODE set, any --robot-* flag or a quiet flag.
func nonInteractive(args []string, getenv func(string) string) bool {
	if getenv("JW_ROBOT") == "1" || getenv("JW_TEST_MODE") != "" {
		return true
	}
	return slices.ContainsFunc(args, func(arg string) bool {
		name, _, _ := strings.Cut(arg, "=")
		return strings.HasPrefix(name, "--robot-") || slices.Contains(quietFlags, name)
	})
}
