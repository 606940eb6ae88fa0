// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = ""
	BuildDate = ""
)

// String renders the version line printed by --version.
func String() string {
	s := "aish " + Version
	if Commit != "" {
		s += fmt.Sprintf(" (%s)", Commit)
	}
	if BuildDate != "" {
		s += " built " + BuildDate
	}
	return s
}
