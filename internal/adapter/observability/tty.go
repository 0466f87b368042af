package observability

import (
	"golang.org/x/term"
)

// IsTTY reports whether the file descriptor is attached to a terminal.
// Piped output, redirects, and CI runners return false.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}
