package version

import (
	"fmt"
	"runtime"
	"strings"
)

// Set at build time with -ldflags "-X github.com/memohai/tglink/internal/version.Version=...".
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// GetInfo returns a one-line build description.
func GetInfo() string {
	parts := []string{strings.TrimSpace(Version)}
	if c := strings.TrimSpace(Commit); c != "" && c != "none" {
		parts = append(parts, "commit "+c)
	}
	if d := strings.TrimSpace(BuildDate); d != "" && d != "unknown" {
		parts = append(parts, "built "+d)
	}
	return fmt.Sprintf("%s (%s)", strings.Join(parts, ", "), runtime.Version())
}
