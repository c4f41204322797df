// Package gitinfo resolves the git_sha metadata field from spec §6: a
// best-effort `git rev-parse --short HEAD` in the current working
// directory, empty on any failure. Grounded on the teacher's treatment of
// build metadata as environment-derived rather than hardcoded (no example
// repo hardcodes a version string; ns-engine's cmd wiring reads its config
// from disk the same way).
package gitinfo

import (
	"os/exec"
	"strings"
)

// ShortSHA returns the current commit's short hash, or "" if git isn't
// available, the working directory isn't a repository, or the command
// otherwise fails.
func ShortSHA() string {
	out, err := exec.Command("git", "rev-parse", "--short", "HEAD").Output()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(out))
}
