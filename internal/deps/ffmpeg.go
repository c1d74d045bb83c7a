package deps

import (
	"os/exec"
	"strings"
)

// ResolveFFmpegPath resolves the configured ffmpeg command to the absolute
// path a PATH lookup selects, so status output names the binary that would
// actually run. When the lookup fails the configured command is returned
// unchanged and CheckBinaries reports it as missing.
func ResolveFFmpegPath(configured string) string {
	command := strings.TrimSpace(configured)
	if command == "" {
		command = "ffmpeg"
	}
	if resolved, err := exec.LookPath(command); err == nil {
		return resolved
	}
	return command
}
