package cli

// This file contains Git integration utilities for retrieving
// repository information.

import (
	"fmt"
	"os/exec"
	"strings"
)

func (a *App) getGitCommit() (string, error) {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git commit: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// resolveGitSHA returns explicit when set, otherwise the HEAD commit of the
// working directory, otherwise "unknown".
func (a *App) resolveGitSHA(explicit string) string {
	if explicit != "" {
		return explicit
	}
	commit, err := a.getGitCommit()
	if err != nil {
		a.logger.Debug().Err(err).Msg("Git commit not available")
		return "unknown"
	}
	return commit
}
