package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/daemonctl"
	"reel/internal/ipc"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, capture, storage, and dependency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := ctx.configValue()
			statusResp, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.socketPath(), cfg)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, statusResp)
			}

			stdout := cmd.OutOrStdout()
			colorize := shouldColorize(stdout)

			for _, line := range renderSectionHeader("Daemon", colorize) {
				fmt.Fprintln(stdout, line)
			}
			if statusResp.Running {
				detail := fmt.Sprintf("Running (pid %d)", statusResp.PID)
				if statusResp.Version != "" {
					detail += ", version " + statusResp.Version
				}
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusOK, detail, colorize))
				if statusResp.StartedAt != "" {
					fmt.Fprintln(stdout, renderStatusLine("Started", statusInfo, statusResp.StartedAt, colorize))
				}
			} else {
				fmt.Fprintln(stdout, renderStatusLine("Daemon", statusWarn, "Not running (start with `reel daemon-start`)", colorize))
			}
			fmt.Fprintln(stdout, renderStatusLine("Socket", statusInfo, ctx.socketPath(), colorize))
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Capture", colorize) {
				fmt.Fprintln(stdout, line)
			}
			capture := statusResp.Capture
			switch {
			case capture.Capturing:
				target := capture.Target
				if target == "" {
					target = "default source"
				}
				fmt.Fprintln(stdout, renderStatusLine("Capture", statusOK, fmt.Sprintf("Recording from %s (%.1fs)", target, capture.ElapsedSeconds), colorize))
			case capture.HasBufferedAudio:
				fmt.Fprintln(stdout, renderStatusLine("Capture", statusWarn, "Idle with buffered audio pending", colorize))
			default:
				fmt.Fprintln(stdout, renderStatusLine("Capture", statusInfo, "Idle", colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Storage", colorize) {
				fmt.Fprintln(stdout, line)
			}
			fmt.Fprintln(stdout, renderStatusLine("Recordings", statusInfo,
				fmt.Sprintf("%d stored (%s)", statusResp.Store.Recordings, formatBytes(statusResp.Store.TotalBytes)), colorize))
			if statusResp.DatabasePath != "" {
				fmt.Fprintln(stdout, renderStatusLine("Database", statusInfo, statusResp.DatabasePath, colorize))
			}
			fmt.Fprintln(stdout)

			for _, line := range renderSectionHeader("Dependencies", colorize) {
				fmt.Fprintln(stdout, line)
			}
			summary := daemonctl.BuildDependencySummary(statusResp.Dependencies)
			for _, line := range dependencyLines(statusResp.Dependencies, summary, colorize) {
				fmt.Fprintln(stdout, line)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the status as JSON")
	return cmd
}

func dependencyLines(deps []ipc.DependencyStatus, summary daemonctl.DependencySummary, colorize bool) []string {
	lines := make([]string, 0, len(deps)+1)
	lines = append(lines, renderStatusLine("Summary", statusKindFromSeverity(summary.Severity), summary.Detail, colorize))
	for _, dep := range deps {
		if dep.Available {
			message := "Ready"
			if dep.Detail != "" {
				message = dep.Detail
			} else if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}

		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		lines = append(lines, renderStatusLine(dep.Name, statusKindFromSeverity(dep.Severity), detail, colorize))
	}
	return lines
}
