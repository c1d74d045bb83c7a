package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"reel/internal/ipc"
)

func newStartCommand(ctx *commandContext) *cobra.Command {
	var target string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start capturing audio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resolved, err := client.Start(target)
				if err != nil {
					return err
				}
				if _, err := client.StartWithToken(resolved.Token); err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Capture started")
				fmt.Fprintf(out, "  Target:  %s\n", resolved.Token.Target)
				fmt.Fprintf(out, "  Format:  %d Hz, %d channel(s)\n", resolved.Token.SampleRate, resolved.Token.Channels)
				fmt.Fprintf(out, "  Session: %s\n", resolved.Token.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", "Capture source (defaults to the configured or platform default source)")
	return cmd
}

func newStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the capture and save the recording",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Stop()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !resp.Stopped {
					fmt.Fprintln(out, "No active capture session")
					return nil
				}
				fmt.Fprintf(out, "Saved recording %s (%.1fs)\n", resp.RecordingID, resp.DurationSeconds)
				if resp.Warning != "" {
					fmt.Fprintf(out, "Warning: %s\n", resp.Warning)
				}
				return nil
			})
		},
	}
}

func newStateCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "state",
		Short: "Show the capture session state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				state, err := client.State()
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, state)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				if !state.Capturing {
					detail := "Idle"
					if state.HasBufferedAudio {
						detail = "Idle (buffered audio pending, run `reel stop` or `reel clear`)"
					}
					fmt.Fprintln(out, renderStatusLine("Capture", statusInfo, detail, colorize))
					return nil
				}

				fmt.Fprintln(out, renderStatusLine("Capture", statusOK, fmt.Sprintf("Recording from %s", state.Target), colorize))
				fmt.Fprintln(out, renderStatusLine("Elapsed", statusInfo, fmt.Sprintf("%.1fs", state.ElapsedSeconds), colorize))
				if state.StartedAt != "" {
					fmt.Fprintln(out, renderStatusLine("Started", statusInfo, state.StartedAt, colorize))
				}
				fmt.Fprintln(out, renderStatusLine("Buffered audio", statusInfo, yesNo(state.HasBufferedAudio), colorize))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the state as JSON")
	return cmd
}

func newClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Discard the capture session without saving",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				if _, err := client.Clear(); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Capture state cleared")
				return nil
			})
		},
	}
}
