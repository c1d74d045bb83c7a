package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/api"
	"reel/internal/ipc"
	"reel/internal/store"
)

func newRecordingsCommand(ctx *commandContext) *cobra.Command {
	recordingsCmd := &cobra.Command{
		Use:     "recordings",
		Aliases: []string{"rec"},
		Short:   "Inspect and manage stored recordings",
	}

	recordingsCmd.AddCommand(newRecordingsListCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsDescribeCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsRenameCommand(ctx))
	recordingsCmd.AddCommand(newRecordingsRemoveCommand(ctx))

	return recordingsCmd
}

func newRecordingsListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored recordings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRecordings(func(client *ipc.Client, st *store.Store) error {
				var items []ipc.Recording
				if client != nil {
					resp, err := client.RecordingsList()
					if err != nil {
						return err
					}
					items = resp.Items
				} else {
					recs, err := st.List(cmd.Context())
					if err != nil {
						return err
					}
					items = api.FromRecordings(recs)
				}

				if jsonOutput {
					return writeJSON(cmd, map[string]any{"items": items})
				}
				if len(items) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recordings")
					return nil
				}
				table := renderTable(
					[]string{"ID", "Name", "Duration", "Format", "Container", "Size", "Created"},
					buildRecordingRows(items),
					2, 5, // Duration and Size
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the listing as JSON")
	return cmd
}

func newRecordingsDescribeCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "describe ID",
		Short: "Show one recording in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withRecordings(func(client *ipc.Client, st *store.Store) error {
				var item ipc.Recording
				if client != nil {
					resp, err := client.RecordingsDescribe(id)
					if err != nil {
						return err
					}
					item = resp.Item
				} else {
					rec, err := st.GetRecording(cmd.Context(), id)
					if err != nil {
						return err
					}
					if rec == nil {
						return fmt.Errorf("recording %s not found", id)
					}
					item = api.FromRecording(rec)
				}

				if jsonOutput {
					return writeJSON(cmd, item)
				}
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderStatusLine("ID", statusInfo, item.ID, colorize))
				fmt.Fprintln(out, renderStatusLine("Name", statusInfo, item.Name, colorize))
				fmt.Fprintln(out, renderStatusLine("Duration", statusInfo, fmt.Sprintf("%.1fs", item.DurationSeconds), colorize))
				fmt.Fprintln(out, renderStatusLine("Format", statusInfo, formatStreamFormat(item.SampleRate, item.Channels), colorize))
				fmt.Fprintln(out, renderStatusLine("Container", statusInfo, item.Container, colorize))
				fmt.Fprintln(out, renderStatusLine("Size", statusInfo, formatBytes(item.SizeBytes), colorize))
				if item.Compression != "" {
					fmt.Fprintln(out, renderStatusLine("Compression", statusInfo, item.Compression, colorize))
				}
				if item.CreatedAt != "" {
					fmt.Fprintln(out, renderStatusLine("Created", statusInfo, item.CreatedAt, colorize))
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the recording as JSON")
	return cmd
}

func newRecordingsRenameCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a recording",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			name := strings.TrimSpace(args[1])
			if name == "" {
				return errors.New("a non-empty name is required")
			}
			return ctx.withRecordings(func(client *ipc.Client, st *store.Store) error {
				renamed := false
				if client != nil {
					resp, err := client.RecordingsRename(id, name)
					if err != nil {
						return err
					}
					renamed = resp.Renamed
				} else {
					ok, err := st.Rename(cmd.Context(), id, name)
					if err != nil {
						return err
					}
					renamed = ok
				}
				if !renamed {
					return fmt.Errorf("recording %s not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Renamed %s to %q\n", id, name)
				return nil
			})
		},
	}
}

func newRecordingsRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID [ID...]",
		Aliases: []string{"remove"},
		Short:   "Remove recordings and their audio payloads",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]string, 0, len(args))
			for _, arg := range args {
				if id := strings.TrimSpace(arg); id != "" {
					ids = append(ids, id)
				}
			}
			if len(ids) == 0 {
				return errors.New("at least one recording id is required")
			}
			return ctx.withRecordings(func(client *ipc.Client, st *store.Store) error {
				removed := 0
				if client != nil {
					resp, err := client.RecordingsRemove(ids)
					if err != nil {
						return err
					}
					removed = resp.Removed
				} else {
					for _, id := range ids {
						ok, err := st.Remove(cmd.Context(), id)
						if err != nil {
							return err
						}
						if ok {
							removed++
						}
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d of %d recording(s)\n", removed, len(ids))
				return nil
			})
		},
	}
}

func buildRecordingRows(items []ipc.Recording) [][]string {
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			item.Name,
			fmt.Sprintf("%.1fs", item.DurationSeconds),
			formatStreamFormat(item.SampleRate, item.Channels),
			item.Container,
			formatBytes(item.SizeBytes),
			item.CreatedAt,
		})
	}
	return rows
}

func formatStreamFormat(sampleRate, channels int) string {
	layout := fmt.Sprintf("%dch", channels)
	switch channels {
	case 1:
		layout = "mono"
	case 2:
		layout = "stereo"
	}
	return fmt.Sprintf("%d Hz %s", sampleRate, layout)
}
