package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"reel/internal/api"
	"reel/internal/transcode"
)

// containerPassthrough keeps the stored container; it maps to an empty
// engine request container.
const containerPassthrough = "passthrough"

func newExportCommand(ctx *commandContext) *cobra.Command {
	var (
		container   string
		sampleRate  int
		channels    int
		bitDepth    int
		normalize   bool
		cropRange   string
		outputPath  string
		outputDir   string
		exportAll   bool
		overwrite   bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "export [ID]",
		Short: "Convert a stored recording and write it to a file",
		Long: "Export runs the conversion engine in this process against the recordings " +
			"store, so it works whether or not the daemon is running. With --all every " +
			"recording is exported with the same conversion settings.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportAll == (len(args) == 1) {
				return errors.New("provide exactly one recording id, or --all")
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			convert, err := buildConvertRequest(container, sampleRate, channels, bitDepth, normalize, cropRange)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if exportAll {
				if outputPath != "" {
					return errors.New("--output cannot be combined with --all; use --dir")
				}
				result, err := api.ExportAllRecordings(cmd.Context(), api.ExportAllRequest{
					Config:      cfg,
					OutputDir:   outputDir,
					Convert:     convert,
					Concurrency: concurrency,
					Overwrite:   overwrite,
				})
				if err != nil {
					return err
				}
				if len(result.Exported) == 0 {
					fmt.Fprintln(out, "No recordings to export")
					return nil
				}
				for _, exported := range result.Exported {
					fmt.Fprintf(out, "Exported %s -> %s (%s, %s)\n",
						exported.RecordingID, exported.OutputPath, exported.Container, formatBytes(exported.SizeBytes))
				}
				return nil
			}

			exported, err := api.ExportRecording(cmd.Context(), api.ExportRecordingRequest{
				Config:     cfg,
				ID:         strings.TrimSpace(args[0]),
				Convert:    convert,
				OutputPath: outputPath,
				OutputDir:  outputDir,
				Overwrite:  overwrite,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Exported %s -> %s (%s, %s, %.1fs)\n",
				exported.RecordingID, exported.OutputPath, exported.Container,
				formatBytes(exported.SizeBytes), exported.DurationSeconds)
			return nil
		},
	}

	cmd.Flags().StringVar(&container, "container", containerPassthrough, "Target container: wav, mp3, ogg, or passthrough")
	cmd.Flags().IntVar(&sampleRate, "rate", 0, "Target sample rate in Hz (0 keeps the source rate)")
	cmd.Flags().IntVar(&channels, "channels", 0, "Target channel count: 1 or 2 (0 keeps the source layout)")
	cmd.Flags().IntVar(&bitDepth, "bit-depth", 0, "WAV bit depth: 16, 24, or 32 (0 means 16)")
	cmd.Flags().BoolVar(&normalize, "normalize", false, "Scale the audio so its peak reaches the configured ceiling")
	cmd.Flags().StringVar(&cropRange, "crop", "", "Crop window as START:END in seconds (omit END for through-the-end)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to <name>.<container> in --dir)")
	cmd.Flags().StringVar(&outputDir, "dir", "", "Destination directory for derived file names (defaults to the working directory)")
	cmd.Flags().BoolVar(&exportAll, "all", false, "Export every stored recording")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files instead of appending a numeric suffix")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Concurrent exports with --all (0 selects the default)")
	return cmd
}

func newCropCommand(ctx *commandContext) *cobra.Command {
	var (
		bitDepth   int
		outputPath string
		outputDir  string
		overwrite  bool
	)

	cmd := &cobra.Command{
		Use:   "crop ID START END",
		Short: "Trim a stored recording to a time window",
		Long: "Crop extracts the window between START and END (seconds) from a stored " +
			"recording and writes it as WAV. An END of 0 means through the end of the " +
			"recording. Windows past the end of the audio degrade to a no-op rather " +
			"than failing.",
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			start, err := parseSeconds(args[1], "start")
			if err != nil {
				return err
			}
			end, err := parseSeconds(args[2], "end")
			if err != nil {
				return err
			}

			cropped, err := api.CropRecording(cmd.Context(), api.CropRecordingRequest{
				Config:       cfg,
				ID:           strings.TrimSpace(args[0]),
				StartSeconds: start,
				EndSeconds:   end,
				BitDepth:     bitDepth,
				OutputPath:   outputPath,
				OutputDir:    outputDir,
				Overwrite:    overwrite,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cropped %s -> %s (%.1fs, %s)\n",
				cropped.RecordingID, cropped.OutputPath, cropped.DurationSeconds, formatBytes(cropped.SizeBytes))
			return nil
		},
	}

	cmd.Flags().IntVar(&bitDepth, "bit-depth", 0, "WAV bit depth: 16, 24, or 32 (0 means 16)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Destination file (defaults to <name>-cropped.wav in --dir)")
	cmd.Flags().StringVar(&outputDir, "dir", "", "Destination directory for the derived file name")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file instead of appending a numeric suffix")
	return cmd
}

func buildConvertRequest(container string, sampleRate, channels, bitDepth int, normalize bool, cropRange string) (transcode.Request, error) {
	req := transcode.Request{
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   bitDepth,
		Normalize:  normalize,
	}

	switch c := strings.ToLower(strings.TrimSpace(container)); c {
	case "", containerPassthrough:
		// Empty engine container keeps the source format unless another
		// stage altered the audio.
	case transcode.ContainerWAV, transcode.ContainerMP3, transcode.ContainerOGG:
		req.Container = c
	default:
		return transcode.Request{}, fmt.Errorf("unsupported container %q (want wav, mp3, ogg, or passthrough)", container)
	}

	crop, err := parseCropRange(cropRange)
	if err != nil {
		return transcode.Request{}, err
	}
	req.Crop = crop

	if err := req.Validate(); err != nil {
		return transcode.Request{}, err
	}
	return req, nil
}

// parseCropRange parses "START:END" in seconds. END may be omitted
// ("12.5" or "12.5:") to crop through the end of the recording.
func parseCropRange(value string) (*transcode.CropRange, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	startText, endText, _ := strings.Cut(value, ":")
	start, err := parseSeconds(startText, "crop start")
	if err != nil {
		return nil, err
	}
	var end float64
	if strings.TrimSpace(endText) != "" {
		end, err = parseSeconds(endText, "crop end")
		if err != nil {
			return nil, err
		}
		if end <= start {
			return nil, fmt.Errorf("crop end %.3f must be after start %.3f", end, start)
		}
	}
	return &transcode.CropRange{StartSeconds: start, EndSeconds: end}, nil
}

func parseSeconds(value, label string) (float64, error) {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s %q: expected seconds as a number", label, value)
	}
	if parsed < 0 {
		return 0, fmt.Errorf("%s must not be negative", label)
	}
	return parsed, nil
}
