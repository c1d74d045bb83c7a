package main

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"reel/internal/api"
)

const meterBarWidth = 30

func newMeterCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "meter",
		Short: "Stream live audio levels from the active capture",
		Long: "Meter connects to the daemon's websocket endpoint and renders live " +
			"peak/RMS levels while a capture is running. Frames only arrive during " +
			"capture; press Ctrl-C to disconnect.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			bind := strings.TrimSpace(cfg.Paths.APIBind)
			if bind == "" {
				return errors.New("the HTTP API is disabled; set paths.api_bind in the configuration")
			}

			endpoint := url.URL{Scheme: "ws", Host: bind, Path: "/api/meter"}
			header := http.Header{}
			if token := strings.TrimSpace(cfg.Paths.APIToken); token != "" {
				header.Set("Authorization", "Bearer "+token)
			}

			dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
			conn, _, err := dialer.DialContext(cmd.Context(), endpoint.String(), header)
			if err != nil {
				return fmt.Errorf("connect to meter endpoint %s: %w (is the daemon running?)", endpoint.String(), err)
			}
			defer conn.Close()

			// Close the socket when the command context ends so the read
			// loop below unblocks.
			done := make(chan struct{})
			defer close(done)
			go func() {
				select {
				case <-cmd.Context().Done():
					_ = conn.WriteControl(
						websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
						time.Now().Add(time.Second),
					)
					_ = conn.Close()
				case <-done:
				}
			}()

			out := cmd.OutOrStdout()
			interactive := !jsonOutput && shouldColorize(out)
			if !jsonOutput {
				fmt.Fprintln(out, "Listening for meter frames (Ctrl-C to stop)...")
			}

			for {
				var frame api.MeterFrame
				if err := conn.ReadJSON(&frame); err != nil {
					if cmd.Context().Err() != nil || websocket.IsCloseError(err,
						websocket.CloseNormalClosure, websocket.CloseGoingAway) {
						if interactive {
							fmt.Fprintln(out)
						}
						return nil
					}
					return fmt.Errorf("meter stream: %w", err)
				}

				switch {
				case jsonOutput:
					if err := writeJSON(cmd, frame); err != nil {
						return err
					}
				case interactive:
					fmt.Fprintf(out, "\r%s", renderMeterLine(frame))
				default:
					fmt.Fprintln(out, renderMeterLine(frame))
				}
			}
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit meter frames as JSON lines")
	return cmd
}

func renderMeterLine(frame api.MeterFrame) string {
	var b strings.Builder
	labels := []string{"L", "R"}
	if frame.Channels == 1 {
		labels = []string{"M"}
	}
	for i, label := range labels {
		if i > 0 {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "%s %s %6.1f dB", label, meterBar(frame.RMS[i], frame.Peak[i]), amplitudeDB(frame.Peak[i]))
	}
	fmt.Fprintf(&b, "  %7.1fs", frame.ElapsedSeconds)
	return b.String()
}

// meterBar draws RMS as a filled bar with a peak marker on top of it.
func meterBar(rms, peak float64) string {
	filled := barCells(rms)
	peakCell := barCells(peak)
	cells := make([]rune, meterBarWidth)
	for i := range cells {
		switch {
		case i < filled:
			cells[i] = '█'
		case i == peakCell && peakCell > 0:
			cells[i] = '▌'
		default:
			cells[i] = '·'
		}
	}
	return "[" + string(cells) + "]"
}

// barCells maps a linear amplitude onto bar cells over a 60 dB range.
func barCells(amplitude float64) int {
	db := amplitudeDB(amplitude)
	if db <= -60 {
		return 0
	}
	cells := int((db + 60) / 60 * meterBarWidth)
	if cells > meterBarWidth-1 {
		cells = meterBarWidth - 1
	}
	return cells
}

func amplitudeDB(amplitude float64) float64 {
	if amplitude <= 0 {
		return -120
	}
	db := 20 * math.Log10(amplitude)
	if db < -120 {
		return -120
	}
	return db
}
