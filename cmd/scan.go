package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/barcode"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/dispatch"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/display"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/scanner"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/source"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/utils"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/vision"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/worker"
	"github.com/spf13/cobra"
)

const (
	defaultDeviceURL  = "http://192.168.204.73"
	defaultBackendURL = "http://localhost:5001/api/"
	stillPath         = "/cam-hi.jpg"
	beepPath          = "/beep"
	streamPort        = "81"
	streamPath        = "/stream"
)

// Options holds configuration for the scan command
type Options struct {
	DeviceURL     string
	BackendURL    string
	Source        string
	Gated         bool
	Debounce      time.Duration
	Timeout       time.Duration
	IdlePoll      time.Duration
	EscapePayload bool
	NoBeep        bool
	Headless      bool
	StreamAddr    string
	DecoderCmd    string
}

var scanOpts Options

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Watch the basket camera and send every scanned code to the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		applyScanEnv(cmd, &scanOpts)
		if err := validateScanFlags(&scanOpts); err != nil {
			return err
		}
		return runScan(cmd.Context(), scanOpts)
	},
}

func init() {
	scanCmd.Flags().StringVar(&scanOpts.DeviceURL, "device", defaultDeviceURL, "Base URL of the ESP32-CAM (env BASKET_DEVICE_URL)")
	scanCmd.Flags().StringVar(&scanOpts.BackendURL, "backend", defaultBackendURL, "Backend prefix; the payload is appended to it (env BASKET_BACKEND_URL)")
	scanCmd.Flags().StringVar(&scanOpts.Source, "source", "still", "Frame source: 'still' polls "+stillPath+", 'stream' reads the :"+streamPort+streamPath+" MJPEG feed")
	scanCmd.Flags().BoolVar(&scanOpts.Gated, "gated", true, "Treat HTTP 204 from the device as 'nothing in front of the sensor'")
	scanCmd.Flags().DurationVar(&scanOpts.Debounce, "debounce", scanner.DefaultDebounce, "Minimum time before the same payload is sent again")
	scanCmd.Flags().DurationVar(&scanOpts.Timeout, "timeout", dispatch.DefaultTimeout, "Timeout for device and backend requests")
	scanCmd.Flags().DurationVar(&scanOpts.IdlePoll, "idle-poll", scanner.DefaultConfig().IdlePoll, "Poll interval while the device reports idle")
	scanCmd.Flags().BoolVar(&scanOpts.EscapePayload, "escape-payload", false, "Path-escape payloads before appending them to the backend URL")
	scanCmd.Flags().BoolVar(&scanOpts.NoBeep, "no-beep", false, "Do not trigger the device buzzer after a successful scan")
	scanCmd.Flags().BoolVar(&scanOpts.Headless, "headless", false, "Show a terminal spinner instead of the preview window")
	scanCmd.Flags().StringVar(&scanOpts.StreamAddr, "stream-addr", "", "Also serve the annotated preview as MJPEG on this address (e.g. :8090)")
	scanCmd.Flags().StringVar(&scanOpts.DecoderCmd, "decoder-cmd", "", "External decoder process (e.g. 'python3 -u zbar_worker.py') instead of the built-in one")

	rootCmd.AddCommand(scanCmd)
}

// applyScanEnv fills flags the user did not set from the environment.
func applyScanEnv(cmd *cobra.Command, opts *Options) {
	if v := os.Getenv("BASKET_DEVICE_URL"); v != "" && !cmd.Flags().Changed("device") {
		opts.DeviceURL = v
	}
	if v := os.Getenv("BASKET_BACKEND_URL"); v != "" && !cmd.Flags().Changed("backend") {
		opts.BackendURL = v
	}
}

// validateScanFlags ensures all CLI arguments are valid before opening the camera.
func validateScanFlags(opts *Options) error {
	opts.DeviceURL = strings.TrimRight(opts.DeviceURL, "/")
	if err := checkHTTPURL(opts.DeviceURL); err != nil {
		return fmt.Errorf("invalid --device: %w", err)
	}
	if err := checkHTTPURL(opts.BackendURL); err != nil {
		return fmt.Errorf("invalid --backend: %w", err)
	}
	if opts.Source != "still" && opts.Source != "stream" {
		return fmt.Errorf("invalid --source %q (use still or stream)", opts.Source)
	}
	if opts.Debounce < 0 {
		return fmt.Errorf("invalid --debounce: must be >= 0, got %s", opts.Debounce)
	}
	if opts.Timeout <= 0 {
		return fmt.Errorf("invalid --timeout: must be > 0, got %s", opts.Timeout)
	}
	if opts.IdlePoll <= 0 {
		return fmt.Errorf("invalid --idle-poll: must be > 0, got %s", opts.IdlePoll)
	}
	if opts.DecoderCmd != "" && len(strings.Fields(opts.DecoderCmd)) == 0 {
		return errors.New("invalid --decoder-cmd: empty command")
	}
	return nil
}

func checkHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("expected an http(s) URL, got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host in %q", raw)
	}
	return nil
}

// streamURL derives the MJPEG endpoint, which the ESP32 firmware serves on its own port.
func streamURL(device string) (string, error) {
	u, err := url.Parse(device)
	if err != nil {
		return "", err
	}
	u.Host = u.Hostname() + ":" + streamPort
	u.Path = streamPath
	return u.String(), nil
}

// runScan wires the frame source, detector, dispatcher and display into the loop
// and blocks until the context is cancelled or the window asks to exit.
func runScan(ctx context.Context, opts Options) error {
	var src scanner.Source
	var origin string
	switch opts.Source {
	case "stream":
		u, err := streamURL(opts.DeviceURL)
		if err != nil {
			return err
		}
		stream := source.NewStream(u, opts.Timeout)
		defer stream.Close()
		src, origin = stream, u
	default:
		origin = opts.DeviceURL + stillPath
		src = source.NewStill(origin, opts.Gated, opts.Timeout)
	}

	var det scanner.Detector = barcode.NewDetector()
	var decoderProc *worker.DecoderWorker
	if opts.DecoderCmd != "" {
		args := strings.Fields(opts.DecoderCmd)
		w, err := worker.NewDecoderWorker(0, args[0], args[1:]...)
		if err != nil {
			utils.ShowError("Failed to start decoder worker", err, nil)
			return err
		}
		decoderProc = w
		det = w
	}

	alertURL := opts.DeviceURL + beepPath
	if opts.NoBeep {
		alertURL = ""
	}
	disp := dispatch.New(dispatch.Config{
		BaseURL:       opts.BackendURL,
		AlertURL:      alertURL,
		Timeout:       opts.Timeout,
		EscapePayload: opts.EscapePayload,
	}, logger)

	renderer, err := buildRenderer(opts)
	if err != nil {
		if decoderProc != nil {
			decoderProc.Close()
		}
		return err
	}

	fmt.Fprintf(os.Stderr, "📷 Streaming from: %s (source=%s, gated=%t)\n", origin, opts.Source, opts.Gated)
	if alertURL != "" {
		fmt.Fprintf(os.Stderr, "🔔 Will trigger beep at: %s\n", alertURL)
	}
	fmt.Fprintf(os.Stderr, "📨 Sending detected barcodes to: %s<barcode>\n", opts.BackendURL)
	fmt.Fprintf(os.Stderr, "⏱️  Debounce time: %s\n", opts.Debounce)

	cfg := scanner.DefaultConfig()
	cfg.Debounce = opts.Debounce
	cfg.IdlePoll = opts.IdlePoll

	loop := scanner.New(cfg, src, vision.Decoder{}, det, disp, renderer, logger)
	runErr := loop.Run(ctx)

	if decoderProc != nil {
		if err := decoderProc.Close(); err != nil {
			utils.ShowError("Decoder worker exited abnormally", err, decoderProc.Cmd)
		}
	}

	printScanSummary(loop.Stats())
	return runErr
}

// buildRenderer picks the window or the terminal spinner, plus the optional MJPEG preview.
func buildRenderer(opts Options) (scanner.Renderer, error) {
	var rs scanner.Renderers
	if opts.Headless {
		rs = append(rs, display.NewTerminal(os.Stderr))
	} else {
		rs = append(rs, vision.NewWindow())
	}

	if opts.StreamAddr != "" {
		m, err := vision.NewMJPEG(opts.StreamAddr, logger)
		if err != nil {
			rs.Close()
			return nil, err
		}
		rs = append(rs, m)
	}

	if len(rs) == 1 {
		return rs[0], nil
	}
	return rs, nil
}

func printScanSummary(st scanner.Stats) {
	fmt.Fprintf(os.Stderr, "\n🏁 Scanner stopped.\n")
	w := tabwriter.NewWriter(os.Stderr, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Frames\t%d\t(idle polls %d, fetch errors %d, decode errors %d)\n", st.Frames, st.Idle, st.FetchErrors, st.DecodeErrors)
	fmt.Fprintf(w, "Detections\t%d\t(debounced %d)\n", st.Detections, st.Suppressed)
	fmt.Fprintf(w, "Dispatched\t%d\t(sent %d, not found %d, rejected %d, network %d)\n", st.Dispatched, st.Sent, st.RejectedFinal, st.Retryable, st.NetworkFailure)
	if st.LastPayload != "" {
		fmt.Fprintf(w, "Last\t%s\t%s\n", st.LastPayload, st.LastOutcome)
	}
	w.Flush()
}
