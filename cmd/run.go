package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeeftor/rowpilot/internal/device"
	"github.com/jeeftor/rowpilot/internal/engine"
	"github.com/jeeftor/rowpilot/internal/events"
	"github.com/jeeftor/rowpilot/internal/logging"
	"github.com/jeeftor/rowpilot/internal/macro"
	"github.com/jeeftor/rowpilot/internal/metrics"
	"github.com/jeeftor/rowpilot/internal/ocr"
	"github.com/jeeftor/rowpilot/internal/params"
	"github.com/jeeftor/rowpilot/internal/rows"
	"github.com/jeeftor/rowpilot/internal/tui"
	"github.com/jeeftor/rowpilot/internal/variables"
)

// errRowsFailed makes the process exit non-zero when any row failed
var errRowsFailed = errors.New("one or more rows failed")

var (
	runRowsFile     string
	runDryRun       bool
	runFragments    string
	runEnvFiles     []string
	runVars         []string
	runTUI          bool
	runServe        string
	runRecords      string
	runTrainingData string
	runGridColumns  string
	runGridRows     string
	runJitter       time.Duration
	runDetectSize   bool
	runResetStatus  bool
)

var runCmd = &cobra.Command{
	Use:   "run <macro-file>",
	Short: "Run a macro once per pending data row",
	Long: `Run a macro against a VM. With --rows the macro runs once for every
pending row (empty status or a previous failure) and each row's outcome is
written to the file's status column. Without rows the macro runs once.

Macros containing repeat_begin/repeat_end pairs run in block mode: each block
picks its own rows and steps outside blocks run once.

Examples:
  # Dry run: log every action instead of performing it
  rowpilot run signup.yaml --rows people.csv --dry-run

  # Against VM 108 with the live monitor and metrics on :9090
  rowpilot run signup.yaml --rows people.csv --vmid 108 --tui --serve :9090`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runMacro(ctx, cmd, args[0])
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runRowsFile, "rows", "", "CSV, YAML or JSON data file (env ROWPILOT_ROWS_FILE)")
	f.BoolVar(&runDryRun, "dry-run", false, "log actions instead of sending them to a VM")
	f.StringVar(&runFragments, "fragments", "", "JSON fragments returned by OCR during a dry run")
	f.StringSliceVar(&runEnvFiles, "env-file", nil, "dotenv file(s) with macro variables")
	f.StringArrayVar(&runVars, "var", nil, "macro variable NAME=value (repeatable)")
	f.BoolVar(&runTUI, "tui", false, "show the interactive monitor when attached to a terminal")
	f.StringVar(&runServe, "serve", "", "listen address for /metrics and /events")
	f.StringVar(&runRecords, "records", "", "write step records as JSON lines to this file")
	f.StringVar(&runTrainingData, "training-data", "", "OCR training data file")
	f.StringVar(&runGridColumns, "grid-columns", "", "OCR console columns")
	f.StringVar(&runGridRows, "grid-rows", "", "OCR console rows")
	f.DurationVar(&runJitter, "jitter", 0, "random pause of up to this long before each input")
	f.BoolVar(&runDetectSize, "detect-size", true, "take a screenshot to learn the screen size")
	f.BoolVar(&runResetStatus, "reset-status", false, "clear every row status first so all rows run again")
	f.String("key-delay", "", "pause between typed characters, e.g. 50ms")
	f.String("row-delay", "", "pause between rows, e.g. 100ms")
	f.String("retry-delay", "", "pause between step retries, e.g. 1s")
	rootCmd.AddCommand(runCmd)
}

// loadMacroWithVars loads a macro and layers env files and --var values over its variables
func loadMacroWithVars(path string, envFiles, assignments []string) (*macro.Macro, error) {
	m, err := macro.LoadFile(path)
	if err != nil {
		return nil, err
	}
	fromEnv, err := variables.LoadEnvFiles(envFiles...)
	if err != nil {
		return nil, err
	}
	fromFlags, err := variables.ParseAssignments(assignments)
	if err != nil {
		return nil, err
	}
	m.Variables = variables.Merge(m.Variables, fromEnv, fromFlags)
	return m, nil
}

// openRows returns nil when no row file is configured
func openRows(r *params.Resolver, explicit string) (*rows.Table, error) {
	info := r.ResolveRowsFile(explicit)
	if info.Value == "" {
		return nil, nil
	}
	logging.Debug("Opening rows", "path", info.Value, "source", info.Source)
	return rows.Open(info.Value)
}

func runMacro(ctx context.Context, cmd *cobra.Command, path string) error {
	r := params.NewParameterResolver()

	m, err := loadMacroWithVars(path, runEnvFiles, runVars)
	if err != nil {
		return err
	}
	table, err := openRows(r, runRowsFile)
	if err != nil {
		return err
	}
	var src engine.RowSource
	if table != nil {
		if runResetStatus {
			if err := table.ResetStatus(); err != nil {
				return err
			}
			logging.Info("Row status cleared", "rows", table.RowCount())
		}
		src = table
	}

	bundle, closeDevice, err := buildBundle(ctx, cmd, r)
	if err != nil {
		return err
	}
	defer closeDevice()

	interp := engine.NewInterpreter(bundle)
	if interp.RetryDelay, err = r.ResolveRetryDelay(flagValue(cmd, "retry-delay")); err != nil {
		return err
	}
	ctrl := engine.NewController(interp)
	if ctrl.RowDelay, err = r.ResolveRowDelay(flagValue(cmd, "row-delay")); err != nil {
		return err
	}

	if runRecords != "" {
		f, err := os.Create(runRecords)
		if err != nil {
			return fmt.Errorf("failed to create records file: %w", err)
		}
		defer f.Close()
		ctrl.Observe(engine.NewRecordWriter(f))
	}

	if addr := r.ResolveServeAddr(runServe).Value; addr != "" {
		shutdown := serve(addr, ctrl)
		defer shutdown()
	}

	if err := ctrl.Load(m, src); err != nil {
		return err
	}

	if runTUI && term.IsTerminal(int(os.Stdout.Fd())) {
		err = runWithMonitor(ctx, ctrl, m, table)
	} else {
		err = ctrl.Run(ctx)
	}

	printResults(cmd.OutOrStdout(), ctrl.Results())
	if err != nil {
		return err
	}
	for _, res := range ctrl.Results() {
		if !res.Success && !res.Aborted {
			return errRowsFailed
		}
	}
	return nil
}

// buildBundle wires the dry-run device or a QMP client with the grid OCR
func buildBundle(ctx context.Context, cmd *cobra.Command, r *params.Resolver) (device.Bundle, func(), error) {
	noop := func() {}
	dryRun, err := r.Bool(params.KeyDryRun, flagValue(cmd, "dry-run"))
	if err != nil {
		return device.Bundle{}, noop, err
	}
	if dryRun {
		d := device.NewDryRun()
		if runFragments != "" {
			if err := d.LoadFragments(runFragments); err != nil {
				return device.Bundle{}, noop, err
			}
		}
		logging.Info("Dry run: no input will be sent")
		return d.Bundle(), noop, nil
	}

	client, err := connectVM(ctx, r, flagValue(cmd, "key-delay"))
	if err != nil {
		return device.Bundle{}, noop, err
	}
	closeClient := func() { client.Close() }
	if runDetectSize {
		if err := client.DetectScreenSize(ctx); err != nil {
			logging.Warn("Could not detect screen size, using defaults", "error", err)
		}
	}

	var dev device.Device = client
	if runJitter > 0 {
		dev = device.Humanize(client, 0, runJitter)
	}
	b := device.Bundle{Device: dev}

	grid, err := r.ResolveGrid(runGridColumns, runGridRows)
	if err != nil {
		closeClient()
		return device.Bundle{}, noop, err
	}
	tdPath := r.ResolveTrainingData(runTrainingData)
	td, err := ocr.LoadTrainingData(tdPath.Value)
	if err != nil {
		logging.Warn("OCR disabled: no training data", "path", tdPath.Value, "error", err)
	} else {
		b.OCR = ocr.NewScanner(client, grid, td)
	}
	return b, closeClient, nil
}

// serve exposes metrics and the event stream; the returned func shuts it down
func serve(addr string, ctrl *engine.Controller) func() {
	m := metrics.New()
	hub := events.NewHub(func() engine.Event {
		return engine.Event{Type: engine.EventStateChanged, Time: time.Now(), RunID: ctrl.RunID(), State: ctrl.State()}
	})
	ctrl.Observe(m)
	ctrl.Observe(hub)

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.Handle("/events", hub)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logging.Info("Serving metrics and events", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("HTTP server failed", "error", err)
		}
	}()
	return func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func runWithMonitor(ctx context.Context, ctrl *engine.Controller, m *macro.Macro, table *rows.Table) error {
	ch := engine.NewChannelObserver(256)
	ctrl.Observe(ch)

	total := 0
	if table != nil && !m.HasRepeatBlocks() {
		total = len(table.PendingRows())
	}

	// Log lines would tear the alternate screen
	logging.SetOutput(io.Discard)
	defer logging.SetOutput(os.Stdout)

	if err := ctrl.Start(ctx); err != nil {
		return err
	}
	if err := tui.Run(ctx, ctrl, ch.C, tui.Options{Title: m.Name, TotalRows: total}); err != nil {
		ctrl.Stop()
		ctrl.Wait()
		return err
	}
	if ctrl.State().Active() {
		ctrl.Stop()
	}
	return ctrl.Wait()
}

func printResults(w io.Writer, results []engine.ExecutionResult) {
	if len(results) == 0 {
		return
	}
	ok := color.New(color.FgGreen, color.Bold)
	fail := color.New(color.FgRed, color.Bold)
	muted := color.New(color.FgHiBlack)

	succeeded := 0
	fmt.Fprintln(w)
	for _, res := range results {
		label := fmt.Sprintf("Row %d", res.Row)
		if res.Row == engine.StandaloneRow {
			label = "Run"
		}
		switch {
		case res.Success:
			succeeded++
			fmt.Fprintf(w, "%s %-8s %s\n", ok.Sprint("✓"), label, muted.Sprint(res.Duration.Round(time.Millisecond)))
		case res.Aborted:
			fmt.Fprintf(w, "%s %-8s %s\n", muted.Sprint("-"), label, muted.Sprint("aborted"))
		default:
			fmt.Fprintf(w, "%s %-8s %s\n", fail.Sprint("✗"), label, res.Error)
		}
	}
	fmt.Fprintf(w, "\n%d/%d succeeded\n", succeeded, len(results))
}
