package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/banshee-data/pulse.report/internal/acquire"
	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/pulse"
	"github.com/banshee-data/pulse.report/internal/pulse/plotter"
	"github.com/banshee-data/pulse.report/internal/report"
	"github.com/banshee-data/pulse.report/internal/security"
	"github.com/banshee-data/pulse.report/internal/serialmux"
)

// options are the resolved command-line settings for one run.
type options struct {
	Subject      string
	Tuning       *config.TuningConfig
	Scale        float64
	PlotsDir     string
	PlotBeats    int
	ReportPath   string
	BatchSeconds float64
}

// analyser drives one subject's session over files or a live stream and
// fans the results out to the store, plots and report.
type analyser struct {
	opts      options
	session   *pulse.Session
	store     *db.DB // nil when persistence is off
	sessionID string
	batches   int
}

func newAnalyser(opts options, store *db.DB) (*analyser, error) {
	cfg := pulse.ConfigFromTuning(opts.Tuning)
	if opts.PlotsDir != "" {
		cfg.RetainBeats = true
	}
	session, err := pulse.NewSession(cfg)
	if err != nil {
		return nil, err
	}

	a := &analyser{opts: opts, session: session, store: store}
	if store != nil {
		rec, err := store.CreateSession(opts.Subject, opts.Tuning)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		a.sessionID = rec.ID
		log.Printf("[pulse-analyse] session %s for subject %q", rec.ID, opts.Subject)
	}
	return a, nil
}

// expandInputs replaces directory arguments with their recordings in
// natural order.
func expandInputs(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		recs, err := acquire.ListRecordings(arg)
		if err != nil {
			return nil, err
		}
		files = append(files, recs...)
	}
	return files, nil
}

// processFiles runs every recording through the session in order. The
// first file carrying SYS/DIA in its name sets the pressure references.
func (a *analyser) processFiles(ctx context.Context, files []string) error {
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch, err := acquire.ReadFile(path, a.opts.Scale)
		if err != nil {
			return err
		}
		cal := a.session.Calibration()
		if sys, dia, ok := acquire.ParseCalibration(path); ok && !cal.HasReferences() {
			a.session.SetPressureCalibration(sys, dia)
		}
		if err := a.process(filepath.Base(path), batch); err != nil {
			return err
		}
	}
	return nil
}

// processSerial captures batches from a sensor mux until ctx is done or
// the port closes.
func (a *analyser) processSerial(ctx context.Context, mux serialmux.SerialMuxInterface) error {
	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)
	return a.processLines(ctx, lines)
}

// processLines batches streamed `time,value` lines and processes each
// batch as it completes.
func (a *analyser) processLines(ctx context.Context, lines <-chan string) error {
	batcher, err := acquire.NewBatcher(a.opts.BatchSeconds, a.opts.Scale)
	if err != nil {
		return err
	}

	batches := make(chan pulse.Batch, 4)
	runErr := make(chan error, 1)
	go func() { runErr <- batcher.Run(ctx, lines, batches) }()

	for batch := range batches {
		if err := a.process("serial", batch); err != nil {
			return err
		}
	}
	if err := <-runErr; !acquire.IsStopped(err) {
		return err
	}
	return nil
}

func (a *analyser) process(source string, batch pulse.Batch) error {
	sum, err := a.session.Process(batch)
	if err != nil {
		return fmt.Errorf("%s: %w", source, err)
	}
	log.Printf("[pulse-analyse] %s: %d samples at %.1f Hz, %d beats (%d accepted, %d rejected, %d calibrating), calibration %s",
		source, sum.Samples, sum.SamplingHz, sum.Beats, sum.Accepted, sum.Rejected, sum.Calibrating, sum.Calibration)

	if a.store != nil {
		if err := a.store.RecordBatch(a.sessionID, a.batches, source, sum); err != nil {
			return fmt.Errorf("record batch: %w", err)
		}
	}
	a.batches++
	return nil
}

// finish persists the session and writes the requested plots and report.
func (a *analyser) finish() error {
	if a.store != nil {
		if err := a.store.SaveResults(a.sessionID, a.session); err != nil {
			return fmt.Errorf("save results: %w", err)
		}
	}

	if dir := a.opts.PlotsDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create plots dir: %w", err)
		}
		beatDir, err := security.OutputPath(dir, a.opts.Subject+"_beats")
		if err != nil {
			return err
		}
		n, err := plotter.PlotBeatGrid(a.session.Beats(), beatDir, a.opts.PlotBeats)
		if err != nil {
			return fmt.Errorf("plot beats: %w", err)
		}
		featureDir, err := security.OutputPath(dir, a.opts.Subject+"_features")
		if err != nil {
			return err
		}
		paths, err := plotter.PlotFeatures(a.session.ExactFeatures(), a.session.AveragedFeatures(),
			a.session.FeatureNames(), featureDir)
		if err != nil {
			return fmt.Errorf("plot features: %w", err)
		}
		log.Printf("[pulse-analyse] wrote %d beat plots and %d feature plots under %s", n, len(paths), dir)
	}

	if a.opts.ReportPath != "" {
		d := report.FromSession(a.opts.Subject, a.sessionID, a.session)
		if err := report.WriteFile(a.opts.ReportPath, d); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		log.Printf("[pulse-analyse] report written to %s", a.opts.ReportPath)
	}
	return nil
}
