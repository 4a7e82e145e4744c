// Command pulse-analyse segments pulse recordings into beats, extracts
// per-beat features and stores, plots and reports them.
//
// Usage:
//
//	pulse-analyse [flags] recording.csv|dir ...
//	pulse-analyse -serial /dev/ttyUSB0 [flags]
//	pulse-analyse [-db pulse.db] migrate up|down|status|version N|force N
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/pulse.report/internal/api"
	"github.com/banshee-data/pulse.report/internal/config"
	"github.com/banshee-data/pulse.report/internal/db"
	"github.com/banshee-data/pulse.report/internal/monitoring"
	"github.com/banshee-data/pulse.report/internal/pulse"
	"github.com/banshee-data/pulse.report/internal/serialmux"
	"github.com/banshee-data/pulse.report/internal/units"
	"github.com/banshee-data/pulse.report/internal/version"
)

var (
	configPath   = flag.String("config", "", "Path to a tuning JSON file (defaults apply when empty)")
	dbPath       = flag.String("db", "pulse.db", "SQLite database path (empty disables persistence)")
	subject      = flag.String("subject", "subject", "Subject name stored with the session")
	plotsDir     = flag.String("plots", "", "Directory for beat and feature plots (empty disables)")
	plotBeats    = flag.Int("plot-beats", 20, "Maximum number of beats to plot (0 for all)")
	reportPath   = flag.String("report", "", "Path of the HTML report to write (empty disables)")
	serialPort   = flag.String("serial", "", "Capture from this serial port instead of files")
	baudRate     = flag.Int("baud", serialmux.DefaultBaudRate, "Serial baud rate")
	startCmd     = flag.String("start-command", "", "Command sent to the sensor after opening the port")
	batchSeconds = flag.Float64("batch-seconds", 10, "Duration of each live capture batch")
	unit         = flag.String("unit", "", "SI prefix the samples are stored in: "+units.GetValidUnitsString())
	listen       = flag.String("listen", "", "Serve API, report and admin routes on this address, e.g. :8080")
	verbose      = flag.Bool("v", false, "Log beat rejections and calibration detail")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	var diag io.Writer
	if *verbose {
		diag = os.Stderr
	}
	pulse.SetLogWriters(pulse.LogWriters{Ops: os.Stderr, Diag: diag})
	monitoring.SetLogger(log.Printf)

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		if tuning, err = config.LoadTuningConfig(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	scale, err := units.ScaleFactor(*unit)
	if err != nil {
		log.Fatalf("invalid -unit: %v", err)
	}

	var inputs []string
	if *serialPort == "" {
		if flag.NArg() == 0 {
			log.Fatal("no recordings given; pass CSV files or directories, or use -serial")
		}
		if inputs, err = expandInputs(flag.Args()); err != nil {
			log.Fatalf("failed to list recordings: %v", err)
		}
		if len(inputs) == 0 {
			log.Fatal("no recordings found")
		}
	}

	var store *db.DB
	if *dbPath != "" {
		if store, err = db.NewDB(*dbPath); err != nil {
			log.Fatalf("failed to open database: %v", err)
		}
		defer store.Close()
	}

	a, err := newAnalyser(options{
		Subject:      *subject,
		Tuning:       tuning,
		Scale:        scale,
		PlotsDir:     *plotsDir,
		PlotBeats:    *plotBeats,
		ReportPath:   *reportPath,
		BatchSeconds: *batchSeconds,
	}, store)
	if err != nil {
		log.Fatalf("failed to start session: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mux serialmux.SerialMuxInterface
	if *serialPort != "" {
		m, err := serialmux.NewRealSerialMux(*serialPort, serialmux.PortOptions{BaudRate: *baudRate})
		if err != nil {
			log.Fatalf("failed to open serial port: %v", err)
		}
		defer m.Close()
		var cmds []string
		if *startCmd != "" {
			cmds = append(cmds, *startCmd)
		}
		if err := m.Initialize(cmds...); err != nil {
			log.Fatalf("failed to initialize sensor: %v", err)
		}
		mux = m
	}

	var wg sync.WaitGroup
	if *listen != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(ctx, *listen, store, mux, tuning)
		}()
	}

	if mux != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := mux.Monitor(ctx); err != nil && err != context.Canceled {
				log.Printf("failed to monitor serial port: %v", err)
			}
			log.Print("monitor routine terminated")
		}()
		err = a.processSerial(ctx, mux)
	} else {
		err = a.processFiles(ctx, inputs)
	}
	if err != nil && err != context.Canceled {
		log.Printf("analysis stopped early: %v", err)
	}

	if err := a.finish(); err != nil {
		log.Fatalf("failed to write results: %v", err)
	}

	if *listen != "" && ctx.Err() == nil {
		log.Printf("results ready; serving on %s until interrupted", *listen)
		<-ctx.Done()
	}
	stop()
	wg.Wait()
	log.Printf("Graceful shutdown complete")
}

// serve runs the API, report and admin HTTP server until ctx is done.
func serve(ctx context.Context, addr string, store *db.DB, mux serialmux.SerialMuxInterface, tuning *config.TuningConfig) {
	httpMux := http.NewServeMux()
	if store != nil {
		httpMux = api.NewServer(mux, store, tuning).ServeMux()
		if err := store.AttachAdminRoutes(httpMux); err != nil {
			log.Printf("failed to attach db admin routes: %v", err)
		}
	}
	if mux != nil {
		mux.AttachAdminRoutes(httpMux)
	}

	server := &http.Server{Addr: addr, Handler: api.LoggingMiddleware(httpMux)}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
}
