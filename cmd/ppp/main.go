// Command ppp is the batch post-processing driver's CLI entry point (spec
// §6): it loads the Setup/Evaluation/Processing XML documents, applies the
// CLI override surface, resolves them into a driver.Config, discovers and
// evaluates scans, and exits non-zero on unrecoverable configuration
// failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/grpc"

	"github.com/novacgo/ppp/internal/driver"
	"github.com/novacgo/ppp/internal/driver/statuspb"
	"github.com/novacgo/ppp/internal/metdb"
	"github.com/novacgo/ppp/internal/novascfg"
	"github.com/novacgo/ppp/internal/novaslog"
	"github.com/novacgo/ppp/internal/reference"
	"github.com/novacgo/ppp/internal/report"
)

func main() {
	setupPath := flag.String("setup", "", "Path to the Setup XML document")
	evaluationPath := flag.String("evaluation", "", "Path to the Evaluation XML document")
	processingPath := flag.String("processing", "", "Path to the Processing XML document")
	verbose := flag.Bool("verbose", false, "Enable per-scan trace logging")
	statusAddr := flag.String("status-addr", "", "Optional host:port to serve run status over gRPC while this run is in progress")

	// The remaining args are spec §6's CLI overlay surface
	// (--FromDate, --Volcano, --mode, ...); ParseOverrides owns them.
	flag.Parse()

	novaslog.Verbose = *verbose

	if err := run(*setupPath, *evaluationPath, *processingPath, *statusAddr, flag.Args()); err != nil {
		log.Printf("ppp: %v", err)
		os.Exit(1)
	}
}

// serveStatus starts a gRPC server exposing run's status over addr and
// returns a stop function. It never fails the caller: a listen error is
// logged and stop is a no-op.
func serveStatus(addr string, run *driver.Run) func() {
	if addr == "" {
		return func() {}
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("ppp: status service: listen %s: %v", addr, err)
		return func() {}
	}
	grpcServer := grpc.NewServer()
	statuspb.RegisterStatusServiceServer(grpcServer, statuspb.NewServer(run))
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			novaslog.Tracef("ppp: status service stopped: %v", err)
		}
	}()
	return grpcServer.GracefulStop
}

func run(setupPath, evaluationPath, processingPath, statusAddr string, overlayArgs []string) error {
	if setupPath == "" || evaluationPath == "" || processingPath == "" {
		return fmt.Errorf("--setup, --evaluation, and --processing are all required")
	}

	setupDoc, err := openAndLoad(setupPath, novascfg.LoadSetup)
	if err != nil {
		return err
	}
	evalDoc, err := openAndLoad(evaluationPath, novascfg.LoadEvaluation)
	if err != nil {
		return err
	}
	procDoc, err := openAndLoad(processingPath, novascfg.LoadProcessing)
	if err != nil {
		return err
	}

	overrides, err := novascfg.ParseOverrides(overlayArgs)
	if err != nil {
		return fmt.Errorf("parse CLI overrides: %w", err)
	}
	overrides.Apply(procDoc)

	cfg, molecule, err := novascfg.Resolve(
		novascfg.Documents{Setup: setupDoc, Evaluation: evalDoc, Processing: procDoc},
		openReference, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("resolve configuration: %w", err)
	}

	cfg.Fetcher = driver.LocalFetcher{
		Root:           procDoc.LocalDirectory,
		IncludeSubDirs: procDoc.IncludeSubDirsLocal,
		Pattern:        procDoc.FilenamePatternMatchingLocal,
	}

	if procDoc.Calibration.IntervalHours > 0 {
		schedule, err := reference.NewSchedule(
			procDoc.Calibration.IntervalHours,
			procDoc.Calibration.TimeOfDayLow,
			procDoc.Calibration.TimeOfDayHigh,
		)
		if err != nil {
			return fmt.Errorf("configure calibration schedule: %w", err)
		}
		cfg.Calibration = schedule
	}

	if procDoc.OutputDirectory != "" {
		if err := os.MkdirAll(procDoc.OutputDirectory, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}
	cfg.OutputDir = procDoc.OutputDirectory

	windDB, err := metdb.Open(filepath.Join(procDoc.TempDirectory, "wind.db"))
	if err != nil {
		return fmt.Errorf("open wind database: %w", err)
	}
	plumeDB, err := metdb.Open(filepath.Join(procDoc.TempDirectory, "plume.db"))
	if err != nil {
		return fmt.Errorf("open plume database: %w", err)
	}
	cfg.WindDB, cfg.PlumeDB = windDB, plumeDB

	if procDoc.WindFieldFile != "" {
		if err := importWindField(windDB, procDoc.WindFieldFile); err != nil {
			return fmt.Errorf("import wind field file: %w", err)
		}
	}

	driverRun := driver.NewRun()
	stopStatus := serveStatus(statusAddr, driverRun)
	defer stopStatus()
	if err := driverRun.Execute(context.Background(), cfg, molecule); err != nil {
		return fmt.Errorf("run %s: %w", driverRun.ID, err)
	}
	log.Printf("ppp: run %s complete", driverRun.ID)

	if err := writeDiagnosticReport(cfg.OutputDir, driverRun.FluxStats()); err != nil {
		log.Printf("ppp: diagnostic report: %v", err)
	}
	return nil
}

// writeDiagnosticReport renders the go-echarts dashboard and the gonum/plot
// flux-series chart into <outputDir>/report/ from the run's day statistics.
// A failure here never fails the run; the tab-separated artifacts (spec §6)
// are already complete by the time this runs.
func writeDiagnosticReport(outputDir string, stats *driver.FluxStats) error {
	if outputDir == "" || stats == nil {
		return nil
	}
	rows := stats.Rows()
	if len(rows) == 0 {
		return nil
	}

	reportDir := filepath.Join(outputDir, "report")
	if err := os.MkdirAll(reportDir, 0o755); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}

	dayRows := make([]report.DayRow, len(rows))
	for i, row := range rows {
		dayRows[i] = report.DayRow{
			Serial:     row.Serial,
			Day:        row.Day,
			Mean:       row.Mean,
			Min:        row.Min,
			Max:        row.Max,
			GoodScans:  row.GoodScans,
			TotalScans: row.TotalScans,
		}
	}

	dashboardPath := filepath.Join(reportDir, "dashboard.html")
	f, err := os.Create(dashboardPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", dashboardPath, err)
	}
	defer f.Close()
	if err := report.WriteDashboardHTML(f, dayRows); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}

	fluxPlotPath := filepath.Join(reportDir, "flux.png")
	if err := report.WriteFluxSeriesPNG(fluxPlotPath, "Daily mean flux", dayRows); err != nil {
		return fmt.Errorf("render flux series plot: %w", err)
	}
	return nil
}

// openAndLoad opens path and decodes it with load, closing the file
// regardless of outcome.
func openAndLoad[T any](path string, load func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	doc, err := load(f)
	if err != nil {
		return zero, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// openReference is the novascfg.ReferenceLoader backing this CLI: every
// reference/Fraunhofer/dark path in the XML documents is a plain
// filesystem path.
func openReference(path string) (io.ReadCloser, error) {
	return os.Open(path)
}

func importWindField(store *metdb.Store, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return store.ImportWindXML(f)
}
