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
	"strings"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/banshee-data/grasp.report/internal/api"
	"github.com/banshee-data/grasp.report/internal/config"
	"github.com/banshee-data/grasp.report/internal/db"
	"github.com/banshee-data/grasp.report/internal/fsutil"
	"github.com/banshee-data/grasp.report/internal/grasp/l1frames"
	"github.com/banshee-data/grasp.report/internal/grasp/pipeline"
	"github.com/banshee-data/grasp.report/internal/grasp/storage/sqlite"
	"github.com/banshee-data/grasp.report/internal/monitoring"
	"github.com/banshee-data/grasp.report/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to a JSON or YAML tuning file (defaults built in)")
	dbPath      = flag.String("db", "grasp.db", "Path to the SQLite database")
	workers     = flag.Int("workers", 0, "Movements processed in parallel (0 = config, then GOMAXPROCS)")
	listen      = flag.String("listen", "", "Serve /api/ and /debug/ on this address after the batch until interrupted")
	diag        = flag.Bool("diag", false, "Log per-movement diagnostics to stderr")
	trace       = flag.Bool("trace", false, "Log per-stage frame counts to stderr")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] file.csv ...\n", os.Args[0])
	fmt.Fprintf(flag.CommandLine.Output(), "       %s migrate <action>\n\n", os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Printf("grasp-features %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if flag.NArg() > 0 && flag.Arg(0) == "migrate" {
		if err := db.RunMigrateCommand(flag.Args()[1:], *dbPath, os.Stdout); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		return
	}

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	monitoring.SetLogWriters(streams(os.Stderr, *diag, *trace))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	fsys := fsutil.OSFileSystem{}
	paths, err := expandInputs(fsys, flag.Args())
	if err != nil {
		log.Fatalf("inputs: %v", err)
	}
	movements, err := loadMovements(fsys, paths, cfg.Joints())
	if err != nil {
		log.Fatalf("load movements: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	err = process(database, movements, cfg)
	if cerr := database.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close db: %w", cerr)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// process records one run of movements in database, then serves it when
// -listen is set.
func process(database *db.DB, movements []pipeline.Movement, cfg *config.TuningConfig) error {
	store := sqlite.NewSummaryStore(database.DB)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	run, batch, err := recordRun(ctx, store, movements, cfg, *workers)
	if err != nil {
		return err
	}
	report(os.Stdout, run.RunID, batch)

	if *listen != "" {
		if err := serveDebug(ctx, *listen, database, store); err != nil {
			return fmt.Errorf("debug server: %w", err)
		}
	}
	return nil
}

// recordRun processes movements under a new run. The run is marked
// complete once every movement is stored; an aborted batch deletes it
// along with whatever it had written.
func recordRun(ctx context.Context, store *sqlite.SummaryStore, movements []pipeline.Movement, cfg *config.TuningConfig, workers int) (*sqlite.Run, *pipeline.Batch, error) {
	cfgJSON, err := cfg.JSON()
	if err != nil {
		return nil, nil, fmt.Errorf("encode config: %w", err)
	}
	run := &sqlite.Run{Version: version.Version, ConfigJSON: cfgJSON}
	if err := store.CreateRun(run); err != nil {
		return nil, nil, fmt.Errorf("create run: %w", err)
	}

	batch, err := pipeline.RunBatch(ctx, movements, cfg, pipeline.Options{
		Workers: workers,
		Sink:    store,
		RunID:   run.RunID,
	})
	if err != nil {
		if derr := store.DeleteRun(run.RunID); derr != nil {
			log.Printf("delete aborted run %s: %v", run.RunID, derr)
		}
		return nil, nil, fmt.Errorf("run %s: %w", run.RunID, err)
	}
	if err := store.CompleteRun(run); err != nil {
		return nil, nil, fmt.Errorf("complete run %s: %w", run.RunID, err)
	}
	return run, batch, nil
}

// streams routes ops logging to w, plus diag and trace when enabled.
func streams(w io.Writer, diag, trace bool) monitoring.LogWriters {
	lw := monitoring.LogWriters{Ops: w}
	if diag {
		lw.Diag = w
	}
	if trace {
		lw.Trace = w
	}
	return lw
}

// loadConfig reads the tuning file at path, or returns the built-in
// defaults when path is empty.
func loadConfig(path string) (*config.TuningConfig, error) {
	if path == "" {
		return config.DefaultTuningConfig(), nil
	}
	return config.LoadTuningConfig(path)
}

// expandInputs resolves glob patterns among args. Plain paths pass through
// unchanged; a pattern matching nothing is an error.
func expandInputs(fsys fsutil.FileSystem, args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if !strings.ContainsAny(arg, "*?[") {
			out = append(out, arg)
			continue
		}
		matches, err := fsys.Glob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", arg)
		}
		out = append(out, matches...)
	}
	return out, nil
}

// loadMovements reads one movement per path. Movement IDs come from the
// file names and must be unique within a run.
func loadMovements(fsys fsutil.FileSystem, paths []string, joints []string) ([]pipeline.Movement, error) {
	seen := make(map[string]string, len(paths))
	movements := make([]pipeline.Movement, 0, len(paths))
	for _, p := range paths {
		id := l1frames.MovementID(p)
		if prev, ok := seen[id]; ok {
			return nil, fmt.Errorf("movement %s appears in both %s and %s", id, prev, p)
		}
		seen[id] = p

		seq, err := l1frames.LoadCSV(fsys, p, joints)
		if err != nil {
			return nil, err
		}
		movements = append(movements, pipeline.Movement{ID: id, Seq: seq})
	}
	return movements, nil
}

// report prints one line per processed and skipped movement.
func report(w io.Writer, runID string, b *pipeline.Batch) {
	for _, r := range b.Results {
		fmt.Fprintf(w, "%s\tframes %d..%d\trows %d\tcheckpoints %d\n",
			r.ID, r.Segment.Start, r.Segment.End, r.Table.Len(), len(r.Records))
	}
	for _, s := range b.Skips {
		fmt.Fprintf(w, "%s\tskipped: %s\n", s.ID, s.Reason)
	}
	fmt.Fprintf(w, "run %s: %d processed, %d skipped\n", runID, len(b.Results), len(b.Skips))
}

// serveDebug serves the read-only run API and the database admin routes
// on addr until ctx is done.
func serveDebug(ctx context.Context, addr string, database *db.DB, store api.Store) error {
	mux := http.NewServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return err
	}
	apiMux := api.NewServer(store).ServeMux()
	mux.Handle("/api/", http.StripPrefix("/api", api.LoggingMiddleware(apiMux)))

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	errc := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
		close(errc)
	}()
	log.Printf("serving /api/ and /debug/ on %s", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
