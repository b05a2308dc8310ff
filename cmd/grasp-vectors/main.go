package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"

	_ "go.uber.org/automaxprocs"

	"github.com/banshee-data/grasp.report/internal/db"
	"github.com/banshee-data/grasp.report/internal/grasp/folds"
	"github.com/banshee-data/grasp.report/internal/grasp/l4kinematics"
	"github.com/banshee-data/grasp.report/internal/grasp/l5summary"
	"github.com/banshee-data/grasp.report/internal/grasp/storage/sqlite"
	"github.com/banshee-data/grasp.report/internal/version"
)

var (
	dbPath      = flag.String("db", "grasp.db", "Path to the SQLite database")
	runID       = flag.String("run", "", "Run to export (default: latest)")
	checkpoint  = flag.Float64("checkpoint", 60, "Completion checkpoint in percent")
	featureSet  = flag.Int("feature-set", 3, "Predefined feature set (1-8)")
	featureList = flag.String("features", "", "Comma-separated feature names; overrides -feature-set")
	strategy    = flag.String("folds", string(folds.AllInStrategy), "Fold strategy: all-in or one-out")
	k           = flag.Int("k", 10, "Number of folds for all-in")
	groupFields = flag.Int("group", 0, "Leading '_' fields of the movement ID that form a group (0 = 2 for all-in, 1 for one-out)")
	seed        = flag.Int64("seed", 1, "Shuffle seed for all-in")
	outPath     = flag.String("out", "", "Output CSV file (default: stdout)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("grasp-vectors %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	features, err := selectFeatures(*featureSet, *featureList)
	if err != nil {
		log.Fatalf("features: %v", err)
	}
	strat, err := folds.ParseStrategy(*strategy)
	if err != nil {
		log.Fatalf("folds: %v", err)
	}

	database, err := db.NewDB(*dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	err = export(sqlite.NewSummaryStore(database.DB), features, strat)
	if cerr := database.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("close db: %w", cerr)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// export writes the vectors of the selected run to -out or stdout.
func export(store *sqlite.SummaryStore, features []l4kinematics.Feature, strat folds.Strategy) error {
	id := *runID
	if id == "" {
		run, err := store.LatestRun()
		if errors.Is(err, sqlite.ErrNoRuns) {
			return fmt.Errorf("no completed runs in %s; run grasp-features first", *dbPath)
		}
		if err != nil {
			return fmt.Errorf("latest run: %w", err)
		}
		id = run.RunID
	}

	records, err := store.CheckpointRecords(id, *checkpoint)
	if err != nil {
		return fmt.Errorf("read run %s: %w", id, err)
	}
	if len(records) == 0 {
		return fmt.Errorf("run %s has no records at checkpoint %g", id, *checkpoint)
	}

	ids := sortedIDs(records)
	partitions, err := partition(ids, strat, *k, *groupFields, *seed)
	if err != nil {
		return fmt.Errorf("folds: %w", err)
	}
	assignment := folds.Assignment(partitions)

	if *outPath == "" {
		if err := writeVectors(os.Stdout, ids, records, features, assignment); err != nil {
			return fmt.Errorf("write vectors: %w", err)
		}
	} else if err := writeFile(*outPath, ids, records, features, assignment); err != nil {
		return err
	}
	log.Printf("wrote %d vectors from run %s in %d folds", len(ids), id, len(partitions))
	return nil
}

// writeFile writes the vectors to path. A failed close is a failed write.
func writeFile(path string, ids []string, records map[string]l5summary.Record, features []l4kinematics.Feature, assignment map[string]int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := writeVectors(f, ids, records, features, assignment); err != nil {
		f.Close()
		return fmt.Errorf("write vectors: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// selectFeatures resolves the exported features from a comma-separated
// list, or from a predefined set when the list is empty.
func selectFeatures(set int, list string) ([]l4kinematics.Feature, error) {
	if strings.TrimSpace(list) == "" {
		return l4kinematics.FeatureSet(set)
	}
	var out []l4kinematics.Feature
	for _, name := range strings.Split(list, ",") {
		f, err := l4kinematics.ParseFeature(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

func sortedIDs(records map[string]l5summary.Record) []string {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// partition assigns ids to folds. Groups are the leading fields of each
// movement ID.
func partition(ids []string, strat folds.Strategy, k, fields int, seed int64) ([][]string, error) {
	switch strat {
	case folds.AllInStrategy:
		if fields <= 0 {
			fields = 2
		}
		return folds.AllIn(ids, folds.PrefixGroup(fields, "_"), k, rand.New(rand.NewSource(seed)))
	case folds.OneOutStrategy:
		if fields <= 0 {
			fields = 1
		}
		return folds.OneOut(ids, folds.PrefixGroup(fields, "_")), nil
	}
	return nil, fmt.Errorf("unhandled fold strategy %q", strat)
}

// checkComputed fails when a record lacks any of features, which means
// the run did not compute it.
func checkComputed(ids []string, records map[string]l5summary.Record, features []l4kinematics.Feature) error {
	for _, id := range ids {
		rec := records[id]
		if missing := rec.Missing(features...); len(missing) > 0 {
			return fmt.Errorf("movement %s has no statistics for %v; the run did not compute them", id, missing)
		}
	}
	return nil
}

// writeVectors writes a header and one row per movement:
// movement_id, fold, then the count and statistics of features.
func writeVectors(w io.Writer, ids []string, records map[string]l5summary.Record, features []l4kinematics.Feature, assignment map[string]int) error {
	if err := checkComputed(ids, records, features); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	header := append([]string{"movement_id", "fold"}, l5summary.SubsetNames(features)...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, id := range ids {
		rec := records[id]
		fold, ok := assignment[id]
		if !ok {
			return fmt.Errorf("movement %s has no fold", id)
		}
		row := make([]string, 0, len(header))
		row = append(row, id, strconv.Itoa(fold))
		for _, v := range rec.Subset(features...) {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
