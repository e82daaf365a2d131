// Strata CLI - inspect and exercise a strata heap from the command line
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/strata/config"
	"github.com/chazu/strata/heap"

	_ "github.com/tliron/commonlog/simple"
)

func main() {
	configPath := flag.String("config", "", "Path to strata.toml or its directory (default: walk up from cwd)")
	benchOps := flag.Int("bench", 0, "Run a synthetic object/property workload of N operations")
	forceGC := flag.Bool("gc", false, "Force a full collection cycle")
	dumpFile := flag.String("dump", "", "Write a CBOR heap snapshot to FILE")
	showStats := flag.Bool("stats", false, "Print heap statistics")
	verbose := flag.Bool("v", false, "Verbose output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: strata [options]\n\n")
		fmt.Fprintf(os.Stderr, "Creates an isolate, runs the requested actions against it, and exits.\n")
		fmt.Fprintf(os.Stderr, "With no action flags, prints statistics for a fresh isolate.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  strata -stats                     # Statistics for a fresh isolate\n")
		fmt.Fprintf(os.Stderr, "  strata -bench 100000 -stats       # Synthetic workload, then statistics\n")
		fmt.Fprintf(os.Stderr, "  strata -bench 100000 -gc -v       # Workload, forced collection, verbose\n")
		fmt.Fprintf(os.Stderr, "  strata -dump heap.cbor            # Write a CBOR snapshot to heap.cbor\n")
		fmt.Fprintf(os.Stderr, "  strata -config ./etc -bench 1000  # Load ./etc/strata.toml first\n")
	}
	flag.Parse()

	verbosity := 0
	if *verbose {
		verbosity = 1
	}
	commonlog.Configure(verbosity, nil)

	cfg, err := loadConfig(*configPath, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	iso, herr := heap.NewIsolate(cfg.Options())
	if herr != nil {
		fmt.Fprintf(os.Stderr, "Error creating isolate: %v\n", herr)
		os.Exit(1)
	}
	defer iso.Shutdown()

	if cfg.Collector.Auto {
		iso.StartAutoCollect(cfg.Collector.AutoInterval.Std(), cfg.Collector.OccupancyTrigger)
		if *verbose {
			fmt.Printf("Background collector on (interval %v, trigger %.2f)\n",
				cfg.Collector.AutoInterval.Std(), cfg.Collector.OccupancyTrigger)
		}
	}

	if *benchOps > 0 {
		if err := runBench(iso, *benchOps, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}

	if *forceGC {
		stats := iso.Collect()
		fmt.Printf("gc: cycle %d marked %d reclaimed %d relocated %d pause %v\n",
			stats.Cycle, stats.Marked, stats.Reclaimed, stats.Relocated, stats.Pause)
	}

	if *dumpFile != "" {
		data, err := iso.Snapshot()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*dumpFile, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", *dumpFile, err)
			os.Exit(1)
		}
		if *verbose {
			fmt.Printf("Wrote %d snapshot bytes to %s\n", len(data), *dumpFile)
		}
	}

	// A bare invocation still shows something useful.
	if *showStats || (*benchOps == 0 && !*forceGC && *dumpFile == "") {
		printStats(iso.Stats())
	}
}

// loadConfig resolves the -config flag, falling back to a walk-up
// search and then to defaults.
func loadConfig(path string, verbose bool) (*config.Config, error) {
	if path != "" {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot access %q: %w", path, err)
		}
		dir := path
		if !info.IsDir() {
			dir = filepath.Dir(path)
		}
		return config.Load(dir)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	cfg, err := config.FindAndLoad(cwd)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		if verbose {
			fmt.Println("No strata.toml found, using defaults")
		}
		return config.Default(), nil
	}
	if verbose {
		fmt.Printf("Loaded %s\n", cfg.Dir)
	}
	return cfg, nil
}

// runBench spreads ops across one worker per CPU, each churning objects,
// properties, lists, and weak handles in its own handle scope.
func runBench(iso *heap.Isolate, ops int, verbose bool) error {
	workers := runtime.GOMAXPROCS(0)
	if workers > ops {
		workers = ops
	}
	share := ops / workers
	extra := ops % workers

	start := time.Now()
	var g errgroup.Group
	for w := 0; w < workers; w++ {
		n := share
		if w < extra {
			n++
		}
		worker := w
		g.Go(func() error {
			return benchWorker(iso, worker, n)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	fmt.Printf("bench: %d ops, %d workers, %v (%.0f ops/sec)\n",
		ops, workers, elapsed, float64(ops)/elapsed.Seconds())
	if verbose {
		stats := iso.Stats()
		fmt.Printf("bench: %d live records on %d pages after workload\n",
			stats.LiveRecords, stats.Pages)
	}
	return nil
}

// benchWorker runs n operations: each creates an object under a shared
// prototype, writes and reads a field through the shortcut cache, and
// periodically exercises lists, chain lookups, and weak handles.
func benchWorker(iso *heap.Isolate, worker, n int) error {
	ctx := iso.NewContext()
	scope := ctx.OpenScope()
	defer scope.Close()

	kindSym := iso.Intern("kind")
	indexSym := iso.Intern("index")

	proto, err := iso.CreateObject(ctx, heap.Undefined)
	if err != nil {
		return err
	}
	if err := iso.SetOwnProperty(ctx, proto, kindSym, heap.MakeInteger(int32(worker))); err != nil {
		return err
	}
	protoPin := ctx.Pin(proto)
	defer protoPin.Release()

	token := heap.NewFieldToken(indexSym)
	list, err := iso.MakeList(ctx)
	if err != nil {
		return err
	}
	listPin := ctx.Pin(list)
	defer listPin.Release()

	for i := 0; i < n; i++ {
		obj, err := iso.CreateObject(ctx, proto)
		if err != nil {
			return err
		}
		if err := iso.SetFast(ctx, obj, token, heap.MakeInteger(int32(i))); err != nil {
			return err
		}
		got, err := iso.GetFast(ctx, obj, token)
		if err != nil {
			return err
		}
		if got != heap.MakeInteger(int32(i)) {
			return fmt.Errorf("bench: worker %d op %d read back %v", worker, i, got)
		}

		switch {
		case i%256 == 255:
			// Inherited read walks the chain to the shared prototype.
			if _, err := iso.GetProperty(ctx, obj, kindSym); err != nil {
				return err
			}
			w, werr := iso.Weak(obj)
			if werr != nil {
				return werr
			}
			_ = w.IsAlive()
		case i%64 == 63:
			if err := iso.ListAppend(ctx, list, obj); err != nil {
				return err
			}
		}
	}
	return nil
}

// printStats renders the statistics tables.
func printStats(stats heap.HeapStats) {
	fmt.Printf("isolate   %s\n", stats.IsolateID)
	fmt.Printf("pages     %d\n", stats.Pages)
	fmt.Printf("live      %d records (%.1f%% occupancy)\n", stats.LiveRecords, stats.Occupancy()*100)
	fmt.Printf("roots     %d\n", stats.Roots)
	fmt.Printf("weak      %d\n", stats.WeakHandles)
	fmt.Printf("symbols   %d\n", stats.Symbols)
	fmt.Printf("cycles    %d\n", stats.Cycles)
	if last := stats.LastCollection; last != nil {
		fmt.Printf("last gc   cycle %d: marked %d, reclaimed %d, relocated %d, pages released %d, weak expired %d, pause %v\n",
			last.Cycle, last.Marked, last.Reclaimed, last.Relocated, last.PagesReleased, last.WeakExpired, last.Pause)
	}
	if len(stats.PageList) > 0 {
		fmt.Printf("\n%-6s %-6s %6s %8s %10s\n", "page", "class", "used", "nursery", "remembered")
		for _, p := range stats.PageList {
			fmt.Printf("%-6d %-6d %6d %8d %10d\n", p.ID, p.Class, p.Used, p.Nursery, p.Remembered)
		}
	}
}
