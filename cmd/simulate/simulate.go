// Package simulate is a subcommand of the root command. It replays a trace
// against a simulated cache hierarchy and reports the resulting stats.
package simulate

// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cachexplorer/internal/coherence"
	"cachexplorer/internal/config"
	"cachexplorer/internal/hierarchy"
	"cachexplorer/internal/prefetch"
	"cachexplorer/internal/progress"
	"cachexplorer/internal/report"
	"cachexplorer/internal/simcache"
	"cachexplorer/internal/trace"
	"cachexplorer/internal/util"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const cmdName = "simulate"

const appName = "cachexplorer"

var examples = []string{
	fmt.Sprintf("  Simulate a trace file against a built-in preset: $ %s %s --config intel --input trace.txt", appName, cmdName),
	fmt.Sprintf("  Simulate stdin with a custom L1/L2 hierarchy:   $ %s %s --config custom --l1-size 32 --l1-assoc 8 --l1-line 64 < trace.txt", appName, cmdName),
	fmt.Sprintf("  Four-core run with a stream prefetcher:          $ %s %s --config zen3 --cores 4 --prefetch stream --input trace.txt", appName, cmdName),
	fmt.Sprintf("  Emit JSON and an XLSX workbook:                  $ %s %s --config apple_m3 --input trace.txt --json --xlsx out.xlsx", appName, cmdName),
}

var Cmd = &cobra.Command{
	Use:           cmdName,
	Short:         "Replay a trace against a simulated cache hierarchy",
	Long:          "Reads a text trace (file or stdin), drives it through a simulated multi-level cache hierarchy, and reports hit/miss/coherence/prefetch statistics.",
	Example:       strings.Join(examples, "\n"),
	RunE:          runCmd,
	PreRunE:       validateFlags,
	GroupID:       "primary",
	Args:          cobra.NoArgs,
	SilenceErrors: true,
}

var (
	flagConfig         string
	flagConfigFile     string
	flagInput          string
	flagL1Size         int
	flagL1Assoc        int
	flagL1Line         int
	flagL2Size         int
	flagL2Assoc        int
	flagL3Size         int
	flagL3Assoc        int
	flagEviction       string
	flagWritePolicy    string
	flagInclusion      string
	flagPrefetch       string
	flagPrefetchDegree int
	flagCores          int
	flagJSON           bool
	flagStream         bool
	flagFlamegraph     string
	flagFast           bool
	flagVerbose        bool
	flagXLSX           string
	flagPrometheus     string
	flagHotLines       int
)

func init() {
	Cmd.Flags().StringVar(&flagConfig, "config", "intel", "built-in configuration preset, or \"custom\"")
	Cmd.Flags().StringVar(&flagConfigFile, "config-file", "", "YAML file describing a custom configuration (with --config custom)")
	Cmd.Flags().StringVar(&flagInput, "input", "", "trace file to read (default: stdin)")
	Cmd.Flags().IntVar(&flagL1Size, "l1-size", 32, "L1 size in KB (--config custom)")
	Cmd.Flags().IntVar(&flagL1Assoc, "l1-assoc", 8, "L1 associativity (--config custom)")
	Cmd.Flags().IntVar(&flagL1Line, "l1-line", 64, "L1 line size in bytes (--config custom)")
	Cmd.Flags().IntVar(&flagL2Size, "l2-size", 256, "L2 size in KB (--config custom)")
	Cmd.Flags().IntVar(&flagL2Assoc, "l2-assoc", 8, "L2 associativity (--config custom)")
	Cmd.Flags().IntVar(&flagL3Size, "l3-size", 0, "L3 size in KB, 0 disables L3 (--config custom)")
	Cmd.Flags().IntVar(&flagL3Assoc, "l3-assoc", 16, "L3 associativity (--config custom)")
	Cmd.Flags().StringVar(&flagEviction, "eviction", "lru", "eviction policy for --config custom: lru|plru|random|srrip|brrip")
	Cmd.Flags().StringVar(&flagWritePolicy, "write-policy", "write-back", "write policy for --config custom: write-back|write-through")
	Cmd.Flags().StringVar(&flagInclusion, "inclusion", "inclusive", "inclusion policy for --config custom: inclusive|exclusive|nine")
	Cmd.Flags().StringVar(&flagPrefetch, "prefetch", "none", "prefetch policy: none|next|stream|stride|adaptive|intel")
	Cmd.Flags().IntVar(&flagPrefetchDegree, "prefetch-degree", 1, "number of lines to prefetch ahead")
	Cmd.Flags().IntVar(&flagCores, "cores", 0, "number of cores, 0 = auto-detect from thread ids in the trace")
	Cmd.Flags().BoolVar(&flagJSON, "json", false, "emit the report as JSON instead of a text summary")
	Cmd.Flags().BoolVar(&flagStream, "stream", false, "emit a newline-delimited JSON completion record (events, skipped) after processing")
	Cmd.Flags().StringVar(&flagFlamegraph, "flamegraph", "", "write a folded-stack file (for flamegraph tooling) of hot source lines")
	Cmd.Flags().BoolVar(&flagFast, "fast", false, "disable 3C miss classification for a faster run")
	Cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "show a progress spinner while processing")
	Cmd.Flags().StringVar(&flagXLSX, "xlsx", "", "also write an XLSX workbook to this path")
	Cmd.Flags().StringVar(&flagPrometheus, "prometheus", "", "also write a Prometheus text exposition to this path")
	Cmd.Flags().IntVar(&flagHotLines, "hot-lines", 50, "maximum number of hot lines to report")
}

func validateFlags(cmd *cobra.Command, args []string) error {
	if flagConfig != "custom" && flagConfigFile != "" {
		return errors.New("--config-file requires --config custom")
	}
	if _, ok := prefetch.ParsePolicy(flagPrefetch); !ok {
		return errors.Errorf("unknown --prefetch policy %q", flagPrefetch)
	}
	if flagCores < 0 {
		return errors.New("--cores must not be negative")
	}
	return nil
}

func resolveConfig() (hierarchy.Config, error) {
	if flagConfig != "custom" {
		return config.Load(flagConfig)
	}
	if flagConfigFile != "" {
		path, err := util.AbsPath(flagConfigFile)
		if err != nil {
			return hierarchy.Config{}, errors.Wrap(err, "resolving --config-file path")
		}
		return config.LoadFile(path)
	}
	eviction, err := simcache.ParseEviction(flagEviction)
	if err != nil {
		return hierarchy.Config{}, err
	}
	writePolicy, ok := map[string]simcache.WritePolicy{"write-back": simcache.WriteBack, "write-through": simcache.WriteThrough}[flagWritePolicy]
	if !ok {
		return hierarchy.Config{}, errors.Errorf("unknown --write-policy %q", flagWritePolicy)
	}
	inclusion, err := parseInclusion(flagInclusion)
	if err != nil {
		return hierarchy.Config{}, err
	}
	return config.BuildCustom(config.CustomFlags{
		L1Size: flagL1Size, L1Assoc: flagL1Assoc, L1Line: flagL1Line,
		L2Size: flagL2Size, L2Assoc: flagL2Assoc,
		L3Size: flagL3Size, L3Assoc: flagL3Assoc,
		Eviction:    eviction,
		WritePolicy: writePolicy,
		Inclusion:   inclusion,
	})
}

func parseInclusion(name string) (hierarchy.Inclusion, error) {
	switch name {
	case "inclusive":
		return hierarchy.Inclusive, nil
	case "exclusive":
		return hierarchy.Exclusive, nil
	case "nine":
		return hierarchy.NINE, nil
	default:
		return 0, errors.Errorf("unknown --inclusion policy %q", name)
	}
}

func openInput() (io.ReadCloser, error) {
	if flagInput == "" {
		return io.NopCloser(os.Stdin), nil
	}
	path, err := util.AbsPath(flagInput)
	if err != nil {
		return nil, errors.Wrap(err, "resolving --input path")
	}
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return nil, errors.Wrapf(err, "opening trace file %q", path)
	}
	return f, nil
}

func runCmd(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig()
	if err != nil {
		return emitConfigError(err)
	}

	policy, _ := prefetch.ParsePolicy(flagPrefetch)

	in, err := openInput()
	if err != nil {
		return emitConfigError(err)
	}
	defer in.Close()

	var tracker interface {
		AddStage(string) error
		Start()
		Finish()
		SetStatus(string, string) error
	}
	if flagVerbose {
		tracker = progress.NewStageTracker()
		_ = tracker.AddStage("simulate")
		_ = tracker.AddStage("report")
		tracker.Start()
		_ = tracker.SetStatus("simulate", "parsing and simulating")
		defer tracker.Finish()
	}

	numCores := flagCores
	if numCores == 0 {
		data, err := io.ReadAll(in)
		if err != nil {
			return emitConfigError(err)
		}
		threads := make(map[uint32]struct{})
		trace.ReadAll(bytes.NewReader(data), func(ev trace.Event) { threads[ev.Thread] = struct{}{} })
		numCores = len(threads)
		in = io.NopCloser(bytes.NewReader(data))
	}
	multicore := numCores > 1
	opts := report.Options{ConfigName: flagConfig, Cfg: cfg, PrefetchPolicy: policy, PrefetchDegree: flagPrefetchDegree, HotLineLimit: flagHotLines}

	var rep report.Report
	if multicore {
		engine := coherence.New(numCores, cfg, policy, flagPrefetchDegree)
		engine.SetFastMode(flagFast)
		adapter := trace.MultiCoreEngineAdapter{Engine: engine, LineSize: cfg.L1D.LineSize}
		proc := trace.NewProcessor(adapter)
		if err := process(in, proc); err != nil {
			return err
		}
		if tracker != nil {
			_ = tracker.SetStatus("simulate", "done")
			_ = tracker.SetStatus("report", "building report")
		}
		rep = report.BuildMultiCore(opts, engine, proc)
	} else {
		cs := hierarchy.New(cfg, prefetch.New(policy, flagPrefetchDegree, cfg.L1D.LineSize))
		cs.SetFastMode(flagFast)
		proc := trace.NewProcessor(trace.SingleCoreEngine{System: cs})
		if err := process(in, proc); err != nil {
			return err
		}
		if tracker != nil {
			_ = tracker.SetStatus("simulate", "done")
			_ = tracker.SetStatus("report", "building report")
		}
		rep = report.BuildSingleCore(opts, cs, proc)
	}

	err = emitReport(rep)
	if tracker != nil {
		_ = tracker.SetStatus("report", "done")
	}
	return err
}

func process(in io.Reader, proc *trace.Processor) error {
	processed, skipped := trace.ReadAll(in, proc.Process)
	slog.Info("trace processed", slog.Uint64("processed", processed), slog.Uint64("skipped", skipped))
	if flagStream {
		fmt.Printf("{\"type\":\"done\",\"events\":%d,\"skipped\":%d}\n", processed, skipped)
	}
	return nil
}

func emitConfigError(err error) error {
	if flagJSON || flagStream {
		data, _ := report.RenderError("configuration error", err)
		fmt.Println(string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return err
}

func emitReport(r report.Report) error {
	if flagXLSX != "" {
		f, err := report.RenderXLSX(r)
		if err != nil {
			return errors.Wrap(err, "rendering xlsx")
		}
		if err := f.SaveAs(flagXLSX); err != nil {
			return errors.Wrapf(err, "saving xlsx to %q", flagXLSX)
		}
	}
	if flagPrometheus != "" {
		text, err := report.RenderPrometheus(r)
		if err != nil {
			return errors.Wrap(err, "rendering prometheus exposition")
		}
		if err := os.WriteFile(flagPrometheus, text, 0644); err != nil { // #nosec G306
			return errors.Wrapf(err, "writing prometheus exposition to %q", flagPrometheus)
		}
	}
	if flagFlamegraph != "" {
		if err := writeFlamegraph(flagFlamegraph, r.HotLines); err != nil {
			return err
		}
	}

	if flagJSON {
		data, err := report.RenderJSON(r)
		if err != nil {
			return errors.Wrap(err, "rendering json")
		}
		fmt.Println(string(data))
		return nil
	}

	printSummary(r)
	return nil
}

func writeFlamegraph(path string, hotLines []report.HotLine) error {
	f, err := os.Create(path) // #nosec G304
	if err != nil {
		return errors.Wrapf(err, "creating flamegraph file %q", path)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	for _, hl := range hotLines {
		fmt.Fprintf(w, "%s:%d %d\n", hl.File, hl.Line, hl.Misses)
	}
	return w.Flush()
}

func printSummary(r report.Report) {
	fmt.Printf("Config:      %s\n", r.Config)
	fmt.Printf("Events:      %d\n", r.Events)
	fmt.Printf("Cores:       %d (multicore=%v)\n", r.Cores, r.Multicore)
	fmt.Printf("L1D:         %d hits, %d misses (%.2f%% hit rate)\n", r.Levels.L1D.Hits, r.Levels.L1D.Misses, r.Levels.L1D.HitRate*100)
	fmt.Printf("L1I:         %d hits, %d misses (%.2f%% hit rate)\n", r.Levels.L1I.Hits, r.Levels.L1I.Misses, r.Levels.L1I.HitRate*100)
	fmt.Printf("L2:          %d hits, %d misses (%.2f%% hit rate)\n", r.Levels.L2.Hits, r.Levels.L2.Misses, r.Levels.L2.HitRate*100)
	if r.Levels.L3 != nil {
		fmt.Printf("L3:          %d hits, %d misses (%.2f%% hit rate)\n", r.Levels.L3.Hits, r.Levels.L3.Misses, r.Levels.L3.HitRate*100)
	}
	if r.Coherence != nil {
		fmt.Printf("Coherence:   %d invalidations, %d false-sharing line(s)\n", r.Coherence.Invalidations, r.Coherence.FalseSharingEvents)
	}
	fmt.Printf("Prefetch:    policy=%s issued=%d useful=%d accuracy=%.2f%%\n", r.Prefetch.Policy, r.Prefetch.Issued, r.Prefetch.Useful, r.Prefetch.Accuracy*100)
	if len(r.Suggestions) > 0 {
		fmt.Println("Suggestions:")
		for _, s := range r.Suggestions {
			fmt.Printf("  - %s\n", s)
		}
	}
}
