// Command runhist inspects, merges and converts run history files. Histories
// are stored as JSON or sqlite archives; export additionally writes Parquet
// for analysis tooling.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/XiaoConstantine/smac-go/pkg/core"
	"github.com/XiaoConstantine/smac-go/pkg/export"
	"github.com/XiaoConstantine/smac-go/pkg/logging"
	"github.com/XiaoConstantine/smac-go/pkg/runhistory"
	"github.com/XiaoConstantine/smac-go/pkg/store"
)

func usage() {
	fmt.Fprint(os.Stderr, `Usage: runhist <command> [flags]

Commands:
  inspect   Summarize a run history file
  merge     Merge several run histories into one file
  export    Convert a run history to another format

Run histories are read from .json or .db files; output formats are .json,
.db and .parquet. Every command needs the scenario YAML that describes the
parameter space the history was recorded against.

Run 'runhist <command> -h' for command flags.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "inspect":
		err = runInspect(os.Args[2:])
	case "merge":
		err = runMerge(os.Args[2:])
	case "export":
		err = runExport(os.Args[2:])
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := logging.INFO
	if debug {
		level = logging.DEBUG
	}
	output := logging.NewConsoleOutput(true, logging.WithColor(true))
	logging.SetLogger(logging.NewLogger(logging.Config{
		Severity: level,
		Outputs:  []logging.Output{output},
	}))
}

func loadSpace(scenarioPath string) (*core.Space, error) {
	if scenarioPath == "" {
		return nil, fmt.Errorf("missing required -scenario flag")
	}
	scenario, err := core.LoadScenario(scenarioPath)
	if err != nil {
		return nil, err
	}
	space, err := scenario.BuildSpace()
	if err != nil {
		return nil, fmt.Errorf("scenario %s has no usable parameter space: %w", scenarioPath, err)
	}
	return space, nil
}

func loadHistory(path string, space *core.Space) (*runhistory.RunHistory, error) {
	switch {
	case strings.HasSuffix(path, ".json"):
		rh := runhistory.New()
		if err := rh.LoadJSON(path, space); err != nil {
			return nil, err
		}
		return rh, nil
	case strings.HasSuffix(path, ".db"):
		archive, err := store.Open(path)
		if err != nil {
			return nil, err
		}
		defer archive.Close()
		return archive.Load(context.Background(), space)
	default:
		return nil, fmt.Errorf("unsupported run history format %q: expected .json or .db", path)
	}
}

func saveHistory(rh *runhistory.RunHistory, path string) error {
	switch {
	case strings.HasSuffix(path, ".json"):
		return rh.SaveJSON(path, true)
	case strings.HasSuffix(path, ".parquet"):
		return export.WriteParquet(rh, path)
	case strings.HasSuffix(path, ".db"):
		archive, err := store.Open(path)
		if err != nil {
			return err
		}
		if err := archive.Save(context.Background(), rh); err != nil {
			archive.Close()
			return err
		}
		return archive.Close()
	default:
		return fmt.Errorf("unsupported output format %q: expected .json, .parquet or .db", path)
	}
}

func runInspect(args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	scenarioPath := fs.String("scenario", "", "Scenario YAML describing the parameter space")
	in := fs.String("in", "", "Run history file (.json or .db)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogging(*debug)

	if *in == "" {
		return fmt.Errorf("missing required -in flag")
	}
	space, err := loadSpace(*scenarioPath)
	if err != nil {
		return err
	}
	rh, err := loadHistory(*in, space)
	if err != nil {
		return err
	}

	printSummary(os.Stdout, *in, rh)
	return nil
}

func runMerge(args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	scenarioPath := fs.String("scenario", "", "Scenario YAML describing the parameter space")
	out := fs.String("out", "", "Merged output file (.json, .parquet or .db)")
	differentInstances := fs.Bool("different-instances", false,
		"Mark merged trials as recorded on a different instance set")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogging(*debug)

	inputs := fs.Args()
	if len(inputs) == 0 {
		return fmt.Errorf("merge requires at least one input run history")
	}
	if *out == "" {
		return fmt.Errorf("missing required -out flag")
	}
	space, err := loadSpace(*scenarioPath)
	if err != nil {
		return err
	}

	origin := runhistory.OriginExternalSameInstances
	if *differentInstances {
		origin = runhistory.OriginExternalDifferentInstances
	}

	merged := runhistory.New()
	for _, input := range inputs {
		other, err := loadHistory(input, space)
		if err != nil {
			return err
		}
		if err := merged.Update(other, origin); err != nil {
			return fmt.Errorf("failed to merge %s: %w", input, err)
		}
	}
	if err := saveHistory(merged, *out); err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	p.Printf("Merged %d trials from %d files into %s\n", merged.Len(), len(inputs), *out)
	return nil
}

func runExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	scenarioPath := fs.String("scenario", "", "Scenario YAML describing the parameter space")
	in := fs.String("in", "", "Run history file (.json or .db)")
	out := fs.String("out", "", "Output file (.json, .parquet or .db)")
	debug := fs.Bool("debug", false, "Enable debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setupLogging(*debug)

	if *in == "" {
		return fmt.Errorf("missing required -in flag")
	}
	if *out == "" {
		return fmt.Errorf("missing required -out flag")
	}
	space, err := loadSpace(*scenarioPath)
	if err != nil {
		return err
	}
	rh, err := loadHistory(*in, space)
	if err != nil {
		return err
	}
	if err := saveHistory(rh, *out); err != nil {
		return err
	}

	p := message.NewPrinter(language.English)
	p.Printf("Exported %d trials to %s\n", rh.Len(), *out)
	return nil
}

func printSummary(w io.Writer, name string, rh *runhistory.RunHistory) {
	p := message.NewPrinter(language.English)
	titler := cases.Title(language.English)

	p.Fprintf(w, "Run history %s\n", name)
	p.Fprintf(w, "  Trials:         %d\n", rh.Len())
	p.Fprintf(w, "  Configurations: %d\n", len(rh.GetConfigs()))
	p.Fprintf(w, "  Objectives:     %d\n", rh.NumObjectives())

	counts := statusCounts(rh)
	if len(counts) > 0 {
		p.Fprintf(w, "  Status:\n")
		for _, sc := range counts {
			p.Fprintf(w, "    %-16s %d\n", statusLabel(titler, sc.status)+":", sc.n)
		}
	}

	for i, b := range rh.ObjectiveBounds() {
		if math.IsInf(b[0], 0) || math.IsInf(b[1], 0) {
			continue
		}
		p.Fprintf(w, "  Objective %d bounds: [%g, %g]\n", i, b[0], b[1])
	}

	incumbent := rh.GetIncumbent()
	if incumbent == nil {
		p.Fprintf(w, "  Incumbent: none\n")
		return
	}
	id, _ := rh.GetConfigID(incumbent)
	p.Fprintf(w, "  Incumbent: config %d with cost %g\n", id, rh.GetCost(incumbent))

	values := incumbent.Values()
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		p.Fprintf(w, "    %s: %v\n", n, values[n])
	}
}

type statusCount struct {
	status core.StatusType
	n      int
}

func statusCounts(rh *runhistory.RunHistory) []statusCount {
	counts := make(map[core.StatusType]int)
	for _, k := range rh.Keys() {
		if v, ok := rh.Get(k); ok {
			counts[v.Status]++
		}
	}
	out := make([]statusCount, 0, len(counts))
	for s := core.StatusRunning; s <= core.StatusStop; s++ {
		if n := counts[s]; n > 0 {
			out = append(out, statusCount{status: s, n: n})
		}
	}
	return out
}

func statusLabel(titler cases.Caser, s core.StatusType) string {
	switch s {
	case core.StatusDoNotAdvance:
		return "Do not advance"
	case core.StatusMemoryOut:
		return "Memory out"
	default:
		return titler.String(strings.ToLower(s.String()))
	}
}
