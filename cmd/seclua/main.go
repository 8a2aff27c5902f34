// Command seclua runs taint-tracked scripts: as a one-shot file
// interpreter, or as an interactive REPL when stdin is a terminal and no
// file argument is given — grounded on the teacher's cmd/gosec/main.go
// flag/logger/exit-code conventions, adapted from "scan packages, print
// a report" to "run a script, optionally print a stats report".
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/taintscript/seclua"
	"github.com/taintscript/seclua/platform"
	"github.com/taintscript/seclua/report"
	"github.com/taintscript/seclua/value"
)

var (
	flagConfig  = flag.String("conf", "", "Path to optional YAML config file")
	flagColor   = flag.Bool("color", true, "Prints the stats report with colorization when it goes to stdout")
	flagStats   = flag.Bool("stats", false, "Print a per-function profiling report after the script finishes")
	flagQuiet   = flag.Bool("quiet", false, "Suppress the banner and prompt in interactive mode")
	flagVersion = flag.Bool("version", false, "Print version and quit with exit code 0")

	logger *log.Logger
)

func loadConfig(path string) (seclua.Config, error) {
	cfg := seclua.DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path) // #nosec G304
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if _, err := cfg.ReadFrom(f); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runFile(st *seclua.State, path string) error {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return err
	}
	results, err := st.DoString(string(data), "@"+path)
	if err != nil {
		return err
	}
	printResults(results)
	return nil
}

func printResults(results []value.Value) {
	for _, v := range results {
		fmt.Println(formatValue(v))
	}
}

func formatValue(v value.Value) string {
	switch v.Type {
	case value.TypeNil:
		return "nil"
	case value.TypeBoolean:
		return fmt.Sprint(v.Bool)
	case value.TypeNumber:
		return fmt.Sprint(v.Number)
	case value.TypeString:
		return v.Str
	default:
		return fmt.Sprintf("%s: %p", v.Type, v.Ref)
	}
}

func runREPL(st *seclua.State) {
	editor := platform.NewLineEditor(os.Stdin)
	if !*flagQuiet {
		fmt.Println("seclua interactive mode, Ctrl-D to exit")
	}
	for {
		if !*flagQuiet {
			fmt.Print("> ")
		}
		line, ok := editor.ReadLine()
		if !ok {
			fmt.Println()
			return
		}
		if line == "" {
			continue
		}
		results, err := st.DoString(line, "=(stdin)")
		if err != nil {
			logger.Println(err)
			continue
		}
		printResults(results)
	}
}

func main() {
	prepareVersionInfo()
	flag.Parse()

	if *flagVersion {
		fmt.Printf("Version: %s\nGit tag: %s\nBuild date: %s\n", Version, GitTag, BuildDate)
		os.Exit(0)
	}

	if *flagQuiet {
		logger = log.New(io.Discard, "", 0)
	} else {
		logger = log.New(os.Stderr, "[seclua] ", log.LstdFlags)
	}

	profiler, err := initProfiling(logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer finishProfiling(profiler)

	cfg, err := loadConfig(*flagConfig)
	if err != nil {
		logger.Fatal(err)
	}
	st := seclua.New(cfg)

	args := flag.Args()
	switch {
	case len(args) > 0:
		if err := runFile(st, args[0]); err != nil {
			logger.Fatal(err)
		}
	case platform.IsTerminal(os.Stdin):
		runREPL(st)
	default:
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Fatal(err)
		}
		if _, err := st.DoString(string(data), "=(stdin)"); err != nil {
			logger.Fatal(err)
		}
	}

	if *flagStats {
		fns := st.Collector().AllFuncStats()
		sortFuncStats(fns)
		if err := report.WriteFuncReport(os.Stdout, fns, *flagColor && platform.IsTerminal(os.Stdout)); err != nil {
			logger.Fatal(err)
		}
	}
}
