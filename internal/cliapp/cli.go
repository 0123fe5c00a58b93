package cliapp

import (
	"awkref/internal/core/config"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const versionString = "0.3.0"

var defaultConfigPath = "./" + config.DefaultFileName

const usageText = `usage: awkref [flags] <command> [args]

commands:
  index [root...]                       scan and report index counts
  resolve <file>:<line>:<col>           print the declaration an occurrence refers to
  outline <file>                        print BEGIN/END blocks and functions
  rename <file>:<line>:<col> <new> [-write]
                                        print or apply a rename plan
  symbols <name> [-decl]                list indexed occurrences of a name
  watch                                 keep the index current until interrupted
  serve                                 answer JSON requests on stdin

flags:
`

type cliOptions struct {
	configPath string
	verbose    bool
	version    bool
	json       bool
	command    string
	args       []string

	write    bool
	declOnly bool
}

func parseOptions(args []string, stderr io.Writer) (cliOptions, error) {
	var opts cliOptions
	fs := flag.NewFlagSet("awkref", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprint(stderr, usageText)
		fs.PrintDefaults()
	}

	fs.StringVar(&opts.configPath, "config", defaultConfigPath, "Path to config file")
	fs.BoolVar(&opts.verbose, "verbose", false, "Enable verbose logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")
	fs.BoolVar(&opts.json, "json", false, "Print results as JSON")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}
	if opts.version {
		return opts, nil
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return cliOptions{}, fmt.Errorf("command is required")
	}
	opts.command = rest[0]

	sub := flag.NewFlagSet(opts.command, flag.ContinueOnError)
	sub.SetOutput(stderr)
	sub.BoolVar(&opts.json, "json", opts.json, "Print results as JSON")
	switch opts.command {
	case "rename":
		sub.BoolVar(&opts.write, "write", false, "Apply the plan to disk")
	case "symbols":
		sub.BoolVar(&opts.declOnly, "decl", false, "List declarations only")
	}
	positional, err := parseInterspersed(sub, rest[1:])
	if err != nil {
		return cliOptions{}, err
	}
	opts.args = positional
	return opts, validateArgs(opts)
}

// parseInterspersed lets command flags follow positional arguments.
func parseInterspersed(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		if fs.NArg() == 0 {
			return positional, nil
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
}

func validateArgs(opts cliOptions) error {
	want := map[string]int{
		"resolve": 1,
		"outline": 1,
		"rename":  2,
		"symbols": 1,
		"watch":   0,
		"serve":   0,
	}
	if opts.command == "index" {
		return nil
	}
	n, ok := want[opts.command]
	if !ok {
		return fmt.Errorf("unknown command %q", opts.command)
	}
	if len(opts.args) != n {
		return fmt.Errorf("%s expects %d argument(s), got %d", opts.command, n, len(opts.args))
	}
	return nil
}

// parsePosition splits file:line:col, taking line and column from the
// right so paths may contain colons.
func parsePosition(raw string) (string, int, int, error) {
	colIdx := strings.LastIndex(raw, ":")
	if colIdx <= 0 {
		return "", 0, 0, fmt.Errorf("position %q must be file:line:col", raw)
	}
	lineIdx := strings.LastIndex(raw[:colIdx], ":")
	if lineIdx <= 0 {
		return "", 0, 0, fmt.Errorf("position %q must be file:line:col", raw)
	}
	line, err := strconv.Atoi(raw[lineIdx+1 : colIdx])
	if err != nil || line < 1 {
		return "", 0, 0, fmt.Errorf("position %q has an invalid line", raw)
	}
	col, err := strconv.Atoi(raw[colIdx+1:])
	if err != nil || col < 1 {
		return "", 0, 0, fmt.Errorf("position %q has an invalid column", raw)
	}
	return raw[:lineIdx], line, col, nil
}
