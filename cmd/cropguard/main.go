// Command cropguard scans leaf photos and manages the local scan history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `Usage: cropguard [-config FILE] [-json] [-v] <command> [args]

Commands:
  scan -image PATH [-crop Maize]      diagnose a leaf photo and save it to history
  history list                        list past scans, most recent first
  history show ID                     show one past scan
  history rm ID                       remove one past scan
  history clear                       remove every past scan
  history search [-q TEXT] [-crop C]  filter past scans
  history export -o FILE              write history to an .xlsx workbook
  recommend LABEL [-crop C]           show treatment advice for a diagnosis
  models                              list crops, models and class labels
`

var errUsage = errors.New("invalid usage")

// options are the global flags shared by every command
type options struct {
	configPath string
	jsonOutput bool
	verbose    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("cropguard", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "path to config.yaml")
	fs.BoolVar(&opts.jsonOutput, "json", false, "print JSON instead of text")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging to stderr")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	cli := &cli{opts: opts, stdout: stdout, stderr: stderr}

	var err error
	switch rest[0] {
	case "scan":
		err = cli.scan(ctx, rest[1:])
	case "history":
		err = cli.history(ctx, rest[1:])
	case "recommend":
		err = cli.recommend(rest[1:])
	case "models":
		err = cli.models()
	case "help":
		fs.Usage()
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", rest[0])
		fs.Usage()
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "%v\n\n", err)
		fs.Usage()
		return 2
	default:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
}
