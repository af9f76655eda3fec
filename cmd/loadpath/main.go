// Loadpath CLI - runs source files against a virtual file system
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/loadpath/manifest"
)

var log = commonlog.GetLogger("loadpath.cli")

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var opts options
	flag.IntVar(&opts.Verbosity, "v", -1, "Log verbosity (0 quiet, 1 notice, 2 info, 3+ debug; default from manifest)")
	flag.StringVar(&opts.LogFile, "log", "", "Write logs to this file instead of stderr")
	flag.StringVar(&opts.Dir, "C", ".", "Directory to search for "+manifest.FileName)
	flag.Var(&opts.Evals, "e", "Evaluate code (repeatable)")
	flag.Var(&opts.Requires, "r", "Require a feature before running (repeatable)")
	flag.Var(&opts.Loads, "l", "Load a virtual file before running (repeatable)")
	flag.BoolVar(&opts.Interactive, "i", false, "Start interactive REPL")
	flag.StringVar(&opts.Archive, "archive", "", "Source archive to load (overrides the manifest)")
	flag.StringVar(&opts.SaveArchive, "save-archive", "", "Save the virtual file system to a source archive on exit")
	flag.StringVar(&opts.SnapshotIn, "snapshot-in", "", "Restore the virtual file system from a snapshot")
	flag.StringVar(&opts.SnapshotOut, "snapshot-out", "", "Write a snapshot of the virtual file system on exit")
	flag.BoolVar(&opts.NoDeps, "no-deps", false, "Skip dependency resolution")
	flag.BoolVar(&opts.Serve, "serve", false, "Start the loader service (gRPC + Connect HTTP/JSON)")
	flag.StringVar(&opts.Addr, "addr", "", "Loader service address (default from manifest)")
	flag.BoolVar(&opts.Sessions, "sessions", true, "Allow clients to create sessions (used with -serve)")
	flag.StringVar(&opts.Connect, "connect", "", "Run -r and -e against a running loader service at host:port")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: loadpath [options] [files...]\n\n")
		fmt.Fprintf(os.Stderr, "Installs the project's sources into a virtual file system and evaluates\n")
		fmt.Fprintf(os.Stderr, "the given files, code and entry point.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  loadpath -i                       # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  loadpath -r app -e 'puts 1 + 1'   # Require app, then evaluate\n")
		fmt.Fprintf(os.Stderr, "  loadpath script.rb                # Evaluate a host file\n")
		fmt.Fprintf(os.Stderr, "  loadpath -serve -addr :8080       # Serve the loader service\n")
		fmt.Fprintf(os.Stderr, "  loadpath -connect :4567 -e '1+1'  # Evaluate remotely\n")
	}
	flag.Parse()
	opts.Files = flag.Args()

	os.Exit(run(&opts))
}
