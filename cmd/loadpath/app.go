package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/loadpath/archive"
	"github.com/chazu/loadpath/interp"
	"github.com/chazu/loadpath/manifest"
	"github.com/chazu/loadpath/script"
	"github.com/chazu/loadpath/server"
	"github.com/chazu/loadpath/vfs"
)

// options holds the parsed command line.
type options struct {
	Verbosity   int
	LogFile     string
	Dir         string
	Evals       listFlag
	Requires    listFlag
	Loads       listFlag
	Files       []string
	Interactive bool
	Archive     string
	SaveArchive string
	SnapshotIn  string
	SnapshotOut string
	NoDeps      bool
	Serve       bool
	Addr        string
	Sessions    bool
	Connect     string

	// Output overrides the interpreter's output; nil means the process.
	Output interp.Output
}

// run executes the command line and returns the exit code.
func run(opts *options) int {
	m, err := loadManifest(opts.Dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	configureLogging(opts, m)

	if opts.Connect != "" {
		return report(runRemote(opts))
	}

	it, err := setup(opts, m)
	if err != nil {
		return report(err)
	}
	defer it.Close()

	if err := execute(opts, m, it); err != nil {
		return report(err)
	}

	if opts.Serve {
		if err := serve(opts, m, it); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			return 1
		}
	} else if opts.Interactive || nothingToRun(opts, m) {
		runREPL(it)
	}

	if err := save(opts, it); err != nil {
		return report(err)
	}
	return 0
}

func loadManifest(dir string) (*manifest.Manifest, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return manifest.Default(dir)
	}
	return m, nil
}

func configureLogging(opts *options, m *manifest.Manifest) {
	verbosity := opts.Verbosity
	if verbosity < 0 {
		verbosity = m.Log.Verbosity
	}
	var path *string
	if opts.LogFile != "" {
		path = &opts.LogFile
	} else if p := m.LogPath(); p != "" {
		path = &p
	}
	commonlog.Configure(verbosity, path)
}

// setup creates an interpreter and installs everything the manifest and
// flags put into the virtual file system. Nothing is evaluated yet.
func setup(opts *options, m *manifest.Manifest) (*interp.Interpreter, error) {
	out := opts.Output
	if out == nil {
		out = interp.ProcessOutput{}
	}
	it := interp.New(script.New(), append(m.Options(), interp.WithOutput(out))...)

	n, err := m.Install(it)
	if err != nil {
		it.Close()
		return nil, err
	}
	log.Infof("installed %d source files from %s", n, m.Dir)

	if !opts.NoDeps {
		deps, err := manifest.NewResolver(m).Resolve()
		if err != nil {
			it.Close()
			return nil, fmt.Errorf("resolving dependencies: %w", err)
		}
		n, err := m.InstallDeps(it, deps)
		if err != nil {
			it.Close()
			return nil, err
		}
		if len(deps) > 0 {
			log.Infof("installed %d source files from %d dependencies", n, len(deps))
		}
	}

	archivePath := opts.Archive
	if archivePath == "" {
		archivePath = m.ArchivePath()
	}
	if archivePath != "" {
		if err := loadArchive(it, archivePath); err != nil {
			it.Close()
			return nil, err
		}
	}

	if opts.SnapshotIn != "" {
		if err := restoreSnapshot(it, opts.SnapshotIn); err != nil {
			it.Close()
			return nil, err
		}
	}
	return it, nil
}

func loadArchive(it *interp.Interpreter, path string) error {
	a, err := archive.Open(path)
	if err != nil {
		return err
	}
	defer a.Close()
	n, err := a.LoadInto(it)
	if err != nil {
		return err
	}
	log.Infof("loaded %d files from archive %s", n, path)
	return nil
}

func restoreSnapshot(it *interp.Interpreter, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	snap, err := vfs.UnmarshalSnapshot(data)
	if err != nil {
		return err
	}
	fs, err := it.FileSystem()
	if err != nil {
		return err
	}
	return fs.Restore(snap)
}

// execute runs preloads, -r and -l features, host files, -e code and the
// entry point, in that order.
func execute(opts *options, m *manifest.Manifest, it *interp.Interpreter) error {
	for _, feature := range append(append([]string{}, m.Source.Preload...), opts.Requires...) {
		if _, err := it.RequireSource(feature); err != nil {
			return err
		}
	}
	for _, p := range opts.Loads {
		if _, err := it.LoadSource(p); err != nil {
			return err
		}
	}
	for _, file := range opts.Files {
		content, err := os.ReadFile(file)
		if err != nil {
			return interp.NewLoadError("cannot load such file -- " + file)
		}
		vpath := filepath.ToSlash(file)
		if err := it.WriteFile(vpath, content); err != nil {
			return err
		}
		if _, err := it.EvalFile(vpath); err != nil {
			return err
		}
	}
	for _, code := range opts.Evals {
		if _, err := it.EvalString(code); err != nil {
			return err
		}
	}
	if m.Source.Entry != "" && len(opts.Files) == 0 && len(opts.Evals) == 0 {
		if _, err := it.EvalFile(m.Source.Entry); err != nil {
			return err
		}
	}
	return nil
}

func nothingToRun(opts *options, m *manifest.Manifest) bool {
	return len(opts.Files) == 0 && len(opts.Evals) == 0 && m.Source.Entry == ""
}

func serve(opts *options, m *manifest.Manifest, it *interp.Interpreter) error {
	addr := opts.Addr
	if addr == "" {
		addr = m.Server.Addr
	}
	var srvOpts []server.ServerOption
	if opts.Sessions {
		srvOpts = append(srvOpts, server.WithSessionFactory(func() *interp.Interpreter {
			sit := interp.New(script.New(), append(m.Options(), interp.WithOutput(interp.NullOutput{}))...)
			if _, err := m.Install(sit); err != nil {
				log.Warningf("session %s: %v", sit.ID(), err)
			}
			return sit
		}))
	}
	srv := server.New(it, srvOpts...)
	defer srv.Stop()
	return srv.ListenAndServe(addr)
}

// runRemote sends -r and -e to a running loader service and prints each
// result.
func runRemote(opts *options) error {
	client, err := server.Dial(opts.Connect)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, feature := range opts.Requires {
		r, err := client.Require(ctx, feature)
		if err != nil {
			return err
		}
		log.Infof("require %s: %s", feature, r)
	}
	for _, code := range opts.Evals {
		out, err := client.Eval(ctx, []byte(code))
		if err != nil {
			return err
		}
		fmt.Printf("%s\n", out)
	}
	return nil
}

// save writes the snapshot and archive requested on the command line.
func save(opts *options, it *interp.Interpreter) error {
	fs, err := it.FileSystem()
	if err != nil {
		return err
	}
	if opts.SnapshotOut != "" {
		data, err := vfs.MarshalSnapshot(fs.Snapshot())
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.SnapshotOut, data, 0o644); err != nil {
			return err
		}
	}
	if opts.SaveArchive != "" {
		a, err := archive.Open(opts.SaveArchive)
		if err != nil {
			return err
		}
		defer a.Close()
		n, err := a.SaveFrom(context.Background(), fs)
		if err != nil {
			return err
		}
		log.Infof("saved %d files to %s", n, opts.SaveArchive)
	}
	return nil
}

// report prints err the way an uncaught exception is shown and returns
// the exit code.
func report(err error) int {
	if err == nil {
		return 0
	}
	var exc *interp.Exception
	if errors.As(err, &exc) {
		fmt.Fprintf(os.Stderr, "%s\n", exc.Error())
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	return 1
}
