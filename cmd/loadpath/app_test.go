package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/loadpath/interp"
	"github.com/chazu/loadpath/manifest"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// newProject writes a project with a greeting library and returns its
// directory.
func newProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, manifest.FileName), `
[project]
name = "greeter"

[source]
dirs = ["lib"]
preload = ["greeting"]
`)
	writeFile(t, filepath.Join(dir, "lib", "greeting.rb"), `greeting = "hello"`)
	writeFile(t, filepath.Join(dir, "lib", "count.rb"), `count ||= 0
count += 1`)
	return dir
}

func setupProject(t *testing.T, opts *options) (*interp.Interpreter, *manifest.Manifest, *interp.CapturedOutput) {
	t.Helper()
	m, err := loadManifest(opts.Dir)
	if err != nil {
		t.Fatal(err)
	}
	out := &interp.CapturedOutput{}
	opts.Output = out
	it, err := setup(opts, m)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(it.Close)
	return it, m, out
}

func TestExecute_PreloadAndEval(t *testing.T) {
	opts := &options{Dir: newProject(t), Evals: listFlag{"puts greeting"}}
	it, m, out := setupProject(t, opts)

	if err := execute(opts, m, it); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := out.Stdout.String(); got != "hello\n" {
		t.Errorf("stdout = %q, want %q", got, "hello\n")
	}
}

func TestExecute_UsageExample(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, "lib", "app.rb"), "ready = true")
	opts := &options{Dir: dir, Requires: listFlag{"app"}, Evals: listFlag{"puts 1 + 1"}}
	it, m, out := setupProject(t, opts)

	if err := execute(opts, m, it); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := out.Stdout.String(); got != "2\n" {
		t.Errorf("stdout = %q, want %q", got, "2\n")
	}
}

func TestExecute_RequireAndLoad(t *testing.T) {
	opts := &options{
		Dir:      newProject(t),
		Requires: listFlag{"count", "./count.rb"},
		Loads:    listFlag{"count.rb"},
		Evals:    listFlag{"puts count"},
	}
	it, m, out := setupProject(t, opts)

	if err := execute(opts, m, it); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := out.Stdout.String(); got != "2\n" {
		t.Errorf("stdout = %q, want %q", got, "2\n")
	}
}

func TestExecute_HostFile(t *testing.T) {
	dir := newProject(t)
	script := filepath.Join(dir, "main.rb")
	writeFile(t, script, "puts __FILE__\nputs greeting")
	opts := &options{Dir: dir, Files: []string{script}}
	it, m, out := setupProject(t, opts)

	if err := execute(opts, m, it); err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := filepath.ToSlash(script) + "\nhello\n"
	if got := out.Stdout.String(); got != want {
		t.Errorf("stdout = %q, want %q", got, want)
	}
}

func TestExecute_Entry(t *testing.T) {
	dir := newProject(t)
	writeFile(t, filepath.Join(dir, manifest.FileName), `
[source]
entry = "main.rb"
preload = ["greeting"]
`)
	writeFile(t, filepath.Join(dir, "lib", "main.rb"), "puts greeting + '!'")
	opts := &options{Dir: dir}
	it, m, out := setupProject(t, opts)

	if nothingToRun(opts, m) {
		t.Error("entry should count as something to run")
	}
	if err := execute(opts, m, it); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := out.Stdout.String(); got != "hello!\n" {
		t.Errorf("stdout = %q", got)
	}
}

func TestExecute_Errors(t *testing.T) {
	tests := []struct {
		name      string
		opts      options
		wantClass string
	}{
		{"missing feature", options{Requires: listFlag{"nope"}}, "LoadError"},
		{"missing host file", options{Files: []string{"/does/not/exist.rb"}}, "LoadError"},
		{"raise", options{Evals: listFlag{`raise "boom"`}}, "RuntimeError"},
		{"syntax", options{Evals: listFlag{"1 +"}}, "SyntaxError"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			opts := tc.opts
			opts.Dir = newProject(t)
			it, m, _ := setupProject(t, &opts)

			err := execute(&opts, m, it)
			var exc *interp.Exception
			if !errors.As(err, &exc) || exc.Name() != tc.wantClass {
				t.Fatalf("err = %v, want %s", err, tc.wantClass)
			}
			if code := report(err); code != 1 {
				t.Errorf("report = %d, want 1", code)
			}
		})
	}
}

func TestSaveAndRestore(t *testing.T) {
	dir := newProject(t)
	snapPath := filepath.Join(t.TempDir(), "vfs.cbor")
	archivePath := filepath.Join(t.TempDir(), "sources.db")

	opts := &options{Dir: dir, Evals: listFlag{`answer = 1`}, SnapshotOut: snapPath, SaveArchive: archivePath}
	it, m, _ := setupProject(t, opts)
	if err := it.WriteFile("extra.rb", []byte("extra = 7")); err != nil {
		t.Fatal(err)
	}
	if err := execute(opts, m, it); err != nil {
		t.Fatal(err)
	}
	if err := save(opts, it); err != nil {
		t.Fatalf("save: %v", err)
	}

	// a snapshot keeps required flags
	empty := t.TempDir()
	restored, _, _ := setupProject(t, &options{Dir: empty, SnapshotIn: snapPath})
	r, err := restored.RequireSource("greeting")
	if err != nil {
		t.Fatal(err)
	}
	if r != interp.AlreadyRequired {
		t.Errorf("require greeting after snapshot = %v, want already_required", r)
	}

	// an archive only carries content
	fromArchive, _, _ := setupProject(t, &options{Dir: empty, Archive: archivePath})
	if _, err := fromArchive.RequireSource("extra"); err != nil {
		t.Fatalf("require extra from archive: %v", err)
	}
	v, err := fromArchive.EvalString("extra")
	if err != nil || string(v.Inspect()) != "7" {
		t.Errorf("extra = %v, %v", v, err)
	}
}

func TestREPL(t *testing.T) {
	opts := &options{Dir: newProject(t)}
	it, _, _ := setupProject(t, opts)

	in := strings.NewReader("x = 1 +\n2\n\nx * 2\n:resolve greeting\n:resolve nothing\n:require count\n:require count\nmissing\nexit\n")
	var out strings.Builder
	repl(it, in, &out)

	got := out.String()
	for _, want := range []string{
		"=> 3\n",
		"=> 6\n",
		"/virtual_root/src/lib/greeting.rb\n",
		"nothing not found (tried .rb)\n",
		"=> success\n",
		"=> already_required\n",
		"NameError: undefined local variable or method `missing' for main\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("REPL output missing %q:\n%s", want, got)
		}
	}
}

func TestListFlag(t *testing.T) {
	var l listFlag
	l.Set("a")
	l.Set("b")
	if l.String() != "a,b" {
		t.Errorf("listFlag = %q", l.String())
	}
}
