package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/chazu/loadpath/interp"
	"github.com/chazu/loadpath/script"
)

func openTest(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "sources.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

func TestPutGet(t *testing.T) {
	a := openTest(t)
	if err := a.Put("/virtual_root/src/lib/a.rb", []byte("1")); err != nil {
		t.Fatal(err)
	}
	if err := a.Put("/virtual_root/src/lib/a.rb", []byte("2")); err != nil {
		t.Fatal(err)
	}
	got, err := a.Get("/virtual_root/src/lib/a.rb")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "2" {
		t.Errorf("content = %q, want 2", got)
	}

	if _, err := a.Get("/missing.rb"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing err = %v, want ErrNotFound", err)
	}
}

func TestEmptyAndBinaryContent(t *testing.T) {
	a := openTest(t)
	if err := a.Put("/empty.rb", nil); err != nil {
		t.Fatal(err)
	}
	got, err := a.Get("/empty.rb")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("empty content = %#v, want []byte{}", got)
	}

	path := "/not/valid/utf8/\xff.rb"
	if err := a.Put(path, []byte{0, 0xfe, '\n'}); err != nil {
		t.Fatal(err)
	}
	got, err = a.Get(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "\x00\xfe\n" {
		t.Errorf("binary content = %q", got)
	}
}

func TestPathsAndDelete(t *testing.T) {
	a := openTest(t)
	for _, p := range []string{"/b.rb", "/a.rb", "/c/d.rb"} {
		if err := a.Put(p, []byte(p)); err != nil {
			t.Fatal(err)
		}
	}
	if err := a.Delete("/b.rb"); err != nil {
		t.Fatal(err)
	}
	if err := a.Delete("/never.rb"); err != nil {
		t.Errorf("Delete missing err = %v", err)
	}
	paths, err := a.Paths()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"/a.rb", "/c/d.rb"}
	if len(paths) != len(want) {
		t.Fatalf("paths = %v, want %v", paths, want)
	}
	for i := range want {
		if paths[i] != want[i] {
			t.Errorf("paths[%d] = %q, want %q", i, paths[i], want[i])
		}
	}
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.db")
	a, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := a.Put("/kept.rb", []byte("kept")); err != nil {
		t.Fatal(err)
	}
	if err := a.Close(); err != nil {
		t.Fatal(err)
	}

	b, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	got, err := b.Get("/kept.rb")
	if err != nil || string(got) != "kept" {
		t.Errorf("reopened Get = %q, %v", got, err)
	}
}

func TestSaveAndLoadInterpreter(t *testing.T) {
	a := openTest(t)

	src := interp.New(script.New(), interp.WithOutput(interp.NullOutput{}))
	defer src.Close()
	if err := src.DefSourceFile("counter.rb", []byte("counter += 1")); err != nil {
		t.Fatal(err)
	}
	if err := src.DefSourceFile("/etc/other.rb", []byte("other = 1")); err != nil {
		t.Fatal(err)
	}
	hook := interp.HookFunc(func(*interp.Interpreter) error { return nil })
	if err := src.DefFileForType("native.rb", hook); err != nil {
		t.Fatal(err)
	}
	fs, err := src.FileSystem()
	if err != nil {
		t.Fatal(err)
	}
	n, err := a.SaveFrom(context.Background(), fs)
	if err != nil {
		t.Fatalf("SaveFrom failed: %v", err)
	}
	if n != 2 {
		t.Errorf("saved %d sources, want 2 (hook-only entry skipped)", n)
	}

	eng := script.New()
	eng.SetVar("counter", script.Int(41))
	dst := interp.New(eng, interp.WithOutput(interp.NullOutput{}))
	defer dst.Close()
	n, err = a.LoadInto(dst)
	if err != nil {
		t.Fatalf("LoadInto failed: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded %d sources, want 2", n)
	}
	if _, err := dst.RequireSource("counter"); err != nil {
		t.Fatalf("require archived source: %v", err)
	}
	v, _ := eng.Var("counter")
	if got, _ := v.AsInt(); got != 42 {
		t.Errorf("counter = %d, want 42", got)
	}
	if ok, _ := dst.SourceIsFile("native"); ok {
		t.Error("hook-only entry was archived")
	}
}
