package manifest

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/loadpath/interp"
)

var log = commonlog.GetLogger("loadpath.manifest")

// SourceFile is a host file and the virtual path it is installed at.
type SourceFile struct {
	HostPath    string
	VirtualPath string
}

// SourceFiles returns every file with the source extension below the
// source directories. Missing directories are skipped.
func (m *Manifest) SourceFiles() ([]SourceFile, error) {
	return collectSources(m.SourceDirPaths(), m.Interpreter.SourceExtension, m.Interpreter.VirtualRoot)
}

// collectSources walks dirs and maps each file to base joined with its
// path relative to the directory it was found in.
func collectSources(dirs []string, ext, base string) ([]SourceFile, error) {
	suffix := "." + ext
	var files []SourceFile
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			log.Debugf("source dir %s does not exist, skipping", dir)
			continue
		}
		err := filepath.Walk(dir, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !strings.HasSuffix(p, suffix) {
				return nil
			}
			rel, err := filepath.Rel(dir, p)
			if err != nil {
				return err
			}
			files = append(files, SourceFile{
				HostPath:    p,
				VirtualPath: path.Join(base, filepath.ToSlash(rel)),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %q: %w", dir, err)
		}
	}
	return files, nil
}

// Install writes the project's source files into the interpreter's
// virtual file system and returns how many were written.
func (m *Manifest) Install(it *interp.Interpreter) (int, error) {
	files, err := m.SourceFiles()
	if err != nil {
		return 0, err
	}
	return installFiles(it, files)
}

// InstallDeps writes the sources of resolved dependencies, each below
// its mount directory in the virtual root.
func (m *Manifest) InstallDeps(it *interp.Interpreter, deps []ResolvedDep) (int, error) {
	total := 0
	for _, dep := range deps {
		dm := dep.Manifest
		if dm == nil {
			var err error
			if dm, err = Default(dep.LocalPath); err != nil {
				return total, err
			}
		}
		base := path.Join(m.Interpreter.VirtualRoot, dep.Mount)
		files, err := collectSources(dm.SourceDirPaths(), m.Interpreter.SourceExtension, base)
		if err != nil {
			return total, fmt.Errorf("dependency %s: %w", dep.Name, err)
		}
		n, err := installFiles(it, files)
		total += n
		if err != nil {
			return total, fmt.Errorf("dependency %s: %w", dep.Name, err)
		}
	}
	return total, nil
}

func installFiles(it *interp.Interpreter, files []SourceFile) (int, error) {
	for i, f := range files {
		content, err := os.ReadFile(f.HostPath)
		if err != nil {
			return i, fmt.Errorf("cannot read %s: %w", f.HostPath, err)
		}
		if err := it.DefSourceFile(f.VirtualPath, content); err != nil {
			return i, fmt.Errorf("install %s: %w", f.HostPath, err)
		}
		log.Debugf("installed %s as %s", f.HostPath, f.VirtualPath)
	}
	return len(files), nil
}
