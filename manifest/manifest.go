// Package manifest handles loadpath.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/chazu/loadpath/interp"
	"github.com/chazu/loadpath/vfs"
)

// FileName is the name of the project configuration file.
const FileName = "loadpath.toml"

// DefaultServerAddr is the listen address used when [server] sets none.
const DefaultServerAddr = ":4567"

// Manifest represents a loadpath.toml project configuration.
type Manifest struct {
	Project      Project               `toml:"project"`
	Interpreter  Interpreter           `toml:"interpreter"`
	Source       Source                `toml:"source"`
	Dependencies map[string]Dependency `toml:"dependencies"`
	Log          Log                   `toml:"log"`
	Server       Server                `toml:"server"`

	// Dir is the directory containing the loadpath.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Interpreter configures the virtual file system layout.
type Interpreter struct {
	VirtualRoot     string `toml:"virtual-root"`
	SourceExtension string `toml:"source-extension"`
}

// Source configures source file locations.
type Source struct {
	Dirs []string `toml:"dirs"`
	// Entry is a virtual path evaluated after preloading.
	Entry string `toml:"entry"`
	// Preload lists features required before the entry runs.
	Preload []string `toml:"preload"`
	// Archive is a source archive whose files are added to the virtual
	// file system.
	Archive string `toml:"archive"`
}

// Dependency is another project whose sources are mounted below the
// virtual root.
type Dependency struct {
	Git   string `toml:"git"`
	Tag   string `toml:"tag"`
	Path  string `toml:"path"`
	Mount string `toml:"mount"`
}

// Log configures logging.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Server configures the loader service.
type Server struct {
	Addr string `toml:"addr"`
}

// Load parses a loadpath.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	m.applyDefaults()
	return &m, nil
}

// Default returns the manifest used for a directory without a
// loadpath.toml.
func Default(dir string) (*Manifest, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m := &Manifest{Dir: abs}
	m.applyDefaults()
	return m, nil
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"lib"}
	}
	if m.Interpreter.VirtualRoot == "" {
		m.Interpreter.VirtualRoot = vfs.DefaultRoot
	}
	if m.Interpreter.SourceExtension == "" {
		m.Interpreter.SourceExtension = interp.DefaultSourceExtension
	}
	if m.Server.Addr == "" {
		m.Server.Addr = DefaultServerAddr
	}
}

// FindAndLoad walks up from startDir to find a loadpath.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// Options returns the interpreter options the manifest configures.
func (m *Manifest) Options() []interp.Option {
	return []interp.Option{
		interp.WithVirtualRoot(m.Interpreter.VirtualRoot),
		interp.WithSourceExtension(m.Interpreter.SourceExtension),
	}
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, m.resolve(d))
	}
	return paths
}

// ArchivePath returns the absolute path of the source archive, or "" when
// none is configured.
func (m *Manifest) ArchivePath() string {
	if m.Source.Archive == "" {
		return ""
	}
	return m.resolve(m.Source.Archive)
}

// LogPath returns the absolute path of the log file, or "" for stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" {
		return ""
	}
	return m.resolve(m.Log.File)
}

// DepsDir returns the path to the .loadpath/deps directory.
func (m *Manifest) DepsDir() string {
	return filepath.Join(m.Dir, ".loadpath", "deps")
}

// LockFilePath returns the path to .loadpath/lock.toml.
func (m *Manifest) LockFilePath() string {
	return filepath.Join(m.Dir, ".loadpath", "lock.toml")
}

func (m *Manifest) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(m.Dir, p)
}
