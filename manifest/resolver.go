package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Mount     string    // directory below the virtual root
	Manifest  *Manifest // the dependency's own manifest (may be nil)
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
	lock     *LockFile
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve resolves all dependencies and returns them in load order
// (dependencies before dependents).
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	if len(r.manifest.Dependencies) == 0 {
		return nil, nil
	}

	lock, err := ReadLock(r.manifest.LockFilePath())
	if err != nil {
		return nil, fmt.Errorf("reading lock file: %w", err)
	}
	r.lock = lock

	if err := os.MkdirAll(r.manifest.DepsDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating deps dir: %w", err)
	}

	resolved := make(map[string]*ResolvedDep)
	order, err := r.resolveAll(r.manifest.Dependencies, r.manifest.Dir, resolved)
	if err != nil {
		return nil, err
	}

	mounts := make(map[string]string)
	for _, rd := range order {
		if other, ok := mounts[rd.Mount]; ok {
			return nil, fmt.Errorf("dependencies %q and %q both mount at %q", other, rd.Name, rd.Mount)
		}
		mounts[rd.Mount] = rd.Name
	}

	if err := r.writeLock(resolved); err != nil {
		return nil, fmt.Errorf("writing lock file: %w", err)
	}
	return order, nil
}

// resolveAll resolves a set of dependencies recursively, visiting names
// in sorted order. Relative paths are resolved against baseDir.
func (r *Resolver) resolveAll(deps map[string]Dependency, baseDir string, resolved map[string]*ResolvedDep) ([]ResolvedDep, error) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		if _, ok := resolved[name]; ok {
			continue // already resolved
		}

		rd, err := r.resolveOne(name, deps[name], baseDir)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}
		resolved[name] = rd

		if rd.Manifest != nil && len(rd.Manifest.Dependencies) > 0 {
			transitive, err := r.resolveAll(rd.Manifest.Dependencies, rd.LocalPath, resolved)
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}
		order = append(order, *rd)
	}
	return order, nil
}

// resolveOne resolves a single dependency.
func (r *Resolver) resolveOne(name string, dep Dependency, baseDir string) (*ResolvedDep, error) {
	var localPath string
	switch {
	case dep.Path != "":
		localPath = dep.Path
		if !filepath.IsAbs(localPath) {
			localPath = filepath.Join(baseDir, localPath)
		}
		var err error
		localPath, err = filepath.Abs(localPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
		}
		if _, err := os.Stat(localPath); err != nil {
			return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
		}

	case dep.Git != "":
		localPath = filepath.Join(r.manifest.DepsDir(), name)
		if err := r.fetch(name, dep, localPath); err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("dependency %q has no git or path specified", name)
	}

	var depManifest *Manifest
	if _, err := os.Stat(filepath.Join(localPath, FileName)); err == nil {
		m, err := Load(localPath)
		if err != nil {
			return nil, err
		}
		depManifest = m
	}

	mount, err := resolveMount(name, dep, depManifest)
	if err != nil {
		return nil, err
	}
	log.Debugf("resolved dependency %s at %s (mount %s)", name, localPath, mount)

	return &ResolvedDep{
		Name:      name,
		LocalPath: localPath,
		Mount:     mount,
		Manifest:  depManifest,
	}, nil
}

// fetch brings the checkout of a git dependency to its tag, or to the
// locked commit when the lock still matches. A checkout already at the
// locked commit is left alone.
func (r *Resolver) fetch(name string, dep Dependency, dir string) error {
	repo := depRepo{name: name, dir: dir}
	if !repo.exists() {
		log.Infof("initializing %s from %s", repo.label(), dep.Git)
		if err := repo.init(dep.Git); err != nil {
			return err
		}
	} else if err := repo.setOrigin(dep.Git); err != nil {
		return err
	}

	rev := revFor(dep, r.lock.FindLockedDep(name))
	if head, err := repo.head(); err == nil && head == rev {
		log.Debugf("%s already at %s", repo.label(), rev)
		return nil
	}
	log.Infof("fetching %s at %s", repo.label(), rev)
	return repo.checkout(rev)
}

// writeLock writes the resolved dependencies to the lock file.
func (r *Resolver) writeLock(resolved map[string]*ResolvedDep) error {
	lf := &LockFile{}
	for _, rd := range resolved {
		ld := LockedDep{Name: rd.Name}

		dep, direct := r.manifest.Dependencies[rd.Name]
		switch {
		case !direct:
			ld.Path = rd.LocalPath
		case dep.Git != "":
			ld.Git = dep.Git
			ld.Tag = dep.Tag
			commit, err := depRepo{name: rd.Name, dir: rd.LocalPath}.head()
			if err != nil {
				return err
			}
			ld.Commit = commit
		default:
			ld.Path = dep.Path
		}
		lf.Deps = append(lf.Deps, ld)
	}

	if err := os.MkdirAll(filepath.Dir(r.manifest.LockFilePath()), 0755); err != nil {
		return err
	}
	return WriteLock(r.manifest.LockFilePath(), lf)
}
