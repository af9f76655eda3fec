package manifest

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
)

// depRepo is the checkout of a git dependency below .loadpath/deps.
// Checkouts are shallow and HEAD is always detached at the resolved
// revision.
type depRepo struct {
	name string
	dir  string
}

// label names the checkout the way the project layout does.
func (r depRepo) label() string {
	return path.Join(".loadpath", "deps", r.name)
}

func (r depRepo) git(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: git %s: %s: %w", r.label(), args[0], strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// exists reports whether the checkout has been initialized.
func (r depRepo) exists() bool {
	_, err := os.Stat(filepath.Join(r.dir, ".git"))
	return err == nil
}

// init creates an empty repository whose origin is url.
func (r depRepo) init(url string) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("%s: %w", r.label(), err)
	}
	if _, err := r.git("init", "--quiet"); err != nil {
		return err
	}
	_, err := r.git("remote", "add", "origin", url)
	return err
}

// setOrigin points origin at url, which may have changed in the manifest.
func (r depRepo) setOrigin(url string) error {
	_, err := r.git("remote", "set-url", "origin", url)
	return err
}

// checkout fetches rev with depth 1 and detaches HEAD at it. rev is a
// commit, a tag ref or HEAD.
func (r depRepo) checkout(rev string) error {
	if _, err := r.git("fetch", "--quiet", "--depth", "1", "origin", rev); err != nil {
		return err
	}
	_, err := r.git("checkout", "--quiet", "--detach", "FETCH_HEAD")
	return err
}

// head returns the commit HEAD is detached at.
func (r depRepo) head() (string, error) {
	return r.git("rev-parse", "HEAD")
}

// revFor returns what to fetch for dep: the locked commit when the lock
// still matches the manifest, else the tag, else the remote HEAD.
func revFor(dep Dependency, locked *LockedDep) string {
	if locked != nil && locked.Commit != "" && locked.Git == dep.Git && locked.Tag == dep.Tag {
		return locked.Commit
	}
	if dep.Tag != "" {
		return "refs/tags/" + dep.Tag
	}
	return "HEAD"
}
