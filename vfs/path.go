package vfs

import (
	"path"
	"strings"
)

// DefaultRoot is the working directory relative paths are resolved against
// when a FileSystem is created without an explicit one.
const DefaultRoot = "/virtual_root/src/lib"

// ValidPath reports whether p can be used as a virtual path identity.
// Paths are arbitrary byte strings; only NUL is rejected.
func ValidPath(p string) bool {
	return !strings.ContainsRune(p, 0)
}

// normalize resolves p against cwd and cleans it. The result is the
// identity key for an entry.
func normalize(cwd, p string) string {
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(cwd, p)
}

// splitName returns the directory prefix (including the trailing slash)
// and the final path element. Trailing slashes are ignored.
func splitName(p string) (dir, name string) {
	trimmed := strings.TrimRight(p, "/")
	if trimmed == "" {
		return p, ""
	}
	i := strings.LastIndexByte(trimmed, '/')
	return trimmed[:i+1], trimmed[i+1:]
}

// Extension returns the extension of the final path element, without the
// dot. A name whose only dot is the leading one (".profile") has no
// extension, nor do "." and "..".
func Extension(p string) (string, bool) {
	_, name := splitName(p)
	if name == "" || name == "." || name == ".." {
		return "", false
	}
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return "", false
	}
	return name[i+1:], true
}

// HasExtension reports whether p ends in the given extension.
func HasExtension(p, ext string) bool {
	got, ok := Extension(p)
	return ok && got == ext
}

// SetExtension replaces the extension of the final path element with ext,
// adding one if there is none. Paths without a file name are returned
// unchanged.
func SetExtension(p, ext string) string {
	dir, name := splitName(p)
	if name == "" || name == "." || name == ".." {
		return p
	}
	stem := name
	if i := strings.LastIndexByte(name, '.'); i > 0 {
		stem = name[:i]
	}
	if ext == "" {
		return dir + stem
	}
	return dir + stem + "." + ext
}
