package manifest

import (
	"fmt"
	"strings"
)

// ToSnakeCase converts a project name to the snake_case directory name
// used for its mount.
// "my-app" -> "my_app", "Models" -> "models", "myApp" -> "my_app"
func ToSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '-' || r == '_' || r == ' ':
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
			continue
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				prev := rune(s[i-1])
				if prev >= 'a' && prev <= 'z' || prev >= '0' && prev <= '9' {
					b.WriteByte('_')
				}
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return strings.TrimSuffix(b.String(), "_")
}

// ValidMount reports whether name can be used as a single directory
// below the virtual root.
func ValidMount(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\x00")
}

// resolveMount determines the mount directory for a dependency:
//  1. Consumer override (dep.Mount from TOML)
//  2. Producer manifest (snake_case of depManifest.Project.Name)
//  3. snake_case of the dependency name
func resolveMount(name string, dep Dependency, depManifest *Manifest) (string, error) {
	var mount string
	switch {
	case dep.Mount != "":
		mount = dep.Mount
	case depManifest != nil && depManifest.Project.Name != "":
		mount = ToSnakeCase(depManifest.Project.Name)
	default:
		mount = ToSnakeCase(name)
	}

	if !ValidMount(mount) {
		return "", fmt.Errorf("dependency %q resolves to invalid mount %q; add mount = \"...\" in [dependencies]", name, mount)
	}
	return mount, nil
}
