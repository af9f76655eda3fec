package interp

import "github.com/chazu/loadpath/vfs"

// Loaded is the outcome of LoadSource.
type Loaded int

const (
	// LoadSuccess means the source was evaluated.
	LoadSuccess Loaded = iota
)

func (l Loaded) String() string {
	return "success"
}

// Required is the outcome of RequireSource.
type Required int

const (
	// RequireSuccess means the source was evaluated and is now required.
	RequireSuccess Required = iota
	// AlreadyRequired means nothing was evaluated.
	AlreadyRequired
)

func (r Required) String() string {
	if r == AlreadyRequired {
		return "already_required"
	}
	return "success"
}

const cannotLoadPrefix = "cannot load such file -- "

// DefFileForType binds an extension hook to path. Requiring or loading
// path installs the hook before any source at path is read. A nil hook is
// an ArgumentError.
func (it *Interpreter) DefFileForType(path string, hook ExtensionHook) error {
	st, err := it.st()
	if err != nil {
		return err
	}
	if nilHook(hook) {
		return NewArgumentError("extension hook is nil")
	}
	if err := st.vfs.RegisterExtension(path, hook); err != nil {
		return pathError(err)
	}
	return nil
}

// DefSourceFile stores source at path.
func (it *Interpreter) DefSourceFile(path string, contents []byte) error {
	st, err := it.st()
	if err != nil {
		return err
	}
	if err := st.vfs.WriteFile(path, contents); err != nil {
		return pathError(err)
	}
	return nil
}

// ResolveSourcePath returns the canonical path for path, trying the
// canonical source extension when path has a different one.
func (it *Interpreter) ResolveSourcePath(path string) (string, bool, error) {
	st, err := it.st()
	if err != nil {
		return "", false, err
	}
	if resolved, ok := st.vfs.ResolveFile(path); ok {
		return resolved, true, nil
	}
	if !vfs.HasExtension(path, st.extension) {
		resolved, ok := st.vfs.ResolveFile(vfs.SetExtension(path, st.extension))
		return resolved, ok, nil
	}
	return "", false, nil
}

// SourceIsFile reports whether path, or path with the canonical source
// extension, exists.
func (it *Interpreter) SourceIsFile(path string) (bool, error) {
	st, err := it.st()
	if err != nil {
		return false, err
	}
	if st.vfs.IsFile(path) {
		return true, nil
	}
	if !vfs.HasExtension(path, st.extension) {
		return st.vfs.IsFile(vfs.SetExtension(path, st.extension)), nil
	}
	return false, nil
}

// LoadSource evaluates the source at path. It runs the source on every
// call and never consults or updates the required flag.
func (it *Interpreter) LoadSource(path string) (Loaded, error) {
	st, err := it.st()
	if err != nil {
		return LoadSuccess, err
	}
	// Hooks go first: they may define what the source depends on.
	if hook, ok := st.vfs.GetExtension(path); ok {
		log.Debugf("interpreter %s: load %q: installing hook", it.id, path)
		if err := hook.Install(it); err != nil {
			return LoadSuccess, err
		}
	}
	code, err := st.vfs.ReadFile(path)
	if err != nil {
		return LoadSuccess, NewLoadError(cannotLoadPrefix + path)
	}
	if _, err := it.evalIn([]byte(st.vfs.Normalize(path)), code); err != nil {
		return LoadSuccess, err
	}
	return LoadSuccess, nil
}

// RequireSource evaluates the source at path unless the resolved path has
// already been required.
func (it *Interpreter) RequireSource(path string) (Required, error) {
	st, err := it.st()
	if err != nil {
		return RequireSuccess, err
	}
	if required, _ := st.vfs.IsRequired(path); required {
		log.Debugf("interpreter %s: require %q: already required", it.id, path)
		return AlreadyRequired, nil
	}
	if st.loading[st.vfs.Normalize(path)] {
		return it.circular(path)
	}

	if hook, ok := st.vfs.GetExtension(path); ok {
		log.Debugf("interpreter %s: require %q: installing hook", it.id, path)
		if err := hook.Install(it); err != nil {
			return RequireSuccess, err
		}
		return it.requireAt(st, path, path)
	}

	if vfs.HasExtension(path, st.extension) {
		return it.requireAt(st, path, path)
	}

	alternate := vfs.SetExtension(path, st.extension)
	if required, _ := st.vfs.IsRequired(alternate); required {
		log.Debugf("interpreter %s: require %q: already required as %q", it.id, path, alternate)
		return AlreadyRequired, nil
	}
	if st.loading[st.vfs.Normalize(alternate)] {
		return it.circular(path)
	}
	if hook, ok := st.vfs.GetExtension(alternate); ok {
		log.Debugf("interpreter %s: require %q: installing hook at %q", it.id, path, alternate)
		if err := hook.Install(it); err != nil {
			return RequireSuccess, err
		}
		return it.requireAt(st, alternate, path)
	}
	if code, err := st.vfs.ReadFile(path); err == nil {
		return it.evalRequired(st, path, code)
	}
	return it.requireAt(st, alternate, path)
}

// requireAt reads and evaluates target, marking it required. name is the
// path as the caller spelled it, used in the error message.
func (it *Interpreter) requireAt(st *state, target, name string) (Required, error) {
	code, err := st.vfs.ReadFile(target)
	if err != nil {
		return RequireSuccess, NewLoadError(cannotLoadPrefix + name)
	}
	return it.evalRequired(st, target, code)
}

func (it *Interpreter) evalRequired(st *state, target string, code []byte) (Required, error) {
	key := st.vfs.Normalize(target)
	st.loading[key] = true
	defer delete(st.loading, key)

	if _, err := it.evalIn([]byte(key), code); err != nil {
		return RequireSuccess, err
	}
	if err := st.vfs.MarkRequired(target); err != nil {
		return RequireSuccess, NewLoadError(cannotLoadPrefix + target)
	}
	log.Debugf("interpreter %s: required %q", it.id, key)
	return RequireSuccess, nil
}

func (it *Interpreter) circular(path string) (Required, error) {
	log.Warningf("interpreter %s: loading in progress, circular require considered harmful - %s", it.id, path)
	return AlreadyRequired, nil
}
