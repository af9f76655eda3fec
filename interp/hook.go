package interp

// ExtensionHook installs definitions directly into an interpreter. Hooks
// are bound to a virtual path and run before any source at that path.
type ExtensionHook interface {
	Install(it *Interpreter) error
}

// HookFunc is a native-only hook.
type HookFunc func(it *Interpreter) error

// Install calls f.
func (f HookFunc) Install(it *Interpreter) error {
	return f(it)
}

// SourceHook runs a native installer and then evaluates bundled source.
// The source is evaluated with Filename as the current file; an empty
// Filename evaluates it in the caller's context.
type SourceHook struct {
	Native   HookFunc
	Filename string
	Source   []byte
}

// Install runs the native installer, then the bundled source.
func (h SourceHook) Install(it *Interpreter) error {
	if h.Native != nil {
		if err := h.Native(it); err != nil {
			return err
		}
	}
	if len(h.Source) == 0 {
		return nil
	}
	if h.Filename == "" {
		_, err := it.Eval(h.Source)
		return err
	}
	_, err := it.evalIn([]byte(h.Filename), h.Source)
	return err
}

func nilHook(hook ExtensionHook) bool {
	switch h := hook.(type) {
	case nil:
		return true
	case HookFunc:
		return h == nil
	}
	return false
}
