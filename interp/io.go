package interp

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/chazu/loadpath/vfs"
)

// Output is the strategy used for the interpreter's standard streams.
type Output interface {
	WriteStdout(p []byte) error
	WriteStderr(p []byte) error
}

// ProcessOutput writes to the process's stdout and stderr.
type ProcessOutput struct{}

func (ProcessOutput) WriteStdout(p []byte) error {
	_, err := os.Stdout.Write(p)
	return err
}

func (ProcessOutput) WriteStderr(p []byte) error {
	_, err := os.Stderr.Write(p)
	return err
}

// CapturedOutput buffers everything written to it.
type CapturedOutput struct {
	Stdout bytes.Buffer
	Stderr bytes.Buffer
}

func (c *CapturedOutput) WriteStdout(p []byte) error {
	_, err := c.Stdout.Write(p)
	return err
}

func (c *CapturedOutput) WriteStderr(p []byte) error {
	_, err := c.Stderr.Write(p)
	return err
}

// NullOutput discards everything.
type NullOutput struct{}

func (NullOutput) WriteStdout([]byte) error { return nil }
func (NullOutput) WriteStderr([]byte) error { return nil }

// ReadFile returns the content of a virtual file.
func (it *Interpreter) ReadFile(path string) ([]byte, error) {
	st, err := it.st()
	if err != nil {
		return nil, err
	}
	content, err := st.vfs.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %q: %w", path, err)
	}
	return content, nil
}

// WriteFile stores content at a virtual path.
func (it *Interpreter) WriteFile(path string, content []byte) error {
	st, err := it.st()
	if err != nil {
		return err
	}
	if err := st.vfs.WriteFile(path, content); err != nil {
		return pathError(err)
	}
	return nil
}

// Print writes message to the interpreter's stdout.
func (it *Interpreter) Print(message []byte) error {
	st, err := it.st()
	if err != nil {
		return err
	}
	if err := st.output.WriteStdout(message); err != nil {
		return NewIOError(err)
	}
	return nil
}

// Puts writes message followed by a newline.
func (it *Interpreter) Puts(message []byte) error {
	if err := it.Print(message); err != nil {
		return err
	}
	return it.Print([]byte("\n"))
}

// pathError maps file system path errors onto the exception taxonomy.
func pathError(err error) error {
	if errors.Is(err, vfs.ErrInvalidPath) {
		return NewArgumentError(err.Error())
	}
	return err
}
