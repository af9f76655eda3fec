package vfs

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// SnapshotVersion is the current snapshot format version.
const SnapshotVersion = 1

// Snapshot is the serializable state of a FileSystem. Hooks are native
// and are not captured; an entry that only carried a hook is recorded
// with HasContent false so its path and required flag survive.
type Snapshot struct {
	Version int            `cbor:"1,keyasint"`
	Cwd     []byte         `cbor:"2,keyasint"`
	Files   []SnapshotFile `cbor:"3,keyasint"`
}

// SnapshotFile is one entry in a Snapshot. Paths are byte strings since
// they need not be valid UTF-8.
type SnapshotFile struct {
	Path       []byte `cbor:"1,keyasint"`
	Content    []byte `cbor:"2,keyasint,omitempty"`
	HasContent bool   `cbor:"3,keyasint"`
	Required   bool   `cbor:"4,keyasint"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("vfs: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Snapshot captures the current entries in path order.
func (fs *FileSystem[H]) Snapshot() *Snapshot {
	s := &Snapshot{
		Version: SnapshotVersion,
		Cwd:     []byte(fs.cwd),
	}
	for _, p := range fs.Paths() {
		e := fs.entries[p]
		s.Files = append(s.Files, SnapshotFile{
			Path:       []byte(p),
			Content:    e.Content,
			HasContent: e.HasContent,
			Required:   e.Required,
		})
	}
	return s
}

// Restore merges a snapshot into the file system. Snapshot paths are
// absolute so the receiver's cwd does not affect them. Existing hooks are
// kept. A snapshot with any invalid path is rejected before anything is
// merged.
func (fs *FileSystem[H]) Restore(s *Snapshot) error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("vfs: unsupported snapshot version %d", s.Version)
	}
	for _, f := range s.Files {
		if p := string(f.Path); !ValidPath(p) {
			return fmt.Errorf("vfs: restore %q: %w", p, ErrInvalidPath)
		}
	}
	for _, f := range s.Files {
		e := fs.entry(string(f.Path))
		if f.HasContent {
			e.Content = f.Content
			if e.Content == nil {
				e.Content = []byte{}
			}
			e.HasContent = true
		}
		if f.Required {
			e.Required = true
		}
	}
	return nil
}

// MarshalSnapshot serializes a Snapshot to canonical CBOR.
func MarshalSnapshot(s *Snapshot) ([]byte, error) {
	return cborEncMode.Marshal(s)
}

// UnmarshalSnapshot deserializes a Snapshot from CBOR bytes.
func UnmarshalSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := cbor.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("vfs: unmarshal snapshot: %w", err)
	}
	return &s, nil
}
