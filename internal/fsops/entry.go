package fsops

import (
	"os"
	"time"
)

// EntryKind identifies what a directory child is.
type EntryKind int

const (
	KindFile EntryKind = iota
	KindDir
	KindSymlink
	KindOther
)

func (k EntryKind) String() string {
	switch k {
	case KindFile:
		return "file"
	case KindDir:
		return "directory"
	case KindSymlink:
		return "symlink"
	default:
		return "other"
	}
}

// Entry is an immutable snapshot of one directory child.
type Entry struct {
	Name       string
	Kind       EntryKind
	Size       int64
	Modified   time.Time
	Perm       string
	LinkTarget string
}

// IsDir reports whether the entry can be entered. Symlinks that resolve to
// directories are treated as enterable.
func (e Entry) IsDir() bool {
	return e.Kind == KindDir
}

// IsHidden reports whether the entry is a dotfile.
func (e Entry) IsHidden() bool {
	return len(e.Name) > 0 && e.Name[0] == '.'
}

func entryKind(mode os.FileMode) EntryKind {
	switch {
	case mode.IsDir():
		return KindDir
	case mode&os.ModeSymlink != 0:
		return KindSymlink
	case mode.IsRegular():
		return KindFile
	default:
		return KindOther
	}
}
