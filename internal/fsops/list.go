package fsops

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"

	"rove/internal/log"
)

// SortMode selects the ordering of a directory listing.
type SortMode int

const (
	SortByName SortMode = iota
	SortBySize
	SortByModified
)

// ParseSortMode maps a configuration string to a SortMode.
func ParseSortMode(s string) SortMode {
	switch strings.ToLower(s) {
	case "size":
		return SortBySize
	case "modified", "mtime", "time":
		return SortByModified
	default:
		return SortByName
	}
}

func (m SortMode) String() string {
	switch m {
	case SortBySize:
		return "size"
	case SortByModified:
		return "modified"
	default:
		return "name"
	}
}

// ListOptions controls directory listing behavior.
type ListOptions struct {
	ShowHidden bool
	Ignore     []glob.Glob
	Sort       SortMode
}

// ListDirectory reads the children of dir and returns them sorted. Entries
// whose metadata cannot be read are skipped rather than failing the whole
// listing.
func ListDirectory(dir string, opts ListOptions) ([]Entry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, classify(dir, "listing "+dir, err)
	}
	if !info.IsDir() {
		return nil, NewOpError(NotADirectory, dir, dir+" is not a directory", nil)
	}

	children, err := os.ReadDir(dir)
	if err != nil {
		return nil, classify(dir, "listing "+dir, err)
	}

	entries := make([]Entry, 0, len(children))
	for _, child := range children {
		name := child.Name()
		if !opts.ShowHidden && strings.HasPrefix(name, ".") {
			continue
		}
		if ignored(name, opts.Ignore) {
			continue
		}
		meta, err := child.Info()
		if err != nil {
			log.LogWithFields(log.F("entry", name), log.F("error", err)).Debug("Skipping unreadable entry")
			continue
		}
		entry := Entry{
			Name:     name,
			Kind:     entryKind(meta.Mode()),
			Size:     meta.Size(),
			Modified: meta.ModTime(),
			Perm:     meta.Mode().Perm().String(),
		}
		if entry.Kind == KindSymlink {
			if target, err := os.Readlink(filepath.Join(dir, name)); err == nil {
				entry.LinkTarget = target
			}
			if resolved, err := os.Stat(filepath.Join(dir, name)); err == nil && resolved.IsDir() {
				entry.Kind = KindDir
			}
		}
		if entry.Kind == KindDir {
			entry.Size = 0
		}
		entries = append(entries, entry)
	}

	SortEntries(entries, opts.Sort)
	return entries, nil
}

// SortEntries orders entries in place: directories first, then by the
// selected mode.
func SortEntries(entries []Entry, mode SortMode) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsDir() != b.IsDir() {
			return a.IsDir()
		}
		switch mode {
		case SortBySize:
			if a.Size != b.Size {
				return a.Size > b.Size
			}
		case SortByModified:
			if !a.Modified.Equal(b.Modified) {
				return a.Modified.After(b.Modified)
			}
		}
		return strings.ToLower(a.Name) < strings.ToLower(b.Name)
	})
}

func ignored(name string, patterns []glob.Glob) bool {
	for _, p := range patterns {
		if p.Match(name) {
			return true
		}
	}
	return false
}
