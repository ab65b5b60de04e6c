// Package preview builds bounded textual previews of filesystem entries
// for the side pane. Reads are capped so previewing a huge file never
// stalls rendering.
package preview

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dustin/go-humanize"

	"rove/internal/fsops"
)

const (
	// maxBytes caps how much of a file is read for a preview.
	maxBytes = 8 * 1024
	// maxLines caps how many lines of a text file are shown.
	maxLines = 80
	// maxDirEntries caps how many child names a directory preview lists.
	maxDirEntries = 12
)

// Preview is a bounded rendering of one entry.
type Preview struct {
	Title     string
	Lines     []string
	Truncated bool
}

// Build produces a preview for the entry at path. Errors are folded into
// the preview body so a broken entry still renders something useful.
func Build(path string, entry fsops.Entry) Preview {
	switch entry.Kind {
	case fsops.KindDir:
		return buildDir(path, entry)
	case fsops.KindSymlink:
		return Preview{
			Title: entry.Name,
			Lines: []string{fmt.Sprintf("symlink -> %s", entry.LinkTarget)},
		}
	case fsops.KindFile:
		return buildFile(path, entry)
	default:
		return Preview{
			Title: entry.Name,
			Lines: []string{"special file (no preview)"},
		}
	}
}

func buildDir(path string, entry fsops.Entry) Preview {
	p := Preview{Title: entry.Name + "/"}
	names, err := childNames(path)
	if err != nil {
		p.Lines = []string{fmt.Sprintf("unreadable: %v", err)}
		return p
	}
	if len(names) == 0 {
		p.Lines = []string{"(empty directory)"}
		return p
	}
	if len(names) > maxDirEntries {
		p.Truncated = true
		total := len(names)
		names = names[:maxDirEntries]
		p.Lines = append(names, fmt.Sprintf("... and %d more", total-maxDirEntries))
		return p
	}
	p.Lines = names
	return p
}

func childNames(path string) ([]string, error) {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(dirents))
	for _, d := range dirents {
		name := d.Name()
		if d.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func buildFile(path string, entry fsops.Entry) Preview {
	p := Preview{Title: fmt.Sprintf("%s (%s)", entry.Name, humanize.Bytes(uint64(entry.Size)))}

	f, err := os.Open(path)
	if err != nil {
		p.Lines = []string{fmt.Sprintf("unreadable: %v", err)}
		return p
	}
	defer f.Close()

	buf := make([]byte, maxBytes)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		p.Lines = []string{fmt.Sprintf("unreadable: %v", err)}
		return p
	}
	buf = buf[:n]

	if n == 0 {
		p.Lines = []string{"(empty file)"}
		return p
	}
	if !looksLikeText(buf) {
		p.Lines = []string{fmt.Sprintf("binary file, %s", humanize.Bytes(uint64(entry.Size)))}
		return p
	}

	partial := int64(n) < entry.Size
	lines := strings.Split(strings.ReplaceAll(string(buf), "\r\n", "\n"), "\n")
	if partial && len(lines) > 1 {
		// The last line of a partial read is likely cut mid-way.
		lines = lines[:len(lines)-1]
		p.Truncated = true
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
		p.Truncated = true
	}
	p.Lines = lines
	return p
}

// looksLikeText reports whether data smells like printable text: valid
// UTF-8 apart from a possibly cut trailing rune, and free of NUL bytes.
func looksLikeText(data []byte) bool {
	if bytes.IndexByte(data, 0) >= 0 {
		return false
	}
	// Drop up to three trailing bytes so a rune split by the read cap does
	// not count against validity.
	trimmed := data
	for i := 0; i < 3 && len(trimmed) > 0 && !utf8.Valid(trimmed); i++ {
		trimmed = trimmed[:len(trimmed)-1]
	}
	return utf8.Valid(trimmed)
}
