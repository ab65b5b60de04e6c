package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"rove/internal/engine"
	"rove/internal/fsops"
	"rove/internal/preview"
)

const (
	minListWidth  = 30
	previewWidth  = 40
	nameColumnPad = 14 // room for the size column
)

// View implements tea.Model
func (m *Model) View() string {
	if !m.haveFrame {
		return App.Render(m.spin.View() + " starting up...")
	}

	var sb strings.Builder
	state := m.frame.State

	sb.WriteString(TitleStyle.Render(m.titleLine(state)))
	sb.WriteString("\n")
	sb.WriteString(m.renderBody(state))
	sb.WriteString("\n")
	sb.WriteString(m.renderStatus(state))
	sb.WriteString("\n")
	sb.WriteString(m.help.View(keys))

	return App.Render(sb.String())
}

func (m *Model) titleLine(state engine.AppState) string {
	title := state.Dir
	if state.Loading {
		title = m.spin.View() + " " + title
	}
	if len(state.Marks) > 0 {
		title += fmt.Sprintf("  [%d marked]", len(state.Marks))
	}
	return title
}

func (m *Model) renderBody(state engine.AppState) string {
	listWidth := m.width - previewWidth - 4
	if listWidth < minListWidth {
		listWidth = minListWidth
	}
	listHeight := m.height - 6
	if listHeight < 5 {
		listHeight = 20
	}

	list := m.renderList(state, listWidth, listHeight)
	if m.width < minListWidth+previewWidth+8 {
		return list
	}
	pane := m.renderPreview(state, listHeight)
	return lipgloss.JoinHorizontal(lipgloss.Top, list, pane)
}

func (m *Model) renderList(state engine.AppState, width, height int) string {
	entries := state.Snapshot.Entries
	if len(entries) == 0 {
		if state.Loading {
			return StatusStyle.Render("loading...")
		}
		return StatusStyle.Render("(empty directory)")
	}

	// Keep the selection inside the visible window.
	top := 0
	if state.Selected >= height {
		top = state.Selected - height + 1
	}
	bottom := top + height
	if bottom > len(entries) {
		bottom = len(entries)
	}

	var sb strings.Builder
	for i := top; i < bottom; i++ {
		entry := entries[i]
		sb.WriteString(m.renderEntry(state, entry, i == state.Selected, width))
		if i < bottom-1 {
			sb.WriteString("\n")
		}
	}
	return lipgloss.NewStyle().Width(width).Render(sb.String())
}

func (m *Model) renderEntry(state engine.AppState, entry fsops.Entry, selected bool, width int) string {
	mark := "  "
	if state.Marks[entry.Name] {
		mark = MarkStyle.Render("* ")
	}

	name := entry.Name
	if entry.IsDir() {
		name += "/"
	}
	name = runewidth.Truncate(name, width-nameColumnPad, "...")
	name = runewidth.FillRight(name, width-nameColumnPad)

	size := ""
	if entry.Kind == fsops.KindFile {
		size = humanize.Bytes(uint64(entry.Size))
	}
	line := fmt.Sprintf("%s%s %8s", mark, name, size)

	if selected {
		return SelectedStyle.Render(line)
	}
	switch entry.Kind {
	case fsops.KindDir:
		return DirectoryStyle.Render(line)
	case fsops.KindSymlink:
		return SymlinkStyle.Render(line)
	default:
		return FileStyle.Render(line)
	}
}

func (m *Model) renderPreview(state engine.AppState, height int) string {
	entries := state.Snapshot.Entries
	if len(entries) == 0 || state.Selected >= len(entries) {
		return PreviewStyle.Render("")
	}
	entry := entries[state.Selected]
	p := preview.Build(state.Dir+"/"+entry.Name, entry)

	var sb strings.Builder
	sb.WriteString(PreviewTitleStyle.Render(p.Title))
	for _, line := range p.Lines {
		sb.WriteString("\n")
		sb.WriteString(runewidth.Truncate(line, previewWidth-2, "..."))
	}
	if p.Truncated {
		sb.WriteString("\n")
		sb.WriteString(StatusStyle.Render("..."))
	}

	m.pane.Width = previewWidth
	m.pane.Height = height
	m.pane.SetContent(sb.String())
	return PreviewStyle.Render(m.pane.View())
}

func (m *Model) renderStatus(state engine.AppState) string {
	pending := m.frame.Pending

	switch pending.Capture {
	case engine.CaptureSearch:
		return PromptStyle.Render("/" + pending.Buffer)
	case engine.CaptureCommand:
		return PromptStyle.Render(":" + pending.Buffer)
	}

	if state.Mode == engine.ModeConfirm && state.Confirm != nil {
		return PromptStyle.Render(state.Confirm.Message + " [y/n]")
	}

	var parts []string
	if state.LastError != nil {
		parts = append(parts, ErrorStyle.Render(state.LastError.Message))
	} else if state.Status != "" {
		parts = append(parts, StatusStyle.Render(state.Status))
	}
	if seq := pendingIndicator(pending); seq != "" {
		parts = append(parts, PendingStyle.Render(seq))
	}
	if len(parts) == 0 {
		return " "
	}
	return strings.Join(parts, "  ")
}

func pendingIndicator(p engine.PendingSequence) string {
	var sb strings.Builder
	if p.HasCount {
		fmt.Fprintf(&sb, "%d", p.Count)
	}
	sb.WriteString(p.Operator)
	return sb.String()
}
