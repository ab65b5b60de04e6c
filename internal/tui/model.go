// Package tui is the terminal driver for the engine: it feeds decoded key
// presses and clock ticks into the merged event stream and renders the
// frames the dispatcher publishes. It holds no navigation state of its
// own.
package tui

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"rove/internal/engine"
)

type frameMsg engine.Frame

type externalMsg engine.ExternalEffect

type tickMsg time.Time

// Model implements tea.Model. All application state arrives in frames;
// the model only keeps presentation concerns (window size, spinner).
type Model struct {
	dispatcher *engine.Dispatcher
	frame      engine.Frame
	haveFrame  bool

	width, height int
	tickEvery     time.Duration
	spin          spinner.Model
	help          help.Model
	pane          viewport.Model
}

// New builds the terminal driver. tickEvery is the clock tick period fed
// to the interpreter's inactivity timeout.
func New(d *engine.Dispatcher, tickEvery time.Duration) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	return &Model{
		dispatcher: d,
		tickEvery:  tickEvery,
		spin:       s,
		help:       help.New(),
		pane:       viewport.New(previewWidth, 20),
	}
}

// Driver bridges the dispatcher's notifications into the bubbletea
// program. It is safe to call from the dispatcher goroutine.
type Driver struct {
	program *tea.Program
}

// NewDriver wraps a running program.
func NewDriver(p *tea.Program) *Driver {
	return &Driver{program: p}
}

// Notify implements engine.Notifier.
func (dr *Driver) Notify(f engine.Frame) {
	dr.program.Send(frameMsg(f))
}

// RunExternal implements engine.Notifier.
func (dr *Driver) RunExternal(e engine.ExternalEffect) {
	dr.program.Send(externalMsg(e))
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.tickCmd(), m.spin.Tick)
}

func (m *Model) tickCmd() tea.Cmd {
	return tea.Tick(m.tickEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		// The help toggle is presentation-only and never reaches the
		// interpreter.
		if key == "?" && m.idle() {
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		m.dispatcher.Bridge().SubmitKey(key)
		return m, nil

	case tickMsg:
		m.dispatcher.Bridge().SubmitTick()
		return m, m.tickCmd()

	case frameMsg:
		m.frame = engine.Frame(msg)
		m.haveFrame = true
		if m.frame.Done {
			return m, tea.Quit
		}
		return m, nil

	case externalMsg:
		return m, m.execExternal(engine.ExternalEffect(msg))

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd
	}
	return m, nil
}

// idle reports whether no input sequence, capture, or prompt is active, so
// presentation keys can be intercepted safely.
func (m *Model) idle() bool {
	if !m.haveFrame {
		return true
	}
	return m.frame.State.Mode == engine.ModeNormal &&
		m.frame.Pending.Capture == engine.CaptureNone
}

// execExternal suspends the UI and hands the terminal to a shell or
// editor. The dispatcher is told when the process returns so it can
// rescan.
func (m *Model) execExternal(e engine.ExternalEffect) tea.Cmd {
	var cmd *exec.Cmd
	var doneMsg string

	switch e.Kind {
	case engine.ExternalShell:
		shell := os.Getenv("SHELL")
		if shell == "" {
			shell = "/bin/sh"
		}
		cmd = exec.Command(shell)
		cmd.Dir = e.Dir
		doneMsg = "Shell exited"
	case engine.ExternalEditor:
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = os.Getenv("VISUAL")
		}
		if editor == "" {
			editor = "vi"
		}
		cmd = exec.Command(editor, e.Path)
		cmd.Dir = e.Dir
		doneMsg = fmt.Sprintf("Edited %s", e.Path)
	default:
		return nil
	}

	return tea.ExecProcess(cmd, func(err error) tea.Msg {
		m.dispatcher.ExternalFinished(err, doneMsg)
		return nil
	})
}
