package engine

import (
	"strings"

	"rove/internal/log"
)

// maxCount caps the accumulated numeric count so a held-down digit key
// cannot overflow anything downstream.
const maxCount = 9999

// CaptureKind says which overlay the interpreter is collecting text for.
type CaptureKind int

const (
	CaptureNone CaptureKind = iota
	CaptureSearch
	CaptureCommand
)

// PendingSequence is the partially-entered modal key sequence. It is
// cleared on resolution, on Escape, on mode switches, and on the
// inactivity timeout.
type PendingSequence struct {
	Count    int
	HasCount bool
	Operator string // "g", "d", or "y" awaiting its repeat
	Buffer   string // overlay text being captured
	Capture  CaptureKind

	idleTicks int
}

func (p PendingSequence) active() bool {
	return p.HasCount || p.Operator != ""
}

// Interpreter turns key events into resolved Actions. It owns the pending
// sequence and nothing else; all navigation state lives in the Machine.
type Interpreter struct {
	pending      PendingSequence
	keymap       map[string]string
	timeoutTicks int
}

// NewInterpreter builds an interpreter. keymap maps override keys to
// builtin key names (from configuration). timeoutTicks is the number of
// clock ticks an incomplete count/operator sequence survives; zero
// disables the timeout.
func NewInterpreter(keymap map[string]string, timeoutTicks int) *Interpreter {
	return &Interpreter{keymap: keymap, timeoutTicks: timeoutTicks}
}

// Pending returns a copy of the pending sequence for rendering.
func (in *Interpreter) Pending() PendingSequence {
	return in.pending
}

// Reset clears all pending input. Called on interaction mode switches so
// the sequence never outlives its mode.
func (in *Interpreter) Reset() {
	in.pending = PendingSequence{}
}

// Feed consumes one event and returns zero or more resolved Actions. A
// mismatched operator key produces a Cancel followed by the actions of the
// key reinterpreted as a fresh sequence start, so no event is silently
// dropped.
func (in *Interpreter) Feed(ev Event, mode Mode) []Action {
	switch ev.Kind {
	case TickEvent:
		in.handleTick()
		return nil
	case KeyEvent:
		key := in.translate(ev.Key)
		in.pending.idleTicks = 0
		// The interrupt quits from every mode, including capture and
		// confirmation.
		if key == "ctrl+c" {
			in.Reset()
			return []Action{Quit{}}
		}
		if in.pending.Capture != CaptureNone {
			return in.handleCaptureKey(key)
		}
		if mode == ModeConfirm {
			return in.handleConfirmKey(key)
		}
		return in.handleNormalKey(key)
	default:
		return nil
	}
}

func (in *Interpreter) translate(key string) string {
	if mapped, ok := in.keymap[key]; ok {
		return mapped
	}
	return key
}

func (in *Interpreter) handleTick() {
	if in.timeoutTicks <= 0 || !in.pending.active() {
		return
	}
	in.pending.idleTicks++
	if in.pending.idleTicks >= in.timeoutTicks {
		log.Debugf("pending key sequence timed out (count=%d operator=%q)",
			in.pending.Count, in.pending.Operator)
		in.pending.Count = 0
		in.pending.HasCount = false
		in.pending.Operator = ""
		in.pending.idleTicks = 0
	}
}

func (in *Interpreter) handleConfirmKey(key string) []Action {
	switch key {
	case "y", "Y", "enter":
		return []Action{ConfirmPending{Accept: true}}
	case "n", "N", "esc":
		return []Action{ConfirmPending{Accept: false}}
	default:
		return nil
	}
}

func (in *Interpreter) handleCaptureKey(key string) []Action {
	switch key {
	case "esc":
		in.Reset()
		return []Action{Cancel{}}
	case "enter":
		text := strings.TrimSpace(in.pending.Buffer)
		capture := in.pending.Capture
		in.Reset()
		if text == "" {
			return []Action{Cancel{}}
		}
		if capture == CaptureSearch {
			return []Action{SubmitSearch{Text: text}}
		}
		return []Action{SubmitCommand{Text: text}}
	case "backspace":
		if in.pending.Buffer != "" {
			runes := []rune(in.pending.Buffer)
			in.pending.Buffer = string(runes[:len(runes)-1])
		}
		return nil
	case "space", " ":
		in.pending.Buffer += " "
		return nil
	default:
		// Only printable single-rune keys extend the buffer; named keys
		// (arrows, function keys) are ignored while capturing.
		if len([]rune(key)) == 1 {
			in.pending.Buffer += key
		}
		return nil
	}
}

func (in *Interpreter) handleNormalKey(key string) []Action {
	if op := in.pending.Operator; op != "" {
		if key == op {
			in.pending.Operator = ""
			return in.resolveOperator(op)
		}
		// Mismatched second key aborts the operator; the key is then
		// reprocessed as a fresh sequence start.
		in.clearSequence()
		return append([]Action{Cancel{}}, in.handleNormalKey(key)...)
	}

	if len(key) == 1 && key[0] >= '0' && key[0] <= '9' {
		in.accumulateCount(int(key[0] - '0'))
		return nil
	}

	switch key {
	case "j", "down":
		return []Action{Move{Dir: Down, Count: in.countOr(1)}}
	case "k", "up":
		return []Action{Move{Dir: Up, Count: in.countOr(1)}}
	case "h", "left":
		in.clearSequence()
		return []Action{LeaveDir{}}
	case "l", "right", "enter":
		in.clearSequence()
		return []Action{EnterDir{}}
	case "g", "d", "y":
		in.pending.Operator = key
		return nil
	case "G":
		return []Action{JumpBottom{Count: in.takeCount()}}
	case "space", " ":
		in.clearSequence()
		return []Action{ToggleMark{}}
	case "n":
		return []Action{SearchNext{Count: in.countOr(1)}}
	case "N":
		return []Action{SearchPrev{Count: in.countOr(1)}}
	case "/":
		in.clearSequence()
		in.pending.Capture = CaptureSearch
		in.pending.Buffer = ""
		return []Action{StartSearch{}}
	case ":":
		in.clearSequence()
		in.pending.Capture = CaptureCommand
		in.pending.Buffer = ""
		return []Action{StartCommand{}}
	case "r":
		in.clearSequence()
		return []Action{Refresh{}}
	case "q":
		in.clearSequence()
		return []Action{Quit{}}
	case "esc":
		in.clearSequence()
		return []Action{Cancel{}}
	default:
		if in.pending.active() {
			in.clearSequence()
			return []Action{Cancel{}}
		}
		return nil
	}
}

func (in *Interpreter) resolveOperator(op string) []Action {
	switch op {
	case "g":
		return []Action{JumpTop{Count: in.takeCount()}}
	case "d":
		in.clearSequence()
		return []Action{DeleteSelection{}}
	case "y":
		in.clearSequence()
		return []Action{YankSelection{}}
	default:
		in.clearSequence()
		return nil
	}
}

func (in *Interpreter) accumulateCount(digit int) {
	next := in.pending.Count*10 + digit
	if next > maxCount {
		next = maxCount
	}
	in.pending.Count = next
	in.pending.HasCount = true
}

// countOr consumes the pending count, substituting def when none was given.
// An explicit count of zero is treated as one.
func (in *Interpreter) countOr(def int) int {
	if !in.pending.HasCount {
		return def
	}
	if n := in.takeCount(); n > 0 {
		return n
	}
	return 1
}

// takeCount consumes the pending count, returning 0 when none was given.
func (in *Interpreter) takeCount() int {
	if !in.pending.HasCount {
		return 0
	}
	n := in.pending.Count
	in.pending.Count = 0
	in.pending.HasCount = false
	return n
}

func (in *Interpreter) clearSequence() {
	in.pending.Count = 0
	in.pending.HasCount = false
	in.pending.Operator = ""
	in.pending.idleTicks = 0
}
