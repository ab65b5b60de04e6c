package engine

// Direction of a Move action.
type Direction int

const (
	Down Direction = iota
	Up
)

// Action is a fully resolved user intent produced by the Interpreter.
type Action interface {
	isAction()
}

// Move shifts the selection by Count steps, clamped to the listing bounds.
type Move struct {
	Dir   Direction
	Count int
}

// JumpTop moves to the first entry, or to entry Count when a count was
// given (1-based, vim style).
type JumpTop struct {
	Count int // 0 means no count was given
}

// JumpBottom moves to the last entry, or to entry Count when a count was
// given.
type JumpBottom struct {
	Count int // 0 means no count was given
}

// EnterDir descends into the selected directory.
type EnterDir struct{}

// LeaveDir ascends to the parent directory.
type LeaveDir struct{}

// ToggleMark toggles the selected entry's membership in the mark set.
type ToggleMark struct{}

// StartSearch opens search text capture.
type StartSearch struct{}

// SubmitSearch applies the captured search text.
type SubmitSearch struct {
	Text string
}

// SearchNext advances to the Count-th next match of the last search,
// wrapping at the end of the listing.
type SearchNext struct {
	Count int
}

// SearchPrev moves back to the Count-th previous match, wrapping.
type SearchPrev struct {
	Count int
}

// StartCommand opens command text capture.
type StartCommand struct{}

// SubmitCommand submits the captured command line for resolution against
// the fixed grammar.
type SubmitCommand struct {
	Text string
}

// ConfirmPending answers the pending confirmation prompt.
type ConfirmPending struct {
	Accept bool
}

// Cancel aborts the pending sequence, overlay, or confirmation.
type Cancel struct{}

// DeleteSelection requests deletion of the marked entries (or the
// selection), via the confirmation prompt. Emitted by the d d operator.
type DeleteSelection struct{}

// YankSelection records the selected path as the copy source shown in the
// status line. Emitted by the y y operator.
type YankSelection struct{}

// Refresh rescans the current directory.
type Refresh struct{}

// Quit ends the session.
type Quit struct{}

func (Move) isAction()           {}
func (JumpTop) isAction()        {}
func (JumpBottom) isAction()     {}
func (EnterDir) isAction()       {}
func (LeaveDir) isAction()       {}
func (ToggleMark) isAction()     {}
func (StartSearch) isAction()    {}
func (SubmitSearch) isAction()   {}
func (SearchNext) isAction()     {}
func (SearchPrev) isAction()     {}
func (StartCommand) isAction()   {}
func (SubmitCommand) isAction()  {}
func (ConfirmPending) isAction() {}
func (Cancel) isAction()         {}
func (DeleteSelection) isAction() {}
func (YankSelection) isAction()  {}
func (Refresh) isAction()        {}
func (Quit) isAction()           {}
