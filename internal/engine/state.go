package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"rove/internal/fsops"
	"rove/internal/log"
	"rove/internal/task"
)

// Mode is the interaction mode of the state machine.
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeCommand
	ModeConfirm
)

func (m Mode) String() string {
	switch m {
	case ModeSearch:
		return "search"
	case ModeCommand:
		return "command"
	case ModeConfirm:
		return "confirm"
	default:
		return "normal"
	}
}

// ErrorKind classifies errors recorded on the application state.
type ErrorKind int

const (
	ErrUnknown ErrorKind = iota
	ErrNotFound
	ErrPermissionDenied
	ErrNotADirectory
	ErrAlreadyExists
	ErrIO
	ErrInvalidCommand
)

// Failure is a recorded, non-fatal error shown to the operator.
type Failure struct {
	Kind    ErrorKind
	Message string
}

func failureFrom(err error) *Failure {
	kind := ErrUnknown
	switch fsops.KindOf(err) {
	case fsops.NotFound:
		kind = ErrNotFound
	case fsops.PermissionDenied:
		kind = ErrPermissionDenied
	case fsops.NotADirectory:
		kind = ErrNotADirectory
	case fsops.AlreadyExists:
		kind = ErrAlreadyExists
	case fsops.IOError:
		kind = ErrIO
	}
	return &Failure{Kind: kind, Message: err.Error()}
}

// DirSnapshot is an immutable listing of one directory at one generation.
// It is replaced wholesale on scan completion, never mutated in place.
type DirSnapshot struct {
	Path       string
	Generation uint64
	Entries    []fsops.Entry
	Valid      bool
}

// PendingOp describes a destructive operation awaiting confirmation.
type PendingOp struct {
	Kind    task.Kind
	Paths   []string
	Message string
}

// AppState is the full application state owned by the Machine. Snapshot()
// hands out copies for rendering; nothing outside the dispatcher goroutine
// may mutate it.
type AppState struct {
	Dir        string
	Snapshot   DirSnapshot
	Selected   int
	Marks      map[string]bool
	Sort       fsops.SortMode
	Mode       Mode
	Confirm    *PendingOp
	LastError  *Failure
	Status     string
	LastSearch string
	Yanked     string
	Loading    bool
	Quitting   bool
}

// Options configures a Machine from the loaded configuration.
type Options struct {
	Aliases map[string]string
	Fuzzy   bool
	List    fsops.ListOptions
}

// Machine is the single authority over AppState. All methods must be
// called from the dispatcher goroutine.
type Machine struct {
	state   AppState
	aliases map[string]string
	fuzzy   bool
	list    fsops.ListOptions

	nextGen         uint64
	pendingGen      uint64
	statusAfterScan string

	// Previous location kept while an optimistic directory change is
	// loading, so a failed scan can roll back.
	prevDir      string
	prevSnapshot DirSnapshot
	prevSelected int
}

// NewMachine builds a Machine rooted at startDir.
func NewMachine(startDir string, opts Options) *Machine {
	aliases := opts.Aliases
	if aliases == nil {
		aliases = map[string]string{}
	}
	m := &Machine{
		aliases: aliases,
		fuzzy:   opts.Fuzzy,
		list:    opts.List,
	}
	m.state = AppState{
		Dir:   filepath.Clean(startDir),
		Marks: map[string]bool{},
		Sort:  opts.List.Sort,
	}
	return m
}

// Start returns the effects that bootstrap the session: the initial scan.
func (m *Machine) Start() []Effect {
	return m.requestScan(true)
}

// Mode returns the current interaction mode.
func (m *Machine) Mode() Mode {
	return m.state.Mode
}

// Snapshot returns a render-safe copy of the state. The entries slice is
// shared but immutable by construction.
func (m *Machine) Snapshot() AppState {
	s := m.state
	marks := make(map[string]bool, len(m.state.Marks))
	for k, v := range m.state.Marks {
		marks[k] = v
	}
	s.Marks = marks
	if m.state.Confirm != nil {
		confirm := *m.state.Confirm
		confirm.Paths = append([]string(nil), m.state.Confirm.Paths...)
		s.Confirm = &confirm
	}
	if m.state.LastError != nil {
		failure := *m.state.LastError
		s.LastError = &failure
	}
	return s
}

// Apply advances the state machine by one resolved Action and returns the
// effects to execute.
func (m *Machine) Apply(a Action) []Effect {
	switch act := a.(type) {
	case Move:
		m.moveSelection(act.Dir, act.Count)
	case JumpTop:
		m.jumpTo(act.Count, 0)
	case JumpBottom:
		m.jumpTo(act.Count, len(m.state.Snapshot.Entries)-1)
	case EnterDir:
		return m.enterDir()
	case LeaveDir:
		return m.leaveDir()
	case ToggleMark:
		m.toggleMark()
	case StartSearch:
		m.state.Mode = ModeSearch
		m.state.Status = "Search: type to filter, Enter to apply"
	case SubmitSearch:
		m.state.Mode = ModeNormal
		m.applySearch(act.Text)
	case SearchNext:
		m.searchStep(act.Count, 1)
	case SearchPrev:
		m.searchStep(act.Count, -1)
	case StartCommand:
		m.state.Mode = ModeCommand
		m.state.Status = "Command: Enter to run, Esc to cancel"
	case SubmitCommand:
		m.state.Mode = ModeNormal
		return m.runCommand(act.Text)
	case ConfirmPending:
		return m.resolveConfirm(act.Accept)
	case Cancel:
		m.cancelOverlay()
	case DeleteSelection:
		return m.requestDelete()
	case YankSelection:
		m.yankSelection()
	case Refresh:
		m.statusAfterScan = "Refreshed"
		return m.requestScan(false)
	case Quit:
		m.state.Quitting = true
		return []Effect{QuitEffect{}}
	}
	return nil
}

// HandleOutcome folds a background task result into the state.
func (m *Machine) HandleOutcome(o task.Outcome) []Effect {
	switch o.Status {
	case task.StatusScanned:
		return m.handleScanned(o)
	case task.StatusMutated:
		m.statusAfterScan = mutationMessage(o)
		return m.requestScan(false)
	case task.StatusFailed:
		var effects []Effect
		if o.Kind == task.Scan {
			if o.Path != m.state.Dir || o.Generation < m.pendingGen {
				return nil
			}
			m.state.Loading = false
			if m.rollbackDir() {
				effects = append(effects, WatchEffect{Path: m.state.Dir})
			}
		}
		m.state.LastError = failureFrom(o.Err)
		m.state.Status = fmt.Sprintf("%s failed: %v", o.Kind, o.Err)
		m.statusAfterScan = ""
		return effects
	case task.StatusCancelled:
		// Superseded work; nothing to do.
	}
	return nil
}

func (m *Machine) handleScanned(o task.Outcome) []Effect {
	if o.Path != m.state.Dir || o.Generation <= m.state.Snapshot.Generation {
		log.LogWithFields(log.F("path", o.Path), log.F("generation", o.Generation)).
			Info("Discarding stale scan result")
		return nil
	}
	m.state.Snapshot.Valid = false
	m.state.Snapshot = DirSnapshot{
		Path:       o.Path,
		Generation: o.Generation,
		Entries:    o.Entries,
		Valid:      true,
	}
	m.pruneMarks()
	m.clampSelection()
	m.prevDir = ""
	if o.Generation >= m.pendingGen {
		m.state.Loading = false
	}
	if m.statusAfterScan != "" {
		m.state.Status = m.statusAfterScan
		m.statusAfterScan = ""
	} else {
		m.state.Status = fmt.Sprintf("Loaded %d entries from %s", len(o.Entries), o.Path)
	}
	return nil
}

// HandleExternalDone folds the result of a suspended shell/editor run.
func (m *Machine) HandleExternalDone(err error, message string) []Effect {
	if err != nil {
		m.state.LastError = &Failure{Kind: ErrIO, Message: err.Error()}
		m.state.Status = fmt.Sprintf("External command failed: %v", err)
		return nil
	}
	m.statusAfterScan = message
	return m.requestScan(false)
}

// HandleFsChange reacts to a filesystem notification. Changes to the
// displayed directory trigger a rescan; anything else is ignored.
func (m *Machine) HandleFsChange(path string) []Effect {
	if filepath.Dir(path) != m.state.Dir && path != m.state.Dir {
		return nil
	}
	m.statusAfterScan = m.state.Status // keep the visible status stable
	return m.requestScan(false)
}

func (m *Machine) requestScan(clear bool) []Effect {
	m.nextGen++
	m.pendingGen = m.nextGen
	m.state.Loading = true
	if clear {
		m.state.Snapshot = DirSnapshot{Path: m.state.Dir}
		m.state.Selected = 0
	}
	opts := m.list
	opts.Sort = m.state.Sort
	return []Effect{ScanEffect{Path: m.state.Dir, Generation: m.nextGen, Options: opts}}
}

func (m *Machine) moveSelection(dir Direction, count int) {
	if count < 1 {
		count = 1
	}
	length := len(m.state.Snapshot.Entries)
	if length == 0 {
		m.state.Selected = 0
		return
	}
	delta := count
	if dir == Up {
		delta = -count
	}
	next := m.state.Selected + delta
	if next < 0 {
		next = 0
	}
	if next > length-1 {
		next = length - 1
	}
	m.state.Selected = next
}

// jumpTo moves to entry count (1-based) when a count was given, otherwise
// to fallback.
func (m *Machine) jumpTo(count, fallback int) {
	length := len(m.state.Snapshot.Entries)
	if length == 0 {
		m.state.Selected = 0
		return
	}
	target := fallback
	if count > 0 {
		target = count - 1
	}
	if target < 0 {
		target = 0
	}
	if target > length-1 {
		target = length - 1
	}
	m.state.Selected = target
}

func (m *Machine) enterDir() []Effect {
	entry, ok := m.selectedEntry()
	if !ok {
		return nil
	}
	if !entry.IsDir() {
		m.state.Status = fmt.Sprintf("'%s' is not a directory", entry.Name)
		return nil
	}
	return m.changeDir(filepath.Join(m.state.Dir, entry.Name))
}

func (m *Machine) leaveDir() []Effect {
	parent := filepath.Dir(m.state.Dir)
	if parent == m.state.Dir {
		return nil
	}
	return m.changeDir(parent)
}

// changeDir moves to target optimistically: the listing clears while the
// scan runs, and the previous location is kept so a failed scan rolls back.
func (m *Machine) changeDir(target string) []Effect {
	m.prevDir = m.state.Dir
	m.prevSnapshot = m.state.Snapshot
	m.prevSelected = m.state.Selected
	m.state.Dir = target
	m.state.Marks = map[string]bool{}
	m.state.LastSearch = ""
	m.state.LastError = nil
	return m.requestScan(true)
}

// rollbackDir restores the location saved by changeDir and reports whether
// anything was restored. A failure on a plain refresh has nothing to roll
// back to.
func (m *Machine) rollbackDir() bool {
	if m.prevDir == "" || m.prevDir == m.state.Dir {
		return false
	}
	m.state.Dir = m.prevDir
	m.state.Snapshot = m.prevSnapshot
	m.state.Selected = m.prevSelected
	m.prevDir = ""
	m.clampSelection()
	return true
}

func (m *Machine) toggleMark() {
	entry, ok := m.selectedEntry()
	if !ok {
		return
	}
	if m.state.Marks[entry.Name] {
		delete(m.state.Marks, entry.Name)
	} else {
		m.state.Marks[entry.Name] = true
	}
}

func (m *Machine) cancelOverlay() {
	switch m.state.Mode {
	case ModeConfirm:
		m.state.Confirm = nil
		m.state.Status = "Action canceled"
	case ModeSearch:
		m.state.Status = "Search canceled"
	case ModeCommand:
		m.state.Status = "Command canceled"
	}
	m.state.Mode = ModeNormal
}

func (m *Machine) yankSelection() {
	entry, ok := m.selectedEntry()
	if !ok {
		return
	}
	m.state.Yanked = filepath.Join(m.state.Dir, entry.Name)
	m.state.Status = fmt.Sprintf("Yanked %s", m.state.Yanked)
}

func (m *Machine) selectedEntry() (fsops.Entry, bool) {
	entries := m.state.Snapshot.Entries
	if len(entries) == 0 || m.state.Selected >= len(entries) {
		return fsops.Entry{}, false
	}
	return entries[m.state.Selected], true
}

func (m *Machine) selectedPath() (string, bool) {
	entry, ok := m.selectedEntry()
	if !ok {
		return "", false
	}
	return filepath.Join(m.state.Dir, entry.Name), true
}

// targetNames returns the names an operation applies to: the mark set when
// non-empty, otherwise the single selection.
func (m *Machine) targetNames() []string {
	if len(m.state.Marks) > 0 {
		names := make([]string, 0, len(m.state.Marks))
		for _, e := range m.state.Snapshot.Entries {
			if m.state.Marks[e.Name] {
				names = append(names, e.Name)
			}
		}
		return names
	}
	if entry, ok := m.selectedEntry(); ok {
		return []string{entry.Name}
	}
	return nil
}

func (m *Machine) clampSelection() {
	length := len(m.state.Snapshot.Entries)
	if length == 0 {
		m.state.Selected = 0
		return
	}
	if m.state.Selected > length-1 {
		m.state.Selected = length - 1
	}
}

func (m *Machine) pruneMarks() {
	if len(m.state.Marks) == 0 {
		return
	}
	present := make(map[string]bool, len(m.state.Snapshot.Entries))
	for _, e := range m.state.Snapshot.Entries {
		present[e.Name] = true
	}
	for name := range m.state.Marks {
		if !present[name] {
			delete(m.state.Marks, name)
		}
	}
}

func (m *Machine) matches(name, query string) bool {
	if m.fuzzy {
		return fuzzy.MatchNormalizedFold(query, name)
	}
	return strings.Contains(strings.ToLower(name), strings.ToLower(query))
}

func (m *Machine) applySearch(query string) {
	entries := m.state.Snapshot.Entries
	m.state.LastSearch = query
	if len(entries) == 0 {
		m.state.Status = "No entries to search"
		return
	}
	if idx, ok := m.findMatch(query, m.state.Selected, 1); ok {
		m.state.Selected = idx
		m.state.Status = fmt.Sprintf("Match: %s", entries[idx].Name)
	} else {
		m.state.Status = fmt.Sprintf("No match for '%s'", query)
	}
}

func (m *Machine) searchStep(count, direction int) {
	entries := m.state.Snapshot.Entries
	if len(entries) == 0 {
		m.state.Status = "No entries to search"
		return
	}
	if m.state.LastSearch == "" {
		m.state.Status = "No previous search"
		return
	}
	if count < 1 {
		count = 1
	}
	idx := m.state.Selected
	for step := 0; step < count; step++ {
		length := len(entries)
		start := ((idx+direction)%length + length) % length
		next, ok := m.findMatch(m.state.LastSearch, start, direction)
		if !ok {
			m.state.Status = fmt.Sprintf("No more matches for '%s'", m.state.LastSearch)
			return
		}
		idx = next
	}
	m.state.Selected = idx
	m.state.Status = fmt.Sprintf("Match: %s", entries[idx].Name)
}

// findMatch scans the listing starting at start, wrapping, in the given
// direction.
func (m *Machine) findMatch(query string, start, direction int) (int, bool) {
	entries := m.state.Snapshot.Entries
	length := len(entries)
	if length == 0 {
		return 0, false
	}
	idx := ((start % length) + length) % length
	for i := 0; i < length; i++ {
		if m.matches(entries[idx].Name, query) {
			return idx, true
		}
		idx = ((idx+direction)%length + length) % length
	}
	return 0, false
}

func (m *Machine) requestDelete() []Effect {
	names := m.targetNames()
	if len(names) == 0 {
		m.state.Status = "Nothing to delete"
		return nil
	}
	paths := make([]string, len(names))
	for i, name := range names {
		paths[i] = filepath.Join(m.state.Dir, name)
	}
	message := fmt.Sprintf("Delete '%s'?", names[0])
	if len(names) > 1 {
		message = fmt.Sprintf("Delete %d marked entries?", len(names))
	}
	m.state.Confirm = &PendingOp{Kind: task.Delete, Paths: paths, Message: message}
	m.state.Mode = ModeConfirm
	m.state.Status = "Confirm delete with y/n"
	return nil
}

func (m *Machine) resolveConfirm(accept bool) []Effect {
	pending := m.state.Confirm
	m.state.Confirm = nil
	m.state.Mode = ModeNormal
	if pending == nil {
		return nil
	}
	if !accept {
		m.state.Status = "Action canceled"
		return nil
	}
	effects := make([]Effect, 0, len(pending.Paths))
	for _, path := range pending.Paths {
		effects = append(effects, MutateEffect{Kind: pending.Kind, Path: path})
	}
	return effects
}

func mutationMessage(o task.Outcome) string {
	name := filepath.Base(o.Path)
	switch o.Kind {
	case task.Delete:
		return fmt.Sprintf("Deleted %s", name)
	case task.Copy:
		return fmt.Sprintf("Copied %s to %s", name, o.Dest)
	case task.Move:
		return fmt.Sprintf("Moved %s to %s", name, o.Dest)
	case task.Rename:
		return fmt.Sprintf("Renamed %s to %s", name, filepath.Base(o.Dest))
	case task.Mkdir:
		return fmt.Sprintf("Created directory %s", name)
	case task.Touch:
		return fmt.Sprintf("Touched %s", name)
	default:
		return fmt.Sprintf("Completed %s", o.Kind)
	}
}

func splitCommand(input string) (string, string) {
	fields := strings.SplitN(input, " ", 2)
	cmd := fields[0]
	args := ""
	if len(fields) > 1 {
		args = strings.TrimSpace(fields[1])
	}
	return cmd, args
}

func (m *Machine) resolveAlias(cmd string) string {
	key := strings.ToLower(cmd)
	if canonical, ok := m.aliases[key]; ok {
		return canonical
	}
	return key
}

func (m *Machine) runCommand(input string) []Effect {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		m.state.Status = "Empty command"
		return nil
	}
	cmd, args := splitCommand(trimmed)
	command := m.resolveAlias(cmd)
	switch command {
	case "pwd":
		m.state.Status = m.state.Dir
	case "refresh":
		m.statusAfterScan = "Refreshed"
		return m.requestScan(false)
	case "q", "quit":
		m.state.Quitting = true
		return []Effect{QuitEffect{}}
	case "help":
		m.state.Status = "Commands: pwd, refresh, rename, delete, mkdir, touch, copy, move, edit, sh, cd, sort, help, quit"
	case "delete":
		return m.requestDelete()
	case "rename":
		return m.commandRename(args)
	case "mkdir":
		return m.commandCreate(task.Mkdir, args, "Usage: :mkdir <name>")
	case "touch":
		return m.commandCreate(task.Touch, args, "Usage: :touch <name>")
	case "copy":
		return m.commandTransfer(task.Copy, args, "Usage: :copy <destination>")
	case "move":
		return m.commandTransfer(task.Move, args, "Usage: :move <destination>")
	case "cd":
		return m.commandCd(args)
	case "sort":
		return m.commandSort(args)
	case "sh":
		m.state.Status = fmt.Sprintf("Launching shell in %s", m.state.Dir)
		return []Effect{ExternalEffect{Kind: ExternalShell, Dir: m.state.Dir}}
	case "edit":
		return m.commandEdit()
	default:
		m.state.LastError = &Failure{Kind: ErrInvalidCommand, Message: command}
		m.state.Status = fmt.Sprintf("Unknown command: %s", command)
	}
	return nil
}

func (m *Machine) commandRename(args string) []Effect {
	if args == "" {
		m.state.Status = "Usage: :rename <new_name>"
		return nil
	}
	entry, ok := m.selectedEntry()
	if !ok {
		m.state.Status = "No selection to rename"
		return nil
	}
	name, err := validateName(args, entry.Name)
	if err != nil {
		m.state.Status = fmt.Sprintf("Rename failed: %v", err)
		return nil
	}
	src := filepath.Join(m.state.Dir, entry.Name)
	dest := filepath.Join(m.state.Dir, name)
	return []Effect{MutateEffect{Kind: task.Rename, Path: src, Dest: dest}}
}

func (m *Machine) commandCreate(kind task.Kind, args, usage string) []Effect {
	if args == "" {
		m.state.Status = usage
		return nil
	}
	name, err := validateName(args, "")
	if err != nil {
		m.state.Status = fmt.Sprintf("%s failed: %v", kind, err)
		return nil
	}
	return []Effect{MutateEffect{Kind: kind, Path: filepath.Join(m.state.Dir, name)}}
}

func (m *Machine) commandTransfer(kind task.Kind, args, usage string) []Effect {
	if args == "" {
		m.state.Status = usage
		return nil
	}
	names := m.targetNames()
	if len(names) == 0 {
		m.state.Status = fmt.Sprintf("No selection to %s", kind)
		return nil
	}
	effects := make([]Effect, 0, len(names))
	for _, name := range names {
		dest := m.computeDestination(args, name, len(names) > 1)
		effects = append(effects, MutateEffect{
			Kind: kind,
			Path: filepath.Join(m.state.Dir, name),
			Dest: dest,
		})
	}
	return effects
}

// computeDestination resolves a user-supplied destination. A trailing
// separator, an existing directory, or a multi-entry transfer makes the
// destination a container that keeps the source name.
func (m *Machine) computeDestination(target, entryName string, forceContainer bool) string {
	trimmed := strings.TrimSpace(target)
	hintDir := strings.HasSuffix(trimmed, "/") || strings.HasSuffix(trimmed, string(filepath.Separator))
	dest := filepath.Clean(trimmed)
	if !filepath.IsAbs(dest) {
		dest = filepath.Join(m.state.Dir, dest)
	}
	if !hintDir && !forceContainer {
		if info, err := os.Stat(dest); err != nil || !info.IsDir() {
			return dest
		}
	}
	return filepath.Join(dest, entryName)
}

func (m *Machine) commandCd(args string) []Effect {
	if args == "" {
		m.state.Status = "Usage: :cd <path>"
		return nil
	}
	target := filepath.Clean(args)
	if !filepath.IsAbs(target) {
		target = filepath.Join(m.state.Dir, target)
	}
	m.statusAfterScan = "Changed directory"
	return m.changeDir(target)
}

func (m *Machine) commandSort(args string) []Effect {
	if args == "" {
		m.state.Status = fmt.Sprintf("Sort: %s (usage: :sort name|size|modified)", m.state.Sort)
		return nil
	}
	m.state.Sort = fsops.ParseSortMode(args)
	m.statusAfterScan = fmt.Sprintf("Sorted by %s", m.state.Sort)
	return m.requestScan(false)
}

func (m *Machine) commandEdit() []Effect {
	entry, ok := m.selectedEntry()
	if !ok {
		m.state.Status = "No selection to edit"
		return nil
	}
	if entry.IsDir() {
		m.state.Status = "Cannot edit a directory"
		return nil
	}
	path, _ := m.selectedPath()
	m.state.Status = fmt.Sprintf("Launching editor for %s", entry.Name)
	return []Effect{ExternalEffect{Kind: ExternalEditor, Path: path, Dir: m.state.Dir}}
}

func validateName(input, current string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("name cannot be empty")
	}
	if current != "" && trimmed == current {
		return "", fmt.Errorf("name is unchanged")
	}
	if trimmed == "." || trimmed == ".." {
		return "", fmt.Errorf("invalid name '%s'", trimmed)
	}
	if strings.ContainsAny(trimmed, "/\\") {
		return "", fmt.Errorf("name cannot contain path separators")
	}
	return trimmed, nil
}
