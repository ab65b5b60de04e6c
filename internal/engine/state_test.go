package engine

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rove/internal/fsops"
	"rove/internal/task"
)

func testEntries(names ...string) []fsops.Entry {
	entries := make([]fsops.Entry, len(names))
	for i, name := range names {
		kind := fsops.KindFile
		if filepath.Ext(name) == "" {
			kind = fsops.KindDir
		}
		entries[i] = fsops.Entry{Name: name, Kind: kind}
	}
	return entries
}

// loadedMachine builds a machine with one scan already applied.
func loadedMachine(t *testing.T, dir string, names ...string) *Machine {
	t.Helper()
	m := NewMachine(dir, Options{})
	effects := m.Start()
	require.Len(t, effects, 1)
	scan, ok := effects[0].(ScanEffect)
	require.True(t, ok)
	m.HandleOutcome(task.Outcome{
		Kind:       task.Scan,
		Status:     task.StatusScanned,
		Path:       dir,
		Generation: scan.Generation,
		Entries:    testEntries(names...),
	})
	return m
}

func TestMovementClamps(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "docs", "music", "a.txt", "b.txt")

	t.Run("down stops at the last entry", func(t *testing.T) {
		m.Apply(Move{Dir: Down, Count: 99})
		assert.Equal(t, 3, m.Snapshot().Selected)
		m.Apply(Move{Dir: Down, Count: 1})
		assert.Equal(t, 3, m.Snapshot().Selected, "movement past the end must clamp, not wrap")
	})

	t.Run("up stops at the first entry", func(t *testing.T) {
		m.Apply(Move{Dir: Up, Count: 99})
		assert.Equal(t, 0, m.Snapshot().Selected)
		m.Apply(Move{Dir: Up, Count: 1})
		assert.Equal(t, 0, m.Snapshot().Selected)
	})

	t.Run("jumps honor counts and clamp", func(t *testing.T) {
		m.Apply(JumpBottom{})
		assert.Equal(t, 3, m.Snapshot().Selected)
		m.Apply(JumpTop{})
		assert.Equal(t, 0, m.Snapshot().Selected)
		m.Apply(JumpTop{Count: 3})
		assert.Equal(t, 2, m.Snapshot().Selected)
		m.Apply(JumpTop{Count: 500})
		assert.Equal(t, 3, m.Snapshot().Selected)
	})
}

func TestMovementOnEmptyListing(t *testing.T) {
	m := loadedMachine(t, "/tmp/x")
	m.Apply(Move{Dir: Down, Count: 5})
	assert.Equal(t, 0, m.Snapshot().Selected)
	m.Apply(JumpBottom{})
	assert.Equal(t, 0, m.Snapshot().Selected)
}

func TestStaleScanResultsAreDiscarded(t *testing.T) {
	dir := "/tmp/x"
	m := NewMachine(dir, Options{})
	effects := m.Start()
	require.Len(t, effects, 1)
	gen := effects[0].(ScanEffect).Generation

	effects = m.Apply(Refresh{})
	require.Len(t, effects, 1)
	newer := effects[0].(ScanEffect).Generation
	require.Greater(t, newer, gen)

	m.HandleOutcome(task.Outcome{
		Kind: task.Scan, Status: task.StatusScanned,
		Path: dir, Generation: newer,
		Entries: testEntries("fresh.txt"),
	})
	m.HandleOutcome(task.Outcome{
		Kind: task.Scan, Status: task.StatusScanned,
		Path: dir, Generation: gen,
		Entries: testEntries("stale.txt", "old.txt"),
	})

	s := m.Snapshot()
	assert.Equal(t, newer, s.Snapshot.Generation)
	require.Len(t, s.Snapshot.Entries, 1)
	assert.Equal(t, "fresh.txt", s.Snapshot.Entries[0].Name)
	assert.False(t, s.Loading)
}

func TestScanForAnotherDirectoryIsDiscarded(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "keep.txt")
	m.HandleOutcome(task.Outcome{
		Kind: task.Scan, Status: task.StatusScanned,
		Path: "/tmp/elsewhere", Generation: 99,
		Entries: testEntries("wrong.txt"),
	})
	s := m.Snapshot()
	require.Len(t, s.Snapshot.Entries, 1)
	assert.Equal(t, "keep.txt", s.Snapshot.Entries[0].Name)
}

func TestEnterAndLeaveDirectory(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "docs", "a.txt")

	t.Run("entering a file is rejected", func(t *testing.T) {
		m.Apply(Move{Dir: Down, Count: 1})
		effects := m.Apply(EnterDir{})
		assert.Empty(t, effects)
		assert.Equal(t, "/tmp/x", m.Snapshot().Dir)
	})

	t.Run("entering a directory rescans and clears state", func(t *testing.T) {
		m.Apply(JumpTop{})
		m.Apply(ToggleMark{})
		effects := m.Apply(EnterDir{})
		require.Len(t, effects, 1)
		scan := effects[0].(ScanEffect)
		assert.Equal(t, "/tmp/x/docs", scan.Path)

		s := m.Snapshot()
		assert.Equal(t, "/tmp/x/docs", s.Dir)
		assert.Empty(t, s.Marks)
		assert.Empty(t, s.Snapshot.Entries)
		assert.True(t, s.Loading)
	})

	t.Run("leaving returns to the parent", func(t *testing.T) {
		effects := m.Apply(LeaveDir{})
		require.Len(t, effects, 1)
		assert.Equal(t, "/tmp/x", m.Snapshot().Dir)
	})

	t.Run("leaving the root is a no-op", func(t *testing.T) {
		root := loadedMachine(t, "/", "tmp")
		assert.Empty(t, root.Apply(LeaveDir{}))
		assert.Equal(t, "/", root.Snapshot().Dir)
	})
}

func TestFailedDirectoryChangeRollsBack(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "forbidden", "a.txt")
	effects := m.Apply(EnterDir{})
	require.Len(t, effects, 1)
	scan := effects[0].(ScanEffect)
	require.Equal(t, "/tmp/x/forbidden", scan.Path)

	effects = m.HandleOutcome(task.Outcome{
		Kind: task.Scan, Status: task.StatusFailed,
		Path: "/tmp/x/forbidden", Generation: scan.Generation,
		Err: fsops.NewOpError(fsops.PermissionDenied, "/tmp/x/forbidden", "listing", errors.New("permission denied")),
	})
	require.Len(t, effects, 1)
	assert.Equal(t, WatchEffect{Path: "/tmp/x"}, effects[0], "the watcher must follow the rollback")

	s := m.Snapshot()
	assert.Equal(t, "/tmp/x", s.Dir, "failed entry must return to the old directory")
	require.Len(t, s.Snapshot.Entries, 2)
	assert.False(t, s.Loading)
	require.NotNil(t, s.LastError)
	assert.Equal(t, ErrPermissionDenied, s.LastError.Kind)
}

func TestMarks(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "a.txt", "b.txt", "c.txt")

	m.Apply(ToggleMark{})
	m.Apply(Move{Dir: Down, Count: 1})
	m.Apply(ToggleMark{})
	assert.Len(t, m.Snapshot().Marks, 2)

	m.Apply(ToggleMark{})
	s := m.Snapshot()
	assert.Len(t, s.Marks, 1)
	assert.True(t, s.Marks["a.txt"])

	t.Run("marks for vanished entries are pruned on rescan", func(t *testing.T) {
		effects := m.Apply(Refresh{})
		gen := effects[0].(ScanEffect).Generation
		m.HandleOutcome(task.Outcome{
			Kind: task.Scan, Status: task.StatusScanned,
			Path: "/tmp/x", Generation: gen,
			Entries: testEntries("b.txt", "c.txt"),
		})
		assert.Empty(t, m.Snapshot().Marks)
	})
}

func TestSearch(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "alpha.txt", "beta.txt", "gamma.txt", "beacon.txt")

	t.Run("submit selects the first match at or after the cursor", func(t *testing.T) {
		m.Apply(SubmitSearch{Text: "be"})
		assert.Equal(t, 1, m.Snapshot().Selected)
	})

	t.Run("next wraps around the listing", func(t *testing.T) {
		m.Apply(SearchNext{Count: 1})
		assert.Equal(t, 3, m.Snapshot().Selected)
		m.Apply(SearchNext{Count: 1})
		assert.Equal(t, 1, m.Snapshot().Selected, "search repetition wraps")
	})

	t.Run("prev walks backwards", func(t *testing.T) {
		m.Apply(SearchPrev{Count: 1})
		assert.Equal(t, 3, m.Snapshot().Selected)
	})

	t.Run("no match leaves the cursor alone", func(t *testing.T) {
		m.Apply(JumpTop{})
		m.Apply(SubmitSearch{Text: "zzz"})
		s := m.Snapshot()
		assert.Equal(t, 0, s.Selected)
		assert.Contains(t, s.Status, "No match")
	})

	t.Run("repeat without a prior search reports it", func(t *testing.T) {
		fresh := loadedMachine(t, "/tmp/x", "a.txt")
		fresh.Apply(SearchNext{Count: 1})
		assert.Contains(t, fresh.Snapshot().Status, "No previous search")
	})
}

func TestFuzzySearch(t *testing.T) {
	m := NewMachine("/tmp/x", Options{Fuzzy: true})
	gen := m.Start()[0].(ScanEffect).Generation
	m.HandleOutcome(task.Outcome{
		Kind: task.Scan, Status: task.StatusScanned,
		Path: "/tmp/x", Generation: gen,
		Entries: testEntries("reading-list.txt", "notes.txt"),
	})
	m.Apply(SubmitSearch{Text: "rdl"})
	assert.Equal(t, 0, m.Snapshot().Selected)
}

func TestDeleteConfirmFlow(t *testing.T) {
	t.Run("dd gates on confirmation", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt", "b.txt")
		effects := m.Apply(DeleteSelection{})
		assert.Empty(t, effects, "no mutation before confirmation")

		s := m.Snapshot()
		assert.Equal(t, ModeConfirm, s.Mode)
		require.NotNil(t, s.Confirm)
		assert.Equal(t, []string{"/tmp/x/a.txt"}, s.Confirm.Paths)
	})

	t.Run("accepting emits the mutation", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		m.Apply(DeleteSelection{})
		effects := m.Apply(ConfirmPending{Accept: true})
		require.Len(t, effects, 1)
		assert.Equal(t, MutateEffect{Kind: task.Delete, Path: "/tmp/x/a.txt"}, effects[0])
		assert.Equal(t, ModeNormal, m.Snapshot().Mode)
	})

	t.Run("declining drops the operation", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		m.Apply(DeleteSelection{})
		assert.Empty(t, m.Apply(ConfirmPending{Accept: false}))
		s := m.Snapshot()
		assert.Equal(t, ModeNormal, s.Mode)
		assert.Nil(t, s.Confirm)
		// A second answer with nothing pending must not do anything.
		assert.Empty(t, m.Apply(ConfirmPending{Accept: true}))
	})

	t.Run("marks take precedence over the cursor", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt", "b.txt", "c.txt")
		m.Apply(ToggleMark{})
		m.Apply(Move{Dir: Down, Count: 2})
		m.Apply(ToggleMark{})
		m.Apply(DeleteSelection{})
		effects := m.Apply(ConfirmPending{Accept: true})
		require.Len(t, effects, 2)
		assert.Equal(t, "/tmp/x/a.txt", effects[0].(MutateEffect).Path)
		assert.Equal(t, "/tmp/x/c.txt", effects[1].(MutateEffect).Path)
	})
}

func TestCommands(t *testing.T) {
	aliases := map[string]string{"rm": "delete", "cp": "copy", "mv": "move"}

	t.Run("pwd reports the directory", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		m.Apply(SubmitCommand{Text: "pwd"})
		assert.Equal(t, "/tmp/x", m.Snapshot().Status)
	})

	t.Run("unknown command records an error", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		assert.Empty(t, m.Apply(SubmitCommand{Text: "bogus"}))
		s := m.Snapshot()
		require.NotNil(t, s.LastError)
		assert.Equal(t, ErrInvalidCommand, s.LastError.Kind)
	})

	t.Run("rename validates the new name", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		for _, bad := range []string{"", "a.txt", "..", "x/y"} {
			assert.Empty(t, m.Apply(SubmitCommand{Text: "rename " + bad}))
		}
		effects := m.Apply(SubmitCommand{Text: "rename fresh.txt"})
		require.Len(t, effects, 1)
		assert.Equal(t, MutateEffect{
			Kind: task.Rename,
			Path: "/tmp/x/a.txt",
			Dest: "/tmp/x/fresh.txt",
		}, effects[0])
	})

	t.Run("mkdir and touch create inside the current directory", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		effects := m.Apply(SubmitCommand{Text: "mkdir sub"})
		require.Len(t, effects, 1)
		assert.Equal(t, MutateEffect{Kind: task.Mkdir, Path: "/tmp/x/sub"}, effects[0])

		effects = m.Apply(SubmitCommand{Text: "touch note.md"})
		require.Len(t, effects, 1)
		assert.Equal(t, MutateEffect{Kind: task.Touch, Path: "/tmp/x/note.md"}, effects[0])
	})

	t.Run("aliases resolve before dispatch", func(t *testing.T) {
		m := NewMachine("/tmp/x", Options{Aliases: aliases})
		gen := m.Start()[0].(ScanEffect).Generation
		m.HandleOutcome(task.Outcome{
			Kind: task.Scan, Status: task.StatusScanned,
			Path: "/tmp/x", Generation: gen,
			Entries: testEntries("a.txt"),
		})
		m.Apply(SubmitCommand{Text: "rm"})
		assert.Equal(t, ModeConfirm, m.Snapshot().Mode)
	})

	t.Run("copy with trailing slash keeps the source name", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		effects := m.Apply(SubmitCommand{Text: "copy backups/"})
		require.Len(t, effects, 1)
		assert.Equal(t, MutateEffect{
			Kind: task.Copy,
			Path: "/tmp/x/a.txt",
			Dest: "/tmp/x/backups/a.txt",
		}, effects[0])
	})

	t.Run("move to a plain path renames into it", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		effects := m.Apply(SubmitCommand{Text: "move /tmp/elsewhere/b.txt"})
		require.Len(t, effects, 1)
		assert.Equal(t, "/tmp/elsewhere/b.txt", effects[0].(MutateEffect).Dest)
	})

	t.Run("multi-entry transfer always treats the target as a container", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt", "b.txt")
		m.Apply(ToggleMark{})
		m.Apply(Move{Dir: Down, Count: 1})
		m.Apply(ToggleMark{})
		effects := m.Apply(SubmitCommand{Text: "copy /tmp/dest"})
		require.Len(t, effects, 2)
		assert.Equal(t, "/tmp/dest/a.txt", effects[0].(MutateEffect).Dest)
		assert.Equal(t, "/tmp/dest/b.txt", effects[1].(MutateEffect).Dest)
	})

	t.Run("cd rescans the target", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		effects := m.Apply(SubmitCommand{Text: "cd /var/log"})
		require.Len(t, effects, 1)
		assert.Equal(t, "/var/log", effects[0].(ScanEffect).Path)
		assert.Equal(t, "/var/log", m.Snapshot().Dir)
	})

	t.Run("relative cd joins the current directory", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		m.Apply(SubmitCommand{Text: "cd .."})
		assert.Equal(t, "/tmp", m.Snapshot().Dir)
	})

	t.Run("sort rescans with the new order", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		effects := m.Apply(SubmitCommand{Text: "sort size"})
		require.Len(t, effects, 1)
		assert.Equal(t, fsops.SortBySize, effects[0].(ScanEffect).Options.Sort)
	})

	t.Run("quit and shell produce their effects", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "a.txt")
		effects := m.Apply(SubmitCommand{Text: "sh"})
		require.Len(t, effects, 1)
		assert.Equal(t, ExternalShell, effects[0].(ExternalEffect).Kind)

		effects = m.Apply(SubmitCommand{Text: "quit"})
		require.Len(t, effects, 1)
		assert.IsType(t, QuitEffect{}, effects[0])
		assert.True(t, m.Snapshot().Quitting)
	})

	t.Run("edit refuses directories", func(t *testing.T) {
		m := loadedMachine(t, "/tmp/x", "docs", "a.txt")
		assert.Empty(t, m.Apply(SubmitCommand{Text: "edit"}))
		m.Apply(Move{Dir: Down, Count: 1})
		effects := m.Apply(SubmitCommand{Text: "edit"})
		require.Len(t, effects, 1)
		ext := effects[0].(ExternalEffect)
		assert.Equal(t, ExternalEditor, ext.Kind)
		assert.Equal(t, "/tmp/x/a.txt", ext.Path)
	})
}

func TestMutationOutcomeTriggersRescan(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "a.txt")
	effects := m.HandleOutcome(task.Outcome{
		Kind: task.Delete, Status: task.StatusMutated, Path: "/tmp/x/a.txt",
	})
	require.Len(t, effects, 1)
	scan := effects[0].(ScanEffect)
	assert.Equal(t, "/tmp/x", scan.Path)

	m.HandleOutcome(task.Outcome{
		Kind: task.Scan, Status: task.StatusScanned,
		Path: "/tmp/x", Generation: scan.Generation,
		Entries: testEntries(),
	})
	assert.Contains(t, m.Snapshot().Status, "Deleted a.txt")
}

func TestFailedTaskRecordsErrorOnly(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "a.txt", "b.txt")
	m.Apply(Move{Dir: Down, Count: 1})
	effects := m.HandleOutcome(task.Outcome{
		Kind:   task.Delete,
		Status: task.StatusFailed,
		Path:   "/tmp/x/b.txt",
		Err:    fsops.NewOpError(fsops.PermissionDenied, "/tmp/x/b.txt", "delete", errors.New("permission denied")),
	})
	assert.Empty(t, effects)

	s := m.Snapshot()
	require.NotNil(t, s.LastError)
	assert.Equal(t, ErrPermissionDenied, s.LastError.Kind)
	assert.Equal(t, 1, s.Selected, "a failed task must not disturb navigation")
	require.Len(t, s.Snapshot.Entries, 2)
}

func TestSelectionClampsAfterShrinkingRescan(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "a.txt", "b.txt", "c.txt")
	m.Apply(JumpBottom{})
	require.Equal(t, 2, m.Snapshot().Selected)

	gen := m.Apply(Refresh{})[0].(ScanEffect).Generation
	m.HandleOutcome(task.Outcome{
		Kind: task.Scan, Status: task.StatusScanned,
		Path: "/tmp/x", Generation: gen,
		Entries: testEntries("a.txt"),
	})
	assert.Equal(t, 0, m.Snapshot().Selected)
}

func TestExternalDoneRescans(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "a.txt")
	effects := m.HandleExternalDone(nil, "Shell exited")
	require.Len(t, effects, 1)
	assert.IsType(t, ScanEffect{}, effects[0])

	assert.Empty(t, m.HandleExternalDone(errors.New("exit status 1"), ""))
	require.NotNil(t, m.Snapshot().LastError)
}

func TestFsChangeOutsideCurrentDirIsIgnored(t *testing.T) {
	m := loadedMachine(t, "/tmp/x", "a.txt")
	assert.Empty(t, m.HandleFsChange("/var/log/syslog"))
	assert.Len(t, m.HandleFsChange("/tmp/x/new.txt"), 1)
}
