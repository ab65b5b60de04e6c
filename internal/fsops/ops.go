package fsops

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"rove/internal/log"
)

// ErrCancelled is returned when a cooperative cancellation point fires
// before the operation took effect.
var ErrCancelled = fmt.Errorf("operation cancelled")

// Copy duplicates src at dest. The destination must not already exist. For
// directories the tree is first built under a staging name next to dest and
// only renamed into place once complete, so an interrupted copy never leaves
// a partial destination behind.
func Copy(src, dest string, cancelled func() bool) error {
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return classify(src, "copying "+src, err)
	}
	if _, err := os.Lstat(dest); err == nil {
		return NewOpError(AlreadyExists, dest, "destination "+dest+" already exists", nil)
	}
	if err := ensureParentDir(dest); err != nil {
		return err
	}
	if cancelled != nil && cancelled() {
		return ErrCancelled
	}

	staging := stagingPath(dest)
	defer os.RemoveAll(staging)

	if srcInfo.IsDir() {
		if err := copyTree(src, staging, cancelled); err != nil {
			return err
		}
	} else {
		if err := copyFile(src, staging, srcInfo.Mode()); err != nil {
			return err
		}
	}
	if cancelled != nil && cancelled() {
		return ErrCancelled
	}
	if err := os.Rename(staging, dest); err != nil {
		return classify(dest, "finalizing copy to "+dest, err)
	}
	return nil
}

// Move renames src to dest, falling back to copy-then-remove across
// filesystems. The destination must not already exist.
func Move(src, dest string, cancelled func() bool) error {
	if _, err := os.Lstat(src); err != nil {
		return classify(src, "moving "+src, err)
	}
	if _, err := os.Lstat(dest); err == nil {
		return NewOpError(AlreadyExists, dest, "destination "+dest+" already exists", nil)
	}
	if err := ensureParentDir(dest); err != nil {
		return err
	}
	if cancelled != nil && cancelled() {
		return ErrCancelled
	}

	if err := os.Rename(src, dest); err == nil {
		return nil
	} else {
		log.LogWithFields(log.F("src", src), log.F("dest", dest), log.F("error", err)).
			Debug("Rename failed, falling back to copy and remove")
	}

	if err := Copy(src, dest, cancelled); err != nil {
		return err
	}
	if err := os.RemoveAll(src); err != nil {
		return classify(src, "removing "+src+" after copy", err)
	}
	return nil
}

// Delete removes the entry at path, recursively for directories.
func Delete(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return classify(path, "deleting "+path, err)
	}
	if info.IsDir() {
		if err := os.RemoveAll(path); err != nil {
			return classify(path, "removing directory "+path, err)
		}
		return nil
	}
	if err := os.Remove(path); err != nil {
		return classify(path, "removing file "+path, err)
	}
	return nil
}

// Rename renames the entry at src to dest within the same directory.
func Rename(src, dest string) error {
	if _, err := os.Lstat(src); err != nil {
		return classify(src, "renaming "+src, err)
	}
	if _, err := os.Lstat(dest); err == nil {
		return NewOpError(AlreadyExists, dest, "a file named "+filepath.Base(dest)+" already exists", nil)
	}
	if err := os.Rename(src, dest); err != nil {
		return classify(src, "renaming "+src, err)
	}
	return nil
}

// Mkdir creates a single new directory at path.
func Mkdir(path string) error {
	if err := os.Mkdir(path, 0755); err != nil {
		return classify(path, "creating directory "+path, err)
	}
	return nil
}

// Touch creates an empty file at path, or updates its timestamps if it
// already exists.
func Touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return classify(path, "creating file "+path, err)
	}
	return f.Close()
}

func ensureParentDir(path string) error {
	parent := filepath.Dir(path)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return classify(parent, "creating parent "+parent, err)
	}
	return nil
}

func stagingPath(dest string) string {
	return filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".rove-partial")
}

func copyFile(src, dest string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return classify(src, "opening "+src, err)
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode.Perm())
	if err != nil {
		return classify(dest, "creating "+dest, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return classify(dest, "writing "+dest, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return classify(dest, "closing "+dest, err)
	}
	return nil
}

func copyTree(src, dest string, cancelled func() bool) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return classify(dest, "creating directory "+dest, err)
	}
	children, err := os.ReadDir(src)
	if err != nil {
		return classify(src, "reading directory "+src, err)
	}
	for _, child := range children {
		if cancelled != nil && cancelled() {
			return ErrCancelled
		}
		srcChild := filepath.Join(src, child.Name())
		destChild := filepath.Join(dest, child.Name())
		info, err := child.Info()
		if err != nil {
			return classify(srcChild, "reading metadata for "+srcChild, err)
		}
		switch {
		case info.IsDir():
			if err := copyTree(srcChild, destChild, cancelled); err != nil {
				return err
			}
		case info.Mode()&os.ModeSymlink != 0:
			target, err := os.Readlink(srcChild)
			if err != nil {
				return classify(srcChild, "reading symlink "+srcChild, err)
			}
			if err := os.Symlink(target, destChild); err != nil {
				return classify(destChild, "creating symlink "+destChild, err)
			}
		default:
			if err := copyFile(srcChild, destChild, info.Mode()); err != nil {
				return err
			}
		}
	}
	return nil
}
