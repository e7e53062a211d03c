package controller

import (
	"fmt"
	"io/fs"

	"github.com/crazy-max/nestfs/pkg/vfs"
	"github.com/pkg/errors"
)

var (
	// ErrFalsePositive is matched by errors of controllers whose archive
	// file turned out to be something else.
	ErrFalsePositive = errors.New("false positive archive file")
	// ErrNotEmpty is returned when unlinking a directory with members.
	ErrNotEmpty = errors.New("directory not empty")
	// ErrIsDir is returned when reading or writing a directory as a file.
	ErrIsDir = errors.New("is a directory")
	// ErrNotDir is returned when a directory is expected.
	ErrNotDir = errors.New("not a directory")
)

// FalsePositiveError tells that the archive file of a mount point is a
// directory, a special file or a file which the driver cannot read. The
// node should be accessed in the parent file system instead.
type FalsePositiveError struct {
	MountPoint *vfs.MountPoint
	Cause      error
}

func (e *FalsePositiveError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %v", e.MountPoint, ErrFalsePositive)
	}
	return fmt.Sprintf("%s: %v: %v", e.MountPoint, ErrFalsePositive, e.Cause)
}

func (e *FalsePositiveError) Is(target error) bool {
	return target == ErrFalsePositive
}

func (e *FalsePositiveError) Unwrap() error {
	return e.Cause
}

// UnknownSchemeError is returned when no suitable driver is registered for
// the scheme of a mount point, e.g. because the detector changed between
// resolving a path and accessing it.
type UnknownSchemeError struct {
	Scheme vfs.Scheme
}

func (e *UnknownSchemeError) Error() string {
	return fmt.Sprintf("no driver for scheme %q", e.Scheme)
}

func pathError(op string, mp *vfs.MountPoint, e vfs.EntryName, err error) error {
	return &fs.PathError{Op: op, Path: vfs.NewNodePath(mp, e).URI(), Err: err}
}
