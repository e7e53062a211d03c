// Package controller implements the I/O layer behind node paths: one
// controller per mount point, cached by a Manager.
package controller

import (
	"context"
	"io"

	"github.com/crazy-max/nestfs/pkg/detector"
	"github.com/crazy-max/nestfs/pkg/driver"
	"github.com/crazy-max/nestfs/pkg/vfs"
	"github.com/spf13/afero"
)

// AccessMode is checked by CheckAccess.
type AccessMode int

const (
	Read AccessMode = 1 << iota
	Write
)

// Controller serves the entries of the file system of one mount point.
// Entry names are relative to the root of that file system. Absent nodes
// are reported as a nil Node by Node and as fs.ErrNotExist otherwise.
type Controller interface {
	MountPoint() *vfs.MountPoint
	Node(ctx context.Context, e vfs.EntryName) (*Node, error)
	CheckAccess(ctx context.Context, e vfs.EntryName, mode AccessMode) error
	// Make creates a File or Directory. The parent directory must exist.
	Make(ctx context.Context, e vfs.EntryName, t Type) error
	Unlink(ctx context.Context, e vfs.EntryName) error
	Rename(ctx context.Context, from, to vfs.EntryName) error
	Open(ctx context.Context, e vfs.EntryName) (io.ReadCloser, error)
	Create(ctx context.Context, e vfs.EntryName) (io.WriteCloser, error)
	// Sync writes pending changes to the parent file system.
	Sync(ctx context.Context) error
}

// NativeDriver is a driver for hierarchical file systems.
type NativeDriver interface {
	detector.Capability
	Fs() afero.Fs
}

// ArchiveDriver is a driver for archive files.
type ArchiveDriver interface {
	detector.Capability
	Writable() bool
	Extract(ctx context.Context, r io.Reader, dst afero.Fs, opts driver.ExtractOpts) error
	Archive(ctx context.Context, w io.Writer, src afero.Fs, links map[string]string) error
}

type managed interface {
	Controller
	dirty() bool
}
