// Package driver provides the file system drivers of the default registry:
// a native driver on top of an afero file system and archive drivers on top
// of github.com/mholt/archives.
package driver

import (
	"archive/zip"

	"github.com/crazy-max/nestfs/pkg/detector"
	"github.com/mholt/archives"
	"github.com/spf13/afero"
)

// Native mounts hierarchical file systems.
type Native struct {
	fs afero.Fs
}

// NewNative returns a native driver backed by fs.
func NewNative(fs afero.Fs) *Native {
	return &Native{fs: fs}
}

// IsArchiveDriver returns false.
func (*Native) IsArchiveDriver() bool {
	return false
}

// Fs returns the backing file system.
func (n *Native) Fs() afero.Fs {
	return n.fs
}

// Archive mounts archive files of one format.
type Archive struct {
	name        string
	extractor   archives.Extractor
	archiver    archives.Archiver
	compression archives.Compression
}

// IsArchiveDriver returns true.
func (*Archive) IsArchiveDriver() bool {
	return true
}

// Name returns the name of the format, e.g. "tar.gz".
func (a *Archive) Name() string {
	return a.name
}

// Writable reports whether archives of this format can be updated.
func (a *Archive) Writable() bool {
	return a.archiver != nil
}

// Zip returns the zip driver.
func Zip() *Archive {
	z := archives.Zip{Compression: zip.Deflate}
	return &Archive{name: "zip", extractor: z, archiver: z}
}

// Tar returns the driver for uncompressed tarballs.
func Tar() *Archive {
	return &Archive{name: "tar", extractor: archives.Tar{}, archiver: archives.Tar{}}
}

// CompressedTar returns the driver for tarballs compressed with c.
func CompressedTar(name string, c archives.Compression) *Archive {
	return &Archive{name: name, extractor: archives.Tar{}, archiver: archives.Tar{}, compression: c}
}

// Rar returns the read only RAR driver.
func Rar() *Archive {
	return &Archive{name: "rar", extractor: archives.Rar{}}
}

// Registry returns the default drivers with the native driver on top of fs.
func Registry(fs afero.Fs) detector.Registry {
	z := Zip()
	tgz := CompressedTar("tar.gz", archives.Gz{})
	tbz2 := CompressedTar("tar.bz2", archives.Bz2{})
	txz := CompressedTar("tar.xz", archives.Xz{})
	return detector.Registry{
		"file":    NewNative(fs),
		"zip":     z,
		"jar":     z,
		"war":     z,
		"ear":     z,
		"tar":     Tar(),
		"tar.gz":  tgz,
		"tgz":     tgz,
		"tar.bz2": tbz2,
		"tbz2":    tbz2,
		"tar.xz":  txz,
		"txz":     txz,
		"tar.zst": CompressedTar("tar.zst", archives.Zstd{}),
		"tar.lz4": CompressedTar("tar.lz4", archives.Lz4{}),
		"rar":     Rar(),
	}
}

// Default returns the default drivers with the native driver on top of the
// operating system file system.
func Default() detector.Registry {
	return Registry(afero.NewOsFs())
}
