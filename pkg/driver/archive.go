package driver

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const osCreate = os.O_WRONLY | os.O_CREATE | os.O_TRUNC

// ErrReadOnly is returned when archiving into a format which can only be
// extracted.
var ErrReadOnly = errors.New("archive format is read only")

// Archive writes the tree rooted at "/" in src as an archive to w. Links
// adds symbolic links which src could not hold.
func (a *Archive) Archive(ctx context.Context, w io.Writer, src afero.Fs, links map[string]string) error {
	if a.archiver == nil {
		return errors.Wrapf(ErrReadOnly, "cannot write %s archive", a.name)
	}

	files, err := filesFromFs(src, links)
	if err != nil {
		return err
	}

	if a.compression == nil {
		return a.archiver.Archive(ctx, w, files)
	}
	cw, err := a.compression.OpenWriter(w)
	if err != nil {
		return errors.Wrapf(err, "cannot compress %s archive", a.name)
	}
	if err = a.archiver.Archive(ctx, cw, files); err != nil {
		_ = cw.Close()
		return err
	}
	return cw.Close()
}

func filesFromFs(src afero.Fs, links map[string]string) ([]archives.FileInfo, error) {
	var files []archives.FileInfo
	err := afero.Walk(src, "/", func(name string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		nameInArchive := strings.TrimPrefix(path.Clean(name), "/")
		if nameInArchive == "" {
			return nil
		}
		if info.IsDir() {
			nameInArchive += "/"
		}
		files = append(files, archives.FileInfo{
			FileInfo:      info,
			NameInArchive: nameInArchive,
			Open: func() (fs.File, error) {
				return src.Open(name)
			},
		})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "cannot walk staging tree")
	}

	names := make([]string, 0, len(links))
	for name := range links {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		info := linkInfo{name: path.Base(name), target: links[name]}
		files = append(files, archives.FileInfo{
			FileInfo:      info,
			NameInArchive: name,
			LinkTarget:    info.target,
			Open: func() (fs.File, error) {
				// zip stores the target as the body of the entry
				return &linkFile{Reader: strings.NewReader(info.target), info: info}, nil
			},
		})
	}
	return files, nil
}

type linkInfo struct {
	name   string
	target string
}

func (l linkInfo) Name() string       { return l.name }
func (l linkInfo) Size() int64        { return int64(len(l.target)) }
func (l linkInfo) Mode() fs.FileMode  { return fs.ModeSymlink | 0o777 }
func (l linkInfo) ModTime() time.Time { return time.Time{} }
func (l linkInfo) IsDir() bool        { return false }
func (l linkInfo) Sys() any           { return nil }

type linkFile struct {
	*strings.Reader
	info linkInfo
}

func (f *linkFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *linkFile) Close() error               { return nil }
