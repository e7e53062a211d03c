package driver

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// ExtractOpts holds extract options
type ExtractOpts struct {
	Logger   zerolog.Logger
	Includes []string
	// Links receives the targets of symbolic links if the destination
	// cannot create them.
	Links map[string]string
}

// Extract extracts the archive read from r into dst. Entry names are
// cleaned and rooted at "/" so that no entry escapes dst.
func (a *Archive) Extract(ctx context.Context, r io.Reader, dst afero.Fs, opts ExtractOpts) error {
	dt, err := io.ReadAll(ReaderContext(ctx, r))
	if err != nil {
		return errors.Wrapf(err, "cannot read %s archive", a.name)
	}

	var input io.Reader = bytes.NewReader(dt)
	if a.compression != nil {
		rc, err := a.compression.OpenReader(input)
		if err != nil {
			return errors.Wrapf(err, "cannot decompress %s archive", a.name)
		}
		defer rc.Close()
		input = rc
	}

	var pathsInArchive []string
	for _, inc := range opts.Includes {
		inc = strings.Trim(inc, "/")
		if len(inc) > 0 {
			pathsInArchive = append(pathsInArchive, inc)
		}
	}

	return a.extractor.Extract(ctx, input, func(ctx context.Context, f archives.FileInfo) error {
		name := strings.Trim(path.Clean("/"+f.NameInArchive), "/")
		if name == "" || !fileIsIncluded(pathsInArchive, name) {
			return nil
		}

		if f.FileInfo.IsDir() {
			opts.Logger.Trace().Msgf("Extracting %s", name)
		} else {
			opts.Logger.Debug().Msgf("Extracting %s", name)
		}

		dest := "/" + name
		if err := dst.MkdirAll(path.Dir(dest), 0o755); err != nil {
			return err
		}

		switch {
		case f.FileInfo.IsDir():
			return dst.MkdirAll(dest, f.Mode().Perm()|0o700)
		case f.FileInfo.Mode().IsRegular():
			return writeFile(ctx, dst, dest, f)
		case f.FileInfo.Mode()&fs.ModeSymlink != 0:
			return writeSymlink(dst, dest, f, opts)
		default:
			return errors.Errorf("cannot handle file mode: %v", f.FileInfo.Mode())
		}
	})
}

func fileIsIncluded(filenameList []string, filename string) bool {
	// include all files if there is no specific list
	if len(filenameList) == 0 {
		return true
	}
	for _, fn := range filenameList {
		if filename == fn {
			return true
		}
		// also consider the file included if its parent folder/path is in the list
		if strings.HasPrefix(filename, fn+"/") {
			return true
		}
	}
	return false
}

func writeFile(ctx context.Context, dst afero.Fs, name string, f archives.FileInfo) error {
	r, err := f.Open()
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := dst.OpenFile(name, osCreate, f.Mode().Perm()|0o600)
	if err != nil {
		return err
	}
	if _, err = io.Copy(w, ReaderContext(ctx, r)); err != nil {
		_ = w.Close()
		return err
	}
	if err = w.Close(); err != nil {
		return err
	}
	if !f.ModTime().IsZero() {
		return dst.Chtimes(name, f.ModTime(), f.ModTime())
	}
	return nil
}

func writeSymlink(dst afero.Fs, name string, f archives.FileInfo, opts ExtractOpts) error {
	target, err := linkTarget(f)
	if err != nil {
		return err
	}

	linker, ok := dst.(afero.Linker)
	if !ok {
		if opts.Links == nil {
			opts.Logger.Warn().Msgf("Skipping symlink %s", name)
			return nil
		}
		opts.Links[strings.TrimPrefix(name, "/")] = target
		return nil
	}

	if ls, ok := dst.(afero.Lstater); ok {
		if _, _, err := ls.LstatIfPossible(name); err == nil {
			if err = dst.Remove(name); err != nil {
				return err
			}
		}
	}

	return linker.SymlinkIfPossible(target, name)
}

// linkTarget returns the target of a symbolic link. Zip archives store it
// as the body of the entry.
func linkTarget(f archives.FileInfo) (string, error) {
	if f.LinkTarget != "" {
		return f.LinkTarget, nil
	}
	r, err := f.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return "", err
	}
	if len(b) == 0 {
		return "", errors.Errorf("symlink target is empty for %s", f.Name())
	}
	return string(b), nil
}

type reader struct {
	ctx context.Context
	r   io.Reader
}

// ReaderContext returns a reader which fails once ctx is done.
func ReaderContext(ctx context.Context, r io.Reader) io.Reader {
	return reader{ctx, r}
}

func (r reader) Read(p []byte) (int, error) {
	err := r.ctx.Err()
	if err != nil {
		return 0, err
	}
	n, err := r.r.Read(p)
	if err != nil {
		return n, err
	}
	return n, r.ctx.Err()
}
