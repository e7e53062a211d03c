package archfs

import (
	"context"
	"io"

	"github.com/crazy-max/nestfs/pkg/controller"
	"github.com/crazy-max/nestfs/pkg/detector"
	"github.com/crazy-max/nestfs/pkg/driver"
	"github.com/pkg/errors"
)

// Node is either a NativePath or a *Path.
type Node interface {
	isNode()
}

// NativePath is a path of the native file system. Archive files on it are
// plain files.
type NativePath string

func (NativePath) isNode() {}

func (*Path) isNode() {}

func pathOf(ctx context.Context, n Node) (*Path, error) {
	switch v := n.(type) {
	case *Path:
		return v, nil
	case NativePath:
		cfg := ConfigFrom(ctx)
		d, err := detector.New(cfg.Detector.Drivers(), "")
		if err != nil {
			return nil, err
		}
		return newPathName(cfg, d, string(v))
	}
	return nil, errors.Errorf("unsupported node type %T", n)
}

// Copy copies the content of file src to file dst.
func Copy(ctx context.Context, src, dst Node) error {
	sp, err := pathOf(ctx, src)
	if err != nil {
		return err
	}
	dp, err := pathOf(ctx, dst)
	if err != nil {
		return err
	}
	return copyFile(ctx, sp, dp)
}

func copyFile(ctx context.Context, sp, dp *Path) error {
	r, err := sp.Open(ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	w, err := dp.Create(ctx)
	if err != nil {
		return err
	}
	if _, err = io.Copy(w, driver.ReaderContext(ctx, r)); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "cannot copy %s to %s", sp, dp)
	}
	return w.Close()
}

// CopyAll copies src to dst, recursing into directories. Archives are
// copied as directories, so copying into an archive path converts between
// archive formats.
func CopyAll(ctx context.Context, src, dst Node) error {
	sp, err := pathOf(ctx, src)
	if err != nil {
		return err
	}
	dp, err := pathOf(ctx, dst)
	if err != nil {
		return err
	}
	return copyAll(ctx, sp, dp)
}

func copyAll(ctx context.Context, sp, dp *Path) error {
	n, err := sp.Stat(ctx)
	if err != nil {
		return err
	}
	if n.Type != controller.Directory {
		return copyFile(ctx, sp, dp)
	}
	if err = dp.MkdirAll(ctx); err != nil {
		return err
	}
	for _, name := range n.Members {
		sm, err := sp.Join(name)
		if err != nil {
			return err
		}
		dm, err := dp.Join(name)
		if err != nil {
			return err
		}
		if err = copyAll(ctx, sm, dm); err != nil {
			return err
		}
	}
	return nil
}

// Move moves src to dst. Within one file system this is a rename,
// otherwise src is copied and deleted.
func Move(ctx context.Context, src, dst Node) error {
	sp, err := pathOf(ctx, src)
	if err != nil {
		return err
	}
	dp, err := pathOf(ctx, dst)
	if err != nil {
		return err
	}

	smp, se := sp.np.Mount()
	dmp, de := dp.np.Mount()
	if smp != nil && smp.Equal(dmp) && (!smp.IsOpaque() || sp.detector == dp.detector) {
		if err = dp.makeParents(ctx); err != nil {
			return err
		}
		cfg := ConfigFrom(ctx)
		c, release, err := cfg.Manager.Controller(sp.detector, smp)
		if err != nil {
			return err
		}
		err = c.Rename(ctx, se, de)
		release()
		if !errors.Is(err, controller.ErrFalsePositive) {
			return err
		}
	}

	if err = copyAll(ctx, sp, dp); err != nil {
		return err
	}
	return sp.DeleteAll(ctx)
}
