package app

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/crazy-max/nestfs/pkg/archfs"
	"github.com/crazy-max/nestfs/pkg/config"
	"github.com/crazy-max/nestfs/pkg/driver"
	"github.com/crazy-max/nestfs/pkg/vfs"
)

func (c *NestFS) ls(cmd config.LsCmd) error {
	p, err := c.path(cmd.Path)
	if err != nil {
		return err
	}
	members, err := p.List(c.ctx)
	if err != nil {
		return err
	}
	for _, m := range members {
		if !cmd.Long {
			fmt.Fprintln(c.out, m.Name())
			continue
		}
		n, err := m.Stat(c.ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "%-9s %10d %s %s\n", n.Type, n.Size, n.ModTime.UTC().Format(time.RFC3339), m.Name())
	}
	return nil
}

func (c *NestFS) cat(cmd config.CatCmd) error {
	for _, name := range cmd.Paths {
		p, err := c.path(name)
		if err != nil {
			return err
		}
		r, err := p.Open(c.ctx)
		if err != nil {
			return err
		}
		_, err = io.Copy(c.out, driver.ReaderContext(c.ctx, r))
		r.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func (c *NestFS) stat(cmd config.StatCmd) error {
	p, err := c.path(cmd.Path)
	if err != nil {
		return err
	}
	n, err := p.Stat(c.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "URI:      %s\n", p.URI())
	fmt.Fprintf(c.out, "Type:     %s\n", n.Type)
	fmt.Fprintf(c.out, "Size:     %d\n", n.Size)
	fmt.Fprintf(c.out, "Mode:     %s\n", n.Mode)
	fmt.Fprintf(c.out, "Modified: %s\n", n.ModTime.UTC().Format(time.RFC3339))
	if a := p.InnerArchive(); a != nil {
		fmt.Fprintf(c.out, "Archive:  %s\n", a)
	}
	if p.IsEntry() {
		fmt.Fprintf(c.out, "Entry:    %s\n", p.EntryName().Path())
	}
	return nil
}

func (c *NestFS) mkdir(cmd config.MkdirCmd) error {
	p, err := c.path(cmd.Path)
	if err != nil {
		return err
	}
	if cmd.Parents {
		return p.MkdirAll(c.ctx)
	}
	return p.Mkdir(c.ctx)
}

func (c *NestFS) rm(cmd config.RmCmd) error {
	p, err := c.path(cmd.Path)
	if err != nil {
		return err
	}
	if cmd.Recursive {
		return p.DeleteAll(c.ctx)
	}
	return p.Delete(c.ctx)
}

func (c *NestFS) cp(cmd config.CpCmd) error {
	var src, dst archfs.Node = archfs.NativePath(cmd.Src), archfs.NativePath(cmd.Dst)
	if !cmd.Raw {
		sp, err := c.path(cmd.Src)
		if err != nil {
			return err
		}
		dp, err := c.path(cmd.Dst)
		if err != nil {
			return err
		}
		src, dst = sp, dp
	}
	if cmd.Recursive {
		return archfs.CopyAll(c.ctx, src, dst)
	}
	return archfs.Copy(c.ctx, src, dst)
}

func (c *NestFS) mv(cmd config.MvCmd) error {
	src, err := c.path(cmd.Src)
	if err != nil {
		return err
	}
	dst, err := c.path(cmd.Dst)
	if err != nil {
		return err
	}
	return archfs.Move(c.ctx, src, dst)
}

func (c *NestFS) resolve(cmd config.ResolveCmd) error {
	for _, name := range cmd.Paths {
		p, err := c.path(name)
		if err != nil {
			return err
		}
		if cmd.Hierarchical {
			fmt.Fprintln(c.out, p.NodePath().HierarchicalURI())
		} else {
			fmt.Fprintln(c.out, p.URI())
		}
	}
	return nil
}

func (c *NestFS) formats() error {
	cfg := archfs.ConfigFrom(c.ctx)
	for _, ext := range cfg.Detector.Extensions() {
		scheme := ext
		if a, ok := cfg.Detector.Drivers()[schemeOf(ext)].(*driver.Archive); ok && !a.Writable() {
			scheme += " (read only)"
		}
		fmt.Fprintln(c.out, scheme)
	}
	return nil
}

func schemeOf(ext string) vfs.Scheme {
	return vfs.Scheme(strings.TrimPrefix(ext, "."))
}
