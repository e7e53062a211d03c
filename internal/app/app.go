package app

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/crazy-max/nestfs/pkg/archfs"
	"github.com/crazy-max/nestfs/pkg/config"
	"github.com/crazy-max/nestfs/pkg/controller"
	"github.com/crazy-max/nestfs/pkg/detector"
	"github.com/crazy-max/nestfs/pkg/driver"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// NestFS represents an active nestfs object
type NestFS struct {
	ctx  context.Context
	meta config.Meta
	cli  config.Cli
	out  io.Writer
}

// New creates new nestfs instance
func New(meta config.Meta, cli config.Cli) (*NestFS, error) {
	drivers := driver.Default()

	d := detector.All(drivers)
	if len(cli.Extensions) > 0 {
		var err error
		if d, err = detector.New(drivers, cli.Extensions); err != nil {
			return nil, errors.Wrap(err, "invalid archive extensions")
		}
	}
	log.Debug().Msgf("Detecting archive extensions %s", d)

	return &NestFS{
		ctx: archfs.WithConfig(context.Background(), archfs.Config{
			Detector: d,
			Manager: controller.NewManager(controller.ManagerOpts{
				Logger:  log.Logger,
				MaxIdle: cli.MaxIdle,
			}),
			CreateParents: cli.CreateParents,
			WorkDir:       cli.WorkDir,
			Logger:        log.Logger,
		}),
		meta: meta,
		cli:  cli,
		out:  os.Stdout,
	}, nil
}

// Start runs the command selected on the command line and writes all
// pending changes to the native file system.
func (c *NestFS) Start(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return errors.New("no command")
	}

	var err error
	switch fields[0] {
	case "ls":
		err = c.ls(c.cli.Ls)
	case "cat":
		err = c.cat(c.cli.Cat)
	case "stat":
		err = c.stat(c.cli.Stat)
	case "mkdir":
		err = c.mkdir(c.cli.Mkdir)
	case "rm":
		err = c.rm(c.cli.Rm)
	case "cp":
		err = c.cp(c.cli.Cp)
	case "mv":
		err = c.mv(c.cli.Mv)
	case "resolve":
		err = c.resolve(c.cli.Resolve)
	case "extract":
		err = c.extract(c.cli.Extract)
	case "digest":
		err = c.digest(c.cli.Digest)
	case "formats":
		err = c.formats()
	default:
		err = errors.Errorf("unknown command %q", fields[0])
	}
	if uerr := archfs.Umount(c.ctx); uerr != nil && err == nil {
		err = errors.Wrap(uerr, "cannot write changes")
	}
	return err
}

// Close writes pending changes and unmounts all archives
func (c *NestFS) Close() error {
	return archfs.Umount(c.ctx)
}

// path resolves a command line argument. Arguments starting with "file:"
// are hierarchical URIs, anything else is a native path name.
func (c *NestFS) path(name string) (*archfs.Path, error) {
	if strings.HasPrefix(name, "file:") {
		return archfs.FromURI(c.ctx, name)
	}
	return archfs.New(c.ctx, name)
}
