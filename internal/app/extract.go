package app

import (
	"os"

	"github.com/crazy-max/nestfs/pkg/archfs"
	"github.com/crazy-max/nestfs/pkg/config"
	"github.com/crazy-max/nestfs/pkg/driver"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

func (c *NestFS) extract(cmd config.ExtractCmd) error {
	if _, err := os.Stat(cmd.Dist); err == nil && cmd.RmDist {
		if err := os.RemoveAll(cmd.Dist); err != nil {
			return errors.Wrapf(err, "failed to remove dist folder %q", cmd.Dist)
		}
	}
	if err := os.MkdirAll(cmd.Dist, 0o700); err != nil {
		return errors.Wrapf(err, "failed to create dist folder %q", cmd.Dist)
	}

	src, err := c.path(cmd.Source)
	if err != nil {
		return err
	}
	logger := log.With().Str("src", src.String()).Logger()

	// an archive is opened as the plain file it is stored in
	file := src
	if src.IsArchive() {
		file = archfs.FromNodePath(*src.NodePath().MountPoint().Path(), src.Detector())
	}
	r, err := file.Open(c.ctx)
	if err != nil {
		return err
	}
	defer r.Close()

	ext, input, err := driver.Identify(c.ctx, src.Name(), r)
	if err != nil {
		return errors.Wrap(err, "cannot identify archive format")
	}
	scheme := schemeOf(ext)
	if src.IsArchive() {
		scheme = src.NodePath().MountPoint().Scheme()
	}
	cfg := archfs.ConfigFrom(c.ctx)
	a, ok := cfg.Detector.Drivers()[scheme].(*driver.Archive)
	if !ok {
		return errors.Errorf("archive format not supported: %q", ext)
	}
	logger.Debug().Msgf("Archive format %s detected", a.Name())

	logger.Info().Msgf("Extracting to %s", cmd.Dist)
	return a.Extract(c.ctx, input, afero.NewBasePathFs(afero.NewOsFs(), cmd.Dist), driver.ExtractOpts{
		Logger:   logger,
		Includes: cmd.Includes,
	})
}
