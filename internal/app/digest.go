package app

import (
	_ "crypto/sha256"
	_ "crypto/sha512"
	"fmt"

	"github.com/crazy-max/nestfs/pkg/config"
	"github.com/crazy-max/nestfs/pkg/driver"
	"github.com/opencontainers/go-digest"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

func (c *NestFS) digest(cmd config.DigestCmd) error {
	alg := digest.Algorithm(cmd.Algorithm)
	if !alg.Available() {
		return errors.Errorf("unsupported digest algorithm %q", cmd.Algorithm)
	}

	dgsts := make([]digest.Digest, len(cmd.Paths))
	eg, ctx := errgroup.WithContext(c.ctx)
	for i, name := range cmd.Paths {
		eg.Go(func() error {
			p, err := c.path(name)
			if err != nil {
				return err
			}
			r, err := p.Open(ctx)
			if err != nil {
				return err
			}
			defer r.Close()
			if dgsts[i], err = alg.FromReader(driver.ReaderContext(ctx, r)); err != nil {
				return errors.Wrapf(err, "cannot digest %s", p)
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, name := range cmd.Paths {
		fmt.Fprintf(c.out, "%s  %s\n", dgsts[i], name)
	}
	return nil
}
