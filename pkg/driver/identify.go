package driver

import (
	"context"
	"io"

	"github.com/mholt/archives"
	"github.com/pkg/errors"
)

// Identify returns the extension of the format which the content of r
// matches, e.g. ".tar.gz", and a reader which replays the consumed bytes.
func Identify(ctx context.Context, filename string, r io.Reader) (string, io.Reader, error) {
	format, input, err := archives.Identify(ctx, filename, r)
	if errors.Is(err, archives.NoMatch) {
		return "", input, nil
	} else if err != nil {
		return "", input, err
	}
	return format.Extension(), input, nil
}
