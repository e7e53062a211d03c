package archfs

import (
	"context"
	"os"

	"github.com/crazy-max/nestfs/pkg/controller"
	"github.com/crazy-max/nestfs/pkg/detector"
	"github.com/crazy-max/nestfs/pkg/driver"
	"github.com/crazy-max/nestfs/pkg/resolver"
	"github.com/crazy-max/nestfs/pkg/vfs"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Config holds the settings of path construction and file operations.
type Config struct {
	// Detector detects archive files when constructing paths.
	Detector *detector.ArchiveDetector
	// Manager provides the controllers for file operations.
	Manager *controller.Manager
	// CreateParents creates missing parent directories and archive files
	// when creating a file or directory.
	CreateParents bool
	// WorkDir resolves relative names. Defaults to the current directory.
	WorkDir string
	Logger  zerolog.Logger
}

// Global is the baseline for contexts without a Config. It is meant to be
// set up once at startup, before any concurrent use.
var Global = Config{
	Detector: detector.All(driver.Default()),
	Manager:  controller.NewManager(controller.ManagerOpts{}),
	Logger:   zerolog.Nop(),
}

type configKey struct{}

// WithConfig returns a copy of ctx carrying cfg. Goroutines handed the
// returned context keep using cfg whatever later contexts carry.
func WithConfig(ctx context.Context, cfg Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// ConfigFrom returns the Config carried by ctx or Global. Unset fields are
// taken from Global.
func ConfigFrom(ctx context.Context) Config {
	cfg, ok := ctx.Value(configKey{}).(Config)
	if !ok {
		return Global
	}
	if cfg.Detector == nil {
		cfg.Detector = Global.Detector
	}
	if cfg.Manager == nil {
		cfg.Manager = Global.Manager
	}
	return cfg
}

// workDir returns the node path of the working directory.
func (cfg Config) workDir() (vfs.NodePath, error) {
	wd := cfg.WorkDir
	if wd == "" {
		var err error
		if wd, err = os.Getwd(); err != nil {
			return vfs.NodePath{}, errors.Wrap(err, "cannot get working directory")
		}
	}
	n, err := vfs.PathName(wd, os.PathSeparator)
	if err != nil {
		return vfs.NodePath{}, err
	}
	if !n.IsAbsolute() {
		return vfs.NodePath{}, errors.Errorf("working directory %q is not absolute", wd)
	}
	return resolver.New(nil).Resolve(nativeRoot, n)
}

var nativeRoot = vfs.MustNodePath("file:/")
