package main

import (
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	_ "time/tzdata"

	"github.com/alecthomas/kong"
	"github.com/crazy-max/nestfs/internal/app"
	"github.com/crazy-max/nestfs/internal/logging"
	"github.com/crazy-max/nestfs/pkg/config"
	"github.com/rs/zerolog/log"
)

var (
	nestfs  *app.NestFS
	cli     config.Cli
	version = "dev"
	meta    = config.Meta{
		ID:     "nestfs",
		Name:   "NestFS",
		Desc:   "Browse and edit nested archive files as if they were directories",
		URL:    "https://github.com/crazy-max/nestfs",
		Author: "CrazyMax",
	}
)

func main() {
	var err error
	runtime.GOMAXPROCS(runtime.NumCPU())

	meta.Version = version
	meta.UserAgent = fmt.Sprintf("%s/%s go/%s %s", meta.ID, meta.Version, runtime.Version()[2:], strings.Title(runtime.GOOS)) //nolint:staticcheck // ignoring "SA1019: strings.Title is deprecated", as for our use we don't need full unicode support

	kctx := kong.Parse(&cli,
		kong.Name(meta.ID),
		kong.Description(fmt.Sprintf("%s. More info: %s", meta.Desc, meta.URL)),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
			Summary: true,
		}))

	// Logging
	if err = logging.Configure(cli); err != nil {
		log.Fatal().Err(err).Send()
	}

	// Init
	if nestfs, err = app.New(meta, cli); err != nil {
		log.Fatal().Err(err).Msg("cannot initialize nestfs")
	}

	// Handle os signals
	channel := make(chan os.Signal, 1)
	signal.Notify(channel, os.Interrupt, SIGTERM)
	go func() {
		sig := <-channel
		if err := nestfs.Close(); err != nil {
			log.Error().Err(err).Msg("cannot write pending changes")
		}
		log.Warn().Msgf("caught signal %v", sig)
		os.Exit(0)
	}()

	// Start
	if err = nestfs.Start(kctx.Command()); err != nil {
		log.Fatal().Stack().Err(err).Send()
	}
}
