package main

import (
	"flag"
	"os"
	"os/signal"
	"runtime/pprof"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pyran19/multi-account/config"
	"github.com/pyran19/multi-account/shell"
)

var (
	configPath  = flag.String("config", "", "path to a config file; defaults to ./ladder.yaml")
	debug       = flag.Bool("debug", false, "log at debug level")
	profilePath = flag.String("profilepath", "", "path for profile")
)

func main() {
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *profilePath != "" {
		f, err := os.Create(*profilePath)
		if err != nil {
			log.Fatal().Err(err).Msg("")
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load config")
	}
	if *debug || cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	sc, err := shell.NewShellController(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("could not start shell")
	}

	// one-shot mode: ladder solve 50 1520 1480
	if args := flag.Args(); len(args) > 0 {
		if err := sc.Execute(args); err != nil {
			log.Fatal().Err(err).Msg("")
		}
		return
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go sc.Loop(sig)
	<-sig
	log.Info().Msg("exiting")
}
