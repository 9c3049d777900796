package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"sheger-et-bot/internal/config"
	"sheger-et-bot/internal/infra/db/migrations"
	"sheger-et-bot/internal/infra/logging"
)

const usage = `usage: migrate [-config config.yaml] <command>

commands:
  up        apply all pending migrations
  down [N]  roll back N migrations (default 1)
  goto V    migrate to version V
  status    print the current version`

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*cfgPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, true)

	m, err := migrations.New(cfg.Database.URL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open migrations")
	}
	defer m.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up()
	case "down":
		n := 1
		if flag.NArg() > 1 {
			if n, err = strconv.Atoi(flag.Arg(1)); err != nil {
				logger.Fatal().Str("arg", flag.Arg(1)).Msg("down expects a number")
			}
		}
		err = m.Down(n)
	case "goto":
		if flag.NArg() < 2 {
			logger.Fatal().Msg("goto expects a version")
		}
		v, perr := strconv.ParseUint(flag.Arg(1), 10, 32)
		if perr != nil {
			logger.Fatal().Str("arg", flag.Arg(1)).Msg("goto expects a version")
		}
		err = m.Goto(uint(v))
	case "status":
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		logger.Fatal().Err(err).Str("command", flag.Arg(0)).Msg("migration failed")
	}

	v, dirty, err := m.Version()
	if err != nil {
		logger.Fatal().Err(err).Msg("read version")
	}
	logger.Info().Uint("version", v).Bool("dirty", dirty).Msg("schema version")
}
