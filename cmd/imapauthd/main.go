package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/infodancer/imapauth/internal/config"
)

func main() {
	flags := config.ParseFlags()

	cfg, err := config.LoadWithFlags(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(2)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(2)
	}

	if flags.Check {
		os.Exit(runCheck(cfg, flag.Args()))
	}

	runServe(cfg)
}
