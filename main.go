package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/tphakala/medtel-go/cmd"
	"github.com/tphakala/medtel-go/internal/conf"
	"github.com/tphakala/medtel-go/internal/logging"
)

func main() {
	logging.Init()

	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if settings.Debug {
		logging.InitWithLevel(slog.LevelDebug)
	}

	rootCmd := cmd.RootCommand(settings)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
