// Package main is the entry point for the asset-cache server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ericselin/asset-cache/cmd/asset-cache/commands"

	"github.com/rs/zerolog/log"
)

// this is set by goreleaser
var version string

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if version == "" {
		version = "DEV"
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli := commands.New(version)
	cli.SetArgs(args)
	if err := cli.Execute(ctx); err != nil {
		log.Error().Err(err).Msg("Command failed")
		return 1
	}
	return 0
}
