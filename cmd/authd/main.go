package main

import (
	"context"
	"os"

	"github.com/dgellow/gsession/internal"
	"github.com/dgellow/gsession/internal/cli"
	"github.com/dgellow/gsession/internal/config"
)

var BuildVersion = "dev"

func main() {
	os.Exit(cli.Main("authd", BuildVersion, os.Args[1:], func(ctx context.Context, cfg config.Config) (cli.App, error) {
		return internal.NewBackend(ctx, cfg)
	}))
}
