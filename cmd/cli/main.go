package main

import (
	"context"
	"log"
	"os"

	"github.com/datngoHD/white-label-app/internal/buildinfo"
	"github.com/datngoHD/white-label-app/internal/client/cli"
	"github.com/datngoHD/white-label-app/internal/client/config"
	"github.com/datngoHD/white-label-app/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg, logging.Default())

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
