package main

import (
	"context"
	"log"
	"os"

	"github.com/dropgate/dropgate/internal/client/cli"
	"github.com/dropgate/dropgate/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app := cli.NewApp(cfg)

	if err := app.Run(ctx, cli.Positionals(os.Args[1:])); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
