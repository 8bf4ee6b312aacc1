package main

import (
	"context"
	"os"

	"github.com/dmitrijs2005/trainbook/internal/server"
	"github.com/dmitrijs2005/trainbook/internal/server/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)

	if err != nil {
		server.DefaultLogger().Error(ctx, "server failed to start", "error", err)
		os.Exit(1)
	}

	app.Run(ctx)

}
