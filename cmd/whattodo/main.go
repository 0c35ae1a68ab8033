package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/whattodo/core/cmd/whattodo/commands"
)

// @title whattodo API
// @version 1.0
// @description Local task document with optional remote sync

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.NewRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
