package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/canopy-network/stacksx/app/consumer"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	defer cancel()

	app, err := consumer.Initialize(ctx)
	if err != nil {
		panic(err)
	}

	app.Start(ctx)
}
