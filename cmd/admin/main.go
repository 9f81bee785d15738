package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/filehost/internal/admin"
	"github.com/dmitrijs2005/filehost/internal/server/config"
)

func main() {

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, admin.Usage())
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(os.Args[2:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := admin.NewApp(ctx, cfg, os.Stdin, os.Stdout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer app.Close()

	if err := app.Run(ctx, os.Args[1]); err != nil {
		log.Printf("%v", err)
		stop()
		_ = app.Close()
		os.Exit(1)
	}

}
