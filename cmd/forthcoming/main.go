// Package main starts the forthcoming service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	forthcomingcmd "github.com/forthcoming/forthcoming/internal/cmd/forthcoming"
	"github.com/forthcoming/forthcoming/internal/platform/config"
)

func main() {
	log.SetPrefix("[FORTHCOMING] ")
	cfg, err := forthcomingcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := forthcomingcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
