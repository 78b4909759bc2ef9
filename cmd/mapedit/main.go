// Package main runs the mapedit operator CLI.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	mapeditcmd "github.com/louisbranch/soimap/internal/cmd/mapedit"
	"github.com/louisbranch/soimap/internal/platform/config"
)

func main() {
	cfg, err := mapeditcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.ExitUsagef(err)
	}
	log.SetPrefix("[MAPEDIT] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := mapeditcmd.Run(ctx, cfg, os.Stdout); err != nil {
		config.Exitf("mapedit: %v", err)
	}
}
