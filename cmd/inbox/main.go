// Package main runs one inbox action against the local notification database.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	inboxcmd "github.com/yallajay/inbox/internal/cmd/inbox"
	"github.com/yallajay/inbox/internal/platform/config"
)

func main() {
	cfg, err := inboxcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.ExitCodef(config.ExitUsage, "inbox: %v", err)
	}
	log.SetPrefix("[INBOX] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err = inboxcmd.Run(ctx, cfg, os.Stdout)
	stop()
	if err != nil {
		log.Fatalf("inbox: %v", err)
	}
}
