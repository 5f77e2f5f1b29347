package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/KDT2006/minewars/internal/config"
	"github.com/KDT2006/minewars/internal/console"
	"github.com/KDT2006/minewars/internal/session"
	"github.com/KDT2006/minewars/internal/transport/ws"
)

func main() {
	var configPath, code, hostURL string
	flag.StringVar(&configPath, "config", "", "directory containing minewars.yaml")
	flag.StringVar(&code, "code", "", "join code of the session")
	flag.StringVar(&hostURL, "host", "", "websocket address of the host (overrides hostURL)")
	flag.Parse()

	if err := run(configPath, code, hostURL); err != nil {
		fmt.Fprintf(os.Stderr, "guest: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, code, hostURL string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if hostURL == "" {
		hostURL = cfg.HostURL
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	guest, err := session.Join(ctx, ws.Dialer{BaseURL: hostURL, Logger: logger}, code, session.GuestOptions{
		Name:           cfg.Name,
		CursorInterval: cfg.CursorInterval,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	guestErr := make(chan error, 1)
	go func() {
		guestErr <- guest.Run(ctx)
		stop()
	}()

	fmt.Printf("Joined session %s. Type \"help\" for commands.\n", guest.Code())
	if err := console.New(guest, guest.Rematch, os.Stdin, os.Stdout).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stop()
	if err := <-guestErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
