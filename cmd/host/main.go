package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KDT2006/minewars/internal/config"
	"github.com/KDT2006/minewars/internal/console"
	"github.com/KDT2006/minewars/internal/lobby"
	"github.com/KDT2006/minewars/internal/session"
	"github.com/KDT2006/minewars/internal/transport/ws"
)

func main() {
	var configPath, code string
	flag.StringVar(&configPath, "config", "", "directory containing minewars.yaml")
	flag.StringVar(&code, "code", "", "join code to host under (random when empty)")
	flag.Parse()

	if err := run(configPath, code); err != nil {
		fmt.Fprintf(os.Stderr, "host: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, code string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := config.NewLogger(os.Stderr, cfg.LogLevel)

	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), rand.Uint64()))
	if code == "" {
		code = lobby.NewCode(rng)
	}
	code, err = lobby.NormalizeCode(code)
	if err != nil {
		return err
	}

	server := ws.NewServer(lobby.HostPeerID(code), logger)
	host, err := session.NewHost(code, server, session.HostOptions{
		Name:           cfg.Name,
		Config:         cfg.Game,
		CursorInterval: cfg.CursorInterval,
		Rand:           rng,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: server.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "address", cfg.ListenAddr, "error", err)
			stop()
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	hostErr := make(chan error, 1)
	go func() { hostErr <- host.Run(ctx) }()

	fmt.Printf("Hosting session %s on %s. Type \"help\" for commands.\n", host.Code(), cfg.ListenAddr)
	if err := console.New(host, host.StartGame, os.Stdin, os.Stdout).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	stop()
	if err := <-hostErr; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
