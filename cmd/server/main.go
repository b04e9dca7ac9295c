package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/whiteboard-sync/internal/config"
	"github.com/DoyleJ11/whiteboard-sync/internal/discovery"
	"github.com/DoyleJ11/whiteboard-sync/internal/httpapi"
	"github.com/DoyleJ11/whiteboard-sync/internal/hub"
	"github.com/DoyleJ11/whiteboard-sync/internal/logging"
	"github.com/DoyleJ11/whiteboard-sync/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	envFile := flag.String("env", ".env", "optional env file")
	addr := flag.String("addr", "", "listen address, overrides WB_ADDR")
	advertise := flag.Bool("mdns", false, "advertise the relay over mDNS, same as WB_MDNS=true")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	cfg.MDNS = cfg.MDNS || *advertise

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, log)

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, ws.Options{
		ClientBuffer: cfg.ClientBuffer,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}, log)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.MDNS {
		g.Go(func() error {
			port := ln.Addr().(*net.TCPAddr).Port
			m, err := discovery.Advertise(cfg.MDNSService, port, "/ws", log)
			if err != nil {
				// the relay stays usable by address
				log.Warn("mdns disabled", zap.Error(err))
				return nil
			}
			<-gctx.Done()
			return m.Shutdown()
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-h.Done():
		}
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
