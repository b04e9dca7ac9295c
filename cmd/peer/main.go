// Command peer joins a whiteboard room without a UI. It mirrors the board,
// logs what happens in the room and can import or export the scene.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/whiteboard-sync/internal/config"
	"github.com/DoyleJ11/whiteboard-sync/internal/discovery"
	"github.com/DoyleJ11/whiteboard-sync/internal/export"
	"github.com/DoyleJ11/whiteboard-sync/internal/logging"
	"github.com/DoyleJ11/whiteboard-sync/internal/session"
	"github.com/DoyleJ11/whiteboard-sync/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	envFile := flag.String("env", ".env", "optional env file")
	room := flag.String("room", "", "room code, overrides WB_ROOM")
	name := flag.String("name", "", "display name, overrides WB_USERNAME")
	relay := flag.String("relay", "", "relay websocket URL, overrides WB_RELAY_URL")
	discover := flag.Bool("discover", false, "find the relay over mDNS")
	importFile := flag.String("import", "", "scene file to publish after joining")
	exportFile := flag.String("export", "", "write the scene here on exit")
	pdfFile := flag.String("pdf", "", "write a PDF of the board here on exit")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *room != "" {
		cfg.Room = *room
	}
	if *name != "" {
		cfg.Username = *name
	}
	if *relay != "" {
		cfg.RelayURL = *relay
	}
	if cfg.Room == "" {
		return errors.New("no room given, set -room or WB_ROOM")
	}

	log, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *discover {
		urls, err := discovery.Browse(ctx, cfg.MDNSService, 3*time.Second, log)
		if err != nil {
			return err
		}
		cfg.RelayURL = urls[0]
		log.Info("discovered relay", zap.String("url", cfg.RelayURL), zap.Int("found", len(urls)))
	}

	opts := session.OptionsFromConfig(cfg)
	opts.UserID = uuid.NewString()
	opts.Dialer = transport.WSDialer{URL: cfg.RelayURL}
	opts.Logger = log
	s := session.New(opts)
	if err := s.Init(context.Background()); err != nil {
		return err
	}
	defer s.Teardown()

	if *importFile != "" {
		strokes, err := export.LoadScene(*importFile)
		if err != nil {
			return err
		}
		// queued offline, published right after the join
		n, err := s.Import(strokes)
		if err != nil {
			return err
		}
		log.Info("imported strokes", zap.String("file", *importFile), zap.Int("count", n))
	}
	if err := s.Connect(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		watch(gctx, s, log)
		return nil
	})
	g.Go(func() error {
		t := time.NewTicker(30 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				snap, err := s.Snapshot()
				if err != nil {
					return err
				}
				log.Info("board",
					zap.String("state", string(snap.State)),
					zap.String("master", snap.Master),
					zap.Int("participants", len(snap.Participants)),
					zap.Int("strokes", snap.Strokes),
					zap.Int("queued", snap.Queued),
					zap.Any("stats", s.Stats()))
			}
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}

	strokes, err := s.Strokes()
	if err != nil {
		return err
	}
	if *exportFile != "" {
		if err := export.SaveScene(*exportFile, strokes); err != nil {
			return err
		}
		log.Info("scene exported", zap.String("file", *exportFile), zap.Int("strokes", len(strokes)))
	}
	if *pdfFile != "" {
		if err := export.SavePDF(*pdfFile, strokes); err != nil {
			return err
		}
		log.Info("pdf written", zap.String("file", *pdfFile))
	}
	log.Info("leaving", zap.Any("stats", s.Stats()))
	return nil
}

// watch logs room activity until ctx ends.
func watch(ctx context.Context, s *session.Session, log *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-s.Notifications():
			switch n.Kind {
			case session.NoteConnection:
				log.Info("connection", zap.String("state", string(n.State)))
			case session.NoteOffline:
				log.Warn("relay unreachable, working offline")
			case session.NoteJoined:
				log.Info("participant joined", zap.String("user", n.UserID))
			case session.NoteLeft:
				log.Info("participant left", zap.String("user", n.UserID), zap.Int("dropped", len(n.Removed)))
			case session.NoteMaster:
				log.Info("master elected", zap.String("user", n.UserID))
			case session.NoteStrokes:
				log.Debug("strokes", zap.String("user", n.UserID), zap.Strings("added", n.Added), zap.Strings("removed", n.Removed))
			}
		}
	}
}
