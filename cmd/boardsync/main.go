package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/boardsync/internal/api"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/engine"
	"github.com/gosuda/boardsync/internal/realtime"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("startup failed")
	}
}

func run() error {
	// Load configuration from environment (and .env if present).
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Initialize structured logging from configuration.
	level, parseErr := zerolog.ParseLevel(cfg.Log.Level)
	if parseErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	console := cfg.Log.Format == "text" ||
		(cfg.Log.Format == "auto" && isatty.IsTerminal(os.Stdout.Fd()))
	if console {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	}

	boardID, err := uuid.Parse(cfg.Board.ID)
	if err != nil {
		return fmt.Errorf("BOARDSYNC_BOARD_ID: %w", err)
	}
	userID, err := api.UserIDFromToken(cfg.Auth.Token)
	if err != nil {
		return err
	}

	client := api.New(cfg.Server.URL, cfg.Auth.Token)
	client.SetTimeout(cfg.Server.RequestTimeout)

	eng := engine.New(client, boardID, userID)

	// Graceful shutdown on SIGINT / SIGTERM.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Fetch the initial authoritative board state before joining the room.
	if err := eng.Resync(ctx); err != nil {
		return err
	}
	log.Info().Stringer("board_id", boardID).Stringer("user_id", userID).Msg("board state loaded")

	sub := realtime.New(cfg.Server.URL, cfg.Auth.Token, boardID)
	sub.SetBackoff(cfg.Server.ReconnectMin, cfg.Server.ReconnectMax)

	errCh := make(chan error, 2)
	go func() {
		errCh <- sub.Run(ctx)
	}()
	go func() {
		errCh <- eng.Run(ctx, sub)
	}()

	// Tail state changes and notices until shutdown.
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("stopped")
			return nil
		case err := <-errCh:
			if ctx.Err() != nil {
				log.Info().Msg("stopped")
				return nil
			}
			return err
		case n := <-eng.Notices():
			ev := log.Warn().Str("message", n.Message)
			if n.CardID != uuid.Nil {
				ev = ev.Stringer("card_id", n.CardID)
			}
			ev.Msg("notice")
		case <-eng.Updates():
			snap := eng.Snapshot()
			log.Debug().
				Int("cards", len(snap.Cards)).
				Int("visible", len(snap.VisibleCards)).
				Int("columns", len(snap.Columns)).
				Msg("board updated")
		}
	}
}
