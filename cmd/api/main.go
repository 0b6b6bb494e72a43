package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/doctorautoprime/oficina/internal/config"
	"github.com/doctorautoprime/oficina/internal/db"
	internalhttp "github.com/doctorautoprime/oficina/internal/http"
	"github.com/doctorautoprime/oficina/internal/kommo"
	"github.com/doctorautoprime/oficina/internal/patio"
	"github.com/doctorautoprime/oficina/internal/sync"
	"github.com/doctorautoprime/oficina/internal/telegram"
	"github.com/doctorautoprime/oficina/internal/trello"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api encerrada com erro")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	board, err := trello.New(trello.Config{
		APIKey:  cfg.Trello.APIKey,
		Token:   cfg.Trello.Token,
		BoardID: cfg.Trello.BoardID,
	})
	if err != nil {
		return fmt.Errorf("trello: %w", err)
	}

	cardRepo := patio.NewRepository(pool)
	guard := sync.NewGuard(redisClient, cfg.Sync.GuardTTL)
	engine := sync.NewEngine(board, cardRepo, guard, log.With().Str("component", "sync").Logger())

	scheduler := sync.NewScheduler(engine, cfg.Sync.IntervalMinutes, log.With().Str("component", "scheduler").Logger())
	scheduler.Start(ctx)
	defer scheduler.Stop()

	var leadService internalhttp.LeadService
	if cfg.Kommo.Enabled {
		crm, err := kommo.New(kommo.Config{BaseURL: cfg.Kommo.BaseURL, AccessToken: cfg.Kommo.AccessToken})
		if err != nil {
			return fmt.Errorf("kommo: %w", err)
		}
		leadRepo := kommo.NewRepository(pool)
		leadService = kommo.NewService(leadRepo, cardRepo, board, crm, cfg.Trello.AgendadosList, cfg.Kommo.CardFieldID, cfg.Kommo.PhoneFieldID, log.With().Str("component", "kommo").Logger())
	}

	var notifier telegram.Notifier
	if bot := telegram.NewBotNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID); bot != nil {
		notifier = bot
	}

	handler := internalhttp.NewHandler(cfg, pool, cardRepo, engine, scheduler, leadService, notifier, board, board)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API ouvindo em :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("encerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
