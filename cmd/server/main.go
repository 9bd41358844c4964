package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sutcoin/business/internal/config"
	"github.com/sutcoin/business/internal/imaging"
	"github.com/sutcoin/business/internal/logging"
	"github.com/sutcoin/business/internal/mailer"
	"github.com/sutcoin/business/internal/s3storage"
	"github.com/sutcoin/business/internal/server"
	"github.com/sutcoin/business/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "intake: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:          "intake",
		Short:        "Business registration intake service",
		Long:         "Accepts business registration submissions, stores photos in object storage and emails the operator a notification.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), listenAddr)
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "listen address override (defaults to LISTEN_ADDR)")
	return cmd
}

func run(ctx context.Context, listenAddr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}

	log, err := logging.New()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	store, err := s3storage.New(cfg.Storage)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	normalizer := imaging.Normalizer{
		MaxDimension:    cfg.Image.MaxDimension,
		Quality:         cfg.Image.Quality,
		FallbackQuality: cfg.Image.FallbackQuality,
		MaxEncodedBytes: cfg.Image.MaxEncodedBytes,
	}
	dispatcher := mailer.NewDispatcher(cfg.Mail)
	composer := mailer.Composer{Recipient: cfg.Mail.Recipient}
	orchestrator := service.NewOrchestrator(normalizer, store, dispatcher, composer, cfg.Storage.PresignTTL, log)

	srv := server.New(cfg, orchestrator, log)
	if err := srv.Run(ctx); err != nil {
		log.Error("server stopped", zap.Error(err))
		return err
	}
	return nil
}
