package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides SERVER_ADDR)")
	envFile := flag.String("env", "", "Path to an env file (default: .env)")
	printSchema := flag.Bool("schema", false, "Print the protocol JSON schema and exit")
	flag.Parse()

	if *printSchema {
		if err := WriteProtocolSchema(os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	var files []string
	if *envFile != "" {
		files = append(files, *envFile)
	}
	cfg, err := LoadConfig(files...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.ServerAddr = *addr
	}

	logger := NewLogger(cfg)
	if err := run(cfg, logger); err != nil {
		logger.Error("server: exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var db *DB
	var journal *Journal
	if cfg.JournalPath != "" {
		var err error
		if db, err = OpenDB(cfg.JournalPath); err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer db.Close()
		journal = NewJournal(db, logger)
		defer journal.Stop()
	}

	var wallet *WalletClient
	if cfg.Monetized() && !cfg.Test {
		ledger := NewMemoryLedger(cfg.NetworkType)
		logger.Warn("wallet: no node backend configured, using in-memory ledger")
		wallet = NewWalletClient(cfg, ledger, logger)
		if err := wallet.LoadWallet(); err != nil {
			return err
		}
		if err := wallet.Connect(ctx); err != nil {
			return err
		}
		if journal != nil {
			wallet.OnOutcome(journal.RecordOutcome)
		}
		ledger.SetConsensus(ConsensusEstablished)
	}

	g, gctx := errgroup.WithContext(ctx)
	rooms := NewRoomManager(cfg, wallet, journal, logger)
	rooms.Start(gctx)

	hub := NewHub(cfg, rooms, NewAuth(cfg), wallet, logger)
	server := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: SetupRoutes(hub, NewPanel(hub, db)),
	}

	g.Go(func() error { return hub.Run(gctx) })
	g.Go(rooms.Wait)
	g.Go(func() error {
		logger.Info("server: listening", "addr", cfg.ServerAddr, "roomType", cfg.RoomType)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err := g.Wait()
	if wallet != nil {
		wallet.Wait()
	}
	return err
}
