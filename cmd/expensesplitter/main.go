package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"

	"github.com/susu3304/expensesplitter/internal/api"
	"github.com/susu3304/expensesplitter/internal/bot"
	"github.com/susu3304/expensesplitter/internal/chain"
	"github.com/susu3304/expensesplitter/internal/commands"
	"github.com/susu3304/expensesplitter/internal/config"
	"github.com/susu3304/expensesplitter/internal/db"
	"github.com/susu3304/expensesplitter/internal/metrics"
	"github.com/susu3304/expensesplitter/internal/splitter"
	"github.com/susu3304/expensesplitter/internal/ui"
)

func main() {
	flags := pflag.NewFlagSet("expensesplitter", pflag.ExitOnError)
	opts := config.BindFlags(flags)
	_ = flags.Parse(os.Args[1:])

	// Load configuration
	cfg, err := config.LoadWithOptions(*opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := cfg.NewLogger(os.Stderr)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		recorders splitter.Recorders
		history   api.History
	)

	// Connect to database
	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close()

		// Run migrations
		if err := database.RunMigrations(ctx); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		recorders = append(recorders, database)
		history = database
	} else {
		logger.Info("DATABASE_URL not set, transaction history disabled")
	}

	// Open the wallet; without a keystore the page offers the install prompt.
	var wallet splitter.Wallet
	if cfg.KeystoreDir != "" {
		w, err := chain.Open(ctx, chain.WalletConfig{
			RPCURL:       cfg.RPCURL,
			KeystoreDir:  cfg.KeystoreDir,
			Address:      cfg.WalletAddress,
			Passphrase:   cfg.WalletPassphrase,
			AutoConnect:  cfg.WalletAutoConnect,
			ChainID:      cfg.ChainID,
			PollInterval: cfg.WatchInterval,
			Logger:       logger.With("component", "wallet"),
		})
		if err != nil {
			return fmt.Errorf("failed to open wallet: %w", err)
		}
		defer w.Close()
		wallet = w
		logger.Info("wallet opened", "account", w.Account().Hex(), "rpc", cfg.RPCURL)
	}

	// Initialize Discord bot
	var discordBot *bot.Bot
	if cfg.DiscordToken != "" {
		var botHistory commands.History
		if history != nil {
			botHistory = history
		}
		b, err := bot.New(cfg, botHistory, logger.With("component", "bot"))
		if err != nil {
			return fmt.Errorf("failed to create discord bot: %w", err)
		}
		discordBot = b
		if r := b.Recorder(); r != nil {
			recorders = append(recorders, r)
		}
	}

	var recorder splitter.Recorder
	if len(recorders) > 0 {
		recorder = recorders
	}
	ctrl := splitter.New(splitter.Config{
		Wallet:   wallet,
		Board:    ui.NewBoard(ui.WithAlertTTL(cfg.AlertTTL)),
		Recorder: recorder,
		Metrics:  metrics.New(prometheus.DefaultRegisterer),
		Logger:   logger.With("component", "controller"),
	})
	ctrl.Initialize(ctx)
	defer ctrl.Close()

	if cfg.ContractAddress != "" {
		if ctrl.State() == splitter.Unconnected {
			logger.Warn("wallet not authorized, skipping startup contract", "contract", cfg.ContractAddress)
		} else if _, err := ctrl.LoadContract(ctx, cfg.ContractAddress); err != nil {
			logger.Warn("failed to load startup contract", "contract", cfg.ContractAddress, "error", err)
		}
	}

	// Start Discord bot
	if discordBot != nil {
		if err := discordBot.Start(ctrl); err != nil {
			return fmt.Errorf("failed to start discord bot: %w", err)
		}
		defer discordBot.Stop()
	}

	// Start API server
	apiServer := api.New(cfg, ctrl, api.Options{
		History: history,
		Logger:  logger.With("component", "api"),
	})
	errc := make(chan error, 1)
	go func() {
		errc <- apiServer.Start()
	}()
	logger.Info("web interface listening", "bind", cfg.WebBind)

	// Wait for signal to stop
	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return errors.New("API server stopped")
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("API server shutdown failed", "error", err)
	}
	return nil
}
