// Package app wires configuration, services, and the Telegram long-poll loop
// behind a small cobra command tree.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/Velvet-Capital/SwarmDeFAI/internal/bot"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/chain"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/config"
	boterr "github.com/Velvet-Capital/SwarmDeFAI/internal/errors"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/httpx"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/insights"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/ledger"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/oracle"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/solver"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/version"
	"github.com/Velvet-Capital/SwarmDeFAI/internal/wallet"
)

type Runner struct {
	stdout io.Writer
	stderr io.Writer
}

func NewRunner() *Runner {
	return NewRunnerWithWriters(os.Stdout, os.Stderr)
}

func NewRunnerWithWriters(stdout, stderr io.Writer) *Runner {
	return &Runner{stdout: stdout, stderr: stderr}
}

func (r *Runner) Run(args []string) int {
	var flags config.GlobalFlags
	root := r.newRootCommand(&flags)
	root.SetArgs(args)
	root.SetOut(r.stdout)
	root.SetErr(r.stderr)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err := root.Execute(); err != nil {
		fmt.Fprintf(r.stderr, "%s: %v\n", version.Name, err)
		if boterr.Is(err, boterr.CodeConfiguration) {
			return 2
		}
		return 1
	}
	return 0
}

func (r *Runner) newRootCommand(flags *config.GlobalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   version.Name,
		Short: "Telegram trading bot for Base",
	}
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&flags.EnvPath, "env", "", "Path to .env file")
	cmd.PersistentFlags().StringVar(&flags.RPCURL, "rpc-url", "", "Base RPC endpoint")
	cmd.PersistentFlags().StringVar(&flags.Timeout, "timeout", "", "Outbound request timeout")
	cmd.PersistentFlags().IntVar(&flags.Retries, "retries", -1, "Retries per outbound request")

	cmd.AddCommand(r.newServeCommand(flags))
	cmd.AddCommand(newVersionCommand())
	return cmd
}

func (r *Runner) newServeCommand(flags *config.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot against the Telegram API",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(*flags)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return r.serve(ctx, settings)
		},
	}
}

func newVersionCommand() *cobra.Command {
	var long bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print bot version",
		Run: func(cmd *cobra.Command, args []string) {
			if long {
				fmt.Fprintln(cmd.OutOrStdout(), version.Long())
				return
			}
			fmt.Fprintln(cmd.OutOrStdout(), version.Version)
		},
	}
	cmd.Flags().BoolVar(&long, "long", false, "Print extended build metadata")
	return cmd
}

// serve builds every service from settings and drains Telegram updates until
// the context is cancelled.
func (r *Runner) serve(ctx context.Context, settings config.Settings) error {
	logger := log.New(r.stderr, version.Name+" ", log.LstdFlags)

	vault, err := wallet.NewVault(settings.WalletKeyHex)
	if err != nil {
		return err
	}
	store, err := wallet.OpenStore(settings.WalletDBPath, settings.WalletLockPath)
	if err != nil {
		return err
	}
	defer store.Close()

	chainClient, err := chain.Dial(ctx, settings.RPCURL)
	if err != nil {
		return err
	}

	httpClient := httpx.New(settings.Timeout, settings.Retries)

	var adviser *insights.Service
	if settings.OpenAIKey != "" && settings.PerplexityKey != "" {
		social := insights.NewLunarCrush(httpClient, settings.LunarCrushURL, settings.LunarCrushKey, logger)
		adviser = insights.New(settings.OpenAIKey, settings.PerplexityURL, settings.PerplexityKey, social, logger)
	} else {
		logger.Printf("question answering disabled: missing OpenAI or Perplexity key")
	}

	api, err := tgbotapi.NewBotAPI(settings.BotToken)
	if err != nil {
		return boterr.Wrap(boterr.CodeConfiguration, "connect to Telegram", err)
	}
	logger.Printf("authorized as @%s", api.Self.UserName)

	b := bot.New(bot.Deps{
		API:      api,
		Username: api.Self.UserName,
		Wallets:  wallet.NewDirectory(vault, store, logger),
		Chain:    chainClient,
		Oracle:   oracle.New(httpClient, settings.OracleURL, settings.OracleKey, logger),
		Solver:   solver.New(httpClient, settings.SolverURL),
		Ledger:   ledger.New(httpClient, settings.LedgerURL, logger),
		Insights: adviser,
		Logger:   logger,
	})

	updateCfg := tgbotapi.NewUpdate(0)
	updateCfg.Timeout = 30
	updates := api.GetUpdatesChan(updateCfg)

	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			wg.Wait()
			logger.Printf("shutting down")
			return nil
		case update, ok := <-updates:
			if !ok {
				wg.Wait()
				return nil
			}
			wg.Add(1)
			go func(u tgbotapi.Update) {
				defer wg.Done()
				b.HandleUpdate(ctx, u)
			}(update)
		}
	}
}
