// Command splitctl drives a deployed expense splitter from the command line
// with the keystore account configured for the server.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/pflag"

	"github.com/susu3304/expensesplitter/internal/chain"
	"github.com/susu3304/expensesplitter/internal/config"
	"github.com/susu3304/expensesplitter/internal/splitter"
)

const usage = `Usage: splitctl [flags] <command> [args]

Commands:
  info                          show the contract summary (default)
  record <description> <amount> record an expense of amount ETH
  add <address>                 add a participant (owner only)
  contribute <amount>           send amount ETH to the contract
  settle                        settle your balance
  withdraw                      emergency withdraw (owner only)

Flags:
`

func main() {
	flags := pflag.NewFlagSet("splitctl", pflag.ExitOnError)
	opts := config.BindFlags(flags)
	contractFlag := flags.String("contract", "", "contract address (default $CONTRACT_ADDRESS)")
	timeout := flags.Duration("timeout", 5*time.Minute, "how long to wait for a transaction to be mined")
	flags.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	if err := run(*opts, *contractFlag, *timeout, flags.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Interaction failed: %v\n", err)
		os.Exit(1)
	}
}

func run(opts config.Options, contractAddr string, timeout time.Duration, args []string) error {
	cfg, err := config.LoadWithOptions(opts)
	if err != nil {
		return err
	}
	if cfg.KeystoreDir == "" {
		return errors.New("KEYSTORE_DIR is required")
	}
	if contractAddr == "" {
		contractAddr = cfg.ContractAddress
	}
	address, err := splitter.ParseAddress(contractAddr)
	if err != nil {
		return fmt.Errorf("contract address: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	wallet, err := chain.Open(ctx, chain.WalletConfig{
		RPCURL:      cfg.RPCURL,
		KeystoreDir: cfg.KeystoreDir,
		Address:     cfg.WalletAddress,
		Passphrase:  cfg.WalletPassphrase,
		ChainID:     cfg.ChainID,
		Logger:      cfg.NewLogger(os.Stderr),
	})
	if err != nil {
		return err
	}
	defer wallet.Close()
	if _, err := wallet.RequestAccounts(ctx); err != nil {
		return err
	}
	contract, err := wallet.Bind(address, wallet.Account())
	if err != nil {
		return err
	}

	c := &cli{
		contract: contract,
		account:  wallet.Account(),
		balance: func(ctx context.Context) (*big.Int, error) {
			return wallet.BalanceAt(ctx, wallet.Account())
		},
		txURL:   cfg.TxURL,
		timeout: timeout,
		out:     os.Stdout,
	}
	return c.run(ctx, args)
}
