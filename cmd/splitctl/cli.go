package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/susu3304/expensesplitter/internal/splitter"
	"github.com/susu3304/expensesplitter/internal/units"
)

var errUsage = errors.New("usage: splitctl <info|record|add|contribute|settle|withdraw> [args]")

type cli struct {
	contract splitter.Contract
	account  common.Address
	balance  func(ctx context.Context) (*big.Int, error)
	txURL    func(hash string) string
	timeout  time.Duration
	out      io.Writer
}

func (c *cli) run(ctx context.Context, args []string) error {
	command := "info"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}

	if err := c.printHeader(ctx); err != nil {
		return err
	}

	var err error
	switch command {
	case "info":
		return c.printInfo(ctx)
	case "record":
		if len(args) != 2 {
			return fmt.Errorf("%w\n  record <description> <amount>", errUsage)
		}
		var amount *big.Int
		if amount, err = units.ParsePositiveEther(args[1]); err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[1], err)
		}
		err = c.send(ctx, "Expense recorded!", func(ctx context.Context) (*types.Transaction, error) {
			return c.contract.RecordExpense(ctx, args[0], amount)
		})
	case "add":
		if len(args) != 1 {
			return fmt.Errorf("%w\n  add <address>", errUsage)
		}
		var participant common.Address
		if participant, err = splitter.ParseAddress(args[0]); err != nil {
			return fmt.Errorf("participant address: %w", err)
		}
		err = c.send(ctx, "Participant added!", func(ctx context.Context) (*types.Transaction, error) {
			return c.contract.AddParticipant(ctx, participant)
		})
	case "contribute":
		if len(args) != 1 {
			return fmt.Errorf("%w\n  contribute <amount>", errUsage)
		}
		var value *big.Int
		if value, err = units.ParsePositiveEther(args[0]); err != nil {
			return fmt.Errorf("invalid amount %q: %w", args[0], err)
		}
		err = c.send(ctx, "Contribution sent!", func(ctx context.Context) (*types.Transaction, error) {
			return c.contract.Contribute(ctx, value)
		})
	case "settle":
		err = c.send(ctx, "Expenses settled!", c.contract.SettleExpenses)
	case "withdraw":
		err = c.send(ctx, "Emergency withdrawal!", c.contract.EmergencyWithdraw)
	default:
		return fmt.Errorf("unknown command %q\n%w", command, errUsage)
	}
	if err != nil {
		return err
	}

	fmt.Fprintln(c.out, "\nUpdated contract information:")
	return c.printInfo(ctx)
}

func (c *cli) printHeader(ctx context.Context) error {
	bal, err := c.balance(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Connected to contract at: %s\n", c.contract.Address().Hex())
	fmt.Fprintf(c.out, "Account: %s\n", c.account.Hex())
	fmt.Fprintf(c.out, "Balance: %s ETH\n", units.DisplayEther(bal))
	return nil
}

// send submits a transaction and waits for it to be mined.
func (c *cli) send(ctx context.Context, done string, submit func(context.Context) (*types.Transaction, error)) error {
	tx, err := submit(ctx)
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	fmt.Fprintf(c.out, "Transaction sent: %s\n", tx.Hash().Hex())
	fmt.Fprintln(c.out, "Waiting for confirmation...")

	waitCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	receipt, err := c.contract.Confirm(waitCtx, tx)
	if err != nil {
		return fmt.Errorf("transaction failed: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return fmt.Errorf("transaction failed: %s reverted", tx.Hash().Hex())
	}

	fmt.Fprintln(c.out, "✅ Transaction successful!")
	fmt.Fprintf(c.out, "Gas Used: %d\n", receipt.GasUsed)
	fmt.Fprintf(c.out, "%s Transaction: %s\n", done, tx.Hash().Hex())
	if c.txURL != nil {
		if url := c.txURL(tx.Hash().Hex()); url != "" {
			fmt.Fprintln(c.out, url)
		}
	}
	return nil
}

func (c *cli) printInfo(ctx context.Context) error {
	owner, err := c.contract.Owner(ctx)
	if err != nil {
		return fmt.Errorf("failed to get contract info: %w", err)
	}
	rows := []struct {
		label string
		read  func(context.Context) (*big.Int, error)
		ether bool
	}{
		{"Total Expenses", c.contract.TotalExpenses, true},
		{"Expense Count", c.contract.ExpenseCount, false},
		{"Participants", c.contract.ParticipantCount, false},
		{"Contract Balance", c.contract.ContractBalance, true},
		{"My Balance", c.contract.MyBalance, true},
		{"Equal Split", c.contract.EqualSplit, true},
	}

	rule := strings.Repeat("=", 50)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\nCONTRACT INFORMATION\n%s\n", rule, rule)
	fmt.Fprintf(&b, "Owner: %s\n", owner.Hex())
	for _, row := range rows {
		v, err := row.read(ctx)
		if err != nil {
			return fmt.Errorf("failed to get contract info: %w", err)
		}
		if row.ether {
			fmt.Fprintf(&b, "%s: %s ETH\n", row.label, units.DisplayEther(v))
		} else {
			fmt.Fprintf(&b, "%s: %s\n", row.label, v)
		}
	}
	b.WriteString(rule + "\n")
	_, err = io.WriteString(c.out, b.String())
	return err
}
