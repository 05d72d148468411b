package chain

import (
	"context"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/susu3304/expensesplitter/internal/splitter"
)

// changeSource is what the watcher polls.
type changeSource interface {
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// changeWatcher periodically compares the authorized accounts and the chain
// id with what it saw last and reports differences.
type changeWatcher struct {
	source   changeSource
	notify   splitter.Notifications
	log      *slog.Logger
	interval time.Duration
	stopChan chan struct{}
	stopOnce sync.Once
	ticker   *time.Ticker

	primed   bool
	accounts []common.Address
	chainID  *big.Int
}

func newChangeWatcher(source changeSource, n splitter.Notifications, interval time.Duration, logger *slog.Logger) *changeWatcher {
	return &changeWatcher{
		source:   source,
		notify:   n,
		log:      logger,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

func (w *changeWatcher) start() {
	if w == nil {
		return
	}
	w.ticker = time.NewTicker(w.interval)
	go w.loop()
}

func (w *changeWatcher) stop() {
	if w == nil {
		return
	}
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.ticker != nil {
			w.ticker.Stop()
		}
	})
}

func (w *changeWatcher) loop() {
	ctx := context.Background()
	w.tick(ctx)
	for {
		select {
		case <-w.ticker.C:
			w.tick(ctx)
		case <-w.stopChan:
			return
		}
	}
}

// tick reads both values; the first successful read only records them.
func (w *changeWatcher) tick(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()

	accounts, err := w.source.Accounts(ctx)
	if err != nil {
		w.log.Warn("watcher: failed to read accounts", "error", err)
		return
	}
	chainID, err := w.source.ChainID(ctx)
	if err != nil {
		w.log.Warn("watcher: failed to read chain id", "error", err)
		return
	}

	if !w.primed {
		w.primed = true
		w.accounts, w.chainID = accounts, chainID
		return
	}

	chainChanged := w.chainID == nil || chainID.Cmp(w.chainID) != 0
	accountsChanged := !slices.Equal(accounts, w.accounts)
	w.accounts, w.chainID = accounts, chainID

	// a network switch resets the whole session, which covers any account change
	if chainChanged {
		if w.notify.ChainChanged != nil {
			w.notify.ChainChanged(chainID)
		}
		return
	}
	if accountsChanged && w.notify.AccountsChanged != nil {
		w.notify.AccountsChanged(accounts)
	}
}
