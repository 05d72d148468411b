package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/susu3304/expensesplitter/internal/splitter"
)

type scriptedSource struct {
	accounts []common.Address
	chainID  *big.Int
	err      error
}

func (s *scriptedSource) Accounts(context.Context) ([]common.Address, error) {
	return s.accounts, s.err
}

func (s *scriptedSource) ChainID(context.Context) (*big.Int, error) { return s.chainID, nil }

type recorded struct {
	accounts [][]common.Address
	chains   []*big.Int
}

func newTestWatcher(src changeSource) (*changeWatcher, *recorded) {
	rec := &recorded{}
	w := newChangeWatcher(src, splitter.Notifications{
		AccountsChanged: func(a []common.Address) { rec.accounts = append(rec.accounts, a) },
		ChainChanged:    func(id *big.Int) { rec.chains = append(rec.chains, id) },
	}, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return w, rec
}

func TestWatcherFirstTickOnlyPrimes(t *testing.T) {
	src := &scriptedSource{accounts: []common.Address{alice}, chainID: big.NewInt(1)}
	w, rec := newTestWatcher(src)

	w.tick(context.Background())
	w.tick(context.Background())

	assert.Empty(t, rec.accounts)
	assert.Empty(t, rec.chains)
}

func TestWatcherReportsAccountChanges(t *testing.T) {
	src := &scriptedSource{chainID: big.NewInt(1)}
	w, rec := newTestWatcher(src)
	w.tick(context.Background())

	src.accounts = []common.Address{alice}
	w.tick(context.Background())
	src.accounts = nil
	w.tick(context.Background())

	assert.Equal(t, [][]common.Address{{alice}, nil}, rec.accounts)
	assert.Empty(t, rec.chains)
}

func TestWatcherChainChangeWins(t *testing.T) {
	src := &scriptedSource{accounts: []common.Address{alice}, chainID: big.NewInt(1)}
	w, rec := newTestWatcher(src)
	w.tick(context.Background())

	src.accounts = []common.Address{bob}
	src.chainID = big.NewInt(11155111)
	w.tick(context.Background())

	assert.Empty(t, rec.accounts)
	if assert.Len(t, rec.chains, 1) {
		assert.Equal(t, int64(11155111), rec.chains[0].Int64())
	}
}

func TestWatcherSkipsFailedReads(t *testing.T) {
	src := &scriptedSource{accounts: []common.Address{alice}, chainID: big.NewInt(1)}
	w, rec := newTestWatcher(src)
	w.tick(context.Background())

	src.err = errors.New("node unavailable")
	src.accounts = nil
	w.tick(context.Background())
	assert.Empty(t, rec.accounts)

	src.err = nil
	w.tick(context.Background())
	assert.Len(t, rec.accounts, 1)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, _ := newTestWatcher(&scriptedSource{chainID: big.NewInt(1)})
	w.start()
	w.stop()
	w.stop()
}
