// Package chain connects the splitter controller to an Ethereum node: a
// keystore account that signs, an RPC client, the contract binding and a
// watcher that reports account and network changes.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/susu3304/expensesplitter/internal/splitter"
)

// ErrNoAccount means the keystore holds no usable account.
var ErrNoAccount = errors.New("no keystore account available")

// ErrWrongChain means the node is on another network than the one configured.
var ErrWrongChain = errors.New("wrong chain")

// NodeBackend is Backend plus the account reads a wallet needs.
type NodeBackend interface {
	Backend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type WalletConfig struct {
	RPCURL      string
	KeystoreDir string
	// Address selects the keystore account; empty means the first one.
	Address    string
	Passphrase string
	// AutoConnect unlocks the account on open so the session reconnects
	// without an explicit connect.
	AutoConnect bool
	// ChainID, when set, must match the node's chain.
	ChainID      int64
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Wallet is a keystore account on an RPC node.
type Wallet struct {
	backend    NodeBackend
	ks         *keystore.KeyStore
	account    accounts.Account
	passphrase string
	interval   time.Duration
	log        *slog.Logger
	closeFn    func()

	mu         sync.Mutex
	authorized bool
	chainID    *big.Int
}

// Open dials the node and selects the keystore account.
func Open(ctx context.Context, cfg WalletConfig) (*Wallet, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", cfg.RPCURL, err)
	}
	ks := keystore.NewKeyStore(cfg.KeystoreDir, keystore.StandardScryptN, keystore.StandardScryptP)
	account, err := SelectAccount(ks, cfg.Address)
	if err != nil {
		client.Close()
		return nil, err
	}
	w := NewWallet(client, ks, account, cfg)
	w.closeFn = client.Close
	if err := w.CheckChain(ctx, cfg.ChainID); err != nil {
		client.Close()
		return nil, err
	}
	if cfg.AutoConnect {
		if _, err := w.RequestAccounts(ctx); err != nil {
			w.log.Warn("auto connect failed", "account", account.Address.Hex(), "error", err)
		}
	}
	return w, nil
}

// SelectAccount finds address in ks, or the first account when address is empty.
func SelectAccount(ks *keystore.KeyStore, address string) (accounts.Account, error) {
	if address == "" {
		all := ks.Accounts()
		if len(all) == 0 {
			return accounts.Account{}, ErrNoAccount
		}
		return all[0], nil
	}
	if !common.IsHexAddress(address) {
		return accounts.Account{}, fmt.Errorf("invalid wallet address %q", address)
	}
	account, err := ks.Find(accounts.Account{Address: common.HexToAddress(address)})
	if err != nil {
		return accounts.Account{}, fmt.Errorf("%w: %s: %v", ErrNoAccount, address, err)
	}
	return account, nil
}

func NewWallet(backend NodeBackend, ks *keystore.KeyStore, account accounts.Account, cfg WalletConfig) *Wallet {
	w := &Wallet{
		backend:    backend,
		ks:         ks,
		account:    account,
		passphrase: cfg.Passphrase,
		interval:   cfg.PollInterval,
		log:        cfg.Logger,
	}
	if w.interval <= 0 {
		w.interval = 4 * time.Second
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	return w
}

func (w *Wallet) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// Account is the keystore account this wallet signs with.
func (w *Wallet) Account() common.Address { return w.account.Address }

// Accounts returns the account once it has been authorized and while its
// key file is still present.
func (w *Wallet) Accounts(context.Context) ([]common.Address, error) {
	w.mu.Lock()
	authorized := w.authorized
	w.mu.Unlock()
	if !authorized || !w.ks.HasAddress(w.account.Address) {
		return nil, nil
	}
	return []common.Address{w.account.Address}, nil
}

// RequestAccounts unlocks the key with the configured passphrase.
func (w *Wallet) RequestAccounts(context.Context) ([]common.Address, error) {
	if err := w.ks.Unlock(w.account, w.passphrase); err != nil {
		return nil, fmt.Errorf("unlock %s: %w", w.account.Address.Hex(), err)
	}
	w.mu.Lock()
	w.authorized = true
	w.mu.Unlock()
	return []common.Address{w.account.Address}, nil
}

// Disconnect locks the key again. The watcher reports it as an empty
// account list.
func (w *Wallet) Disconnect() error {
	w.mu.Lock()
	w.authorized = false
	w.mu.Unlock()
	return w.ks.Lock(w.account.Address)
}

func (w *Wallet) ChainID(ctx context.Context) (*big.Int, error) {
	id, err := w.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("chain id: %w", err)
	}
	w.mu.Lock()
	w.chainID = id
	w.mu.Unlock()
	return id, nil
}

// CheckChain fails when the node serves a chain other than want. Zero skips
// the check.
func (w *Wallet) CheckChain(ctx context.Context, want int64) error {
	if want == 0 {
		return nil
	}
	id, err := w.ChainID(ctx)
	if err != nil {
		return err
	}
	if !id.IsInt64() || id.Int64() != want {
		return fmt.Errorf("%w: node serves chain %s, network preset expects %d", ErrWrongChain, id, want)
	}
	return nil
}

func (w *Wallet) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := w.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", account.Hex(), err)
	}
	return bal, nil
}

// Bind returns a contract binding that signs as from through the keystore.
// Binding for another account yields a read-only binding.
func (w *Wallet) Bind(address, from common.Address) (splitter.Contract, error) {
	var auth *bind.TransactOpts
	if from == w.account.Address {
		chainID, err := w.signingChainID()
		if err != nil {
			return nil, err
		}
		auth, err = bind.NewKeyStoreTransactorWithChainID(w.ks, w.account, chainID)
		if err != nil {
			return nil, fmt.Errorf("keystore transactor: %w", err)
		}
	}
	c, err := NewContract(address, from, w.backend, auth)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (w *Wallet) signingChainID() (*big.Int, error) {
	w.mu.Lock()
	id := w.chainID
	w.mu.Unlock()
	if id != nil {
		return id, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return w.ChainID(ctx)
}

// Subscribe starts a watcher that polls the account list and network and
// calls n on every change.
func (w *Wallet) Subscribe(n splitter.Notifications) func() {
	watcher := newChangeWatcher(w, n, w.interval, w.log)
	watcher.start()
	return watcher.stop
}
