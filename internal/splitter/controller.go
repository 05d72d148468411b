// Package splitter drives an expense splitter contract on behalf of one wallet
// session and writes what it learns onto a ui.Board.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/sync/errgroup"

	"github.com/susu3304/expensesplitter/internal/metrics"
	"github.com/susu3304/expensesplitter/internal/ui"
	"github.com/susu3304/expensesplitter/internal/units"
)

const (
	opConnect        = "connect"
	opDisconnect     = "disconnect"
	opLoadContract   = "load_contract"
	opRefresh        = "refresh"
	opRecordExpense  = "record_expense"
	opAddParticipant = "add_participant"
	opContribute     = "contribute"
	opSettle         = "settle"
)

// maxParticipants bounds the per-index reads of a single refresh.
const maxParticipants = 10_000

// DefaultInstallURL is offered when no wallet is configured.
const DefaultInstallURL = "https://geth.ethereum.org/docs/fundamentals/account-management"

type Config struct {
	// Wallet may be nil, in which case the controller stays in the
	// install-prompt state.
	Wallet     Wallet
	Board      *ui.Board
	Recorder   Recorder
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	InstallURL string
}

// Controller serializes operations; wallet notifications are handled
// alongside them and cancel whatever confirmation is still pending.
type Controller struct {
	wallet     Wallet
	board      *ui.Board
	recorder   Recorder
	metrics    *metrics.Metrics
	log        *slog.Logger
	installURL string

	opMu sync.Mutex

	mu            sync.Mutex
	state         State
	identity      common.Address
	chainID       *big.Int
	contract      Contract
	owner         common.Address
	snapshot      *Snapshot
	epoch         uint64
	session       context.Context
	cancelSession context.CancelFunc
	unsubscribe   func()
}

func New(cfg Config) *Controller {
	c := &Controller{
		wallet:     cfg.Wallet,
		board:      cfg.Board,
		recorder:   cfg.Recorder,
		metrics:    cfg.Metrics,
		log:        cfg.Logger,
		installURL: cfg.InstallURL,
	}
	if c.board == nil {
		c.board = ui.NewBoard()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.installURL == "" {
		c.installURL = DefaultInstallURL
	}
	c.session, c.cancelSession = context.WithCancel(context.Background())
	return c
}

func (c *Controller) Board() *ui.Board { return c.board }

// Initialize prepares the session. Without a wallet the connect action turns
// into an install prompt; with one, the change notifications are subscribed
// and an already authorized account is connected silently.
func (c *Controller) Initialize(ctx context.Context) {
	if c.wallet == nil {
		c.log.Warn("no wallet configured, connect disabled")
		c.board.SetConnectAction(ui.ConnectAction{Mode: "install", Label: "Set Up Wallet", URL: c.installURL})
		c.board.Alert(ui.AlertConnect, "No wallet is configured. Set up a keystore account to use this app.", ui.AlertError)
		return
	}
	unsubscribe := c.wallet.Subscribe(Notifications{
		AccountsChanged: c.HandleAccountsChanged,
		ChainChanged:    c.HandleChainChanged,
	})
	c.mu.Lock()
	c.unsubscribe = unsubscribe
	c.mu.Unlock()
	c.reconnectIfAuthorized(ctx)
}

// Close drops the wallet subscription and abandons any pending wait.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.cancelSession()
}

func (c *Controller) reconnectIfAuthorized(ctx context.Context) {
	accounts, err := c.wallet.Accounts(ctx)
	if err != nil {
		c.log.Warn("reading authorized accounts failed", "error", err)
		return
	}
	if len(accounts) > 0 {
		_, _ = c.Connect(ctx)
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status reports identity, network and binding.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{State: c.state.String()}
	if c.state != Unconnected {
		id := c.identity
		s.Identity = &id
		if c.chainID != nil {
			s.ChainID = new(big.Int).Set(c.chainID)
		}
	}
	if c.contract != nil {
		addr := c.contract.Address()
		owner := c.owner
		s.Contract = &addr
		s.Owner = &owner
	}
	return s
}

// Snapshot returns the last successful refresh, or nil.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

// ContractAddress returns the bound contract, if any.
func (c *Controller) ContractAddress() (common.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contract == nil {
		return common.Address{}, false
	}
	return c.contract.Address(), true
}

// ReportUnexpected surfaces a fault that escaped every operation boundary.
func (c *Controller) ReportUnexpected(v any) {
	c.log.Error("unexpected fault", "fault", v)
	c.board.Alert(ui.AlertContract, "An unexpected error occurred", ui.AlertError)
}

// HandleAccountsChanged follows the wallet's account list: an empty list
// resets the session, a different first account reconnects as that account.
func (c *Controller) HandleAccountsChanged(accounts []common.Address) {
	c.mu.Lock()
	state, identity := c.state, c.identity
	c.mu.Unlock()
	if len(accounts) == 0 {
		// Disconnect already reset the session.
		if state == Unconnected {
			return
		}
		c.reload("accounts_empty", "Wallet disconnected")
		return
	}
	if state != Unconnected && identity == accounts[0] {
		return
	}
	c.log.Info("wallet account changed", "account", accounts[0].Hex())
	c.abandonInFlight()
	_, _ = c.Connect(context.Background())
}

// HandleChainChanged resets the session; bindings do not carry over to
// another network.
func (c *Controller) HandleChainChanged(chainID *big.Int) {
	c.log.Info("wallet network changed", "chain_id", chainID)
	c.reload("chain_changed", "Network changed, session reset")
}

// reload is the equivalent of reopening the app: full reset, then the silent
// reconnect that Initialize performs.
func (c *Controller) reload(cause, message string) {
	c.reset(cause, message)
	if c.wallet != nil {
		c.reconnectIfAuthorized(context.Background())
	}
}

func (c *Controller) reset(cause, message string) {
	c.mu.Lock()
	c.epoch++
	c.cancelSession()
	c.session, c.cancelSession = context.WithCancel(context.Background())
	c.state = Unconnected
	c.identity = common.Address{}
	c.chainID = nil
	c.contract = nil
	c.owner = common.Address{}
	c.snapshot = nil
	c.board.Reset()
	c.mu.Unlock()

	c.metrics.SessionReset(cause)
	c.log.Info("session reset", "cause", cause)
	c.board.Alert(ui.AlertContract, message, ui.AlertInfo)
}

// abandonInFlight cancels pending work without dropping the session.
func (c *Controller) abandonInFlight() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	c.cancelSession()
	c.session, c.cancelSession = context.WithCancel(context.Background())
}

// begin derives an operation context that also ends when the session resets.
func (c *Controller) begin(ctx context.Context) (context.Context, uint64, func()) {
	c.mu.Lock()
	session, epoch := c.session, c.epoch
	c.mu.Unlock()

	opCtx, cancel := context.WithCancelCause(ctx)
	stop := context.AfterFunc(session, func() { cancel(errSessionReset) })
	return opCtx, epoch, func() {
		stop()
		cancel(nil)
	}
}

// commit runs fn under the state lock unless the session moved on since epoch.
func (c *Controller) commit(epoch uint64, fn func()) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return false
	}
	fn()
	return true
}

// finish reports the outcome of an operation on its alert region.
func (c *Controller) finish(op, region, success string, started time.Time, err error) {
	c.metrics.ObserveOperation(op, KindName(err), time.Since(started))
	if err != nil {
		c.log.Error("operation failed", "op", op, "kind", KindName(err), "error", err)
		c.board.Alert(region, Display(err), ui.AlertError)
		return
	}
	c.log.Info("operation succeeded", "op", op)
	if success != "" {
		c.board.Alert(region, success, ui.AlertSuccess)
	}
}

// cause prefers the cancellation cause so a reset reads as such.
func cause(ctx context.Context, err error) error {
	if c := context.Cause(ctx); c != nil && errors.Is(err, context.Canceled) {
		return c
	}
	return err
}

// Connect authorizes the wallet account, records it as the identity and
// shows its native balance.
func (c *Controller) Connect(ctx context.Context) (common.Address, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	done := c.board.BeginLoading()
	defer done()

	started := time.Now()
	addr, err := c.connect(ctx)
	c.finish(opConnect, ui.AlertConnect, "Wallet connected successfully!", started, err)
	return addr, err
}

func (c *Controller) connect(ctx context.Context) (common.Address, error) {
	if c.wallet == nil {
		return common.Address{}, connectionError(opConnect, errors.New("no wallet configured"))
	}
	opCtx, epoch, end := c.begin(ctx)
	defer end()

	accounts, err := c.wallet.RequestAccounts(opCtx)
	if err != nil {
		return common.Address{}, connectionError(opConnect, cause(opCtx, err))
	}
	if len(accounts) == 0 {
		return common.Address{}, connectionError(opConnect, errors.New("no account was authorized"))
	}
	identity := accounts[0]
	chainID, err := c.wallet.ChainID(opCtx)
	if err != nil {
		return common.Address{}, connectionError(opConnect, cause(opCtx, err))
	}
	balance, err := c.wallet.BalanceAt(opCtx, identity)
	if err != nil {
		return common.Address{}, connectionError(opConnect, cause(opCtx, err))
	}

	var rebind common.Address
	needsRebind := false
	ok := c.commit(epoch, func() {
		if c.contract != nil && c.identity != identity {
			rebind, needsRebind = c.contract.Address(), true
		}
		c.identity = identity
		c.chainID = chainID
		if c.state == Unconnected {
			c.state = Connected
		}
		c.board.Show(ui.SectionConnectButton, false)
		c.board.Show(ui.SectionWalletInfo, true)
		c.board.SetTexts(map[string]string{
			ui.RegionWalletAddress: ShortAddress(identity),
			ui.RegionWalletBalance: units.DisplayEther(balance) + " ETH",
		})
	})
	if !ok {
		return common.Address{}, connectionError(opConnect, errSessionReset)
	}
	c.log.Info("wallet connected", "account", identity.Hex(), "chain_id", chainID)

	if needsRebind {
		if err := c.rebind(opCtx, epoch, rebind, identity); err != nil {
			c.log.Error("rebinding contract to new account failed", "contract", rebind.Hex(), "error", err)
		}
	}
	return identity, nil
}

// Disconnect revokes the wallet authorization and resets the session the way
// an emptied account list does.
func (c *Controller) Disconnect(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	started := time.Now()
	err := c.disconnect()
	c.finish(opDisconnect, ui.AlertConnect, "", started, err)
	return err
}

func (c *Controller) disconnect() error {
	if c.wallet == nil {
		return connectionError(opDisconnect, errors.New("no wallet configured"))
	}
	if err := c.wallet.Disconnect(); err != nil {
		return &Error{Kind: ErrConnection, Op: opDisconnect, Message: "Failed to disconnect wallet: " + err.Error(), Err: err}
	}
	c.reset("disconnected", "Wallet disconnected")
	return nil
}

// rebind moves the loaded contract over to a new signing account and
// re-reads its values, since the caller balance depends on the account.
func (c *Controller) rebind(ctx context.Context, epoch uint64, address, from common.Address) error {
	contract, err := c.wallet.Bind(address, from)
	if err != nil {
		c.commit(epoch, func() { c.dropContractLocked() })
		return err
	}
	c.commit(epoch, func() { c.contract = contract })
	if err := c.refresh(ctx, epoch); err != nil {
		c.board.Alert(ui.AlertContract, Display(err), ui.AlertError)
		return err
	}
	return nil
}

func (c *Controller) dropContractLocked() {
	c.contract = nil
	c.owner = common.Address{}
	c.snapshot = nil
	c.state = Connected
	c.board.Show(ui.SectionContractInfo, false)
	c.board.Show(ui.SectionParticipants, false)
	c.board.Show(ui.SectionHistory, false)
}

// LoadContract validates address, binds it, checks it answers owner() and on
// success reveals the contract sections and refreshes. An unreachable contract
// leaves any previous binding in place; a failed refresh does not fail the
// load.
func (c *Controller) LoadContract(ctx context.Context, address string) (common.Address, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	started := time.Now()
	addr, err := c.loadContract(ctx, address)
	c.finish(opLoadContract, ui.AlertContract, "Contract loaded successfully!", started, err)
	return addr, err
}

func (c *Controller) loadContract(ctx context.Context, address string) (common.Address, error) {
	raw := strings.TrimSpace(address)
	if raw == "" {
		return common.Address{}, validationError(opLoadContract, "Please enter a contract address")
	}
	addr, err := ParseAddress(raw)
	if err != nil {
		return common.Address{}, validationError(opLoadContract, "Invalid contract address format")
	}

	c.mu.Lock()
	state, identity := c.state, c.identity
	c.mu.Unlock()
	if state == Unconnected || c.wallet == nil {
		return common.Address{}, &Error{Kind: ErrConnection, Op: opLoadContract, Message: "Please connect your wallet first"}
	}

	done := c.board.BeginLoading()
	defer done()
	opCtx, epoch, end := c.begin(ctx)
	defer end()

	contract, err := c.wallet.Bind(addr, identity)
	if err != nil {
		return common.Address{}, unreachableError(opLoadContract, err)
	}
	owner, err := contract.Owner(opCtx)
	if err != nil {
		return common.Address{}, unreachableError(opLoadContract, cause(opCtx, err))
	}
	c.log.Info("contract loaded", "contract", addr.Hex(), "owner", owner.Hex())

	ok := c.commit(epoch, func() {
		c.contract = contract
		c.owner = owner
		c.snapshot = nil
		c.state = ContractLoaded
		c.board.Show(ui.SectionContractInfo, true)
		c.board.Show(ui.SectionParticipants, true)
		c.board.Show(ui.SectionHistory, true)
	})
	if !ok {
		return common.Address{}, unreachableError(opLoadContract, errSessionReset)
	}
	// A failed first refresh keeps the binding; the figures stay empty until
	// the next refresh succeeds.
	refreshed := time.Now()
	if err := c.refresh(opCtx, epoch); err != nil {
		if errors.Is(err, errSessionReset) {
			return common.Address{}, unreachableError(opLoadContract, errSessionReset)
		}
		c.metrics.ObserveOperation(opRefresh, KindName(err), time.Since(refreshed))
		c.log.Warn("refresh after load failed", "contract", addr.Hex(), "error", err)
	}
	return addr, nil
}

// Refresh re-reads the six contract values and the participant list. Either
// everything is replaced or nothing is.
func (c *Controller) Refresh(ctx context.Context) (*Snapshot, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	started := time.Now()
	opCtx, epoch, end := c.begin(ctx)
	defer end()
	err := c.refresh(opCtx, epoch)
	c.finish(opRefresh, ui.AlertContract, "", started, err)
	if err != nil {
		return nil, err
	}
	return c.Snapshot(), nil
}

func (c *Controller) refresh(ctx context.Context, epoch uint64) error {
	var contract Contract
	ok := c.commit(epoch, func() {
		contract = c.contract
		if contract != nil && c.state == ContractLoaded {
			c.state = Refreshing
		}
	})
	if !ok {
		return queryError(opRefresh, errSessionReset)
	}
	if contract == nil {
		return noContractError(opRefresh)
	}
	defer c.commit(epoch, func() {
		if c.state == Refreshing {
			c.state = ContractLoaded
		}
	})

	done := c.board.BeginLoading()
	defer done()

	snap, err := readSnapshot(ctx, contract)
	if err != nil {
		return queryError(opRefresh, cause(ctx, err))
	}

	rows := make([]ui.ParticipantRow, 0, len(snap.Participants))
	for _, p := range snap.Participants {
		rows = append(rows, ui.ParticipantRow{Address: p.Address.Hex(), Balance: units.DisplayEther(p.Balance) + " ETH"})
	}
	ok = c.commit(epoch, func() {
		c.snapshot = snap
		c.board.SetTexts(map[string]string{
			ui.RegionTotalExpenses:    units.DisplayEther(snap.TotalExpenses) + " ETH",
			ui.RegionExpenseCount:     snap.ExpenseCount.String(),
			ui.RegionParticipantCount: snap.ParticipantCount.String(),
			ui.RegionContractBalance:  units.DisplayEther(snap.ContractBalance) + " ETH",
			ui.RegionYourBalance:      units.DisplayEther(snap.CallerBalance) + " ETH",
			ui.RegionEqualSplit:       units.DisplayEther(snap.EqualSplit) + " ETH",
		})
		c.board.SetParticipants(rows)
	})
	if !ok {
		return queryError(opRefresh, errSessionReset)
	}
	c.metrics.SetParticipants(len(rows))
	return nil
}

// readSnapshot issues the six view calls concurrently, then walks the
// participant list by index.
func readSnapshot(ctx context.Context, contract Contract) (*Snapshot, error) {
	snap := &Snapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.TotalExpenses, err = contract.TotalExpenses(gctx)
		return wrapRead("total_expenses", err)
	})
	g.Go(func() (err error) {
		snap.ExpenseCount, err = contract.ExpenseCount(gctx)
		return wrapRead("expense_count", err)
	})
	g.Go(func() (err error) {
		snap.ParticipantCount, err = contract.ParticipantCount(gctx)
		return wrapRead("get_participant_count", err)
	})
	g.Go(func() (err error) {
		snap.ContractBalance, err = contract.ContractBalance(gctx)
		return wrapRead("check_contract_balance", err)
	})
	g.Go(func() (err error) {
		snap.CallerBalance, err = contract.MyBalance(gctx)
		return wrapRead("get_my_balance", err)
	})
	g.Go(func() (err error) {
		snap.EqualSplit, err = contract.EqualSplit(gctx)
		return wrapRead("calculate_equal_split", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	count := snap.ParticipantCount
	if count.Sign() < 0 || !count.IsInt64() || count.Int64() > maxParticipants {
		return nil, fmt.Errorf("participant count %s out of range", count)
	}
	n := int(count.Int64())
	snap.Participants = make([]ParticipantBalance, 0, n)
	for i := 0; i < n; i++ {
		addr, err := contract.ParticipantAt(ctx, big.NewInt(int64(i)))
		if err != nil {
			return nil, wrapRead("get_participant_at", err)
		}
		bal, err := contract.Balances(ctx, addr)
		if err != nil {
			return nil, wrapRead("balances", err)
		}
		snap.Participants = append(snap.Participants, ParticipantBalance{Address: addr, Balance: bal})
	}
	snap.ReadAt = time.Now()
	return snap, nil
}

func wrapRead(method string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", method, err)
}

// TxResult is what a confirmed state-changing call produced.
type TxResult struct {
	Hash    common.Hash `json:"hash"`
	Block   uint64      `json:"block"`
	GasUsed uint64      `json:"gas_used"`
}

// boundContract returns the binding or NoContractError.
func (c *Controller) boundContract(op string) (Contract, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.contract == nil {
		return nil, noContractError(op)
	}
	return c.contract, nil
}

// RecordExpense submits record_expense(description, amount) and waits for it.
func (c *Controller) RecordExpense(ctx context.Context, description, amount string) (*TxResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	started := time.Now()
	res, err := c.recordExpense(ctx, description, amount)
	c.finish(opRecordExpense, ui.AlertExpense, "Expense recorded successfully!", started, err)
	return res, err
}

func (c *Controller) recordExpense(ctx context.Context, description, amount string) (*TxResult, error) {
	contract, err := c.boundContract(opRecordExpense)
	if err != nil {
		return nil, err
	}
	description, amount = strings.TrimSpace(description), strings.TrimSpace(amount)
	if description == "" || amount == "" {
		return nil, validationError(opRecordExpense, "Please fill all fields")
	}
	wei, err := parseAmount(opRecordExpense, amount)
	if err != nil {
		return nil, err
	}
	rec := TxRecord{Kind: TxRecordExpense, Amount: wei, Description: description}
	return c.transact(ctx, opRecordExpense, "record expense", contract, rec,
		[]string{ui.InputExpenseDesc, ui.InputExpenseAmount},
		func(ctx context.Context) (*types.Transaction, error) {
			return contract.RecordExpense(ctx, description, wei)
		})
}

// AddParticipant submits add_participant(address) and waits for it.
func (c *Controller) AddParticipant(ctx context.Context, address string) (*TxResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	started := time.Now()
	res, err := c.addParticipant(ctx, address)
	c.finish(opAddParticipant, ui.AlertParticipant, "Participant added successfully!", started, err)
	return res, err
}

func (c *Controller) addParticipant(ctx context.Context, address string) (*TxResult, error) {
	contract, err := c.boundContract(opAddParticipant)
	if err != nil {
		return nil, err
	}
	raw := strings.TrimSpace(address)
	if raw == "" {
		return nil, validationError(opAddParticipant, "Please enter participant address")
	}
	participant, err := ParseAddress(raw)
	if err != nil {
		return nil, validationError(opAddParticipant, "Invalid address format")
	}
	rec := TxRecord{Kind: TxAddParticipant, Participant: &participant}
	return c.transact(ctx, opAddParticipant, "add participant", contract, rec,
		[]string{ui.InputParticipantAddress},
		func(ctx context.Context) (*types.Transaction, error) {
			return contract.AddParticipant(ctx, participant)
		})
}

// Contribute submits contribute() carrying amount as the payment value.
func (c *Controller) Contribute(ctx context.Context, amount string) (*TxResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	started := time.Now()
	res, err := c.contribute(ctx, amount)
	c.finish(opContribute, ui.AlertContribute, "Contribution successful!", started, err)
	return res, err
}

func (c *Controller) contribute(ctx context.Context, amount string) (*TxResult, error) {
	contract, err := c.boundContract(opContribute)
	if err != nil {
		return nil, err
	}
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, validationError(opContribute, "Please enter contribution amount")
	}
	wei, err := parseAmount(opContribute, amount)
	if err != nil {
		return nil, err
	}
	rec := TxRecord{Kind: TxContribute, Amount: wei}
	return c.transact(ctx, opContribute, "contribute", contract, rec,
		[]string{ui.InputContributeAmount},
		func(ctx context.Context) (*types.Transaction, error) {
			return contract.Contribute(ctx, wei)
		})
}

// Settle submits settle_expenses() and waits for it.
func (c *Controller) Settle(ctx context.Context) (*TxResult, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	started := time.Now()
	res, err := c.settle(ctx)
	c.finish(opSettle, ui.AlertSettle, "Expenses settled successfully!", started, err)
	return res, err
}

func (c *Controller) settle(ctx context.Context) (*TxResult, error) {
	contract, err := c.boundContract(opSettle)
	if err != nil {
		return nil, err
	}
	rec := TxRecord{Kind: TxSettleExpenses}
	return c.transact(ctx, opSettle, "settle expenses", contract, rec, nil,
		func(ctx context.Context) (*types.Transaction, error) {
			return contract.SettleExpenses(ctx)
		})
}

func parseAmount(op, amount string) (*big.Int, error) {
	wei, err := units.ParsePositiveEther(amount)
	switch {
	case errors.Is(err, units.ErrNonPositive):
		return nil, validationError(op, "Amount must be greater than zero")
	case err != nil:
		return nil, validationError(op, "Invalid amount: "+amount)
	}
	return wei, nil
}

// transact submits, waits for inclusion, records the receipt, clears the
// inputs and refreshes. A refresh failure after a confirmed transaction is
// reported on the contract status region and does not fail the operation.
func (c *Controller) transact(ctx context.Context, op, action string, contract Contract, rec TxRecord, inputs []string, submit func(context.Context) (*types.Transaction, error)) (*TxResult, error) {
	done := c.board.BeginLoading()
	defer done()
	opCtx, epoch, end := c.begin(ctx)
	defer end()

	tx, err := submit(opCtx)
	if err != nil {
		return nil, transactionError(op, action, cause(opCtx, err))
	}
	c.log.Info("transaction submitted", "op", op, "tx", tx.Hash().Hex())

	sent := time.Now()
	receipt, err := contract.Confirm(opCtx, tx)
	if err != nil {
		return nil, transactionError(op, action, cause(opCtx, err))
	}
	c.metrics.ObserveConfirmation(string(rec.Kind), time.Since(sent))
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, transactionError(op, action, fmt.Errorf("transaction %s reverted", tx.Hash().Hex()))
	}

	res := &TxResult{Hash: tx.Hash(), GasUsed: receipt.GasUsed}
	if receipt.BlockNumber != nil {
		res.Block = receipt.BlockNumber.Uint64()
	}
	c.record(opCtx, contract, rec, res)

	if ok := c.commit(epoch, func() { c.board.ClearInputs(inputs...) }); !ok {
		return res, nil
	}
	if err := c.refresh(opCtx, epoch); err != nil {
		c.log.Error("refresh after transaction failed", "op", op, "error", err)
		c.board.Alert(ui.AlertContract, Display(err), ui.AlertError)
	}
	return res, nil
}

func (c *Controller) record(ctx context.Context, contract Contract, rec TxRecord, res *TxResult) {
	if c.recorder == nil {
		return
	}
	c.mu.Lock()
	rec.From = c.identity
	if c.chainID != nil {
		rec.ChainID = c.chainID.Uint64()
	}
	c.mu.Unlock()
	rec.Contract = contract.Address()
	rec.Hash = res.Hash
	rec.Block = res.Block
	rec.GasUsed = res.GasUsed
	rec.ConfirmedAt = time.Now().UTC()
	if err := c.recorder.RecordTransaction(context.WithoutCancel(ctx), rec); err != nil {
		c.log.Warn("recording transaction failed", "tx", res.Hash.Hex(), "error", err)
	}
}
