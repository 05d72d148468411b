package splitter

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	alice        = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob          = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	carol        = common.HexToAddress("0x00000000000000000000000000000000000ca401")
	contractAddr = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

func eth(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad number " + s)
	}
	return v
}

type fakeWallet struct {
	mu         sync.Mutex
	authorized []common.Address
	account    common.Address
	denyErr    error
	chainID    *big.Int
	balance    *big.Int
	contract   *fakeContract
	bindCalls  []common.Address
	calls      int
	notify     Notifications
	subscribed bool
	// disconnectErr is returned by Disconnect.
	disconnectErr error
}

func newFakeWallet(c *fakeContract) *fakeWallet {
	return &fakeWallet{
		account:  alice,
		chainID:  big.NewInt(11155111),
		balance:  eth("1234567890000000000"),
		contract: c,
	}
}

func (w *fakeWallet) Accounts(context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return append([]common.Address(nil), w.authorized...), nil
}

func (w *fakeWallet) RequestAccounts(context.Context) ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	if w.denyErr != nil {
		return nil, w.denyErr
	}
	w.authorized = []common.Address{w.account}
	return []common.Address{w.account}, nil
}

func (w *fakeWallet) ChainID(context.Context) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.chainID, nil
}

func (w *fakeWallet) BalanceAt(context.Context, common.Address) (*big.Int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.balance, nil
}

func (w *fakeWallet) Bind(address, from common.Address) (Contract, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.bindCalls = append(w.bindCalls, from)
	w.contract.setAddress(address)
	return w.contract, nil
}

func (w *fakeWallet) Subscribe(n Notifications) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.notify = n
	w.subscribed = true
	return func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		w.subscribed = false
	}
}

func (w *fakeWallet) Disconnect() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.disconnectErr != nil {
		return w.disconnectErr
	}
	w.authorized = nil
	return nil
}

func (w *fakeWallet) remoteCalls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls + len(w.bindCalls)
}

type fakeContract struct {
	mu      sync.Mutex
	address common.Address
	log     []string
	errs    map[string]error
	values  map[string]*big.Int
	members []common.Address
	ledger  map[common.Address]*big.Int
	owner   common.Address
	nonce   uint64
	status  uint64

	submitted []submission
	// confirmGate, when set, makes Confirm wait for it or for ctx.
	confirmGate    chan struct{}
	confirmStarted chan struct{}
}

type submission struct {
	method      string
	description string
	amount      *big.Int
	participant common.Address
}

func newFakeContract() *fakeContract {
	return &fakeContract{
		errs: make(map[string]error),
		values: map[string]*big.Int{
			"total_expenses":         eth("150000000000000000"),
			"expense_count":          big.NewInt(3),
			"get_participant_count":  big.NewInt(2),
			"check_contract_balance": eth("200000000000000000"),
			"get_my_balance":         eth("50000000000000000"),
			"calculate_equal_split":  eth("75000000000000000"),
		},
		members: []common.Address{alice, bob},
		ledger: map[common.Address]*big.Int{
			alice: eth("100000000000000000"),
			bob:   eth("50000000000000000"),
		},
		owner:  alice,
		status: types.ReceiptStatusSuccessful,
	}
}

func (c *fakeContract) setAddress(a common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = a
}

func (c *fakeContract) fail(method string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errs[method] = err
}

func (c *fakeContract) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.log...)
}

func (c *fakeContract) view(method string) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, method)
	if err := c.errs[method]; err != nil {
		return nil, err
	}
	return new(big.Int).Set(c.values[method]), nil
}

func (c *fakeContract) Address() common.Address {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address
}

func (c *fakeContract) ParticipantCount(context.Context) (*big.Int, error) {
	return c.view("get_participant_count")
}

func (c *fakeContract) EqualSplit(context.Context) (*big.Int, error) {
	return c.view("calculate_equal_split")
}

func (c *fakeContract) MyBalance(context.Context) (*big.Int, error) { return c.view("get_my_balance") }

func (c *fakeContract) ContractBalance(context.Context) (*big.Int, error) {
	return c.view("check_contract_balance")
}

func (c *fakeContract) TotalExpenses(context.Context) (*big.Int, error) {
	return c.view("total_expenses")
}

func (c *fakeContract) ExpenseCount(context.Context) (*big.Int, error) {
	return c.view("expense_count")
}

func (c *fakeContract) ParticipantAt(_ context.Context, index *big.Int) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, "get_participant_at")
	if err := c.errs["get_participant_at"]; err != nil {
		return common.Address{}, err
	}
	i := int(index.Int64())
	if i >= len(c.members) {
		return common.Address{}, errors.New("index out of range")
	}
	return c.members[i], nil
}

func (c *fakeContract) Participants(ctx context.Context, index *big.Int) (common.Address, error) {
	return c.ParticipantAt(ctx, index)
}

func (c *fakeContract) IsParticipant(_ context.Context, account common.Address) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, "is_participant")
	for _, m := range c.members {
		if m == account {
			return true, nil
		}
	}
	return false, nil
}

func (c *fakeContract) Balances(_ context.Context, account common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, "balances")
	if err := c.errs["balances"]; err != nil {
		return nil, err
	}
	if b, ok := c.ledger[account]; ok {
		return new(big.Int).Set(b), nil
	}
	return new(big.Int), nil
}

func (c *fakeContract) Owner(context.Context) (common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, "owner")
	if err := c.errs["owner"]; err != nil {
		return common.Address{}, err
	}
	return c.owner, nil
}

func (c *fakeContract) submit(s submission) (*types.Transaction, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = append(c.log, s.method)
	if err := c.errs[s.method]; err != nil {
		return nil, err
	}
	c.submitted = append(c.submitted, s)
	c.nonce++
	value := s.amount
	if s.method != "contribute" {
		value = nil
	}
	return types.NewTx(&types.LegacyTx{Nonce: c.nonce, To: &c.address, Value: value}), nil
}

func (c *fakeContract) RecordExpense(_ context.Context, description string, amount *big.Int) (*types.Transaction, error) {
	return c.submit(submission{method: "record_expense", description: description, amount: amount})
}

func (c *fakeContract) AddParticipant(_ context.Context, participant common.Address) (*types.Transaction, error) {
	return c.submit(submission{method: "add_participant", participant: participant})
}

func (c *fakeContract) Contribute(_ context.Context, value *big.Int) (*types.Transaction, error) {
	return c.submit(submission{method: "contribute", amount: value})
}

func (c *fakeContract) SettleExpenses(context.Context) (*types.Transaction, error) {
	return c.submit(submission{method: "settle_expenses"})
}

func (c *fakeContract) EmergencyWithdraw(context.Context) (*types.Transaction, error) {
	return c.submit(submission{method: "emergency_withdraw"})
}

func (c *fakeContract) Confirm(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	c.mu.Lock()
	c.log = append(c.log, "confirm")
	gate, started := c.confirmGate, c.confirmStarted
	err := c.errs["confirm"]
	status := c.status
	c.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return &types.Receipt{Status: status, TxHash: tx.Hash(), BlockNumber: big.NewInt(42), GasUsed: 51234}, nil
}

type memoryRecorder struct {
	mu      sync.Mutex
	records []TxRecord
	err     error
}

func (r *memoryRecorder) RecordTransaction(_ context.Context, rec TxRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.records = append(r.records, rec)
	return nil
}
