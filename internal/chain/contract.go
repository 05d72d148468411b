package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Backend is the node surface a contract binding needs. *ethclient.Client
// satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Contract is an expense splitter binding that reads as, and signs for, one
// account.
type Contract struct {
	address common.Address
	from    common.Address
	bound   *bind.BoundContract
	backend Backend
	auth    *bind.TransactOpts
}

// NewContract binds address. auth may be nil for a read-only binding, in
// which case every state-changing call fails.
func NewContract(address, from common.Address, backend Backend, auth *bind.TransactOpts) (*Contract, error) {
	parsed, err := SplitterABI()
	if err != nil {
		return nil, fmt.Errorf("parse contract abi: %w", err)
	}
	return &Contract{
		address: address,
		from:    from,
		bound:   bind.NewBoundContract(address, parsed, backend, backend, backend),
		backend: backend,
		auth:    auth,
	}, nil
}

func (c *Contract) Address() common.Address { return c.address }

func (c *Contract) call(ctx context.Context, method string, args ...interface{}) (interface{}, error) {
	var out []interface{}
	opts := &bind.CallOpts{Context: ctx, From: c.from}
	if err := c.bound.Call(opts, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out[0], nil
}

func (c *Contract) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	v, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return *abi.ConvertType(v, new(*big.Int)).(**big.Int), nil
}

func (c *Contract) callAddress(ctx context.Context, method string, args ...interface{}) (common.Address, error) {
	v, err := c.call(ctx, method, args...)
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(v, new(common.Address)).(*common.Address), nil
}

func (c *Contract) ParticipantCount(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "get_participant_count")
}

func (c *Contract) EqualSplit(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "calculate_equal_split")
}

// MyBalance is get_my_balance() as seen by the bound account.
func (c *Contract) MyBalance(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "get_my_balance")
}

func (c *Contract) ContractBalance(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "check_contract_balance")
}

func (c *Contract) ParticipantAt(ctx context.Context, index *big.Int) (common.Address, error) {
	return c.callAddress(ctx, "get_participant_at", index)
}

func (c *Contract) IsParticipant(ctx context.Context, account common.Address) (bool, error) {
	v, err := c.call(ctx, "is_participant", account)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(v, new(bool)).(*bool), nil
}

func (c *Contract) TotalExpenses(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "total_expenses")
}

func (c *Contract) ExpenseCount(ctx context.Context) (*big.Int, error) {
	return c.callUint(ctx, "expense_count")
}

func (c *Contract) Participants(ctx context.Context, index *big.Int) (common.Address, error) {
	return c.callAddress(ctx, "participants", index)
}

func (c *Contract) Balances(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.callUint(ctx, "balances", account)
}

func (c *Contract) Owner(ctx context.Context) (common.Address, error) {
	return c.callAddress(ctx, "owner")
}

func (c *Contract) transact(ctx context.Context, value *big.Int, method string, args ...interface{}) (*types.Transaction, error) {
	if c.auth == nil {
		return nil, fmt.Errorf("%s: binding is read-only", method)
	}
	opts := *c.auth
	opts.Context = ctx
	opts.Value = value
	tx, err := c.bound.Transact(&opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return tx, nil
}

func (c *Contract) RecordExpense(ctx context.Context, description string, amount *big.Int) (*types.Transaction, error) {
	return c.transact(ctx, nil, "record_expense", description, amount)
}

func (c *Contract) AddParticipant(ctx context.Context, participant common.Address) (*types.Transaction, error) {
	return c.transact(ctx, nil, "add_participant", participant)
}

// Contribute sends value along with contribute().
func (c *Contract) Contribute(ctx context.Context, value *big.Int) (*types.Transaction, error) {
	return c.transact(ctx, value, "contribute")
}

func (c *Contract) SettleExpenses(ctx context.Context) (*types.Transaction, error) {
	return c.transact(ctx, nil, "settle_expenses")
}

// EmergencyWithdraw is owner-only on chain.
func (c *Contract) EmergencyWithdraw(ctx context.Context) (*types.Transaction, error) {
	return c.transact(ctx, nil, "emergency_withdraw")
}

// Confirm polls for the receipt of tx until it is mined or ctx ends.
func (c *Contract) Confirm(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	return receipt, nil
}
