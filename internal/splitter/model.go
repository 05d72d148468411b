package splitter

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Wallet is the signing connection to a node: the accounts it has authorized,
// the network it is on and the notifications it emits when either changes.
type Wallet interface {
	// Accounts lists accounts that are already authorized, without prompting.
	Accounts(ctx context.Context) ([]common.Address, error)
	// RequestAccounts authorizes the wallet's account and returns it first.
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	// Bind pairs the expense splitter interface with address, sending
	// transactions as from.
	Bind(address, from common.Address) (Contract, error)
	Subscribe(n Notifications) (unsubscribe func())
	// Disconnect revokes the authorization granted by RequestAccounts.
	Disconnect() error
}

// Notifications are the wallet change callbacks. Either may be nil.
type Notifications struct {
	AccountsChanged func(accounts []common.Address)
	ChainChanged    func(chainID *big.Int)
}

// Contract is the expense splitter's on-chain interface.
type Contract interface {
	Address() common.Address

	ParticipantCount(ctx context.Context) (*big.Int, error)
	EqualSplit(ctx context.Context) (*big.Int, error)
	MyBalance(ctx context.Context) (*big.Int, error)
	ContractBalance(ctx context.Context) (*big.Int, error)
	ParticipantAt(ctx context.Context, index *big.Int) (common.Address, error)
	IsParticipant(ctx context.Context, account common.Address) (bool, error)
	TotalExpenses(ctx context.Context) (*big.Int, error)
	ExpenseCount(ctx context.Context) (*big.Int, error)
	Participants(ctx context.Context, index *big.Int) (common.Address, error)
	Balances(ctx context.Context, account common.Address) (*big.Int, error)
	Owner(ctx context.Context) (common.Address, error)

	RecordExpense(ctx context.Context, description string, amount *big.Int) (*types.Transaction, error)
	AddParticipant(ctx context.Context, participant common.Address) (*types.Transaction, error)
	Contribute(ctx context.Context, value *big.Int) (*types.Transaction, error)
	SettleExpenses(ctx context.Context) (*types.Transaction, error)
	EmergencyWithdraw(ctx context.Context) (*types.Transaction, error)

	// Confirm blocks until tx is included and returns its receipt.
	Confirm(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Recorder stores confirmed transactions.
type Recorder interface {
	RecordTransaction(ctx context.Context, rec TxRecord) error
}

// Recorders hands each record to every recorder in turn and joins their errors.
type Recorders []Recorder

func (rs Recorders) RecordTransaction(ctx context.Context, rec TxRecord) error {
	var errs []error
	for _, r := range rs {
		if err := r.RecordTransaction(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// State is the controller's connection lifecycle.
type State int

const (
	Unconnected State = iota
	Connected
	ContractLoaded
	Refreshing
)

func (s State) String() string {
	switch s {
	case Unconnected:
		return "unconnected"
	case Connected:
		return "connected"
	case ContractLoaded:
		return "contract_loaded"
	case Refreshing:
		return "refreshing"
	default:
		return "unknown"
	}
}

// Snapshot is everything a refresh reads. It is rebuilt on every refresh.
type Snapshot struct {
	TotalExpenses    *big.Int
	ExpenseCount     *big.Int
	ParticipantCount *big.Int
	ContractBalance  *big.Int
	CallerBalance    *big.Int
	EqualSplit       *big.Int
	Participants     []ParticipantBalance
	ReadAt           time.Time
}

type ParticipantBalance struct {
	Address common.Address
	Balance *big.Int
}

// TxKind names a state-changing contract call.
type TxKind string

const (
	TxRecordExpense     TxKind = "record_expense"
	TxAddParticipant    TxKind = "add_participant"
	TxContribute        TxKind = "contribute"
	TxSettleExpenses    TxKind = "settle_expenses"
	TxEmergencyWithdraw TxKind = "emergency_withdraw"
)

// TxRecord describes a confirmed transaction.
type TxRecord struct {
	ID          string          `json:"id"`
	ChainID     uint64          `json:"chain_id"`
	Contract    common.Address  `json:"contract"`
	Kind        TxKind          `json:"kind"`
	Hash        common.Hash     `json:"hash"`
	From        common.Address  `json:"from"`
	Amount      *big.Int        `json:"amount,omitempty"`
	Description string          `json:"description,omitempty"`
	Participant *common.Address `json:"participant,omitempty"`
	Block       uint64          `json:"block"`
	GasUsed     uint64          `json:"gas_used"`
	ConfirmedAt time.Time       `json:"confirmed_at"`
}

// Status is the controller's externally visible session state.
type Status struct {
	State    string          `json:"state"`
	Identity *common.Address `json:"identity,omitempty"`
	ChainID  *big.Int        `json:"chain_id,omitempty"`
	Contract *common.Address `json:"contract,omitempty"`
	Owner    *common.Address `json:"owner,omitempty"`
}
