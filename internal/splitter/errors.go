package splitter

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	ErrValidation          = errors.New("validation error")
	ErrConnection          = errors.New("connection error")
	ErrContractUnreachable = errors.New("contract unreachable")
	ErrNoContract          = errors.New("no contract loaded")
	ErrQuery               = errors.New("query error")
	ErrTransaction         = errors.New("transaction error")
)

// errSessionReset cancels work that outlived an account or network change.
var errSessionReset = errors.New("wallet session was reset")

// Error is returned by every controller operation. Message is the text shown
// to the user; Err is the underlying cause, if any.
type Error struct {
	Kind    error
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Display returns the user-facing text for err. Errors that did not come out
// of the controller are reported generically.
func Display(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "An unexpected error occurred"
}

// KindName is a short stable label for err's kind, used by metrics and adapters.
func KindName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConnection):
		return "connection"
	case errors.Is(err, ErrContractUnreachable):
		return "contract_unreachable"
	case errors.Is(err, ErrNoContract):
		return "no_contract"
	case errors.Is(err, ErrQuery):
		return "query"
	case errors.Is(err, ErrTransaction):
		return "transaction"
	default:
		return "unexpected"
	}
}

func validationError(op, msg string) error {
	return &Error{Kind: ErrValidation, Op: op, Message: msg}
}

func noContractError(op string) error {
	return &Error{Kind: ErrNoContract, Op: op, Message: "Please load a contract first"}
}

func connectionError(op string, err error) error {
	return &Error{Kind: ErrConnection, Op: op, Message: "Failed to connect wallet: " + err.Error(), Err: err}
}

func unreachableError(op string, err error) error {
	return &Error{
		Kind:    ErrContractUnreachable,
		Op:      op,
		Message: "Failed to connect to contract. Please check the address.",
		Err:     err,
	}
}

func queryError(op string, err error) error {
	return &Error{Kind: ErrQuery, Op: op, Message: "Failed to refresh data: " + err.Error(), Err: err}
}

func transactionError(op, action string, err error) error {
	return &Error{Kind: ErrTransaction, Op: op, Message: "Failed to " + action + ": " + err.Error(), Err: err}
}
