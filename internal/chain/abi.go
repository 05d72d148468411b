package chain

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// splitterABIJSON describes the expense splitter contract: four events,
// eleven read-only functions and five state-changing ones.
const splitterABIJSON = `[
	{"type":"event","name":"ExpenseRecorded","anonymous":false,"inputs":[
		{"name":"user","type":"address","indexed":true},
		{"name":"description","type":"string","indexed":false},
		{"name":"amount","type":"uint256","indexed":false},
		{"name":"timestamp","type":"uint256","indexed":false}]},
	{"type":"event","name":"ParticipantAdded","anonymous":false,"inputs":[
		{"name":"participant","type":"address","indexed":true},
		{"name":"added_by","type":"address","indexed":true}]},
	{"type":"event","name":"PaymentReceived","anonymous":false,"inputs":[
		{"name":"from_user","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"ExpenseSettled","anonymous":false,"inputs":[
		{"name":"user","type":"address","indexed":true},
		{"name":"amount","type":"uint256","indexed":false}]},

	{"type":"function","name":"get_participant_count","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"calculate_equal_split","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"get_my_balance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"check_contract_balance","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"get_participant_at","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"is_participant","stateMutability":"view","inputs":[{"name":"check_address","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"total_expenses","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"expense_count","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"participants","stateMutability":"view","inputs":[{"name":"arg0","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"balances","stateMutability":"view","inputs":[{"name":"arg0","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},

	{"type":"function","name":"record_expense","stateMutability":"nonpayable","inputs":[{"name":"description","type":"string"},{"name":"amount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"add_participant","stateMutability":"nonpayable","inputs":[{"name":"new_participant","type":"address"}],"outputs":[]},
	{"type":"function","name":"contribute","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"settle_expenses","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"emergency_withdraw","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

var parsedABI = sync.OnceValues(func() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(splitterABIJSON))
})

// SplitterABI returns the parsed contract interface.
func SplitterABI() (abi.ABI, error) {
	return parsedABI()
}
