package commands

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/susu3304/expensesplitter/internal/config"
	"github.com/susu3304/expensesplitter/internal/splitter"
	"github.com/susu3304/expensesplitter/internal/ui"
)

var (
	wallet   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	contract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

type recordedResponder struct {
	mu        sync.Mutex
	responses []*discordgo.InteractionResponse
	edits     []string
	mentions  []*discordgo.MessageAllowedMentions
	respErr   error
}

func (r *recordedResponder) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	return r.respErr
}

func (r *recordedResponder) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, *edit.Content)
	r.mentions = append(r.mentions, edit.AllowedMentions)
	return &discordgo.Message{}, nil
}

func (r *recordedResponder) lastReply(t *testing.T) string {
	t.Helper()
	if len(r.edits) > 0 {
		return r.edits[len(r.edits)-1]
	}
	require.NotEmpty(t, r.responses)
	last := r.responses[len(r.responses)-1]
	require.NotNil(t, last.Data)
	return last.Data.Content
}

type stubSplitter struct {
	board  *ui.Board
	status splitter.Status
	err    error
	args   []string
	ctxErr error
}

func newStubSplitter() *stubSplitter {
	board := ui.NewBoard()
	board.SetTexts(map[string]string{
		ui.RegionWalletAddress:    splitter.ShortAddress(wallet),
		ui.RegionWalletBalance:    "1.2345 ETH",
		ui.RegionTotalExpenses:    "0.0500 ETH",
		ui.RegionExpenseCount:     "1",
		ui.RegionParticipantCount: "2",
		ui.RegionContractBalance:  "0.1000 ETH",
		ui.RegionYourBalance:      "0.0250 ETH",
		ui.RegionEqualSplit:       "0.0250 ETH",
	})
	board.SetParticipants([]ui.ParticipantRow{{Address: splitter.ShortAddress(wallet), Balance: "0.0250 ETH"}})
	return &stubSplitter{board: board}
}

func (s *stubSplitter) Board() *ui.Board { return s.board }
func (s *stubSplitter) Status() splitter.Status { return s.status }

func (s *stubSplitter) Connect(ctx context.Context) (common.Address, error) {
	s.ctxErr = ctx.Err()
	return wallet, s.err
}

func (s *stubSplitter) Disconnect(context.Context) error {
	s.args = append(s.args, "disconnect")
	return s.err
}

func (s *stubSplitter) LoadContract(_ context.Context, address string) (common.Address, error) {
	s.args = append(s.args, address)
	return contract, s.err
}

func (s *stubSplitter) Refresh(context.Context) (*splitter.Snapshot, error) {
	return &splitter.Snapshot{}, s.err
}

func (s *stubSplitter) RecordExpense(_ context.Context, description, amount string) (*splitter.TxResult, error) {
	s.args = append(s.args, description, amount)
	return s.result()
}

func (s *stubSplitter) AddParticipant(_ context.Context, address string) (*splitter.TxResult, error) {
	s.args = append(s.args, address)
	return s.result()
}

func (s *stubSplitter) Contribute(_ context.Context, amount string) (*splitter.TxResult, error) {
	s.args = append(s.args, amount)
	return s.result()
}

func (s *stubSplitter) Settle(context.Context) (*splitter.TxResult, error) {
	return s.result()
}

func (s *stubSplitter) result() (*splitter.TxResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &splitter.TxResult{Hash: common.HexToHash("0xabc"), Block: 42, GasUsed: 51234}, nil
}

type stubHistory struct {
	records []splitter.TxRecord
	err     error
	limit   int
}

func (h *stubHistory) ListTransactions(_ context.Context, _ uint64, _ common.Address, limit int) ([]splitter.TxRecord, error) {
	h.limit = limit
	return h.records, h.err
}

func interaction(sub string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type: discordgo.InteractionApplicationCommand,
		Data: discordgo.ApplicationCommandInteractionData{
			Name: "split",
			Options: []*discordgo.ApplicationCommandInteractionDataOption{{
				Name:    sub,
				Type:    discordgo.ApplicationCommandOptionSubCommand,
				Options: opts,
			}},
		},
	}}
}

func str(name, value string) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:  name,
		Type:  discordgo.ApplicationCommandOptionString,
		Value: value,
	}
}

func newSplit(ctrl Splitter, history History) *Split {
	return &Split{Ctrl: ctrl, History: history, Config: &config.Config{ExplorerURL: "https://sepolia.etherscan.io"}}
}

func TestGetCommands(t *testing.T) {
	cmds := GetCommands()
	require.Len(t, cmds, 1)
	assert.Equal(t, "split", cmds[0].Name)

	var names []string
	for _, opt := range cmds[0].Options {
		assert.Equal(t, discordgo.ApplicationCommandOptionSubCommand, opt.Type)
		names = append(names, opt.Name)
	}
	assert.Equal(t, []string{"status", "connect", "disconnect", "load", "refresh", "expense", "participant", "contribute", "settle", "history"}, names)

	expense := cmds[0].Options[5]
	require.Equal(t, "description", expense.Options[0].Name)
	assert.Equal(t, MaxDescriptionLen, expense.Options[0].MaxLength)
}

func TestWritesAreDeferredThenEdited(t *testing.T) {
	ctrl := newStubSplitter()
	s := &recordedResponder{}

	newSplit(ctrl, nil).Handle(s, interaction("expense", str("description", " Lunch "), str("amount", "0.05")))

	require.Len(t, s.responses, 1)
	assert.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, s.responses[0].Type)
	require.Len(t, s.edits, 1)
	assert.Equal(t, []string{" Lunch ", "0.05"}, ctrl.args)
	reply := s.edits[0]
	assert.Contains(t, reply, "✅ Expense recorded: Lunch (0.05 ETH)")
	assert.Contains(t, reply, "Block 42, gas used 51234")
	assert.Contains(t, reply, "https://sepolia.etherscan.io/tx/"+common.HexToHash("0xabc").Hex())
}

func TestSubcommandArguments(t *testing.T) {
	tests := []struct {
		name  string
		in    *discordgo.InteractionCreate
		args  []string
		reply string
	}{
		{"load", interaction("load", str("address", contract.Hex())), []string{contract.Hex()}, "✅ Contract loaded: " + contract.Hex()},
		{"participant", interaction("participant", str("address", wallet.Hex())), []string{wallet.Hex()}, "✅ Participant added: " + wallet.Hex()},
		{"contribute", interaction("contribute", str("amount", "1.5")), []string{"1.5"}, "✅ Contribution successful: 1.5 ETH"},
		{"settle", interaction("settle"), nil, "✅ Expenses settled"},
		{"refresh", interaction("refresh"), nil, "Total expenses: 0.0500 ETH | Expenses: 1 | Participants: 2"},
		{"connect", interaction("connect"), nil, "✅ Wallet connected: " + splitter.ShortAddress(wallet) + " (1.2345 ETH)"},
		{"disconnect", interaction("disconnect"), []string{"disconnect"}, "✅ Wallet disconnected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := newStubSplitter()
			s := &recordedResponder{}

			newSplit(ctrl, nil).Handle(s, tt.in)

			assert.Equal(t, tt.args, ctrl.args)
			assert.Contains(t, s.lastReply(t), tt.reply)
		})
	}
}

func TestLongParticipantListsFitOneMessage(t *testing.T) {
	ctrl := newStubSplitter()
	rows := make([]ui.ParticipantRow, 40)
	for n := range rows {
		rows[n] = ui.ParticipantRow{Address: common.BigToAddress(big.NewInt(int64(n + 1))).Hex(), Balance: "0.0250 ETH"}
	}
	ctrl.board.SetParticipants(rows)
	ctrl.status = splitter.Status{Identity: &wallet, ChainID: big.NewInt(31337), Contract: &contract, Owner: &wallet}

	for _, sub := range []*discordgo.InteractionCreate{
		interaction("refresh"),
		interaction("load", str("address", contract.Hex())),
		interaction("status"),
	} {
		s := &recordedResponder{}
		split := newSplit(ctrl, nil)
		split.Config.WebUIBaseURL = "http://localhost:3000"

		split.Handle(s, sub)

		reply := s.lastReply(t)
		name := sub.ApplicationCommandData().Options[0].Name
		assert.LessOrEqual(t, utf8.RuneCountInString(reply), MaxMessageLen, name)
		assert.Contains(t, reply, "• "+rows[0].Address, name)
		assert.NotContains(t, reply, "• "+rows[39].Address, name)
		assert.Regexp(t, `\n… and \d+ more`, reply, name)
	}
}

func TestSummaryCountsHiddenParticipants(t *testing.T) {
	ctrl := newStubSplitter()
	rows := make([]ui.ParticipantRow, 40)
	for n := range rows {
		rows[n] = ui.ParticipantRow{Address: common.BigToAddress(big.NewInt(int64(n + 1))).Hex(), Balance: "0.0250 ETH"}
	}
	ctrl.board.SetParticipants(rows)

	text := newSplit(ctrl, nil).summary(MaxMessageLen)

	shown := strings.Count(text, "\n• ")
	assert.Contains(t, text, fmt.Sprintf("\n… and %d more", 40-shown))
	assert.LessOrEqual(t, len(text), MaxMessageLen)
}

func TestRepliesNeverMention(t *testing.T) {
	ctrl := newStubSplitter()
	s := &recordedResponder{}

	newSplit(ctrl, nil).Handle(s, interaction("expense", str("description", "@everyone "+strings.Repeat("x", 500)), str("amount", "0.01")))

	require.Len(t, s.mentions, 1)
	require.NotNil(t, s.mentions[0])
	assert.Empty(t, s.mentions[0].Parse)
	reply := s.lastReply(t)
	assert.Contains(t, reply, "@everyone")
	assert.Contains(t, reply, "… (0.01 ETH)")

	s = &recordedResponder{}
	newSplit(ctrl, nil).Handle(s, interaction("status"))
	require.NotNil(t, s.responses[0].Data.AllowedMentions)
	assert.Empty(t, s.responses[0].Data.AllowedMentions.Parse)
}

func TestClip(t *testing.T) {
	assert.Equal(t, "short", Clip("short", 10))
	assert.Equal(t, "abcd…", Clip("abcdefgh", 5))
	assert.Equal(t, "ééé…", Clip("éééééé", 4))
}

func TestFailuresShowDisplayText(t *testing.T) {
	ctrl := newStubSplitter()
	ctrl.err = &splitter.Error{Kind: splitter.ErrValidation, Op: "contribute", Message: "Amount must be greater than zero"}
	s := &recordedResponder{}

	newSplit(ctrl, nil).Handle(s, interaction("contribute", str("amount", "0")))

	assert.Equal(t, "❌ Amount must be greater than zero", s.lastReply(t))
}

func TestUnexpectedErrorsAreGeneric(t *testing.T) {
	ctrl := newStubSplitter()
	ctrl.err = errors.New("internal detail")
	s := &recordedResponder{}

	newSplit(ctrl, nil).Handle(s, interaction("settle"))

	assert.Equal(t, "❌ An unexpected error occurred", s.lastReply(t))
}

func TestDeferFailureSkipsOperation(t *testing.T) {
	ctrl := newStubSplitter()
	s := &recordedResponder{respErr: errors.New("unknown interaction")}

	newSplit(ctrl, nil).Handle(s, interaction("contribute", str("amount", "1")))

	assert.Empty(t, ctrl.args)
	assert.Empty(t, s.edits)
}

func TestOperationContextIsLive(t *testing.T) {
	ctrl := newStubSplitter()

	newSplit(ctrl, nil).Handle(&recordedResponder{}, interaction("connect"))

	assert.NoError(t, ctrl.ctxErr)
}

func TestStatus(t *testing.T) {
	t.Run("not connected", func(t *testing.T) {
		s := &recordedResponder{}
		newSplit(newStubSplitter(), nil).Handle(s, interaction("status"))
		assert.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, s.responses[0].Type)
		assert.Contains(t, s.lastReply(t), "Wallet not connected")
	})

	t.Run("without contract", func(t *testing.T) {
		ctrl := newStubSplitter()
		ctrl.status = splitter.Status{State: "connected", Identity: &wallet, ChainID: big.NewInt(31337)}
		s := &recordedResponder{}
		newSplit(ctrl, nil).Handle(s, interaction("status"))
		reply := s.lastReply(t)
		assert.Contains(t, reply, "Wallet: "+splitter.ShortAddress(wallet)+" (1.2345 ETH) on chain 31337")
		assert.Contains(t, reply, "No contract loaded")
	})

	t.Run("web link", func(t *testing.T) {
		s := &recordedResponder{}
		split := newSplit(newStubSplitter(), nil)
		split.Config.WebUIBaseURL = "https://split.example.com"
		split.Handle(s, interaction("status"))
		assert.Contains(t, s.lastReply(t), "\nWeb: <https://split.example.com/>")
	})

	t.Run("with contract", func(t *testing.T) {
		ctrl := newStubSplitter()
		ctrl.status = splitter.Status{State: "contract_loaded", Identity: &wallet, ChainID: big.NewInt(31337), Contract: &contract, Owner: &wallet}
		s := &recordedResponder{}
		newSplit(ctrl, nil).Handle(s, interaction("status"))
		reply := s.lastReply(t)
		assert.Contains(t, reply, "Contract: "+contract.Hex())
		assert.Contains(t, reply, "Owner: "+splitter.ShortAddress(wallet))
		assert.Contains(t, reply, "Contract balance: 0.1000 ETH | Your balance: 0.0250 ETH | Equal split: 0.0250 ETH")
		assert.Contains(t, reply, "• "+splitter.ShortAddress(wallet)+": 0.0250 ETH")
	})
}

func TestHistory(t *testing.T) {
	loaded := func() *stubSplitter {
		ctrl := newStubSplitter()
		ctrl.status = splitter.Status{Identity: &wallet, ChainID: big.NewInt(11155111), Contract: &contract}
		return ctrl
	}

	t.Run("disabled", func(t *testing.T) {
		s := &recordedResponder{}
		newSplit(loaded(), nil).Handle(s, interaction("history"))
		assert.Equal(t, "Transaction history is disabled.", s.lastReply(t))
	})

	t.Run("no contract", func(t *testing.T) {
		s := &recordedResponder{}
		newSplit(newStubSplitter(), &stubHistory{}).Handle(s, interaction("history"))
		assert.Equal(t, "Please load a contract first", s.lastReply(t))
	})

	t.Run("empty", func(t *testing.T) {
		s := &recordedResponder{}
		newSplit(loaded(), &stubHistory{}).Handle(s, interaction("history"))
		assert.Equal(t, "No transactions recorded yet.", s.lastReply(t))
	})

	t.Run("store failure", func(t *testing.T) {
		s := &recordedResponder{}
		newSplit(loaded(), &stubHistory{err: errors.New("db down")}).Handle(s, interaction("history"))
		assert.Equal(t, "Failed to load transaction history.", s.lastReply(t))
	})

	t.Run("entries", func(t *testing.T) {
		hash := common.HexToHash("0x01")
		history := &stubHistory{records: []splitter.TxRecord{
			{
				Kind:        splitter.TxRecordExpense,
				Hash:        hash,
				Amount:      big.NewInt(5e16),
				Description: "Lunch",
				ConfirmedAt: time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC),
			},
			{
				Kind:        splitter.TxAddParticipant,
				Participant: &wallet,
				ConfirmedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
			},
		}}
		s := &recordedResponder{}
		newSplit(loaded(), history).Handle(s, interaction("history"))

		reply := s.lastReply(t)
		assert.Equal(t, historyLimit, history.limit)
		assert.Contains(t, reply, "`record_expense` 2024-05-01 12:30 0.0500 ETH Lunch <https://sepolia.etherscan.io/tx/"+hash.Hex()+">")
		assert.Contains(t, reply, "`add_participant` 2024-05-01 12:00 "+splitter.ShortAddress(wallet))
	})
}

func TestUnknownSubcommand(t *testing.T) {
	s := &recordedResponder{}
	newSplit(newStubSplitter(), nil).Handle(s, interaction("withdraw"))
	assert.Equal(t, "Unknown subcommand: withdraw", s.lastReply(t))
}
