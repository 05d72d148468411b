package commands

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"
	"github.com/ethereum/go-ethereum/common"

	"github.com/susu3304/expensesplitter/internal/config"
	"github.com/susu3304/expensesplitter/internal/splitter"
	"github.com/susu3304/expensesplitter/internal/ui"
	"github.com/susu3304/expensesplitter/internal/units"
)

// An interaction token stays valid for 15 minutes; confirmations that run
// longer cannot be reported back anyway.
const interactionTimeout = 14 * time.Minute

const historyLimit = 10

const (
	// MaxMessageLen is Discord's limit on message content.
	MaxMessageLen = 2000
	// MaxDescriptionLen caps how much of an expense description is echoed.
	MaxDescriptionLen = 200
)

// noMentions stops user supplied text from pinging anyone.
var noMentions = &discordgo.MessageAllowedMentions{}

// Splitter is the part of the controller driven by /split.
type Splitter interface {
	Board() *ui.Board
	Status() splitter.Status
	Connect(ctx context.Context) (common.Address, error)
	Disconnect(ctx context.Context) error
	LoadContract(ctx context.Context, address string) (common.Address, error)
	Refresh(ctx context.Context) (*splitter.Snapshot, error)
	RecordExpense(ctx context.Context, description, amount string) (*splitter.TxResult, error)
	AddParticipant(ctx context.Context, address string) (*splitter.TxResult, error)
	Contribute(ctx context.Context, amount string) (*splitter.TxResult, error)
	Settle(ctx context.Context) (*splitter.TxResult, error)
}

type History interface {
	ListTransactions(ctx context.Context, chainID uint64, contract common.Address, limit int) ([]splitter.TxRecord, error)
}

// Responder is the subset of *discordgo.Session used to answer interactions.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Split serves the /split command. History may be nil.
type Split struct {
	Ctrl    Splitter
	History History
	Config  *config.Config
	Logger  *slog.Logger
}

func (h *Split) Handle(s Responder, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	if len(data.Options) == 0 {
		respondText(s, i, "No subcommand given")
		return
	}
	sub := data.Options[0]

	switch sub.Name {
	case "status":
		respondText(s, i, h.statusText())
	case "history":
		respondText(s, i, h.historyText())
	case "connect":
		h.deferred(s, i, func(ctx context.Context) string {
			addr, err := h.Ctrl.Connect(ctx)
			if err != nil {
				return failure(err)
			}
			view := h.Ctrl.Board().View()
			return fmt.Sprintf("✅ Wallet connected: %s (%s)", splitter.ShortAddress(addr), view.Regions[ui.RegionWalletBalance])
		})
	case "disconnect":
		h.deferred(s, i, func(ctx context.Context) string {
			if err := h.Ctrl.Disconnect(ctx); err != nil {
				return failure(err)
			}
			return "✅ Wallet disconnected"
		})
	case "load":
		address := optionValue(sub.Options, "address")
		h.deferred(s, i, func(ctx context.Context) string {
			addr, err := h.Ctrl.LoadContract(ctx, address)
			if err != nil {
				return failure(err)
			}
			head := "✅ Contract loaded: " + addr.Hex() + "\n"
			return head + h.summary(MaxMessageLen-len(head))
		})
	case "refresh":
		h.deferred(s, i, func(ctx context.Context) string {
			if _, err := h.Ctrl.Refresh(ctx); err != nil {
				return failure(err)
			}
			return h.summary(MaxMessageLen)
		})
	case "expense":
		description := optionValue(sub.Options, "description")
		amount := optionValue(sub.Options, "amount")
		h.deferred(s, i, func(ctx context.Context) string {
			res, err := h.Ctrl.RecordExpense(ctx, description, amount)
			if err != nil {
				return failure(err)
			}
			return h.confirmed(fmt.Sprintf("Expense recorded: %s (%s ETH)", Clip(strings.TrimSpace(description), MaxDescriptionLen), strings.TrimSpace(amount)), res)
		})
	case "participant":
		address := optionValue(sub.Options, "address")
		h.deferred(s, i, func(ctx context.Context) string {
			res, err := h.Ctrl.AddParticipant(ctx, address)
			if err != nil {
				return failure(err)
			}
			return h.confirmed("Participant added: "+strings.TrimSpace(address), res)
		})
	case "contribute":
		amount := optionValue(sub.Options, "amount")
		h.deferred(s, i, func(ctx context.Context) string {
			res, err := h.Ctrl.Contribute(ctx, amount)
			if err != nil {
				return failure(err)
			}
			return h.confirmed(fmt.Sprintf("Contribution successful: %s ETH", strings.TrimSpace(amount)), res)
		})
	case "settle":
		h.deferred(s, i, func(ctx context.Context) string {
			res, err := h.Ctrl.Settle(ctx)
			if err != nil {
				return failure(err)
			}
			return h.confirmed("Expenses settled", res)
		})
	default:
		respondText(s, i, "Unknown subcommand: "+sub.Name)
	}
}

// deferred acknowledges the interaction first, since confirmations outlast
// Discord's three second reply window, then edits in the result.
func (h *Split) deferred(s Responder, i *discordgo.InteractionCreate, run func(ctx context.Context) string) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		h.logger().Error("deferring interaction failed", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()
	content := Clip(run(ctx), MaxMessageLen)

	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:         &content,
		AllowedMentions: noMentions,
	}); err != nil {
		h.logger().Error("editing interaction response failed", "error", err)
	}
}

func (h *Split) confirmed(message string, res *splitter.TxResult) string {
	msg := "✅ " + message
	if res == nil {
		return msg
	}
	msg += fmt.Sprintf("\nBlock %d, gas used %d", res.Block, res.GasUsed)
	if url := h.txURL(res.Hash); url != "" {
		msg += "\n" + url
	}
	return msg
}

func (h *Split) statusText() string {
	status := h.Ctrl.Status()
	link := h.pageLink()
	if status.Identity == nil {
		return "Wallet not connected. Use `/split connect` first." + link
	}
	view := h.Ctrl.Board().View()
	var b strings.Builder
	fmt.Fprintf(&b, "Wallet: %s (%s)", view.Regions[ui.RegionWalletAddress], view.Regions[ui.RegionWalletBalance])
	if status.ChainID != nil {
		fmt.Fprintf(&b, " on chain %s", status.ChainID)
	}
	if status.Contract == nil {
		b.WriteString("\nNo contract loaded. Use `/split load` to load one.")
		b.WriteString(link)
		return b.String()
	}
	fmt.Fprintf(&b, "\nContract: %s", status.Contract.Hex())
	if status.Owner != nil {
		fmt.Fprintf(&b, "\nOwner: %s", splitter.ShortAddress(*status.Owner))
	}
	b.WriteString("\n")
	b.WriteString(h.summary(MaxMessageLen - b.Len() - len(link)))
	b.WriteString(link)
	return b.String()
}

// pageLink points at the web interface, or is empty when none is known.
func (h *Split) pageLink() string {
	if h.Config == nil || h.Config.WebUIBaseURL == "" {
		return ""
	}
	return "\nWeb: <" + h.Config.WebUIBaseURL + "/>"
}

// summary renders the contract figures from the board in at most limit
// bytes. Participants that do not fit are counted in a closing line.
func (h *Split) summary(limit int) string {
	view := h.Ctrl.Board().View()
	r := view.Regions
	var b strings.Builder
	fmt.Fprintf(&b, "Total expenses: %s | Expenses: %s | Participants: %s",
		r[ui.RegionTotalExpenses], r[ui.RegionExpenseCount], r[ui.RegionParticipantCount])
	fmt.Fprintf(&b, "\nContract balance: %s | Your balance: %s | Equal split: %s",
		r[ui.RegionContractBalance], r[ui.RegionYourBalance], r[ui.RegionEqualSplit])

	for n, p := range view.Participants {
		line := fmt.Sprintf("\n• %s: %s", p.Address, p.Balance)
		more := len(view.Participants) - n
		// leave room for the closing line unless this is the last row
		reserve := 0
		if more > 1 {
			reserve = len(fmt.Sprintf("\n… and %d more", more))
		}
		if b.Len()+len(line)+reserve > limit {
			fmt.Fprintf(&b, "\n… and %d more", more)
			break
		}
		b.WriteString(line)
	}
	return b.String()
}

func (h *Split) historyText() string {
	if h.History == nil {
		return "Transaction history is disabled."
	}
	status := h.Ctrl.Status()
	if status.Contract == nil || status.ChainID == nil {
		return "Please load a contract first"
	}
	records, err := h.History.ListTransactions(context.Background(), status.ChainID.Uint64(), *status.Contract, historyLimit)
	if err != nil {
		h.logger().Error("listing history failed", "error", err)
		return "Failed to load transaction history."
	}
	if len(records) == 0 {
		return "No transactions recorded yet."
	}

	var b strings.Builder
	for _, rec := range records {
		line := fmt.Sprintf("`%s` %s", rec.Kind, rec.ConfirmedAt.Format("2006-01-02 15:04"))
		if rec.Amount != nil {
			line += " " + units.DisplayEther(rec.Amount) + " ETH"
		}
		if rec.Description != "" {
			line += " " + Clip(rec.Description, MaxDescriptionLen)
		}
		if rec.Participant != nil {
			line += " " + splitter.ShortAddress(*rec.Participant)
		}
		if url := h.txURL(rec.Hash); url != "" {
			line += " <" + url + ">"
		}
		if b.Len()+len(line)+1 > MaxMessageLen {
			break
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
	}
	return b.String()
}

func (h *Split) txURL(hash common.Hash) string {
	if h.Config == nil {
		return ""
	}
	return h.Config.TxURL(hash.Hex())
}

func (h *Split) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

func failure(err error) string {
	return "❌ " + splitter.Display(err)
}

func respondText(s Responder, i *discordgo.InteractionCreate, content string) {
	s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         Clip(content, MaxMessageLen),
			AllowedMentions: noMentions,
		},
	})
}

// Clip shortens s to at most n characters, marking the cut with an ellipsis.
func Clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

func optionValue(opts []*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	for _, o := range opts {
		if o.Name == name {
			return o.StringValue()
		}
	}
	return ""
}
