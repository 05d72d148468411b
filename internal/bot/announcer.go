package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/ethereum/go-ethereum/common"

	"github.com/susu3304/expensesplitter/internal/commands"
	"github.com/susu3304/expensesplitter/internal/splitter"
	"github.com/susu3304/expensesplitter/internal/units"
)

const announceQueueSize = 64

var errAnnounceQueueFull = errors.New("announcement queue is full")

// announcer posts confirmed transactions to a channel from its own goroutine.
type announcer struct {
	session   announceSession
	channelID string
	txURL     func(hash string) string
	log       *slog.Logger
	queue     chan splitter.TxRecord
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// Minimal session interface for sending channel messages.
type announceSession interface {
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

func newAnnouncer(session announceSession, channelID string, txURL func(string) string, log *slog.Logger) *announcer {
	return &announcer{
		session:   session,
		channelID: channelID,
		txURL:     txURL,
		log:       log,
		queue:     make(chan splitter.TxRecord, announceQueueSize),
		stopChan:  make(chan struct{}),
	}
}

// RecordTransaction queues rec without blocking.
func (a *announcer) RecordTransaction(_ context.Context, rec splitter.TxRecord) error {
	select {
	case a.queue <- rec:
		return nil
	default:
		return errAnnounceQueueFull
	}
}

func (a *announcer) start() {
	if a == nil {
		return
	}
	go a.loop()
}

func (a *announcer) stop() {
	if a == nil {
		return
	}
	a.stopOnce.Do(func() { close(a.stopChan) })
}

func (a *announcer) loop() {
	ctx := context.Background()
	for {
		select {
		case rec := <-a.queue:
			if err := a.sendWithRetry(ctx, announcement(rec, a.txURL)); err != nil {
				a.log.Warn("announcing transaction failed", "tx", rec.Hash.Hex(), "error", err)
			}
		case <-a.stopChan:
			return
		}
	}
}

func (a *announcer) sendWithRetry(ctx context.Context, content string) error {
	const attemptTimeout = 12 * time.Second
	const maxAttempts = 2

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		// Descriptions are user text; nothing in them may ping.
		_, err := a.session.ChannelMessageSendComplex(a.channelID, &discordgo.MessageSend{
			Content:         content,
			AllowedMentions: &discordgo.MessageAllowedMentions{},
		}, discordgo.WithContext(sendCtx))
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isTimeout(err) {
			return err
		}
		time.Sleep(time.Duration(300+rand.Intn(500)) * time.Millisecond)
	}
	return lastErr
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func announcement(rec splitter.TxRecord, txURL func(string) string) string {
	who := splitter.ShortAddress(rec.From)
	var msg string
	switch rec.Kind {
	case splitter.TxRecordExpense:
		msg = fmt.Sprintf("🧾 %s recorded an expense: %s (%s ETH)", who, commands.Clip(rec.Description, commands.MaxDescriptionLen), units.DisplayEther(rec.Amount))
	case splitter.TxAddParticipant:
		msg = fmt.Sprintf("👥 %s added participant %s", who, participantHex(rec.Participant))
	case splitter.TxContribute:
		msg = fmt.Sprintf("💰 %s contributed %s ETH", who, units.DisplayEther(rec.Amount))
	case splitter.TxSettleExpenses:
		msg = fmt.Sprintf("🤝 %s settled their expenses", who)
	default:
		msg = fmt.Sprintf("%s sent %s", who, rec.Kind)
	}

	if txURL != nil {
		if url := txURL(rec.Hash.Hex()); url != "" {
			msg += "\n<" + url + ">"
		}
	}
	return msg
}

func participantHex(p *common.Address) string {
	if p == nil {
		return "?"
	}
	return p.Hex()
}
