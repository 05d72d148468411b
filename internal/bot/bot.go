package bot

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/expensesplitter/internal/commands"
	"github.com/susu3304/expensesplitter/internal/config"
	"github.com/susu3304/expensesplitter/internal/splitter"
)

// Controller is what the bot drives; panics in a handler are reported back to it.
type Controller interface {
	commands.Splitter
	ReportUnexpected(v any)
}

type Bot struct {
	session   *discordgo.Session
	ctrl      Controller
	split     *commands.Split
	announcer *announcer
	guildID   string
	log       *slog.Logger
}

// New prepares the bot. History may be nil. When cfg.DiscordChannelID is set,
// confirmed transactions passed to Recorder are announced in that channel.
// The controller is attached by Start, so the announcer can be handed to it
// first.
func New(cfg *config.Config, history commands.History, log *slog.Logger) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	if log == nil {
		log = slog.Default()
	}

	bot := &Bot{
		session: session,
		split: &commands.Split{
			History: history,
			Config:  cfg,
			Logger:  log,
		},
		guildID: cfg.DiscordGuildID,
		log:     log,
	}
	if cfg.DiscordChannelID != "" {
		bot.announcer = newAnnouncer(session, cfg.DiscordChannelID, cfg.TxURL, log)
	}

	// Register event handlers
	session.AddHandler(bot.onReady)
	session.AddHandler(bot.onGuildCreate)
	session.AddHandler(bot.onInteractionCreate)

	session.Identify.Intents = discordgo.IntentsGuilds

	return bot, nil
}

// Recorder returns the channel announcer, or nil when no channel is configured.
func (b *Bot) Recorder() splitter.Recorder {
	if b.announcer == nil {
		return nil
	}
	return b.announcer
}

func (b *Bot) Start(ctrl Controller) error {
	b.ctrl = ctrl
	b.split.Ctrl = ctrl
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	b.announcer.start()
	b.log.Info("Discord bot is running")
	return nil
}

func (b *Bot) Stop() error {
	b.announcer.stop()
	return b.session.Close()
}
