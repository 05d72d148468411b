package bot

import (
	"github.com/bwmarrin/discordgo"

	"github.com/susu3304/expensesplitter/internal/commands"
)

func (b *Bot) onReady(s *discordgo.Session, event *discordgo.Ready) {
	b.log.Info("connected to discord", "user", event.User.Username)

	// Register commands for all guilds
	for _, guild := range event.Guilds {
		if err := b.registerGuildCommands(s, guild.ID); err != nil {
			b.log.Error("failed to register commands", "guild", guild.ID, "error", err)
		}
	}
}

func (b *Bot) onGuildCreate(s *discordgo.Session, event *discordgo.GuildCreate) {
	b.log.Info("guild available, ensuring commands", "guild", event.ID, "name", event.Name)
	if err := b.registerGuildCommands(s, event.ID); err != nil {
		b.log.Error("failed to register commands", "guild", event.ID, "error", err)
	}
}

func (b *Bot) registerGuildCommands(s *discordgo.Session, guildID string) error {
	// With a home guild configured the command is only offered there.
	if b.guildID != "" && guildID != b.guildID {
		return nil
	}
	cmds := commands.GetCommands()
	// Delete existing commands and register new ones
	_, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, guildID, cmds)
	if err != nil {
		return err
	}

	b.log.Info("registered application commands", "guild", guildID)
	return nil
}

func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	b.handleInteraction(s, i)
}

func (b *Bot) handleInteraction(s commands.Responder, i *discordgo.InteractionCreate) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic in interaction handler", "panic", r)
			b.ctrl.ReportUnexpected(r)
		}
	}()

	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	switch i.ApplicationCommandData().Name {
	case "split":
		b.split.Handle(s, i)
	}
}
