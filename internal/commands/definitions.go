package commands

import "github.com/bwmarrin/discordgo"

func GetCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:         "split",
			Description:  "Shared expense splitter",
			DMPermission: boolPtr(false),
			Options: []*discordgo.ApplicationCommandOption{
				subcommand("status", "Show the wallet and contract summary"),
				subcommand("connect", "Connect the configured wallet"),
				subcommand("disconnect", "Revoke the wallet authorization and reset the session"),
				subcommand("load", "Load an expense splitter contract",
					stringOption("address", "Contract address (0x...)"),
				),
				subcommand("refresh", "Reload the contract data"),
				subcommand("expense", "Record a shared expense",
					withMaxLength(stringOption("description", "What the money was spent on"), MaxDescriptionLen),
					stringOption("amount", "Amount in ETH"),
				),
				subcommand("participant", "Add a participant (owner only)",
					stringOption("address", "Participant address (0x...)"),
				),
				subcommand("contribute", "Send ETH to the shared pool",
					stringOption("amount", "Amount in ETH"),
				),
				subcommand("settle", "Settle your balance"),
				subcommand("history", "Show recent confirmed transactions"),
			},
		},
	}
}

func subcommand(name, description string, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionSubCommand,
		Name:        name,
		Description: description,
		Options:     options,
	}
}

func stringOption(name, description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        name,
		Description: description,
		Required:    true,
	}
}

func withMaxLength(o *discordgo.ApplicationCommandOption, n int) *discordgo.ApplicationCommandOption {
	o.MaxLength = n
	return o
}

func boolPtr(b bool) *bool {
	return &b
}
