package bot

import (
	"github.com/bwmarrin/discordgo"

	"keywarden/internal/license"
	"keywarden/internal/services"
)

func tierChoices() []*discordgo.ApplicationCommandOptionChoice {
	tiers := license.Tiers()
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(tiers))
	for _, t := range tiers {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  t.Name,
			Value: t.Code,
		})
	}
	return choices
}

func statusChoices() []*discordgo.ApplicationCommandOptionChoice {
	return []*discordgo.ApplicationCommandOptionChoice{
		{Name: "Unused", Value: "unused"},
		{Name: "Redeemed", Value: "redeemed"},
		{Name: "Revoked", Value: "revoked"},
	}
}

// commandDefinitions is the full slash command catalogue registered on
// startup.
func commandDefinitions() []*discordgo.ApplicationCommand {
	one := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "signup",
			Description: "Create your account with a license key",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "username", Description: "Your desired username (3-20 characters)", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "password", Description: "Your password (min 8 chars, mixed case + digit)", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "license_key", Description: "Your license key (format: XXXX-XXXX-XXXX-XXXX)", Required: true},
			},
		},
		{
			Name:        "redeem",
			Description: "Redeem a license key to your account",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "license_key", Description: "The license key to redeem (format: XXXX-XXXX-XXXX-XXXX)", Required: true},
			},
		},
		{
			Name:        "get_download",
			Description: "Get the download link for the software",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "license_key", Description: "Your license key to verify access", Required: true},
			},
		},
		{
			Name:        "create_license",
			Description: "[ADMIN] Create license keys with a custom expiry",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "How many keys to create (1-50)", Required: true, MinValue: &one, MaxValue: float64(services.MaxCreateAmount)},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "expiry_days", Description: "Days until expiry (omit for lifetime)", Required: false},
			},
		},
		{
			Name:        "generate_keys",
			Description: "[ADMIN] Generate license keys for a tier",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "tier", Description: "License tier", Required: true, Choices: tierChoices()},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "How many keys to generate (1-100)", Required: true, MinValue: &one, MaxValue: float64(services.MaxGenerateAmount)},
			},
		},
		{
			Name:        "revoke_license",
			Description: "[ADMIN] Revoke a license key",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "license_key", Description: "The license key to revoke", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "reason", Description: "Reason for revocation", Required: false},
			},
		},
		{
			Name:        "list_licenses",
			Description: "[ADMIN] List license keys",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "status", Description: "Filter by status", Required: false, Choices: statusChoices()},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "page", Description: "Page number", Required: false, MinValue: &one},
			},
		},
		{
			Name:        "list_users",
			Description: "[ADMIN] List registered users",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "page", Description: "Page number", Required: false, MinValue: &one},
			},
		},
		{
			Name:        "admin_stats",
			Description: "[ADMIN] View system statistics",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "category", Description: "Statistics category", Required: false, Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Overview", Value: "overview"},
					{Name: "License Stats", Value: "licenses"},
					{Name: "User Stats", Value: "users"},
					{Name: "Recent Actions", Value: "actions"},
				}},
			},
		},
		{
			Name:        "api_key",
			Description: "[ADMIN] Manage validation API credentials",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "action", Description: "What to do", Required: true, Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "Create", Value: "create"},
					{Name: "List", Value: "list"},
					{Name: "Revoke", Value: "revoke"},
				}},
				{Type: discordgo.ApplicationCommandOptionString, Name: "name", Description: "Credential name (for create/revoke)", Required: false},
			},
		},
		{
			Name:        "export_licenses",
			Description: "[ADMIN] Export the license ledger as a spreadsheet",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "status", Description: "Filter by status", Required: false, Choices: statusChoices()},
			},
		},
	}
}

// adminCommands names the commands gated on the admin allow-list.
var adminCommands = map[string]bool{
	"create_license":  true,
	"generate_keys":   true,
	"revoke_license":  true,
	"list_licenses":   true,
	"list_users":      true,
	"admin_stats":     true,
	"api_key":         true,
	"export_licenses": true,
}

// options flattens an interaction's options by name.
func options(i *discordgo.InteractionCreate) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	out := make(map[string]*discordgo.ApplicationCommandInteractionDataOption)
	for _, opt := range i.ApplicationCommandData().Options {
		out[opt.Name] = opt
	}
	return out
}

func optString(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string) string {
	if o, ok := opts[name]; ok {
		return o.StringValue()
	}
	return ""
}

func optInt(opts map[string]*discordgo.ApplicationCommandInteractionDataOption, name string, fallback int) int {
	if o, ok := opts[name]; ok {
		return int(o.IntValue())
	}
	return fallback
}
