// Package bot implements the conversational command surface on
// Discord: slash command registration, dispatch, and the admin
// allow-list gate. Command semantics live in Handlers; this file owns
// the session plumbing.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/bwmarrin/discordgo"

	"keywarden/internal/config"
)

// Bot is the connected chat-platform client.
type Bot struct {
	session    *discordgo.Session
	cfg        config.Config
	handlers   *Handlers
	logger     *slog.Logger
	registered []*discordgo.ApplicationCommand
}

// New creates a bot over an authenticated session. The session is not
// opened until Start.
func New(cfg config.Config, handlers *Handlers, logger *slog.Logger) (*Bot, error) {
	if logger == nil {
		logger = slog.Default()
	}
	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds

	return &Bot{
		session:  session,
		cfg:      cfg,
		handlers: handlers,
		logger:   logger.With(slog.String("component", "bot")),
	}, nil
}

// Start opens the gateway connection and registers the slash commands.
func (b *Bot) Start(ctx context.Context) error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onInteraction)

	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open gateway connection: %w", err)
	}

	for _, cmd := range commandDefinitions() {
		created, err := b.session.ApplicationCommandCreate(b.cfg.Discord.ApplicationID, b.cfg.Discord.GuildID, cmd)
		if err != nil {
			b.session.Close()
			return fmt.Errorf("failed to register command %s: %w", cmd.Name, err)
		}
		b.registered = append(b.registered, created)
	}

	b.logger.InfoContext(ctx, "bot started",
		slog.Int("commands", len(b.registered)),
		slog.String("guild_id", b.cfg.Discord.GuildID))
	return nil
}

// Stop closes the gateway connection.
func (b *Bot) Stop() error {
	return b.session.Close()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	b.logger.Info("gateway ready", slog.String("username", r.User.Username))
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	ctx := context.Background()
	name := i.ApplicationCommandData().Name
	c := callerFrom(i)

	b.logger.InfoContext(ctx, "command received",
		slog.String("command", name),
		slog.String("user_id", c.ID))

	if adminCommands[name] && !config.IsAdmin(c.ID, b.cfg.Discord.AdminIDs) {
		b.reply(s, i, b.handlers.AccessDenied(ctx, c, name), "")
		return
	}

	opts := options(i)
	var (
		embed *discordgo.MessageEmbed
		file  string
	)
	switch name {
	case "signup":
		embed = b.handlers.Signup(ctx, c, optString(opts, "username"), optString(opts, "password"), optString(opts, "license_key"))
	case "redeem":
		embed = b.handlers.Redeem(ctx, c, optString(opts, "license_key"))
	case "get_download":
		embed = b.handlers.GetDownload(ctx, c, optString(opts, "license_key"), b.cfg.Cooldown())
	case "create_license":
		embed = b.handlers.CreateLicense(ctx, c, optInt(opts, "amount", 1), optInt(opts, "expiry_days", 0))
	case "generate_keys":
		embed = b.handlers.GenerateKeys(ctx, c, optString(opts, "tier"), optInt(opts, "amount", 1))
	case "revoke_license":
		embed = b.handlers.RevokeLicense(ctx, c, optString(opts, "license_key"), optString(opts, "reason"))
	case "list_licenses":
		embed = b.handlers.ListLicenses(ctx, c, optString(opts, "status"), optInt(opts, "page", 1))
	case "list_users":
		embed = b.handlers.ListUsers(ctx, c, optInt(opts, "page", 1))
	case "admin_stats":
		embed = b.handlers.AdminStats(ctx, c, optString(opts, "category"))
	case "api_key":
		embed = b.handlers.APIKey(ctx, c, optString(opts, "action"), optString(opts, "name"))
	case "export_licenses":
		embed, file = b.handlers.ExportLicenses(ctx, c, optString(opts, "status"))
	default:
		return
	}

	b.reply(s, i, embed, file)
}

func callerFrom(i *discordgo.InteractionCreate) caller {
	user := i.User
	if i.Member != nil {
		user = i.Member.User
	}
	return caller{ID: user.ID, Username: user.Username}
}

// reply sends the embed as an ephemeral response, attaching the export
// file when one was produced.
func (b *Bot) reply(s *discordgo.Session, i *discordgo.InteractionCreate, embed *discordgo.MessageEmbed, file string) {
	data := &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{embed},
		Flags:  discordgo.MessageFlagsEphemeral,
	}

	if file != "" {
		f, err := os.Open(file)
		if err != nil {
			b.logger.Error("failed to open export for upload", slog.String("error", err.Error()))
		} else {
			defer f.Close()
			data.Files = []*discordgo.File{{
				Name:        filepath.Base(file),
				ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
				Reader:      f,
			}}
		}
	}

	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		b.logger.Error("failed to respond to interaction", slog.String("error", err.Error()))
	}
}
