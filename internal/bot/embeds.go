package bot

import (
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Embed colors for the four message kinds.
const (
	colorSuccess = 0x00ff00
	colorError   = 0xff0000
	colorInfo    = 0x3498db
	colorAdmin   = 0x9b59b6
)

func newEmbed(color int, prefix, title, description string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Color:       color,
		Title:       prefix + " " + title,
		Description: description,
		Fields:      fields,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	}
}

func successEmbed(title, description string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return newEmbed(colorSuccess, "✅", title, description, fields...)
}

func errorEmbed(title, description string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return newEmbed(colorError, "❌", title, description, fields...)
}

func infoEmbed(title, description string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return newEmbed(colorInfo, "ℹ️", title, description, fields...)
}

func adminEmbed(title, description string, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return newEmbed(colorAdmin, "🔧", title, description, fields...)
}

func field(name, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}

func countField(name string, n int) *discordgo.MessageEmbedField {
	return field(name, strconv.Itoa(n), true)
}

// formatDate renders a timestamp the way the embeds show dates.
func formatDate(t time.Time) string {
	return t.UTC().Format("Jan 2, 2006 15:04 MST")
}

// formatExpiry renders a nullable expiry; lifetime licenses show Never.
func formatExpiry(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return formatDate(*t)
}
