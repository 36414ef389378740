package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"keywarden/internal/license"
	"keywarden/internal/services"
)

func issuerFor(c caller) services.Issuer {
	return services.Issuer{ID: c.ID, Name: c.Username}
}

// AccessDenied is the reply for a non-admin invoking an admin command.
func (h *Handlers) AccessDenied(ctx context.Context, c caller, command string) *discordgo.MessageEmbed {
	h.logCommand(ctx, c, command, false, "Not authorized")
	return errorEmbed("Access Denied", "Admin only command.")
}

// CreateLicense handles the create_license admin command.
func (h *Handlers) CreateLicense(ctx context.Context, c caller, amount, expiryDays int) *discordgo.MessageEmbed {
	keys, err := h.licenses.Create(ctx, issuerFor(c), amount, expiryDays)
	if err != nil {
		if isValidationError(err) {
			h.logCommand(ctx, c, "create_license", false, "Invalid input")
			return errorEmbed("Invalid Input", err.Error())
		}
		h.logger.ErrorContext(ctx, "create_license failed", slog.String("error", err.Error()))
		h.logCommand(ctx, c, "create_license", false, err.Error())
		return errorEmbed("Creation Failed", "An unexpected error occurred while creating licenses.")
	}

	expiry := "Never"
	if expiryDays > 0 {
		expiry = fmt.Sprintf("%d days", expiryDays)
	}

	h.logCommand(ctx, c, "create_license", true, "")
	return adminEmbed(
		"Licenses Created",
		fmt.Sprintf("Created **%d** license key(s).", len(keys)),
		field("🔑 Keys", keyBlock(keys), false),
		field("⏰ Expiry", expiry, true),
		countField("📊 Amount", len(keys)),
	)
}

// GenerateKeys handles the generate_keys admin command.
func (h *Handlers) GenerateKeys(ctx context.Context, c caller, tierCode string, amount int) *discordgo.MessageEmbed {
	tier, keys, err := h.licenses.Generate(ctx, issuerFor(c), tierCode, amount)
	if err != nil {
		if isValidationError(err) {
			h.logCommand(ctx, c, "generate_keys", false, "Invalid input")
			return errorEmbed("Invalid Input", err.Error())
		}
		h.logger.ErrorContext(ctx, "generate_keys failed", slog.String("error", err.Error()))
		h.logCommand(ctx, c, "generate_keys", false, err.Error())
		return errorEmbed("Generation Failed", "An unexpected error occurred while generating keys.")
	}

	h.logCommand(ctx, c, "generate_keys", true, "")
	return adminEmbed(
		"Keys Generated",
		fmt.Sprintf("Generated **%d** key(s) for the **%s** tier.", len(keys), tier.Name),
		field("🔑 Keys", keyBlock(keys), false),
		field("🏷️ Tier", tier.Name, true),
		countField("📊 Amount", len(keys)),
	)
}

// keyBlock renders generated keys as a code block, truncated so the
// embed stays under the field limit.
func keyBlock(keys []string) string {
	const maxShown = 25
	shown := keys
	var suffix string
	if len(keys) > maxShown {
		shown = keys[:maxShown]
		suffix = fmt.Sprintf("\n... and %d more (see export)", len(keys)-maxShown)
	}
	return "```\n" + strings.Join(shown, "\n") + "\n```" + suffix
}

// RevokeLicense handles the revoke_license admin command.
func (h *Handlers) RevokeLicense(ctx context.Context, c caller, key, reason string) *discordgo.MessageEmbed {
	l, err := h.licenses.Revoke(ctx, issuerFor(c), key, reason)
	if err != nil {
		return h.revokeError(ctx, c, err)
	}

	owner := "Unredeemed"
	if l.OwnerID != "" {
		owner = l.OwnerID
	}
	if reason == "" {
		reason = "No reason provided"
	}

	h.logCommand(ctx, c, "revoke_license", true, "")
	return adminEmbed(
		"License Revoked",
		fmt.Sprintf("License **%s** has been revoked.", l.Key),
		field("👤 Owner", owner, true),
		field("📝 Reason", reason, true),
	)
}

func (h *Handlers) revokeError(ctx context.Context, c caller, err error) *discordgo.MessageEmbed {
	var already *license.AlreadyRevokedError
	switch {
	case isValidationError(err):
		h.logCommand(ctx, c, "revoke_license", false, "Invalid key format")
		return errorEmbed("Invalid License Key Format", "License key must be in format: XXXX-XXXX-XXXX-XXXX")
	case errors.Is(err, license.ErrNotFound):
		h.logCommand(ctx, c, "revoke_license", false, "License not found")
		return errorEmbed("License Not Found", "No license exists with that key.")
	case errors.As(err, &already):
		h.logCommand(ctx, c, "revoke_license", false, "Already revoked")
		revokedBy := already.RevokedBy
		if revokedBy == "" {
			revokedBy = "Unknown"
		}
		reason := already.Reason
		if reason == "" {
			reason = "No reason provided"
		}
		return errorEmbed("Already Revoked",
			fmt.Sprintf("This license was already revoked.\n\n**Revoked by:** %s\n**Reason:** %s", revokedBy, reason))
	}

	h.logger.ErrorContext(ctx, "revoke_license failed", slog.String("error", err.Error()))
	h.logCommand(ctx, c, "revoke_license", false, err.Error())
	return errorEmbed("Revocation Failed", "An unexpected error occurred while revoking the license.")
}

// ListLicenses handles the list_licenses admin command.
func (h *Handlers) ListLicenses(ctx context.Context, c caller, statusFilter string, requestedPage int) *discordgo.MessageEmbed {
	all, err := h.licenses.List(ctx, statusFilter)
	if err != nil {
		if isValidationError(err) {
			h.logCommand(ctx, c, "list_licenses", false, "Invalid status")
			return errorEmbed("Invalid Status", err.Error())
		}
		h.logCommand(ctx, c, "list_licenses", false, err.Error())
		return errorEmbed("Listing Failed", "An unexpected error occurred while listing licenses.")
	}

	start, end, resolved, pages, ok := page(len(all), requestedPage)
	if !ok {
		h.logCommand(ctx, c, "list_licenses", false, "Invalid page")
		return errorEmbed("Invalid Page", fmt.Sprintf("Only %d pages available.", pages))
	}

	var b strings.Builder
	for _, l := range all[start:end] {
		owner := "-"
		if l.OwnerID != "" {
			owner = l.OwnerID
		}
		fmt.Fprintf(&b, "`%s` **%s** %s · expires %s\n", l.Key, l.Status, owner, formatExpiry(l.ExpiresAt))
	}
	if b.Len() == 0 {
		b.WriteString("No licenses found.")
	}

	title := "All Licenses"
	if statusFilter != "" {
		title = fmt.Sprintf("Licenses: %s", statusFilter)
	}

	h.logCommand(ctx, c, "list_licenses", true, "")
	return adminEmbed(title, b.String(),
		countField("📊 Total", len(all)),
		field("📄 Page", fmt.Sprintf("%d / %d", resolved, pages), true),
	)
}

// ListUsers handles the list_users admin command.
func (h *Handlers) ListUsers(ctx context.Context, c caller, requestedPage int) *discordgo.MessageEmbed {
	users, err := h.accounts.ListUsers(ctx)
	if err != nil {
		h.logCommand(ctx, c, "list_users", false, err.Error())
		return errorEmbed("Listing Failed", "An unexpected error occurred while listing users.")
	}

	start, end, resolved, pages, ok := page(len(users), requestedPage)
	if !ok {
		h.logCommand(ctx, c, "list_users", false, "Invalid page")
		return errorEmbed("Invalid Page", fmt.Sprintf("Only %d pages available.", pages))
	}

	var b strings.Builder
	for _, u := range users[start:end] {
		fmt.Fprintf(&b, "**%s** (<@%s>) · `%s` · joined %s\n", u.Username, u.PlatformID, u.LicenseKey, formatDate(u.RegisteredAt))
	}
	if b.Len() == 0 {
		b.WriteString("No users registered.")
	}

	h.logCommand(ctx, c, "list_users", true, "")
	return adminEmbed("Registered Users", b.String(),
		countField("👥 Total", len(users)),
		field("📄 Page", fmt.Sprintf("%d / %d", resolved, pages), true),
	)
}

// AdminStats handles the admin_stats command.
func (h *Handlers) AdminStats(ctx context.Context, c caller, category string) *discordgo.MessageEmbed {
	if category == "" {
		category = "overview"
	}

	switch category {
	case "overview":
		o, err := h.stats.Overview(ctx)
		if err != nil {
			h.logCommand(ctx, c, "admin_stats", false, err.Error())
			return errorEmbed("Stats Failed", "An unexpected error occurred while gathering statistics.")
		}
		h.logCommand(ctx, c, "admin_stats", true, "")
		return adminEmbed("System Statistics",
			fmt.Sprintf("Snapshot taken %s.", formatDate(o.GeneratedAt)),
			field("👥 Users", fmt.Sprintf("**Total:** %d\n**Downloads:** %d\n**Commands:** %d", o.Counts.Users, o.Counts.Downloads, o.Counts.Commands), true),
			field("🔑 Licenses", fmt.Sprintf("**Total:** %d\n**Unused:** %d\n**Redeemed:** %d\n**Revoked:** %d", o.Counts.TotalLicenses, o.Counts.UnusedLicenses, o.Counts.Redeemed, o.Counts.Revoked), true),
			field("🗝️ API", fmt.Sprintf("**Active credentials:** %d", o.ActiveAPIKeys), true),
		)
	case "licenses":
		g, err := h.stats.Generations(ctx)
		if err != nil {
			h.logCommand(ctx, c, "admin_stats", false, err.Error())
			return errorEmbed("Stats Failed", "An unexpected error occurred while gathering statistics.")
		}

		var fields []*discordgo.MessageEmbedField
		if len(g.ByTier) > 0 {
			var b strings.Builder
			for _, tg := range g.ByTier {
				fmt.Fprintf(&b, "**%s:** %d keys (%d batches)\n", tg.Tier, tg.Keys, tg.Batches)
			}
			fields = append(fields, field("📊 Generation Statistics by Tier", b.String(), false))
		}
		if len(g.Recent) > 0 {
			var b strings.Builder
			for _, r := range g.Recent {
				fmt.Fprintf(&b, "• %dx %s by %s - %s\n", r.Amount, r.Tier, r.AdminName, formatDate(r.Timestamp))
			}
			fields = append(fields, field("📝 Recent Generations", b.String(), false))
		}
		if len(fields) == 0 {
			fields = append(fields, field("No Data", "No license generation history found.", false))
		}

		h.logCommand(ctx, c, "admin_stats", true, "")
		return adminEmbed("License Generation Statistics", "Detailed generation metrics", fields...)
	case "users":
		a, err := h.stats.Activity(ctx)
		if err != nil {
			h.logCommand(ctx, c, "admin_stats", false, err.Error())
			return errorEmbed("Stats Failed", "An unexpected error occurred while gathering statistics.")
		}

		h.logCommand(ctx, c, "admin_stats", true, "")
		return adminEmbed("User Statistics", "Detailed user metrics",
			field("📈 Registration Trends", fmt.Sprintf(
				"**Last 24 hours:** %d\n**Last 7 days:** %d\n**Last 30 days:** %d\n**Total:** %d",
				a.RegisteredDay, a.RegisteredWeek, a.RegisteredMonth, a.Total), true),
			field("🎯 User Activity", fmt.Sprintf(
				"**Active (7 days):** %d\n**Inactive:** %d\n**Activity Rate:** %d%%",
				a.ActiveWeek, a.Inactive(), a.ActivityRate()), true),
		)
	case "actions":
		actions, err := h.stats.RecentActions(ctx, 10)
		if err != nil {
			h.logCommand(ctx, c, "admin_stats", false, err.Error())
			return errorEmbed("Stats Failed", "An unexpected error occurred while gathering statistics.")
		}
		var b strings.Builder
		for _, a := range actions {
			fmt.Fprintf(&b, "**%s** by %s · %s\n", a.Action, a.AdminName, formatDate(a.Timestamp))
		}
		if b.Len() == 0 {
			b.WriteString("No admin actions recorded.")
		}
		h.logCommand(ctx, c, "admin_stats", true, "")
		return adminEmbed("Recent Admin Actions", b.String())
	default:
		h.logCommand(ctx, c, "admin_stats", false, "Unknown category")
		return errorEmbed("Unknown Category", "Choose one of: overview, licenses, users, actions.")
	}
}

// APIKey handles the api_key admin command group.
func (h *Handlers) APIKey(ctx context.Context, c caller, action, name string) *discordgo.MessageEmbed {
	switch action {
	case "create":
		k, err := h.apiKeys.Create(ctx, issuerFor(c), name)
		if err != nil {
			h.logCommand(ctx, c, "api_key", false, err.Error())
			if isValidationError(err) {
				return errorEmbed("Invalid Input", err.Error())
			}
			return errorEmbed("Creation Failed", "An unexpected error occurred while issuing the credential.")
		}
		h.logCommand(ctx, c, "api_key", true, "")
		return adminEmbed(
			"API Key Created",
			"Store this token now. It will not be shown again.",
			field("🏷️ Name", k.Name, true),
			field("🗝️ Token", "`"+k.Token+"`", false),
		)
	case "list":
		keys, err := h.apiKeys.List(ctx)
		if err != nil {
			h.logCommand(ctx, c, "api_key", false, err.Error())
			return errorEmbed("Listing Failed", "An unexpected error occurred while listing credentials.")
		}
		var b strings.Builder
		for _, k := range keys {
			status := "active"
			if !k.Active {
				status = "revoked"
			}
			lastUsed := "never"
			if !k.LastUsedAt.IsZero() {
				lastUsed = formatDate(k.LastUsedAt)
			}
			fmt.Fprintf(&b, "**%s** `%s` · %s · used %d times · last %s\n", k.Name, k.Token, status, k.UseCount, lastUsed)
		}
		if b.Len() == 0 {
			b.WriteString("No credentials issued.")
		}
		h.logCommand(ctx, c, "api_key", true, "")
		return adminEmbed("API Keys", b.String())
	case "revoke":
		if err := h.apiKeys.Revoke(ctx, issuerFor(c), name); err != nil {
			h.logCommand(ctx, c, "api_key", false, err.Error())
			if isValidationError(err) {
				return errorEmbed("Revocation Failed", err.Error())
			}
			return errorEmbed("Revocation Failed", "An unexpected error occurred while revoking the credential.")
		}
		h.logCommand(ctx, c, "api_key", true, "")
		return adminEmbed("API Key Revoked", fmt.Sprintf("Credential **%s** no longer authenticates.", name))
	default:
		h.logCommand(ctx, c, "api_key", false, "Unknown action")
		return errorEmbed("Unknown Action", "Choose one of: create, list, revoke.")
	}
}

// ExportLicenses handles the export_licenses admin command. It writes
// an Excel workbook and returns its path alongside the reply embed.
func (h *Handlers) ExportLicenses(ctx context.Context, c caller, statusFilter string) (*discordgo.MessageEmbed, string) {
	all, err := h.licenses.List(ctx, statusFilter)
	if err != nil {
		h.logCommand(ctx, c, "export_licenses", false, err.Error())
		if isValidationError(err) {
			return errorEmbed("Invalid Status", err.Error()), ""
		}
		return errorEmbed("Export Failed", "An unexpected error occurred while exporting licenses."), ""
	}

	path, err := h.export.ExportXLSX(all, time.Now())
	if err != nil {
		h.logger.ErrorContext(ctx, "export failed", slog.String("error", err.Error()))
		h.logCommand(ctx, c, "export_licenses", false, err.Error())
		return errorEmbed("Export Failed", "An unexpected error occurred while writing the export file."), ""
	}

	h.logCommand(ctx, c, "export_licenses", true, "")
	return adminEmbed("Export Ready", fmt.Sprintf("Exported **%d** license(s).", len(all)),
		countField("📊 Licenses", len(all)),
	), path
}
