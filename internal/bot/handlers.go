package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	apperrors "keywarden/internal/errors"
	"keywarden/internal/exporter"
	"keywarden/internal/license"
	"keywarden/internal/services"
	"keywarden/internal/store"
)

// Handlers turns parsed command input into reply embeds. All Discord
// plumbing stays in Bot; everything here is callable from tests.
type Handlers struct {
	licenses *services.LicenseService
	accounts *services.AccountService
	apiKeys  *services.APIKeyService
	stats    *services.StatsService
	export   *exporter.Exporter
	logger   *slog.Logger
}

// NewHandlers wires the command handlers over the service layer.
func NewHandlers(licenses *services.LicenseService, accounts *services.AccountService, apiKeys *services.APIKeyService, stats *services.StatsService, export *exporter.Exporter, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		licenses: licenses,
		accounts: accounts,
		apiKeys:  apiKeys,
		stats:    stats,
		export:   export,
		logger:   logger.With(slog.String("component", "commands")),
	}
}

// caller identifies the platform user invoking a command.
type caller struct {
	ID       string
	Username string
}

func (h *Handlers) logCommand(ctx context.Context, c caller, command string, success bool, detail string) {
	h.accounts.LogCommand(ctx, store.CommandLog{
		PlatformID: c.ID,
		Username:   c.Username,
		Command:    command,
		Success:    success,
		ErrorMsg:   detail,
	})
}

func isValidationError(err error) bool {
	var app *apperrors.AppError
	return errors.As(err, &app) && app.Type == apperrors.ErrTypeValidation
}

// Signup handles the signup command: create an account and redeem the
// license key as one unit.
func (h *Handlers) Signup(ctx context.Context, c caller, username, password, key string) *discordgo.MessageEmbed {
	u, err := h.accounts.Register(ctx, services.RegisterInput{
		AccountID:  c.ID,
		Username:   username,
		Password:   password,
		LicenseKey: key,
	})
	if err != nil {
		return h.signupError(ctx, c, err)
	}

	h.logCommand(ctx, c, "signup", true, "")
	return successEmbed(
		"Account Created Successfully!",
		fmt.Sprintf("Welcome, **%s**! Your account is ready and your license is active.", u.Username),
		field("🔑 License Key", u.LicenseKey, true),
		field("📅 Registered On", formatDate(time.Now()), true),
		field("📥 Next Steps", "Use `/get_download` with your license key to download the software.", false),
	)
}

func (h *Handlers) signupError(ctx context.Context, c caller, err error) *discordgo.MessageEmbed {
	var (
		alreadyRedeemed *license.AlreadyRedeemedError
		revoked         *license.RevokedError
		expired         *license.ExpiredError
	)
	switch {
	case isValidationError(err):
		h.logCommand(ctx, c, "signup", false, "Invalid input")
		return errorEmbed("Invalid Input", err.Error())
	case errors.Is(err, services.ErrAlreadyRegistered):
		h.logCommand(ctx, c, "signup", false, "Already registered")
		return errorEmbed("Already Registered", "You already have an account. Use `/get_download` to access the software.")
	case errors.Is(err, services.ErrNameTaken):
		h.logCommand(ctx, c, "signup", false, "Username taken")
		return errorEmbed("Username Taken", "That username is already in use. Please choose another one.")
	case errors.Is(err, license.ErrNotFound):
		h.logCommand(ctx, c, "signup", false, "Invalid license key")
		return errorEmbed("Invalid License Key", "The provided license key does not exist. Please check your key and try again.")
	case errors.As(err, &alreadyRedeemed):
		h.logCommand(ctx, c, "signup", false, "License already redeemed")
		who := "another user"
		if alreadyRedeemed.ByCaller {
			who = "you"
		}
		return errorEmbed("License Already Redeemed",
			fmt.Sprintf("This license key has already been redeemed by %s.", who))
	case errors.As(err, &revoked):
		h.logCommand(ctx, c, "signup", false, "License revoked")
		return errorEmbed("License Revoked", revokedDescription(revoked.Reason))
	case errors.As(err, &expired):
		h.logCommand(ctx, c, "signup", false, "License expired")
		return errorEmbed("License Expired",
			fmt.Sprintf("This license key expired on %s and can no longer be used.", formatDate(expired.ExpiresAt)))
	}

	h.logger.ErrorContext(ctx, "signup failed", slog.String("error", err.Error()))
	h.logCommand(ctx, c, "signup", false, err.Error())
	return errorEmbed("Signup Failed", "An unexpected error occurred while creating your account. Please try again later or contact an administrator.")
}

func revokedDescription(reason string) string {
	desc := "This license key has been revoked and cannot be used."
	if reason != "" {
		desc += fmt.Sprintf("\n\n**Reason:** %s", reason)
	}
	return desc
}

// Redeem handles the redeem command: bind a key to the caller without
// creating an account.
func (h *Handlers) Redeem(ctx context.Context, c caller, key string) *discordgo.MessageEmbed {
	l, err := h.licenses.Redeem(ctx, c.ID, key)
	if err != nil {
		return h.redeemError(ctx, c, err)
	}

	h.logCommand(ctx, c, "redeem", true, "")
	return successEmbed(
		"License Redeemed Successfully!",
		"Your license key has been activated and bound to your account.",
		field("🔑 License Key", l.Key, true),
		field("📅 Redeemed On", formatDate(*l.RedeemedAt), true),
		field("⏰ Expiry", formatExpiry(l.ExpiresAt), true),
		field("📥 Next Steps", "If you haven't signed up yet, use `/signup` to create your account!", false),
	)
}

func (h *Handlers) redeemError(ctx context.Context, c caller, err error) *discordgo.MessageEmbed {
	var (
		alreadyRedeemed *license.AlreadyRedeemedError
		revoked         *license.RevokedError
		expired         *license.ExpiredError
	)
	switch {
	case isValidationError(err):
		h.logCommand(ctx, c, "redeem", false, "Invalid key format")
		return errorEmbed("Invalid License Key Format", "License key must be in format: XXXX-XXXX-XXXX-XXXX")
	case errors.Is(err, license.ErrNotFound):
		h.logCommand(ctx, c, "redeem", false, "Invalid license key")
		return errorEmbed("Invalid License Key", "The provided license key does not exist. Please check your key and try again.")
	case errors.As(err, &alreadyRedeemed):
		h.logCommand(ctx, c, "redeem", false, "License already redeemed")
		who := "another user"
		if alreadyRedeemed.ByCaller {
			who = "you"
		}
		return errorEmbed("License Already Redeemed",
			fmt.Sprintf("This license key has already been redeemed by %s.\n\n**Redeemed on:** %s", who, formatDate(alreadyRedeemed.RedeemedAt)))
	case errors.As(err, &revoked):
		h.logCommand(ctx, c, "redeem", false, "License revoked")
		return errorEmbed("License Revoked", revokedDescription(revoked.Reason))
	case errors.As(err, &expired):
		h.logCommand(ctx, c, "redeem", false, "License expired")
		return errorEmbed("License Expired",
			fmt.Sprintf("This license key expired on %s and can no longer be redeemed.", formatDate(expired.ExpiresAt)))
	}

	h.logger.ErrorContext(ctx, "redeem failed", slog.String("error", err.Error()))
	h.logCommand(ctx, c, "redeem", false, err.Error())
	return errorEmbed("Redemption Failed", "An unexpected error occurred while redeeming your license. Please try again later or contact an administrator.")
}

// GetDownload handles the get_download command.
func (h *Handlers) GetDownload(ctx context.Context, c caller, key string, cooldown time.Duration) *discordgo.MessageEmbed {
	grant, err := h.accounts.RequestDownload(ctx, c.ID, key)
	if err != nil {
		return h.downloadError(ctx, c, err)
	}

	h.logCommand(ctx, c, "get_download", true, "")
	return successEmbed(
		"Download Ready!",
		fmt.Sprintf("Here's your download link, **%s**!", c.Username),
		field("📥 Download Link", fmt.Sprintf("[Click here to download](%s)", grant.URL), false),
		field("⏰ Cooldown", fmt.Sprintf("%d minutes", int(cooldown.Minutes())), true),
		field("📅 License Expiry", formatExpiry(grant.ExpiresAt), true),
		field("⚠️ Important", "Keep your download link private. Do not share it with others.", false),
	)
}

func (h *Handlers) downloadError(ctx context.Context, c caller, err error) *discordgo.MessageEmbed {
	var (
		revoked  *license.RevokedError
		expired  *license.ExpiredError
		cooldown *services.CooldownActiveError
	)
	switch {
	case isValidationError(err):
		h.logCommand(ctx, c, "get_download", false, "Invalid key format")
		return errorEmbed("Invalid License Key Format", "License key must be in format: XXXX-XXXX-XXXX-XXXX")
	case errors.Is(err, services.ErrNotRegistered):
		h.logCommand(ctx, c, "get_download", false, "User not registered")
		return errorEmbed("Not Registered", "You need to create an account first.\n\nUse `/signup` with your username, password, and license key to get started!")
	case errors.Is(err, services.ErrKeyMismatch):
		h.logCommand(ctx, c, "get_download", false, "License key mismatch")
		return errorEmbed("Invalid Key Verification", "The license key you entered does not match the one bound to your account.\n\nPlease enter the license key you used to register.")
	case errors.Is(err, license.ErrNotFound):
		h.logCommand(ctx, c, "get_download", false, "No license found")
		return errorEmbed("No Valid License", "Your account does not have a valid license associated with it. Please contact an administrator.")
	case errors.As(err, &revoked):
		h.logCommand(ctx, c, "get_download", false, "License revoked")
		return errorEmbed("License Revoked", "Your license has been revoked and you can no longer access downloads."+reasonSuffix(revoked.Reason)+"\n\nPlease contact an administrator for more information.")
	case errors.Is(err, services.ErrLicenseNotActive):
		h.logCommand(ctx, c, "get_download", false, "License not redeemed")
		return errorEmbed("License Not Active", "Your license is not active. Please use `/redeem` to activate your license key first.")
	case errors.As(err, &expired):
		h.logCommand(ctx, c, "get_download", false, "License expired")
		return errorEmbed("License Expired",
			fmt.Sprintf("Your license expired on %s.\n\nPlease contact an administrator to renew your license.", formatDate(expired.ExpiresAt)))
	case errors.As(err, &cooldown):
		h.logCommand(ctx, c, "get_download", false, "Cooldown active")
		return errorEmbed("Download Cooldown Active",
			fmt.Sprintf("Please wait **%d minute(s)** before requesting another download.", cooldown.RemainingMinutes))
	}

	h.logger.ErrorContext(ctx, "download failed", slog.String("error", err.Error()))
	h.logCommand(ctx, c, "get_download", false, err.Error())
	return errorEmbed("Download Failed", "An unexpected error occurred while processing your download request. Please try again later or contact an administrator.")
}

func reasonSuffix(reason string) string {
	if reason == "" {
		return ""
	}
	return fmt.Sprintf("\n\n**Reason:** %s", reason)
}
