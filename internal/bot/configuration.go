package bot

import (
	"context"
	"errors"

	"rinbot/internal/checks"
	"rinbot/internal/locale"
	"rinbot/internal/modules/welcome"
	"rinbot/internal/responder"
	"rinbot/internal/storage"
	"rinbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	actionConfirm = "confirm"
	actionCancel  = "cancel"
)

type preference string

const (
	prefTranslate preference = "translate"
	prefFactCheck preference = "fact_check"
)

// requireBotPermissions answers the interaction and returns false when the bot
// lacks any of perms in channelID (guild-wide when empty).
func (b *Bot) requireBotPermissions(ctx context.Context, i *discordgo.InteractionCreate, channelID string, perms int64) bool {
	have, err := b.gateway.BotPermissions(ctx, i.GuildID, channelID)
	if err != nil {
		b.fail(ctx, i.Interaction, "PermissionError", err, zap.String("guild_id", i.GuildID))
		return false
	}
	if have&perms != perms {
		b.logger.Warn("bot missing permissions",
			zap.String("guild_id", i.GuildID),
			zap.Int64("required", perms),
			zap.Int64("have", have))
		b.responder.Failure(ctx, i.Interaction, "error_bot_missing_permissions", nil, true)
		return false
	}
	return true
}

func (b *Bot) handleConfigureAutoRole(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	if !b.requireBotPermissions(ctx, i, "", discordgo.PermissionManageRoles) {
		return
	}
	role, err := b.gateway.Role(ctx, i.GuildID, opts.ID("role"))
	if err != nil {
		b.responder.InvalidArguments(ctx, i.Interaction, "role")
		return
	}

	_, err = b.store.AutoRole(ctx, i.GuildID)
	created := errors.Is(err, storage.ErrNotFound)
	if err != nil && !created {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	if err := b.store.UpsertAutoRole(ctx, storage.AutoRole{
		GuildID:   i.GuildID,
		GuildName: b.guildName(ctx, i.GuildID),
		Active:    true,
		RoleID:    role.ID,
		RoleName:  role.Name,
	}); err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}

	key := "config_conf_ar_updated"
	if created {
		key = "config_conf_ar_success"
	}
	b.responder.Success(ctx, i.Interaction, key, locale.Args{"role": role.Name}, true)
}

func (b *Bot) handleConfigureSpamFilter(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	raw, _ := opts.Int("action")
	action := storage.SpamAction(raw)
	if !action.Valid() {
		b.responder.InvalidArguments(ctx, i.Interaction, "action")
		return
	}
	required := int64(0)
	switch action {
	case storage.SpamDelete:
		required = discordgo.PermissionManageMessages
	case storage.SpamKick:
		required = discordgo.PermissionManageMessages | discordgo.PermissionKickMembers
	}
	if required != 0 && !b.requireBotPermissions(ctx, i, "", required) {
		return
	}

	cfg, err := b.store.GuildConfig(ctx, i.GuildID)
	created := errors.Is(err, storage.ErrNotFound)
	if err != nil && !created {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	cfg.GuildID = i.GuildID
	cfg.SpamAction = action
	cfg.SpamMessage = opts.String("message")
	if err := b.store.UpsertGuildConfig(ctx, cfg); err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}

	label, _ := b.responder.Text(i.Interaction, "spam_action_"+action.String(), nil)
	key := "config_conf_sf_updated"
	if created {
		key = "config_conf_sf_success"
	}
	b.responder.Success(ctx, i.Interaction, key, locale.Args{"action": label}, true)
}

// handleConfigureWelcome previews the welcome embed and saves it only when
// the invoker confirms within the interaction timeout.
func (b *Bot) handleConfigureWelcome(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	channel, err := b.gateway.Channel(ctx, opts.ID("channel"))
	if err != nil {
		b.responder.InvalidArguments(ctx, i.Interaction, "channel")
		return
	}
	if !welcome.Postable(channel.Type) {
		b.responder.Failure(ctx, i.Interaction, "config_conf_wc_invalid_channel", nil, true)
		return
	}
	colour := opts.String("colour")
	if colour != "" {
		if _, err := utils.ParseHexColour(colour); err != nil {
			b.responder.Failure(ctx, i.Interaction, "config_conf_wc_invalid_colour", locale.Args{"colour": colour}, true)
			return
		}
	}
	if !b.requireBotPermissions(ctx, i, channel.ID, discordgo.PermissionSendMessages|discordgo.PermissionEmbedLinks) {
		return
	}

	cfg := b.welcomeConfig(ctx, i, channel, opts)
	preview := welcome.Render(cfg, i.Member, b.logger)
	prompt, _ := b.responder.Text(i.Interaction, "config_conf_wc_preview", nil)
	confirmLabel, _ := b.responder.Text(i.Interaction, "ui_wc_confirm_label", nil)
	cancelLabel, _ := b.responder.Text(i.Interaction, "ui_wc_cancel_label", nil)

	original := i.Interaction
	viewID := b.views.open(original, checks.InvokerID(original),
		func(ctx context.Context, click *discordgo.InteractionCreate, action string) {
			b.resolveWelcome(ctx, click, cfg, action)
		},
		func() { b.responder.Timeout(context.Background(), original) })

	b.responder.Send(ctx, original, responder.Message{
		Content: prompt,
		Embed:   preview,
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: confirmLabel, Style: discordgo.SuccessButton, CustomID: customID(viewID, actionConfirm)},
			discordgo.Button{Label: cancelLabel, Style: discordgo.DangerButton, CustomID: customID(viewID, actionCancel)},
		}}},
		Ephemeral: true,
	}, responder.ModePrimary)
}

func (b *Bot) welcomeConfig(ctx context.Context, i *discordgo.InteractionCreate, channel *discordgo.Channel, opts options) storage.WelcomeChannel {
	title := opts.String("title")
	if title == "" {
		title, _ = b.responder.Text(i.Interaction, "welcome_default_title", nil)
	}
	description := opts.String("description")
	if description == "" {
		description, _ = b.responder.Text(i.Interaction, "welcome_default_description", nil)
	}
	colour := opts.String("colour")
	if colour == "" {
		colour = "#FFFFFF"
	}
	avatar, _ := opts.Int("avatar")

	return storage.WelcomeChannel{
		GuildID:     i.GuildID,
		ChannelID:   channel.ID,
		GuildName:   b.guildName(ctx, i.GuildID),
		ChannelName: channel.Name,
		Active:      true,
		Title:       title,
		Description: description,
		Colour:      colour,
		AvatarMode:  storage.AvatarMode(avatar),
	}
}

func (b *Bot) resolveWelcome(ctx context.Context, click *discordgo.InteractionCreate, cfg storage.WelcomeChannel, action string) {
	if action != actionConfirm {
		b.responder.Dispatcher().Update(ctx, click.Interaction, b.notice(click.Interaction, "ui_wc_denied", nil, responder.ColourTimeout))
		return
	}
	if err := b.store.ReplaceWelcomeChannel(ctx, cfg); err != nil {
		b.fail(ctx, click.Interaction, "DBError", err, zap.String("guild_id", cfg.GuildID))
		return
	}
	b.logger.Info("welcome channel saved", zap.String("guild_id", cfg.GuildID), zap.String("channel_id", cfg.ChannelID))
	b.responder.Dispatcher().Update(ctx, click.Interaction, b.notice(click.Interaction, "ui_wc_aproved", nil, responder.ColourSuccess))
}

func (b *Bot) handleConfigureUser(pref preference) handlerFunc {
	return func(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
		enabled, _ := opts.Bool("enabled")
		userID := checks.InvokerID(i.Interaction)

		cfg, err := b.store.UserConfig(ctx, i.GuildID, userID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			b.fail(ctx, i.Interaction, "DBError", err)
			return
		}
		cfg.GuildID, cfg.UserID = i.GuildID, userID

		key := "config_conf_us_translate"
		if pref == prefFactCheck {
			cfg.FactCheckPrivate = enabled
			key = "config_conf_us_fact_check"
		} else {
			cfg.TranslatePrivate = enabled
		}
		if err := b.store.UpsertUserConfig(ctx, cfg); err != nil {
			b.fail(ctx, i.Interaction, "DBError", err)
			return
		}
		b.responder.Success(ctx, i.Interaction, key, locale.Args{"state": b.stateLabel(i.Interaction, enabled)}, true)
	}
}

func (b *Bot) handleToggleAutoRole(ctx context.Context, i *discordgo.InteractionCreate, _ options) {
	cfg, err := b.store.AutoRole(ctx, i.GuildID)
	if errors.Is(err, storage.ErrNotFound) {
		b.responder.Failure(ctx, i.Interaction, "config_toggle_not_configured", nil, true)
		return
	}
	if err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	cfg.Active = !cfg.Active
	if err := b.store.UpsertAutoRole(ctx, cfg); err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	b.responder.Success(ctx, i.Interaction, "config_toggle_ar", locale.Args{"state": b.stateLabel(i.Interaction, cfg.Active)}, true)
}

func (b *Bot) handleToggleSpamFilter(ctx context.Context, i *discordgo.InteractionCreate, _ options) {
	cfg, err := b.store.GuildConfig(ctx, i.GuildID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	toggled, enabled, ok := toggleSpamFilter(cfg)
	if !ok {
		b.responder.Failure(ctx, i.Interaction, "config_toggle_not_configured", nil, true)
		return
	}
	if err := b.store.UpsertGuildConfig(ctx, toggled); err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	b.responder.Success(ctx, i.Interaction, "config_toggle_sf", locale.Args{"state": b.stateLabel(i.Interaction, enabled)}, true)
}

// toggleSpamFilter disables an active filter, remembering its action, or
// restores the remembered action. ok is false when there is nothing to restore.
func toggleSpamFilter(cfg storage.GuildConfig) (storage.GuildConfig, bool, bool) {
	if cfg.SpamAction != storage.SpamDisabled {
		cfg.PreviousAction = cfg.SpamAction
		cfg.SpamAction = storage.SpamDisabled
		return cfg, false, true
	}
	if cfg.PreviousAction == storage.SpamDisabled {
		return cfg, false, false
	}
	cfg.SpamAction = cfg.PreviousAction
	cfg.PreviousAction = storage.SpamDisabled
	return cfg, true, true
}

func (b *Bot) handleToggleWelcome(ctx context.Context, i *discordgo.InteractionCreate, _ options) {
	cfg, err := b.store.WelcomeChannel(ctx, i.GuildID)
	if errors.Is(err, storage.ErrNotFound) {
		b.responder.Failure(ctx, i.Interaction, "config_toggle_not_configured", nil, true)
		return
	}
	if err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	cfg.Active = !cfg.Active
	if err := b.store.UpsertWelcomeChannel(ctx, cfg); err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	b.responder.Success(ctx, i.Interaction, "config_toggle_wc", locale.Args{"state": b.stateLabel(i.Interaction, cfg.Active)}, true)
}

func (b *Bot) stateLabel(i *discordgo.Interaction, enabled bool) string {
	key := "state_disabled"
	if enabled {
		key = "state_enabled"
	}
	label, _ := b.responder.Text(i, key, nil)
	return label
}
