package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"rinbot/internal/checks"
	"rinbot/internal/extensions"
	"rinbot/internal/locale"
	"rinbot/internal/responder"
	"rinbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type extensionOp string

const (
	opLoad   extensionOp = "load"
	opUnload extensionOp = "unload"
	opReload extensionOp = "reload"
)

func (b *Bot) handlePing(ctx context.Context, i *discordgo.InteractionCreate, _ options) {
	title, _ := b.responder.Text(i.Interaction, "core_ping_msg", nil)
	latency, _ := b.responder.Text(i.Interaction, "core_ping_latency", locale.Args{"latency": b.gateway.Latency().Milliseconds()})
	b.responder.Send(ctx, i.Interaction, responder.Message{
		Embed: &discordgo.MessageEmbed{Title: title, Description: latency, Color: responder.ColourDefault},
	}, responder.ModePrimary)
}

func (b *Bot) handleShutdown(ctx context.Context, i *discordgo.InteractionCreate, _ options) {
	b.responder.Success(ctx, i.Interaction, "core_shutdown_msg", nil, true)
	b.logger.Info("shutdown requested", zap.String("user_id", checks.InvokerID(i.Interaction)))
	go b.shutdown()
}

func (b *Bot) handleExtensionsList(ctx context.Context, i *discordgo.InteractionCreate, _ options) {
	statuses := b.extensions.List()
	loaded := 0
	lines := make([]string, 0, len(statuses))
	for _, status := range statuses {
		mark := "🔴"
		if status.Loaded {
			mark = "🟢"
			loaded++
		}
		line := fmt.Sprintf("%s `%s`", mark, status.Name)
		if status.Internal {
			line += " 🔒"
		}
		lines = append(lines, line)
	}

	title, _ := b.responder.Text(i.Interaction, "core_ext_list_embed_title", nil)
	footer, _ := b.responder.Text(i.Interaction, "core_ext_list_embed_footer", locale.Args{"loaded": loaded, "total": len(statuses)})
	b.responder.Send(ctx, i.Interaction, responder.Message{
		Embed: &discordgo.MessageEmbed{
			Title:       title,
			Description: strings.Join(lines, "\n"),
			Color:       responder.ColourDefault,
			Footer:      &discordgo.MessageEmbedFooter{Text: footer},
		},
		Ephemeral: true,
	}, responder.ModePrimary)
}

// handleExtensionChange applies op and re-syncs the command list on success.
func (b *Bot) handleExtensionChange(op extensionOp) handlerFunc {
	return func(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
		name := opts.String("extension")
		args := locale.Args{"ext": name}

		var err error
		switch op {
		case opLoad:
			err = b.extensions.Load(name)
		case opUnload:
			err = b.extensions.Unload(name)
		case opReload:
			err = b.extensions.Reload(name)
		}
		if key, ok := extensionErrorKey(err); ok {
			b.responder.Failure(ctx, i.Interaction, key, args, true)
			return
		}
		if err != nil {
			b.fail(ctx, i.Interaction, "ExtensionError", err, zap.String("extension", name))
			return
		}

		b.responder.Success(ctx, i.Interaction, fmt.Sprintf("core_ext_%s_success", op), args, true)
		if err := b.syncCommands(ctx); err != nil {
			b.logger.Error("failed to sync commands", zap.String("extension", name), zap.Error(err))
		}
	}
}

func extensionErrorKey(err error) (string, bool) {
	switch {
	case err == nil:
		return "", false
	case errors.Is(err, extensions.ErrInternal):
		return "core_ext_internal", true
	case errors.Is(err, extensions.ErrNotFound):
		return "core_ext_not_found", true
	case errors.Is(err, extensions.ErrAlreadyLoaded):
		return "core_ext_already_loaded", true
	case errors.Is(err, extensions.ErrNotLoaded):
		return "core_ext_not_loaded", true
	}
	return "", false
}

// handleAdminsMe registers the invoker, who must hold Administrator.
func (b *Bot) handleAdminsMe(ctx context.Context, i *discordgo.InteractionCreate, _ options) {
	userID := checks.InvokerID(i.Interaction)
	isAdmin, err := b.store.IsAdmin(ctx, i.GuildID, userID)
	if err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	if isAdmin {
		b.responder.Failure(ctx, i.Interaction, "core_admins_already_admin", nil, true)
		return
	}
	if i.Member == nil || i.Member.Permissions&discordgo.PermissionAdministrator == 0 {
		b.responder.Failure(ctx, i.Interaction, "core_admins_not_admin", nil, true)
		return
	}
	b.addAdmin(ctx, i, userID, checks.InvokerName(i.Interaction))
}

func (b *Bot) handleAdminsAdd(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	user := b.optionUser(ctx, i, opts, "member")
	if user == nil {
		return
	}
	b.addAdmin(ctx, i, user.ID, user.Username)
}

func (b *Bot) addAdmin(ctx context.Context, i *discordgo.InteractionCreate, userID, userName string) {
	added, err := b.store.AddAdmin(ctx, storage.Admin{
		GuildID:   i.GuildID,
		UserID:    userID,
		GuildName: b.guildName(ctx, i.GuildID),
		UserName:  userName,
	})
	if err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	if !added {
		b.responder.Failure(ctx, i.Interaction, "core_admins_already_admin", nil, true)
		return
	}
	b.responder.Success(ctx, i.Interaction, "core_admins_added", nil, true)
}

func (b *Bot) handleAdminsRemove(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	userID := opts.ID("member")
	removed, err := b.store.RemoveAdmin(ctx, i.GuildID, userID)
	if err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	if !removed {
		b.responder.Failure(ctx, i.Interaction, "core_admins_not_admin", nil, true)
		return
	}
	b.responder.Success(ctx, i.Interaction, "core_admins_removed", nil, true)
}

// handleOwnersMe claims ownership with the token printed at start-up.
func (b *Bot) handleOwnersMe(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	owner := storage.Owner{UserID: checks.InvokerID(i.Interaction), UserName: checks.InvokerName(i.Interaction)}
	err := b.ownerToken.Claim(ctx, b.store, owner, opts.String("token"))
	switch {
	case errors.Is(err, checks.ErrAlreadyOwner):
		b.responder.Failure(ctx, i.Interaction, "core_owners_already_owner", nil, true)
	case errors.Is(err, checks.ErrInvalidToken):
		b.logger.Warn("invalid owner token", zap.String("user_id", owner.UserID))
		b.responder.Failure(ctx, i.Interaction, "core_owners_invalid_token", nil, true)
	case err != nil:
		b.fail(ctx, i.Interaction, "DBError", err)
	default:
		b.logger.Info("owner registered", zap.String("user_id", owner.UserID))
		b.responder.Success(ctx, i.Interaction, "core_owners_added", nil, true)
	}
}

func (b *Bot) handleOwnersAdd(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	user := b.optionUser(ctx, i, opts, "user")
	if user == nil {
		return
	}
	added, err := b.store.AddOwner(ctx, storage.Owner{UserID: user.ID, UserName: user.Username})
	if err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	if !added {
		b.responder.Failure(ctx, i.Interaction, "core_owners_already_owner", nil, true)
		return
	}
	b.responder.Success(ctx, i.Interaction, "core_owners_added", nil, true)
}

func (b *Bot) handleOwnersRemove(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	removed, err := b.store.RemoveOwner(ctx, opts.ID("user"))
	if err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	if !removed {
		b.responder.Failure(ctx, i.Interaction, "core_owners_not_owner", nil, true)
		return
	}
	b.responder.Success(ctx, i.Interaction, "core_owners_removed", nil, true)
}

// optionUser resolves a user option from the interaction payload, falling
// back to the gateway. It answers the interaction itself when it fails.
func (b *Bot) optionUser(ctx context.Context, i *discordgo.InteractionCreate, opts options, name string) *discordgo.User {
	userID := opts.ID(name)
	data := i.ApplicationCommandData()
	if data.Resolved != nil {
		if user, ok := data.Resolved.Users[userID]; ok {
			return user
		}
	}
	user, err := b.gateway.User(ctx, userID)
	if err != nil {
		b.responder.InvalidArguments(ctx, i.Interaction, name)
		return nil
	}
	return user
}

func (b *Bot) guildName(ctx context.Context, guildID string) string {
	if guild, err := b.gateway.Guild(ctx, guildID); err == nil {
		return guild.Name
	}
	return ""
}
