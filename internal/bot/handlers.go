package bot

import (
	"context"
	"fmt"
	"time"

	"rinbot/internal/checks"
	"rinbot/internal/locale"
	"rinbot/internal/responder"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type handlerFunc func(ctx context.Context, i *discordgo.InteractionCreate, opts options)

// command is one invocable path, e.g. "ping" or "admins add".
type command struct {
	check   checks.Check
	handler handlerFunc
}

func (b *Bot) onInteractionCreate(_ *discordgo.Session, interaction *discordgo.InteractionCreate) {
	if !b.enter() {
		return
	}
	defer b.inflight.Done()
	ctx := b.ctx
	defer b.incidents.Recover("interaction", func() {
		b.responder.UnknownFailure(ctx, interaction.Interaction)
	}, zap.String("interaction_id", interaction.ID), zap.String("user_id", checks.InvokerID(interaction.Interaction)))

	switch interaction.Type {
	case discordgo.InteractionApplicationCommand:
		b.handleCommand(ctx, interaction)
	case discordgo.InteractionMessageComponent:
		b.handleComponent(ctx, interaction)
	}
}

func (b *Bot) handleCommand(ctx context.Context, interaction *discordgo.InteractionCreate) {
	data := interaction.ApplicationCommandData()
	path, opts := commandPath(data)
	fields := []zap.Field{
		zap.String("command", path),
		zap.String("user_id", checks.InvokerID(interaction.Interaction)),
		zap.String("guild_id", interaction.GuildID),
	}

	cmd, ok := b.commands[path]
	if !ok || !b.extensions.Enabled(data.Name) {
		b.logger.Warn("command not available", fields...)
		b.responder.UnknownFailure(ctx, interaction.Interaction)
		return
	}

	started := time.Now()
	if cmd.check != nil {
		result := cmd.check(ctx, interaction)
		if result.Err != nil {
			b.fail(ctx, interaction.Interaction, "CheckError", result.Err, fields...)
			return
		}
		if !result.Allowed() {
			b.deny(ctx, interaction.Interaction, result.Reason, fields...)
			return
		}
	}

	cmd.handler(ctx, interaction, opts)

	b.logger.Info(fmt.Sprintf("command executed by %s in %s", checks.InvokerName(interaction.Interaction), b.guildLabel(ctx, interaction.GuildID)),
		append(fields, zap.Duration("took", time.Since(started)))...)
}

func (b *Bot) handleComponent(ctx context.Context, interaction *discordgo.InteractionCreate) {
	data := interaction.MessageComponentData()
	viewID, action := splitCustomID(data.CustomID)

	pending := b.views.peek(viewID)
	if pending == nil {
		b.responder.Dispatcher().Update(ctx, interaction.Interaction, b.notice(interaction.Interaction, "error_interaction_timeout", nil, responder.ColourTimeout))
		return
	}
	if pending.owner != checks.InvokerID(interaction.Interaction) {
		b.responder.Failure(ctx, interaction.Interaction, "error_not_your_interaction", nil, true)
		return
	}
	if pending = b.views.take(viewID); pending == nil {
		return
	}
	pending.onAction(ctx, interaction, action)
}

// deny reports a refused invocation: one warning line and one ephemeral reply.
func (b *Bot) deny(ctx context.Context, i *discordgo.Interaction, reason checks.Reason, fields ...zap.Field) {
	b.logger.Warn("command denied", append(fields, zap.String("reason", string(reason)))...)
	b.responder.Failure(ctx, i, reason.ResponseKey(), nil, true)
}

// fail records an unexpected error and tells the user something went wrong.
func (b *Bot) fail(ctx context.Context, i *discordgo.Interaction, kind string, err error, fields ...zap.Field) {
	path, recErr := b.incidents.Record(kind, err, fields...)
	if recErr != nil {
		b.logger.Error("failed to write incident file", zap.Error(recErr))
	}
	b.logger.Error("command failed", append(fields, zap.Error(err), zap.String("trace", path))...)
	b.responder.UnknownFailure(ctx, i)
}

func (b *Bot) notice(i *discordgo.Interaction, key string, args locale.Args, colour int) responder.Message {
	text, _ := b.responder.Text(i, key, args)
	return responder.Message{Embed: &discordgo.MessageEmbed{Description: text, Color: colour}}
}

func (b *Bot) guildLabel(ctx context.Context, guildID string) string {
	if guildID == "" {
		return "DMs"
	}
	if guild, err := b.gateway.Guild(ctx, guildID); err == nil && guild.Name != "" {
		return guild.Name
	}
	return guildID
}

// options indexes the leaf options of an invocation by name.
type options map[string]*discordgo.ApplicationCommandInteractionDataOption

// commandPath returns "name" or "name subcommand" and the options of the
// invoked leaf.
func commandPath(data discordgo.ApplicationCommandInteractionData) (string, options) {
	path := data.Name
	leaf := data.Options
	if len(leaf) > 0 && leaf[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		path += " " + leaf[0].Name
		leaf = leaf[0].Options
	}
	opts := make(options, len(leaf))
	for _, opt := range leaf {
		opts[opt.Name] = opt
	}
	return path, opts
}

func (o options) String(name string) string {
	if opt, ok := o[name]; ok {
		if value, ok := opt.Value.(string); ok {
			return value
		}
	}
	return ""
}

func (o options) Int(name string) (int64, bool) {
	opt, ok := o[name]
	if !ok {
		return 0, false
	}
	// numbers arrive as float64 from the JSON payload
	if value, ok := opt.Value.(float64); ok {
		return int64(value), true
	}
	return 0, false
}

func (o options) Bool(name string) (bool, bool) {
	opt, ok := o[name]
	if !ok {
		return false, false
	}
	value, ok := opt.Value.(bool)
	return value, ok
}

// ID returns the snowflake of a user, role or channel option.
func (o options) ID(name string) string {
	return o.String(name)
}
