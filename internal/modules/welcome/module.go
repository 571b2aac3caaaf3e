package welcome

import (
	"context"
	"errors"

	"rinbot/internal/storage"
	"rinbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type ConfigSource interface {
	WelcomeChannel(ctx context.Context, guildID string) (storage.WelcomeChannel, error)
}

type Gateway interface {
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
}

// Module posts the guild's welcome embed when a member joins.
type Module struct {
	configs ConfigSource
	gateway Gateway
	logger  *zap.Logger
}

func New(configs ConfigSource, gateway Gateway, logger *zap.Logger) *Module {
	return &Module{configs: configs, gateway: gateway, logger: logger}
}

// Postable reports whether welcome messages can be sent to a channel of this type.
func Postable(channelType discordgo.ChannelType) bool {
	return channelType == discordgo.ChannelTypeGuildText || channelType == discordgo.ChannelTypeGuildNews
}

// HandleJoin sends the welcome embed for member and reports whether it was posted.
// Every failure is logged here.
func (m *Module) HandleJoin(ctx context.Context, member *discordgo.Member) bool {
	if member == nil || member.User == nil {
		return false
	}
	fields := []zap.Field{zap.String("guild_id", member.GuildID), zap.String("user_id", member.User.ID)}

	cfg, err := m.configs.WelcomeChannel(ctx, member.GuildID)
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.Debug("no welcome channel configured", fields...)
		return false
	}
	if err != nil {
		m.logger.Warn("failed to load welcome channel", append(fields, zap.Error(err))...)
		return false
	}
	if !cfg.Active || cfg.ChannelID == "" {
		m.logger.Debug("welcome channel inactive", fields...)
		return false
	}
	fields = append(fields, zap.String("channel_id", cfg.ChannelID))

	channel, err := m.gateway.Channel(ctx, cfg.ChannelID)
	if err != nil {
		m.logger.Warn("welcome channel unavailable", append(fields, zap.Error(err))...)
		return false
	}
	if !Postable(channel.Type) {
		m.logger.Info("welcome channel cannot receive messages", append(fields, zap.Int("type", int(channel.Type)))...)
		return false
	}

	embed := Render(cfg, member, m.logger)
	if _, err := m.gateway.Send(ctx, channel.ID, &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}); err != nil {
		m.logger.Warn("failed to send welcome message", append(fields, zap.Error(err))...)
		return false
	}
	m.logger.Info("welcome message sent", fields...)
	return true
}

// Render builds the welcome embed for member. Title and description are
// substituted independently.
func Render(cfg storage.WelcomeChannel, member *discordgo.Member, logger *zap.Logger) *discordgo.MessageEmbed {
	name := utils.MemberDisplayName(member)
	mention := ""
	if member != nil && member.User != nil {
		mention = member.User.Mention()
	}

	embed := &discordgo.MessageEmbed{
		Title:       utils.RenderMemberTemplate(cfg.Title, name, mention),
		Description: utils.RenderMemberTemplate(cfg.Description, name, mention),
	}
	if cfg.Colour != "" {
		colour, err := utils.ParseHexColour(cfg.Colour)
		if err != nil {
			logger.Debug("invalid welcome colour", zap.String("guild_id", cfg.GuildID), zap.Error(err))
		} else {
			embed.Color = colour
		}
	}

	if member == nil || member.User == nil {
		return embed
	}
	avatar := member.User.AvatarURL("")
	switch cfg.AvatarMode {
	case storage.AvatarThumbnail:
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatar}
	case storage.AvatarImage:
		embed.Image = &discordgo.MessageEmbedImage{URL: avatar}
	}
	return embed
}
