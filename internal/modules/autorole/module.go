package autorole

import (
	"context"
	"errors"
	"slices"

	"rinbot/internal/gateway"
	"rinbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type ConfigSource interface {
	AutoRole(ctx context.Context, guildID string) (storage.AutoRole, error)
}

type Gateway interface {
	Role(ctx context.Context, guildID, roleID string) (*discordgo.Role, error)
	BotPermissions(ctx context.Context, guildID, channelID string) (int64, error)
	AddRole(ctx context.Context, guildID, userID, roleID string) error
}

// Module grants the guild's configured role to joining members.
type Module struct {
	configs ConfigSource
	gateway Gateway
	logger  *zap.Logger
}

func New(configs ConfigSource, gateway Gateway, logger *zap.Logger) *Module {
	return &Module{configs: configs, gateway: gateway, logger: logger}
}

// HandleJoin reports whether the role was granted. Errors never leave this
// method; a role above the bot's highest role is logged and ignored.
func (m *Module) HandleJoin(ctx context.Context, member *discordgo.Member) bool {
	if member == nil || member.User == nil {
		return false
	}
	fields := []zap.Field{zap.String("guild_id", member.GuildID), zap.String("user_id", member.User.ID)}

	cfg, err := m.configs.AutoRole(ctx, member.GuildID)
	if errors.Is(err, storage.ErrNotFound) {
		m.logger.Debug("no auto role configured", fields...)
		return false
	}
	if err != nil {
		m.logger.Warn("failed to load auto role", append(fields, zap.Error(err))...)
		return false
	}
	if !cfg.Active || cfg.RoleID == "" {
		m.logger.Debug("auto role inactive", fields...)
		return false
	}
	fields = append(fields, zap.String("role_id", cfg.RoleID))

	role, err := m.gateway.Role(ctx, member.GuildID, cfg.RoleID)
	if err != nil {
		m.logger.Warn("auto role not found", append(fields, zap.Error(err))...)
		return false
	}
	if slices.Contains(member.Roles, role.ID) {
		m.logger.Debug("member already has auto role", fields...)
		return false
	}

	perms, err := m.gateway.BotPermissions(ctx, member.GuildID, "")
	if err != nil {
		m.logger.Warn("failed to resolve bot permissions", append(fields, zap.Error(err))...)
		return false
	}
	if perms&discordgo.PermissionManageRoles == 0 {
		m.logger.Warn("missing manage roles permission", fields...)
		return false
	}

	if err := m.gateway.AddRole(ctx, member.GuildID, member.User.ID, role.ID); err != nil {
		if errors.Is(err, gateway.ErrForbidden) {
			m.logger.Warn("cannot assign auto role, it is probably above the bot's highest role",
				append(fields, zap.String("role_name", role.Name))...)
			return false
		}
		m.logger.Error("failed to assign auto role", append(fields, zap.Error(err))...)
		return false
	}
	m.logger.Info("auto role assigned", append(fields, zap.String("role_name", role.Name))...)
	return true
}
