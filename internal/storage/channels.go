package storage

import (
	"context"
	"fmt"
)

type AutoRole struct {
	GuildID   string `db:"guild_id"`
	GuildName string `db:"guild_name"`
	Active    bool   `db:"active"`
	RoleID    string `db:"role_id"`
	RoleName  string `db:"role_name"`
}

// AvatarMode controls how the joining member's avatar is attached to a welcome embed.
type AvatarMode int

const (
	AvatarNone AvatarMode = iota
	AvatarThumbnail
	AvatarImage
)

type WelcomeChannel struct {
	GuildID     string     `db:"guild_id"`
	ChannelID   string     `db:"channel_id"`
	GuildName   string     `db:"guild_name"`
	ChannelName string     `db:"channel_name"`
	Active      bool       `db:"active"`
	Title       string     `db:"title"`
	Description string     `db:"description"`
	Colour      string     `db:"colour"`
	AvatarMode  AvatarMode `db:"avatar_mode"`
}

const autoRoleColumns = `guild_id, guild_name, active, role_id, role_name`

func (s *Store) ListAutoRoles(ctx context.Context) ([]AutoRole, error) {
	var roles []AutoRole
	err := s.db.SelectContext(ctx, &roles, `SELECT `+autoRoleColumns+` FROM auto_roles ORDER BY guild_id`)
	return roles, err
}

func (s *Store) AutoRole(ctx context.Context, guildID string) (AutoRole, error) {
	var role AutoRole
	err := s.get(ctx, &role, `SELECT `+autoRoleColumns+` FROM auto_roles WHERE guild_id = ?`, guildID)
	return role, err
}

func (s *Store) UpsertAutoRole(ctx context.Context, role AutoRole) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO auto_roles (guild_id, guild_name, active, role_id, role_name)
		VALUES (:guild_id, :guild_name, :active, :role_id, :role_name)
		ON CONFLICT (guild_id) DO UPDATE SET
			guild_name = excluded.guild_name,
			active = excluded.active,
			role_id = excluded.role_id,
			role_name = excluded.role_name`, role)
	return err
}

func (s *Store) DeleteAutoRole(ctx context.Context, guildID string) error {
	_, err := s.exec(ctx, `DELETE FROM auto_roles WHERE guild_id = ?`, guildID)
	return err
}

const welcomeColumns = `guild_id, channel_id, guild_name, channel_name, active, title, description, colour, avatar_mode`

func (s *Store) ListWelcomeChannels(ctx context.Context) ([]WelcomeChannel, error) {
	var channels []WelcomeChannel
	err := s.db.SelectContext(ctx, &channels, `SELECT `+welcomeColumns+` FROM welcome_channels ORDER BY guild_id, channel_id`)
	return channels, err
}

// WelcomeChannel returns the guild's welcome configuration.
func (s *Store) WelcomeChannel(ctx context.Context, guildID string) (WelcomeChannel, error) {
	var channel WelcomeChannel
	err := s.get(ctx, &channel, `SELECT `+welcomeColumns+` FROM welcome_channels WHERE guild_id = ? ORDER BY channel_id LIMIT 1`, guildID)
	return channel, err
}

func (s *Store) UpsertWelcomeChannel(ctx context.Context, channel WelcomeChannel) error {
	_, err := s.db.NamedExecContext(ctx, upsertWelcomeQuery, channel)
	return err
}

// ReplaceWelcomeChannel makes channel the only welcome configuration of its guild.
func (s *Store) ReplaceWelcomeChannel(ctx context.Context, channel WelcomeChannel) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM welcome_channels WHERE guild_id = ? AND channel_id <> ?`), channel.GuildID, channel.ChannelID); err != nil {
		return fmt.Errorf("clear welcome channels: %w", err)
	}
	if _, err := tx.NamedExecContext(ctx, upsertWelcomeQuery, channel); err != nil {
		return fmt.Errorf("save welcome channel: %w", err)
	}
	return tx.Commit()
}

func (s *Store) DeleteWelcomeChannel(ctx context.Context, guildID, channelID string) error {
	_, err := s.exec(ctx, `DELETE FROM welcome_channels WHERE guild_id = ? AND channel_id = ?`, guildID, channelID)
	return err
}

const upsertWelcomeQuery = `
	INSERT INTO welcome_channels (guild_id, channel_id, guild_name, channel_name, active, title, description, colour, avatar_mode)
	VALUES (:guild_id, :channel_id, :guild_name, :channel_name, :active, :title, :description, :colour, :avatar_mode)
	ON CONFLICT (guild_id, channel_id) DO UPDATE SET
		guild_name = excluded.guild_name,
		channel_name = excluded.channel_name,
		active = excluded.active,
		title = excluded.title,
		description = excluded.description,
		colour = excluded.colour,
		avatar_mode = excluded.avatar_mode`
