package storage

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
)

// RoleNames is a member's role-name snapshot, stored as a JSON array.
type RoleNames []string

func (r RoleNames) Value() (driver.Value, error) {
	if r == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(r))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (r *RoleNames) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*r = RoleNames{}
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("scan role names: unsupported type %T", src)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return fmt.Errorf("scan role names: %w", err)
	}
	*r = names
	return nil
}

func (r RoleNames) Equal(other RoleNames) bool {
	if len(r) == 0 && len(other) == 0 {
		return true
	}
	return slices.Equal(r, other)
}

type User struct {
	GuildID     string    `db:"guild_id"`
	UserID      string    `db:"user_id"`
	GuildName   string    `db:"guild_name"`
	UserName    string    `db:"user_name"`
	GlobalName  string    `db:"global_name"`
	DisplayName string    `db:"display_name"`
	Roles       RoleNames `db:"roles"`
}

// SameAs reports whether every tracked field matches.
func (u User) SameAs(other User) bool {
	return u.GuildID == other.GuildID &&
		u.UserID == other.UserID &&
		u.GuildName == other.GuildName &&
		u.UserName == other.UserName &&
		u.GlobalName == other.GlobalName &&
		u.DisplayName == other.DisplayName &&
		u.Roles.Equal(other.Roles)
}

type UserConfig struct {
	GuildID          string `db:"guild_id"`
	UserID           string `db:"user_id"`
	TranslatePrivate bool   `db:"translate_private"`
	FactCheckPrivate bool   `db:"fact_check_private"`
}

const userColumns = `guild_id, user_id, guild_name, user_name, global_name, display_name, roles`

func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY guild_id, user_id`)
	return users, err
}

func (s *Store) User(ctx context.Context, guildID, userID string) (User, error) {
	var user User
	err := s.get(ctx, &user, `SELECT `+userColumns+` FROM users WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return user, err
}

func (s *Store) UpsertUser(ctx context.Context, user User) error {
	if user.Roles == nil {
		user.Roles = RoleNames{}
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (guild_id, user_id, guild_name, user_name, global_name, display_name, roles)
		VALUES (:guild_id, :user_id, :guild_name, :user_name, :global_name, :display_name, :roles)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			guild_name = excluded.guild_name,
			user_name = excluded.user_name,
			global_name = excluded.global_name,
			display_name = excluded.display_name,
			roles = excluded.roles`, user)
	return err
}

func (s *Store) DeleteUser(ctx context.Context, guildID, userID string) error {
	_, err := s.exec(ctx, `DELETE FROM users WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return err
}

func (s *Store) UserConfig(ctx context.Context, guildID, userID string) (UserConfig, error) {
	var cfg UserConfig
	err := s.get(ctx, &cfg, `SELECT guild_id, user_id, translate_private, fact_check_private FROM user_configs WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return cfg, err
}

// EnsureUserConfig creates the default config for a member if none exists.
func (s *Store) EnsureUserConfig(ctx context.Context, guildID, userID string) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO user_configs (guild_id, user_id, translate_private, fact_check_private) VALUES (?, ?, ?, ?)
		ON CONFLICT (guild_id, user_id) DO NOTHING`,
		guildID, userID, false, false)
	return n > 0, err
}

func (s *Store) UpsertUserConfig(ctx context.Context, cfg UserConfig) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO user_configs (guild_id, user_id, translate_private, fact_check_private)
		VALUES (:guild_id, :user_id, :translate_private, :fact_check_private)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			translate_private = excluded.translate_private,
			fact_check_private = excluded.fact_check_private`, cfg)
	return err
}

// DeleteOrphanUserConfigs removes configs without a matching user row.
func (s *Store) DeleteOrphanUserConfigs(ctx context.Context) (int64, error) {
	return s.exec(ctx, `
		DELETE FROM user_configs
		WHERE NOT EXISTS (
			SELECT 1 FROM users
			WHERE users.guild_id = user_configs.guild_id AND users.user_id = user_configs.user_id
		)`)
}
