package storage

import "context"

type Guild struct {
	GuildID     string `db:"guild_id"`
	Name        string `db:"guild_name"`
	MemberCount int    `db:"member_count"`
}

// SpamAction is the per-guild response to a user exceeding the message window.
type SpamAction int

const (
	SpamDisabled SpamAction = iota
	SpamDelete
	SpamKick
)

func (a SpamAction) Valid() bool {
	return a >= SpamDisabled && a <= SpamKick
}

func (a SpamAction) String() string {
	switch a {
	case SpamDelete:
		return "delete"
	case SpamKick:
		return "kick"
	default:
		return "disabled"
	}
}

type GuildConfig struct {
	GuildID     string     `db:"guild_id"`
	SpamAction  SpamAction `db:"spam_action"`
	SpamMessage string     `db:"spam_message"`
	// PreviousAction is restored when the spam filter is toggled back on.
	PreviousAction SpamAction `db:"previous_action"`
}

func (s *Store) ListGuilds(ctx context.Context) ([]Guild, error) {
	var guilds []Guild
	err := s.db.SelectContext(ctx, &guilds, `SELECT guild_id, guild_name, member_count FROM guilds ORDER BY guild_id`)
	return guilds, err
}

func (s *Store) Guild(ctx context.Context, guildID string) (Guild, error) {
	var guild Guild
	err := s.get(ctx, &guild, `SELECT guild_id, guild_name, member_count FROM guilds WHERE guild_id = ?`, guildID)
	return guild, err
}

// CreateGuild inserts the guild unless a row already exists and reports whether it did.
func (s *Store) CreateGuild(ctx context.Context, guild Guild) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO guilds (guild_id, guild_name, member_count) VALUES (?, ?, ?)
		ON CONFLICT (guild_id) DO NOTHING`,
		guild.GuildID, guild.Name, guild.MemberCount)
	return n > 0, err
}

func (s *Store) UpdateGuild(ctx context.Context, guild Guild) error {
	_, err := s.exec(ctx, `UPDATE guilds SET guild_name = ?, member_count = ? WHERE guild_id = ?`,
		guild.Name, guild.MemberCount, guild.GuildID)
	return err
}

func (s *Store) DeleteGuild(ctx context.Context, guildID string) error {
	_, err := s.exec(ctx, `DELETE FROM guilds WHERE guild_id = ?`, guildID)
	return err
}

func (s *Store) ListGuildConfigs(ctx context.Context) ([]GuildConfig, error) {
	var configs []GuildConfig
	err := s.db.SelectContext(ctx, &configs, `SELECT guild_id, spam_action, spam_message, previous_action FROM guild_configs ORDER BY guild_id`)
	return configs, err
}

func (s *Store) GuildConfig(ctx context.Context, guildID string) (GuildConfig, error) {
	var cfg GuildConfig
	err := s.get(ctx, &cfg, `SELECT guild_id, spam_action, spam_message, previous_action FROM guild_configs WHERE guild_id = ?`, guildID)
	return cfg, err
}

// EnsureGuildConfig creates a disabled config for the guild if none exists.
func (s *Store) EnsureGuildConfig(ctx context.Context, guildID string) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO guild_configs (guild_id, spam_action, spam_message, previous_action) VALUES (?, ?, '', ?)
		ON CONFLICT (guild_id) DO NOTHING`,
		guildID, SpamDisabled, SpamDisabled)
	return n > 0, err
}

func (s *Store) UpsertGuildConfig(ctx context.Context, cfg GuildConfig) error {
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO guild_configs (guild_id, spam_action, spam_message, previous_action)
		VALUES (:guild_id, :spam_action, :spam_message, :previous_action)
		ON CONFLICT (guild_id) DO UPDATE SET
			spam_action = excluded.spam_action,
			spam_message = excluded.spam_message,
			previous_action = excluded.previous_action`, cfg)
	return err
}

// DeleteOrphanGuildConfigs removes configs whose guild row is gone.
func (s *Store) DeleteOrphanGuildConfigs(ctx context.Context) (int64, error) {
	return s.exec(ctx, `DELETE FROM guild_configs WHERE guild_id NOT IN (SELECT guild_id FROM guilds)`)
}
