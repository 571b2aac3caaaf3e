package storage

import "context"

type Admin struct {
	GuildID   string `db:"guild_id"`
	UserID    string `db:"user_id"`
	GuildName string `db:"guild_name"`
	UserName  string `db:"user_name"`
}

type Owner struct {
	UserID   string `db:"user_id"`
	UserName string `db:"user_name"`
}

type Blacklisted struct {
	GuildID   string `db:"guild_id"`
	UserID    string `db:"user_id"`
	GuildName string `db:"guild_name"`
	UserName  string `db:"user_name"`
}

// AddAdmin reports false when the user already was an admin of the guild.
func (s *Store) AddAdmin(ctx context.Context, admin Admin) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO admins (guild_id, user_id, guild_name, user_name) VALUES (?, ?, ?, ?)
		ON CONFLICT (guild_id, user_id) DO NOTHING`,
		admin.GuildID, admin.UserID, admin.GuildName, admin.UserName)
	return n > 0, err
}

func (s *Store) RemoveAdmin(ctx context.Context, guildID, userID string) (bool, error) {
	n, err := s.exec(ctx, `DELETE FROM admins WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return n > 0, err
}

func (s *Store) IsAdmin(ctx context.Context, guildID, userID string) (bool, error) {
	return s.exists(ctx, `SELECT COUNT(*) FROM admins WHERE guild_id = ? AND user_id = ?`, guildID, userID)
}

func (s *Store) ListAdmins(ctx context.Context, guildID string) ([]Admin, error) {
	var admins []Admin
	err := s.db.SelectContext(ctx, &admins, s.db.Rebind(`SELECT guild_id, user_id, guild_name, user_name FROM admins WHERE guild_id = ? ORDER BY user_id`), guildID)
	return admins, err
}

func (s *Store) AddOwner(ctx context.Context, owner Owner) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO owners (user_id, user_name) VALUES (?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		owner.UserID, owner.UserName)
	return n > 0, err
}

func (s *Store) RemoveOwner(ctx context.Context, userID string) (bool, error) {
	n, err := s.exec(ctx, `DELETE FROM owners WHERE user_id = ?`, userID)
	return n > 0, err
}

func (s *Store) IsOwner(ctx context.Context, userID string) (bool, error) {
	return s.exists(ctx, `SELECT COUNT(*) FROM owners WHERE user_id = ?`, userID)
}

func (s *Store) CountOwners(ctx context.Context) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM owners`)
	return count, err
}

func (s *Store) AddBlacklisted(ctx context.Context, entry Blacklisted) (bool, error) {
	n, err := s.exec(ctx, `
		INSERT INTO blacklist (guild_id, user_id, guild_name, user_name) VALUES (?, ?, ?, ?)
		ON CONFLICT (guild_id, user_id) DO NOTHING`,
		entry.GuildID, entry.UserID, entry.GuildName, entry.UserName)
	return n > 0, err
}

func (s *Store) RemoveBlacklisted(ctx context.Context, guildID, userID string) (bool, error) {
	n, err := s.exec(ctx, `DELETE FROM blacklist WHERE guild_id = ? AND user_id = ?`, guildID, userID)
	return n > 0, err
}

func (s *Store) IsBlacklisted(ctx context.Context, guildID, userID string) (bool, error) {
	return s.exists(ctx, `SELECT COUNT(*) FROM blacklist WHERE guild_id = ? AND user_id = ?`, guildID, userID)
}
