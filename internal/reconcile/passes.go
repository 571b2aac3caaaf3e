package reconcile

import (
	"context"
	"fmt"
	"sort"

	"rinbot/internal/gateway"
	"rinbot/internal/storage"
	"rinbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Welcome channels may point at any of these kinds; the join handler decides
// separately which ones it can post in.
var welcomeChannelTypes = map[discordgo.ChannelType]bool{
	discordgo.ChannelTypeGuildText:     true,
	discordgo.ChannelTypeGuildNews:     true,
	discordgo.ChannelTypeGuildForum:    true,
	discordgo.ChannelTypeGuildCategory: true,
}

func (e *Engine) reconcileGuilds(ctx context.Context, tally *StageReport) error {
	live := e.liveGuilds()
	rows, err := e.store.ListGuilds(ctx)
	if err != nil {
		return fmt.Errorf("list guilds: %w", err)
	}

	known := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		known[row.GuildID] = struct{}{}
		guild, ok := live[row.GuildID]
		if !ok {
			if err := e.store.DeleteGuild(ctx, row.GuildID); err != nil {
				e.fail(tally, "failed to delete guild", err, zap.String("guild_id", row.GuildID))
				continue
			}
			tally.Deleted++
			e.logger.Info("guild no longer joined, removed", zap.String("guild_id", row.GuildID), zap.String("guild_name", row.Name))
			continue
		}
		if guild.Unavailable {
			continue
		}
		want := guildRecord(guild)
		if want == row {
			continue
		}
		if err := e.store.UpdateGuild(ctx, want); err != nil {
			e.fail(tally, "failed to update guild", err, zap.String("guild_id", row.GuildID))
			continue
		}
		tally.Updated++
	}

	for id, guild := range live {
		if _, ok := known[id]; ok || guild.Unavailable {
			continue
		}
		created, err := e.store.CreateGuild(ctx, guildRecord(guild))
		if err != nil {
			e.fail(tally, "failed to create guild", err, zap.String("guild_id", id))
			continue
		}
		if created {
			tally.Created++
			e.logger.Info("guild added", zap.String("guild_id", id), zap.String("guild_name", guild.Name))
		}
	}
	return nil
}

func (e *Engine) reconcileGuildConfigs(ctx context.Context, tally *StageReport) error {
	rows, err := e.store.ListGuilds(ctx)
	if err != nil {
		return fmt.Errorf("list guilds: %w", err)
	}
	for _, row := range rows {
		created, err := e.store.EnsureGuildConfig(ctx, row.GuildID)
		if err != nil {
			e.fail(tally, "failed to create guild config", err, zap.String("guild_id", row.GuildID))
			continue
		}
		if created {
			tally.Created++
		}
	}

	removed, err := e.store.DeleteOrphanGuildConfigs(ctx)
	if err != nil {
		return fmt.Errorf("delete orphaned guild configs: %w", err)
	}
	if removed > 0 {
		e.logger.Info("orphaned guild configs removed", zap.Int64("count", removed))
	}
	tally.Deleted += int(removed)
	return nil
}

func (e *Engine) reconcileAutoRoles(ctx context.Context, tally *StageReport) error {
	rows, err := e.store.ListAutoRoles(ctx)
	if err != nil {
		return fmt.Errorf("list auto roles: %w", err)
	}
	for _, row := range rows {
		fields := []zap.Field{zap.String("guild_id", row.GuildID), zap.String("role_id", row.RoleID)}

		guild, err := e.gateway.Guild(ctx, row.GuildID)
		if err != nil {
			e.resolveFailed(tally, "guild", err, func() error { return e.store.DeleteAutoRole(ctx, row.GuildID) }, fields...)
			continue
		}
		if row.RoleID == "" {
			e.remove(tally, "auto role has no role", e.store.DeleteAutoRole(ctx, row.GuildID), fields...)
			continue
		}
		role, err := e.gateway.Role(ctx, row.GuildID, row.RoleID)
		if err != nil {
			e.resolveFailed(tally, "role", err, func() error { return e.store.DeleteAutoRole(ctx, row.GuildID) }, fields...)
			continue
		}

		want := row
		want.GuildName = guild.Name
		want.RoleName = role.Name
		if want == row {
			continue
		}
		if err := e.store.UpsertAutoRole(ctx, want); err != nil {
			e.fail(tally, "failed to update auto role", err, fields...)
			continue
		}
		tally.Updated++
	}
	return nil
}

func (e *Engine) reconcileWelcomeChannels(ctx context.Context, tally *StageReport) error {
	rows, err := e.store.ListWelcomeChannels(ctx)
	if err != nil {
		return fmt.Errorf("list welcome channels: %w", err)
	}
	for _, row := range rows {
		fields := []zap.Field{zap.String("guild_id", row.GuildID), zap.String("channel_id", row.ChannelID)}
		drop := func() error { return e.store.DeleteWelcomeChannel(ctx, row.GuildID, row.ChannelID) }

		guild, err := e.gateway.Guild(ctx, row.GuildID)
		if err != nil {
			e.resolveFailed(tally, "guild", err, drop, fields...)
			continue
		}
		channel, err := e.gateway.Channel(ctx, row.ChannelID)
		if err != nil {
			e.resolveFailed(tally, "channel", err, drop, fields...)
			continue
		}
		if !welcomeChannelTypes[channel.Type] {
			e.remove(tally, "welcome channel has unsupported type", drop(), append(fields, zap.Int("type", int(channel.Type)))...)
			continue
		}

		want := row
		want.GuildName = guild.Name
		want.ChannelName = channel.Name
		if want == row {
			continue
		}
		if err := e.store.UpsertWelcomeChannel(ctx, want); err != nil {
			e.fail(tally, "failed to update welcome channel", err, fields...)
			continue
		}
		tally.Updated++
	}
	return nil
}

type userKey struct {
	guildID string
	userID  string
}

func (e *Engine) reconcileUsers(ctx context.Context, tally *StageReport) error {
	live := e.liveGuilds()
	rows, err := e.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	existing := make(map[userKey]storage.User, len(rows))
	for _, row := range rows {
		existing[userKey{row.GuildID, row.UserID}] = row
	}

	scanned := make(map[string]bool, len(live))
	seen := make(map[userKey]bool)
	for id, snapshot := range live {
		if snapshot.Unavailable {
			continue
		}
		guild, err := e.gateway.Guild(ctx, id)
		if err != nil {
			e.fail(tally, "failed to resolve guild for member scan", err, zap.String("guild_id", id))
			continue
		}
		members, err := e.gateway.Members(ctx, id)
		if err != nil {
			e.fail(tally, "failed to fetch members", err, zap.String("guild_id", id))
			continue
		}
		scanned[id] = true

		for _, member := range members {
			if member == nil || member.User == nil {
				continue
			}
			want := userRecord(guild, member)
			key := userKey{want.GuildID, want.UserID}
			seen[key] = true

			old, ok := existing[key]
			if ok && old.SameAs(want) {
				continue
			}
			if err := e.store.UpsertUser(ctx, want); err != nil {
				e.fail(tally, "failed to save user", err, zap.String("guild_id", want.GuildID), zap.String("user_id", want.UserID))
				continue
			}
			if ok {
				tally.Updated++
			} else {
				tally.Created++
			}
		}
	}

	for _, row := range rows {
		key := userKey{row.GuildID, row.UserID}
		if seen[key] {
			continue
		}
		// a guild we are still in but could not scan keeps its rows
		if _, inGuild := live[row.GuildID]; inGuild && !scanned[row.GuildID] {
			continue
		}
		if err := e.store.DeleteUser(ctx, row.GuildID, row.UserID); err != nil {
			e.fail(tally, "failed to delete user", err, zap.String("guild_id", row.GuildID), zap.String("user_id", row.UserID))
			continue
		}
		tally.Deleted++
		e.logger.Debug("user no longer in guild, removed", zap.String("guild_id", row.GuildID), zap.String("user_id", row.UserID))
	}
	return nil
}

func (e *Engine) reconcileUserConfigs(ctx context.Context, tally *StageReport) error {
	rows, err := e.store.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	for _, row := range rows {
		created, err := e.store.EnsureUserConfig(ctx, row.GuildID, row.UserID)
		if err != nil {
			e.fail(tally, "failed to create user config", err, zap.String("guild_id", row.GuildID), zap.String("user_id", row.UserID))
			continue
		}
		if created {
			tally.Created++
		}
	}

	removed, err := e.store.DeleteOrphanUserConfigs(ctx)
	if err != nil {
		return fmt.Errorf("delete orphaned user configs: %w", err)
	}
	if removed > 0 {
		e.logger.Info("orphaned user configs removed", zap.Int64("count", removed))
	}
	tally.Deleted += int(removed)
	return nil
}

// resolveFailed deletes the record when the entity is gone and otherwise
// leaves it for the next sweep.
func (e *Engine) resolveFailed(tally *StageReport, entity string, err error, drop func() error, fields ...zap.Field) {
	if !gateway.IsGone(err) {
		e.fail(tally, "failed to resolve "+entity, err, fields...)
		return
	}
	e.remove(tally, entity+" no longer exists", drop(), fields...)
}

func (e *Engine) remove(tally *StageReport, reason string, err error, fields ...zap.Field) {
	if err != nil {
		e.fail(tally, "failed to delete record", err, fields...)
		return
	}
	tally.Deleted++
	e.logger.Info(reason+", record removed", fields...)
}

func (e *Engine) fail(tally *StageReport, msg string, err error, fields ...zap.Field) {
	tally.Failed++
	e.logger.Warn(msg, append(fields, zap.Error(err))...)
}

func guildRecord(guild *discordgo.Guild) storage.Guild {
	return storage.Guild{GuildID: guild.ID, Name: guild.Name, MemberCount: guild.MemberCount}
}

func userRecord(guild *discordgo.Guild, member *discordgo.Member) storage.User {
	user := member.User
	global := user.GlobalName
	if global == "" {
		global = user.Username
	}
	return storage.User{
		GuildID:     guild.ID,
		UserID:      user.ID,
		GuildName:   guild.Name,
		UserName:    user.Username,
		GlobalName:  global,
		DisplayName: utils.MemberDisplayName(member),
		Roles:       roleNames(guild, member),
	}
}

// roleNames lists the member's role names from lowest to highest, without
// the everyone role.
func roleNames(guild *discordgo.Guild, member *discordgo.Member) storage.RoleNames {
	held := make(map[string]bool, len(member.Roles))
	for _, id := range member.Roles {
		held[id] = true
	}
	var roles []*discordgo.Role
	for _, role := range guild.Roles {
		if role.ID != guild.ID && held[role.ID] {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool {
		if roles[i].Position != roles[j].Position {
			return roles[i].Position < roles[j].Position
		}
		return roles[i].ID < roles[j].ID
	})
	names := make(storage.RoleNames, 0, len(roles))
	for _, role := range roles {
		names = append(names, role.Name)
	}
	return names
}
