package checks

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Reason names why a command invocation was refused.
type Reason string

const (
	NotInGuild  Reason = "not_in_guild"
	NotOwner    Reason = "not_owner"
	NotAdmin    Reason = "not_admin"
	Blacklisted Reason = "blacklisted"

	// NoOwners refuses owner-only commands before anyone has claimed the bot.
	NoOwners           Reason = "owners_empty"
	MissingPermissions Reason = "missing_permissions"
)

// ResponseKey is the locale key of the message shown to the denied user.
func (r Reason) ResponseKey() string {
	return "error_" + string(r)
}

// Result is the outcome of a check. The zero value allows the invocation.
// Err is set when the check itself could not be evaluated.
type Result struct {
	Reason Reason
	Err    error
}

func Allow() Result {
	return Result{}
}

func Deny(reason Reason) Result {
	return Result{Reason: reason}
}

func Failed(err error) Result {
	return Result{Err: err}
}

func (r Result) Allowed() bool {
	return r.Reason == "" && r.Err == nil
}

type Check func(ctx context.Context, i *discordgo.InteractionCreate) Result

type OwnerStore interface {
	IsOwner(ctx context.Context, userID string) (bool, error)
}

type OwnerCounter interface {
	CountOwners(ctx context.Context) (int, error)
}

type BlacklistStore interface {
	IsBlacklisted(ctx context.Context, guildID, userID string) (bool, error)
}

type PermissionResolver interface {
	MemberPermissions(ctx context.Context, guildID, userID string) (int64, error)
}

// All runs checks in order and returns the first result that does not allow
// the invocation.
func All(checks ...Check) Check {
	return func(ctx context.Context, i *discordgo.InteractionCreate) Result {
		for _, check := range checks {
			if result := check(ctx, i); !result.Allowed() {
				return result
			}
		}
		return Allow()
	}
}

func Guild() Check {
	return func(_ context.Context, i *discordgo.InteractionCreate) Result {
		if i.GuildID == "" {
			return Deny(NotInGuild)
		}
		return Allow()
	}
}

func Owner(store OwnerStore) Check {
	return func(ctx context.Context, i *discordgo.InteractionCreate) Result {
		ok, err := store.IsOwner(ctx, InvokerID(i.Interaction))
		if err != nil {
			return Failed(err)
		}
		if !ok {
			return Deny(NotOwner)
		}
		return Allow()
	}
}

func OwnersRegistered(counter OwnerCounter) Check {
	return func(ctx context.Context, _ *discordgo.InteractionCreate) Result {
		count, err := counter.CountOwners(ctx)
		if err != nil {
			return Failed(err)
		}
		if count == 0 {
			return Deny(NoOwners)
		}
		return Allow()
	}
}

// Admin requires the invoker to hold Administrator in the current guild.
// Permissions sent with the interaction are used when present.
func Admin(resolver PermissionResolver, logger *zap.Logger) Check {
	return func(ctx context.Context, i *discordgo.InteractionCreate) Result {
		if i.GuildID == "" {
			return Deny(NotInGuild)
		}
		perms, ok := invokerPermissions(ctx, resolver, logger, i)
		if !ok || perms&discordgo.PermissionAdministrator == 0 {
			return Deny(NotAdmin)
		}
		return Allow()
	}
}

// Permissions requires the invoker to hold every permission in required in
// the current guild. Administrator implies all of them.
func Permissions(required int64, resolver PermissionResolver, logger *zap.Logger) Check {
	return func(ctx context.Context, i *discordgo.InteractionCreate) Result {
		if i.GuildID == "" {
			return Deny(NotInGuild)
		}
		perms, ok := invokerPermissions(ctx, resolver, logger, i)
		if !ok {
			return Deny(MissingPermissions)
		}
		if perms&discordgo.PermissionAdministrator != 0 || perms&required == required {
			return Allow()
		}
		return Deny(MissingPermissions)
	}
}

func invokerPermissions(ctx context.Context, resolver PermissionResolver, logger *zap.Logger, i *discordgo.InteractionCreate) (int64, bool) {
	if i.Member != nil && i.Member.Permissions != 0 {
		return i.Member.Permissions, true
	}
	perms, err := resolver.MemberPermissions(ctx, i.GuildID, InvokerID(i.Interaction))
	if err != nil {
		logger.Warn("failed to resolve member",
			zap.String("guild_id", i.GuildID),
			zap.String("user_id", InvokerID(i.Interaction)),
			zap.Error(err))
		return 0, false
	}
	return perms, true
}

// NotBlacklisted refuses users on the guild's blacklist. Outside a guild there
// is no blacklist to consult.
func NotBlacklisted(store BlacklistStore) Check {
	return func(ctx context.Context, i *discordgo.InteractionCreate) Result {
		if i.GuildID == "" {
			return Allow()
		}
		listed, err := store.IsBlacklisted(ctx, i.GuildID, InvokerID(i.Interaction))
		if err != nil {
			return Failed(err)
		}
		if listed {
			return Deny(Blacklisted)
		}
		return Allow()
	}
}

func InvokerID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func InvokerName(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.Username
	}
	if i.User != nil {
		return i.User.Username
	}
	return ""
}
