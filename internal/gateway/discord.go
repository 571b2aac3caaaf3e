package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var (
	ErrNotFound  = errors.New("gateway: not found")
	ErrForbidden = errors.New("gateway: forbidden")
)

const membersPageSize = 1000

// IsGone reports whether err means the entity no longer exists or the bot can
// no longer see it.
func IsGone(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}

// Discord resolves guild entities from the session state and falls back to
// REST when they are not cached.
type Discord struct {
	session *discordgo.Session
	logger  *zap.Logger
}

func New(session *discordgo.Session, logger *zap.Logger) *Discord {
	return &Discord{session: session, logger: logger}
}

func (d *Discord) Session() *discordgo.Session {
	return d.session
}

func (d *Discord) BotID() string {
	if d.session.State == nil || d.session.State.User == nil {
		return ""
	}
	return d.session.State.User.ID
}

func (d *Discord) Latency() time.Duration {
	return d.session.HeartbeatLatency()
}

// Guilds returns the guilds in the session state, including unavailable ones.
func (d *Discord) Guilds() []*discordgo.Guild {
	state := d.session.State
	state.RLock()
	defer state.RUnlock()
	return append([]*discordgo.Guild(nil), state.Guilds...)
}

func (d *Discord) Guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if guild, err := d.session.State.Guild(guildID); err == nil && guild != nil {
		return guild, nil
	}
	guild, err := d.session.Guild(guildID, discordgo.WithContext(ctx))
	return guild, classify(err)
}

func (d *Discord) Member(ctx context.Context, guildID, userID string) (*discordgo.Member, error) {
	if member, err := d.session.State.Member(guildID, userID); err == nil && member != nil {
		return member, nil
	}
	member, err := d.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	return member, classify(err)
}

// Members enumerates every member of the guild through the paginated REST endpoint.
func (d *Discord) Members(ctx context.Context, guildID string) ([]*discordgo.Member, error) {
	var members []*discordgo.Member
	after := ""
	for {
		page, err := d.session.GuildMembers(guildID, after, membersPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, classify(err)
		}
		members = append(members, page...)
		if len(page) < membersPageSize {
			return members, nil
		}
		last := page[len(page)-1]
		if last.User == nil {
			return members, nil
		}
		after = last.User.ID
	}
}

func (d *Discord) Role(ctx context.Context, guildID, roleID string) (*discordgo.Role, error) {
	if role, err := d.session.State.Role(guildID, roleID); err == nil && role != nil {
		return role, nil
	}
	roles, err := d.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	for _, role := range roles {
		if role.ID == roleID {
			return role, nil
		}
	}
	return nil, fmt.Errorf("%w: role %s", ErrNotFound, roleID)
}

func (d *Discord) Channel(ctx context.Context, channelID string) (*discordgo.Channel, error) {
	if channel, err := d.session.State.Channel(channelID); err == nil && channel != nil {
		return channel, nil
	}
	channel, err := d.session.Channel(channelID, discordgo.WithContext(ctx))
	return channel, classify(err)
}

func (d *Discord) User(ctx context.Context, userID string) (*discordgo.User, error) {
	user, err := d.session.User(userID, discordgo.WithContext(ctx))
	return user, classify(err)
}

// BotPermissions returns the bot's effective permissions in channelID, or its
// guild-wide permissions when channelID is empty.
func (d *Discord) BotPermissions(ctx context.Context, guildID, channelID string) (int64, error) {
	botID := d.BotID()
	if channelID != "" {
		if perms, err := d.session.State.UserChannelPermissions(botID, channelID); err == nil {
			return perms, nil
		}
	}
	return d.MemberPermissions(ctx, guildID, botID)
}

// MemberPermissions computes guild-wide permissions from the member's roles.
func (d *Discord) MemberPermissions(ctx context.Context, guildID, userID string) (int64, error) {
	guild, err := d.Guild(ctx, guildID)
	if err != nil {
		return 0, err
	}
	member, err := d.Member(ctx, guildID, userID)
	if err != nil {
		return 0, err
	}
	return GuildPermissions(guild, member), nil
}

// GuildPermissions folds the everyone role and the member's roles together.
// Owners and administrators get every permission.
func GuildPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	if guild == nil || member == nil {
		return 0
	}
	if member.User != nil && guild.OwnerID == member.User.ID {
		return discordgo.PermissionAll
	}

	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	perms := int64(0)
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	if perms&discordgo.PermissionAdministrator != 0 {
		return discordgo.PermissionAll
	}
	return perms
}

func (d *Discord) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	return classify(d.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx)))
}

func (d *Discord) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return classify(d.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)))
}

func (d *Discord) Kick(ctx context.Context, guildID, userID, reason string) error {
	return classify(d.session.GuildMemberDeleteWithReason(guildID, userID, reason, discordgo.WithContext(ctx)))
}

func (d *Discord) Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	sent, err := d.session.ChannelMessageSendComplex(channelID, msg, discordgo.WithContext(ctx))
	return sent, classify(err)
}

func (d *Discord) SendDM(ctx context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	channel, err := d.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	return d.Send(ctx, channel.ID, msg)
}

func (d *Discord) UpdateStatus(name string) error {
	return d.session.UpdateGameStatus(0, name)
}

// classify wraps REST errors meaning "gone" with ErrNotFound and access
// refusals with ErrForbidden so callers can use errors.Is.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case discordgo.ErrCodeUnknownChannel,
			discordgo.ErrCodeUnknownGuild,
			discordgo.ErrCodeUnknownMember,
			discordgo.ErrCodeUnknownRole,
			discordgo.ErrCodeUnknownUser,
			discordgo.ErrCodeUnknownMessage:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case discordgo.ErrCodeMissingAccess, discordgo.ErrCodeMissingPermissions:
			return fmt.Errorf("%w: %w", ErrForbidden, err)
		}
	}
	if restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrForbidden, err)
		}
	}
	return err
}
