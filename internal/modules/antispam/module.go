package antispam

import (
	"context"
	"errors"
	"sync"
	"time"

	"rinbot/internal/config"
	"rinbot/internal/storage"
	"rinbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type ConfigSource interface {
	GuildConfig(ctx context.Context, guildID string) (storage.GuildConfig, error)
}

type Gateway interface {
	BotPermissions(ctx context.Context, guildID, channelID string) (int64, error)
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	Kick(ctx context.Context, guildID, userID, reason string) error
	Send(ctx context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
}

// Module tracks per-user message timestamps and applies the guild's spam action
// when a user posts more than the configured number of messages in the window.
type Module struct {
	mu      sync.Mutex
	windows map[string]*utils.SlidingWindow
	enabled bool
	window  time.Duration
	max     int
	clock   Clock
	configs ConfigSource
	gateway Gateway
	logger  *zap.Logger
}

func New(cfg config.SpamFilterConfig, configs ConfigSource, gateway Gateway, logger *zap.Logger) *Module {
	return &Module{
		windows: make(map[string]*utils.SlidingWindow),
		enabled: cfg.Enabled,
		window:  time.Duration(cfg.TimeWindowSeconds) * time.Second,
		max:     cfg.MaxPerWindow,
		clock:   realClock{},
		configs: configs,
		gateway: gateway,
		logger:  logger,
	}
}

func (m *Module) WithClock(clock Clock) *Module {
	if clock != nil {
		m.clock = clock
	}
	return m
}

func (m *Module) Enabled() bool {
	return m.enabled
}

// Observe records a message from userID and reports the current window count
// and whether it exceeds the limit.
func (m *Module) Observe(userID string) (int, bool) {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	// Add under m.mu so Prune never evicts a window between lookup and hit.
	count := m.windowFor(userID).Add(now)
	return count, count > m.max
}

// HandleMessage runs the detector for a guild message and applies the guild's
// action. It reports whether an action was attempted.
func (m *Module) HandleMessage(ctx context.Context, msg *discordgo.Message) bool {
	if !m.enabled || msg == nil || msg.Author == nil {
		return false
	}
	if msg.Author.Bot || msg.Author.System || msg.GuildID == "" {
		return false
	}

	count, triggered := m.Observe(msg.Author.ID)
	if !triggered {
		return false
	}

	cfg, err := m.configs.GuildConfig(ctx, msg.GuildID)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			m.logger.Warn("spam config lookup failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		}
		return false
	}
	if cfg.SpamAction == storage.SpamDisabled {
		return false
	}

	m.logger.Info("spam detected",
		zap.String("guild_id", msg.GuildID),
		zap.String("user_id", msg.Author.ID),
		zap.Int("count", count),
		zap.String("action", cfg.SpamAction.String()))

	perms, err := m.gateway.BotPermissions(ctx, msg.GuildID, msg.ChannelID)
	if err != nil {
		m.logger.Warn("bot permission lookup failed", zap.String("guild_id", msg.GuildID), zap.Error(err))
		return true
	}

	switch cfg.SpamAction {
	case storage.SpamDelete:
		m.deleteMessage(ctx, msg, perms)
		m.warn(ctx, msg, cfg.SpamMessage)
	case storage.SpamKick:
		m.deleteMessage(ctx, msg, perms)
		m.kick(ctx, msg, perms)
	}
	return true
}

// Prune drops users with no messages left in the window and returns how many were evicted.
func (m *Module) Prune() int {
	now := m.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for userID, window := range m.windows {
		if window.Count(now) == 0 {
			delete(m.windows, userID)
			evicted++
		}
	}
	return evicted
}

func (m *Module) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *Module) deleteMessage(ctx context.Context, msg *discordgo.Message, perms int64) {
	if perms&discordgo.PermissionManageMessages == 0 {
		m.logger.Warn("missing manage messages permission", zap.String("guild_id", msg.GuildID), zap.String("channel_id", msg.ChannelID))
		return
	}
	if err := m.gateway.DeleteMessage(ctx, msg.ChannelID, msg.ID); err != nil {
		m.logger.Warn("spam message delete failed", zap.String("message_id", msg.ID), zap.Error(err))
	}
}

func (m *Module) warn(ctx context.Context, msg *discordgo.Message, template string) {
	if template == "" {
		return
	}
	content := utils.RenderMemberTemplate(template, authorDisplayName(msg), msg.Author.Mention())
	if _, err := m.gateway.Send(ctx, msg.ChannelID, &discordgo.MessageSend{Content: content}); err != nil {
		m.logger.Warn("spam warning send failed", zap.String("channel_id", msg.ChannelID), zap.Error(err))
	}
}

func (m *Module) kick(ctx context.Context, msg *discordgo.Message, perms int64) {
	if perms&discordgo.PermissionKickMembers == 0 {
		m.logger.Warn("missing kick members permission", zap.String("guild_id", msg.GuildID))
		return
	}
	if err := m.gateway.Kick(ctx, msg.GuildID, msg.Author.ID, "spam"); err != nil {
		m.logger.Warn("spam kick failed", zap.String("user_id", msg.Author.ID), zap.Error(err))
	}
}

// authorDisplayName resolves the author's guild display name, falling back to
// the global name and username when the message carries no member.
func authorDisplayName(msg *discordgo.Message) string {
	member := &discordgo.Member{User: msg.Author}
	if msg.Member != nil {
		copied := *msg.Member
		copied.User = msg.Author
		member = &copied
	}
	return utils.MemberDisplayName(member)
}

// windowFor returns the user's window, creating it. m.mu must be held.
func (m *Module) windowFor(userID string) *utils.SlidingWindow {
	window := m.windows[userID]
	if window == nil {
		window = utils.NewSlidingWindow(m.window)
		m.windows[userID] = window
	}
	return window
}
