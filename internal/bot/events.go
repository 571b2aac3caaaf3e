package bot

import (
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) eventHandlers() []interface{} {
	return []interface{}{
		b.onReady,
		b.onGuildCreate,
		b.onGuildDelete,
		b.onGuildMemberAdd,
		b.onGuildMemberRemove,
		b.onMessageCreate,
		b.onInteractionCreate,
	}
}

// onReady waits for every guild announced in READY before the first sweep,
// bounded by reconcile.startup_wait_seconds. A READY after a reconnect only
// triggers a sweep.
func (b *Bot) onReady(_ *discordgo.Session, event *discordgo.Ready) {
	b.events.Info("discord ready",
		zap.String("user", event.User.Username),
		zap.Int("guilds", len(event.Guilds)))

	b.startMu.Lock()
	if b.ready {
		for _, guild := range event.Guilds {
			b.known[guild.ID] = struct{}{}
		}
		b.startMu.Unlock()
		b.sweep("reconnect")
		return
	}
	b.pending = make(map[string]struct{}, len(event.Guilds))
	for _, guild := range event.Guilds {
		b.pending[guild.ID] = struct{}{}
		b.known[guild.ID] = struct{}{}
	}
	waiting := len(b.pending)
	b.startMu.Unlock()

	if waiting == 0 {
		b.finishStartup("no guilds")
		return
	}
	wait := time.Duration(b.cfg.Reconcile.StartupWaitSeconds) * time.Second
	time.AfterFunc(wait, func() { b.finishStartup("startup wait elapsed") })
}

func (b *Bot) finishStartup(reason string) {
	b.startOnce.Do(func() {
		b.startMu.Lock()
		b.ready = true
		missing := len(b.pending)
		b.pending = nil
		b.startMu.Unlock()

		b.events.Info("startup complete", zap.String("reason", reason), zap.Int("guilds_missing", missing))
		b.sweep("startup")
	})
}

func (b *Bot) onGuildCreate(_ *discordgo.Session, event *discordgo.GuildCreate) {
	if event.Guild == nil {
		return
	}

	b.startMu.Lock()
	if !b.ready {
		delete(b.pending, event.ID)
		arrived := len(b.pending) == 0
		b.startMu.Unlock()
		if arrived {
			b.finishStartup("all guilds received")
		}
		return
	}
	_, seen := b.known[event.ID]
	b.known[event.ID] = struct{}{}
	b.startMu.Unlock()

	if seen {
		b.events.Debug("guild available", zap.String("guild_id", event.ID))
		return
	}
	b.events.Info("joined guild", zap.String("guild_id", event.ID), zap.String("guild_name", event.Name))
	b.sweep("guild join")
}

func (b *Bot) onGuildDelete(_ *discordgo.Session, event *discordgo.GuildDelete) {
	if event.Guild == nil {
		return
	}
	if event.Unavailable {
		b.events.Warn("guild unavailable", zap.String("guild_id", event.ID))
		return
	}

	b.startMu.Lock()
	delete(b.known, event.ID)
	b.startMu.Unlock()

	name := ""
	if event.BeforeDelete != nil {
		name = event.BeforeDelete.Name
	}
	b.events.Info("left guild", zap.String("guild_id", event.ID), zap.String("guild_name", name))
	b.sweep("guild leave")
}

// onGuildMemberAdd refreshes the stored members, then runs the welcome and
// auto role actions. Either action failing leaves the other unaffected.
func (b *Bot) onGuildMemberAdd(_ *discordgo.Session, event *discordgo.GuildMemberAdd) {
	if event.Member == nil || event.User == nil {
		return
	}
	if !b.enter() {
		return
	}
	defer b.inflight.Done()
	member := event.Member
	fields := []zap.Field{zap.String("guild_id", member.GuildID), zap.String("user_id", member.User.ID)}
	b.events.Info("member joined", append(fields, zap.String("user_name", member.User.Username))...)

	b.sweep("member join")

	ctx := b.ctx
	actions := []struct {
		name    string
		handler JoinHandler
	}{
		{"welcome", b.welcome},
		{"auto_role", b.autorole},
	}
	for _, action := range actions {
		if action.handler == nil {
			continue
		}
		func() {
			defer b.incidents.Recover(action.name, nil, fields...)
			action.handler.HandleJoin(ctx, member)
		}()
	}
}

func (b *Bot) onGuildMemberRemove(_ *discordgo.Session, event *discordgo.GuildMemberRemove) {
	if event.Member == nil || event.User == nil {
		return
	}
	b.events.Info("member left",
		zap.String("guild_id", event.GuildID),
		zap.String("user_id", event.User.ID),
		zap.String("user_name", event.User.Username))
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, msg *discordgo.MessageCreate) {
	if msg.Author == nil || msg.Author.Bot {
		return
	}
	if msg.GuildID == "" || b.antispam == nil || !b.enter() {
		return
	}
	defer b.inflight.Done()
	defer b.incidents.Recover("message", nil, zap.String("guild_id", msg.GuildID), zap.String("user_id", msg.Author.ID))
	b.antispam.HandleMessage(b.ctx, msg.Message)
}
