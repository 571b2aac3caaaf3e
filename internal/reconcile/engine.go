package reconcile

import (
	"context"
	"sync"
	"time"

	"rinbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Gateway interface {
	Guilds() []*discordgo.Guild
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	Role(ctx context.Context, guildID, roleID string) (*discordgo.Role, error)
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	Members(ctx context.Context, guildID string) ([]*discordgo.Member, error)
}

type Store interface {
	ListGuilds(ctx context.Context) ([]storage.Guild, error)
	CreateGuild(ctx context.Context, guild storage.Guild) (bool, error)
	UpdateGuild(ctx context.Context, guild storage.Guild) error
	DeleteGuild(ctx context.Context, guildID string) error
	EnsureGuildConfig(ctx context.Context, guildID string) (bool, error)
	DeleteOrphanGuildConfigs(ctx context.Context) (int64, error)

	ListAutoRoles(ctx context.Context) ([]storage.AutoRole, error)
	UpsertAutoRole(ctx context.Context, role storage.AutoRole) error
	DeleteAutoRole(ctx context.Context, guildID string) error
	ListWelcomeChannels(ctx context.Context) ([]storage.WelcomeChannel, error)
	UpsertWelcomeChannel(ctx context.Context, channel storage.WelcomeChannel) error
	DeleteWelcomeChannel(ctx context.Context, guildID, channelID string) error

	ListUsers(ctx context.Context) ([]storage.User, error)
	UpsertUser(ctx context.Context, user storage.User) error
	DeleteUser(ctx context.Context, guildID, userID string) error
	EnsureUserConfig(ctx context.Context, guildID, userID string) (bool, error)
	DeleteOrphanUserConfigs(ctx context.Context) (int64, error)
}

// Stage is one named reconciliation pass.
type Stage struct {
	Name string
	Run  func(ctx context.Context, tally *StageReport) error
}

type StageReport struct {
	Name    string
	Created int
	Updated int
	Deleted int
	Failed  int
	Err     error
}

func (r StageReport) Writes() int {
	return r.Created + r.Updated + r.Deleted
}

type Report struct {
	Stages   []StageReport
	Duration time.Duration
}

func (r Report) Writes() int {
	total := 0
	for _, stage := range r.Stages {
		total += stage.Writes()
	}
	return total
}

func (r Report) Stage(name string) StageReport {
	for _, stage := range r.Stages {
		if stage.Name == name {
			return stage
		}
	}
	return StageReport{Name: name}
}

// Engine heals drift between the stored configuration and the guilds,
// members, roles and channels the bot can currently see.
type Engine struct {
	store   Store
	gateway Gateway
	logger  *zap.Logger
	steps   [][]Stage
	runMu   sync.Mutex
}

func New(store Store, gateway Gateway, logger *zap.Logger) *Engine {
	e := &Engine{store: store, gateway: gateway, logger: logger}
	// Stages in one step are independent and run concurrently; steps run in order.
	e.steps = [][]Stage{
		{{Name: "guilds", Run: e.reconcileGuilds}},
		{{Name: "guild_configs", Run: e.reconcileGuildConfigs}},
		{
			{Name: "auto_roles", Run: e.reconcileAutoRoles},
			{Name: "welcome_channels", Run: e.reconcileWelcomeChannels},
		},
		{{Name: "users", Run: e.reconcileUsers}},
		{{Name: "user_configs", Run: e.reconcileUserConfigs}},
	}
	return e
}

// Stages lists stage names in execution order.
func (e *Engine) Stages() []string {
	var names []string
	for _, step := range e.steps {
		for _, stage := range step {
			names = append(names, stage.Name)
		}
	}
	return names
}

// Run performs a full sweep. Sweeps never overlap; a caller arriving during a
// sweep waits for it and then runs its own.
func (e *Engine) Run(ctx context.Context) Report {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	start := time.Now()
	e.logger.Info("reconciliation started")

	var report Report
	for _, step := range e.steps {
		if ctx.Err() != nil {
			e.logger.Warn("reconciliation interrupted", zap.Error(ctx.Err()))
			break
		}
		results := make([]StageReport, len(step))
		var g errgroup.Group
		for idx, stage := range step {
			results[idx].Name = stage.Name
			tally := &results[idx]
			run := stage.Run
			g.Go(func() error {
				tally.Err = run(ctx, tally)
				return tally.Err
			})
		}
		if err := g.Wait(); err != nil {
			for _, result := range results {
				if result.Err != nil {
					e.logger.Error("reconciliation stage failed", zap.String("stage", result.Name), zap.Error(result.Err))
				}
			}
		}
		report.Stages = append(report.Stages, results...)
	}

	report.Duration = time.Since(start)
	for _, stage := range report.Stages {
		e.logger.Info("reconciliation stage finished",
			zap.String("stage", stage.Name),
			zap.Int("created", stage.Created),
			zap.Int("updated", stage.Updated),
			zap.Int("deleted", stage.Deleted),
			zap.Int("failed", stage.Failed))
	}
	e.logger.Info("reconciliation finished", zap.Int("writes", report.Writes()), zap.Duration("duration", report.Duration))
	return report
}

// liveGuilds indexes the guilds the bot is in by ID.
func (e *Engine) liveGuilds() map[string]*discordgo.Guild {
	guilds := e.gateway.Guilds()
	live := make(map[string]*discordgo.Guild, len(guilds))
	for _, guild := range guilds {
		if guild != nil {
			live[guild.ID] = guild
		}
	}
	return live
}
