package bot

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rinbot/internal/checks"
	"rinbot/internal/config"
	"rinbot/internal/extensions"
	"rinbot/internal/incident"
	"rinbot/internal/locale"
	"rinbot/internal/reconcile"
	"rinbot/internal/responder"
	"rinbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	sweepTimeout       = 5 * time.Minute
	interactionTimeout = 60 * time.Second
)

// Gateway is the part of the Discord adapter the command handlers use.
type Gateway interface {
	BotID() string
	Latency() time.Duration
	Guilds() []*discordgo.Guild
	Guild(ctx context.Context, guildID string) (*discordgo.Guild, error)
	Role(ctx context.Context, guildID, roleID string) (*discordgo.Role, error)
	Channel(ctx context.Context, channelID string) (*discordgo.Channel, error)
	User(ctx context.Context, userID string) (*discordgo.User, error)
	BotPermissions(ctx context.Context, guildID, channelID string) (int64, error)
	MemberPermissions(ctx context.Context, guildID, userID string) (int64, error)
}

type Reconciler interface {
	Run(ctx context.Context) reconcile.Report
}

type JoinHandler interface {
	HandleJoin(ctx context.Context, member *discordgo.Member) bool
}

type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *discordgo.Message) bool
}

// Deps are the components the bot wires into its event and command handlers.
type Deps struct {
	Config     config.Config
	Logger     *zap.Logger
	Session    *discordgo.Session
	Store      *storage.Store
	Gateway    Gateway
	Strings    *locale.Resolver
	Responder  *responder.Responder
	Reconciler Reconciler
	Welcome    JoinHandler
	AutoRole   JoinHandler
	Antispam   MessageHandler
	Incidents  *incident.Recorder
	OwnerToken *checks.OwnerToken
	// Shutdown is called by /shutdown after the reply is sent.
	Shutdown func()
}

type Bot struct {
	cfg        config.Config
	logger     *zap.Logger
	events     *zap.Logger
	session    *discordgo.Session
	store      *storage.Store
	gateway    Gateway
	strings    *locale.Resolver
	responder  *responder.Responder
	reconciler Reconciler
	welcome    JoinHandler
	autorole   JoinHandler
	antispam   MessageHandler
	incidents  *incident.Recorder
	ownerToken *checks.OwnerToken
	shutdown   func()

	extensions *extensions.Manager
	commands   map[string]command
	views      *views

	startMu   sync.Mutex
	ready     bool
	pending   map[string]struct{}
	known     map[string]struct{}
	startOnce sync.Once

	// ctx is the parent of every handler and sweep context; Close cancels it.
	ctx      context.Context
	cancel   context.CancelFunc
	closeMu  sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

func New(deps Deps) *Bot {
	b := &Bot{
		cfg:        deps.Config,
		logger:     deps.Logger.Named("Commands"),
		events:     deps.Logger.Named("Events"),
		session:    deps.Session,
		store:      deps.Store,
		gateway:    deps.Gateway,
		strings:    deps.Strings,
		responder:  deps.Responder,
		reconciler: deps.Reconciler,
		welcome:    deps.Welcome,
		autorole:   deps.AutoRole,
		antispam:   deps.Antispam,
		incidents:  deps.Incidents,
		ownerToken: deps.OwnerToken,
		shutdown:   deps.Shutdown,
		known:      make(map[string]struct{}),
	}
	if b.shutdown == nil {
		b.shutdown = func() {}
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	b.views = newViews(interactionTimeout)
	b.commands = b.commandTable()
	b.extensions = extensions.New(b.definitions(), deps.Config.Extensions.Internal, deps.Config.Extensions.Disabled, deps.Logger.Named("Extensions"))
	return b
}

func (b *Bot) Extensions() *extensions.Manager {
	return b.extensions
}

func (b *Bot) Start() error {
	if b.session == nil {
		return fmt.Errorf("bot has no session")
	}

	b.session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsMessageContent

	for _, handler := range b.eventHandlers() {
		b.session.AddHandler(handler)
	}

	if err := b.session.Open(); err != nil {
		return err
	}

	if err := b.syncCommands(context.Background()); err != nil {
		return err
	}
	return nil
}

// Close stops the gateway so no new events are accepted, then waits for the
// handlers already running until ctx expires. Whatever is left is cancelled.
func (b *Bot) Close(ctx context.Context) {
	b.closeMu.Lock()
	b.closed = true
	b.closeMu.Unlock()
	defer b.cancel()

	if b.session != nil {
		done := make(chan struct{})
		go func() {
			_ = b.session.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			b.events.Warn("gateway close timed out")
		}
	}
	b.views.stopAll()

	drained := make(chan struct{})
	go func() {
		b.inflight.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		b.events.Info("in-flight handlers finished")
	case <-ctx.Done():
		b.events.Warn("in-flight handlers still running, cancelling them")
	}
}

// enter registers a running handler. It reports false once Close has begun,
// in which case the caller must drop the event.
func (b *Bot) enter() bool {
	b.closeMu.Lock()
	defer b.closeMu.Unlock()
	if b.closed {
		return false
	}
	b.inflight.Add(1)
	return true
}

// syncCommands bulk-overwrites the application commands with those of the
// loaded extensions, per testing guild when configured, otherwise globally.
func (b *Bot) syncCommands(ctx context.Context) error {
	if b.session == nil {
		return fmt.Errorf("bot has no session")
	}
	appID := b.gateway.BotID()
	commands := b.extensions.Commands()

	targets := b.cfg.TestingGuilds
	if len(targets) == 0 {
		targets = []string{""}
	}
	for _, guildID := range targets {
		if _, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, commands, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("sync commands (guild %q): %w", guildID, err)
		}
	}
	b.logger.Info("commands synced", zap.Int("count", len(commands)), zap.Strings("guilds", b.cfg.TestingGuilds))
	return nil
}

// sweep runs a full reconciliation; the engine serializes concurrent calls.
func (b *Bot) sweep(reason string) {
	if b.reconciler == nil || !b.enter() {
		return
	}
	defer b.inflight.Done()
	defer b.incidents.Recover("reconcile", nil, zap.String("reason", reason))
	ctx, cancel := context.WithTimeout(b.ctx, sweepTimeout)
	defer cancel()
	b.events.Debug("reconciliation requested", zap.String("reason", reason))
	b.reconciler.Run(ctx)
}
