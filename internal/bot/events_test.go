package bot

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rinbot/internal/config"
	"rinbot/internal/incident"
	"rinbot/internal/locale"
	"rinbot/internal/reconcile"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, name)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeReconciler struct {
	log       *callLog
	runs      atomic.Int32
	started   chan struct{}
	release   chan struct{}
	cancelled atomic.Bool
}

func (f *fakeReconciler) Run(ctx context.Context) reconcile.Report {
	f.runs.Add(1)
	f.log.add("sweep")
	if f.started != nil {
		f.started <- struct{}{}
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			f.cancelled.Store(true)
		}
	}
	return reconcile.Report{}
}

type fakeJoin struct {
	name   string
	log    *callLog
	panics bool
	result bool
}

func (f *fakeJoin) HandleJoin(context.Context, *discordgo.Member) bool {
	f.log.add(f.name)
	if f.panics {
		panic(f.name + " failed hard")
	}
	return f.result
}

func newEventBot(t *testing.T, cfg config.Config, rec Reconciler, welcome, autorole JoinHandler) *Bot {
	t.Helper()
	strings, err := locale.New(nil, zap.NewNop())
	require.NoError(t, err)
	b := New(Deps{
		Config:     cfg,
		Logger:     zap.NewNop(),
		Gateway:    &fakeGateway{},
		Strings:    strings,
		Reconciler: rec,
		Welcome:    welcome,
		AutoRole:   autorole,
		Incidents:  incident.NewRecorder(t.TempDir(), zap.NewNop()),
	})
	t.Cleanup(b.views.stopAll)
	return b
}

func memberJoin(guildID, userID string) *discordgo.GuildMemberAdd {
	return &discordgo.GuildMemberAdd{Member: &discordgo.Member{
		GuildID: guildID,
		User:    &discordgo.User{ID: userID, Username: "user-" + userID},
	}}
}

func ready(guildIDs ...string) *discordgo.Ready {
	guilds := make([]*discordgo.Guild, 0, len(guildIDs))
	for _, id := range guildIDs {
		guilds = append(guilds, &discordgo.Guild{ID: id})
	}
	return &discordgo.Ready{User: &discordgo.User{Username: "rin"}, Guilds: guilds}
}

func guildCreate(id string) *discordgo.GuildCreate {
	return &discordgo.GuildCreate{Guild: &discordgo.Guild{ID: id, Name: "Guild " + id}}
}

func TestMemberJoinRunsSweepThenActions(t *testing.T) {
	log := &callLog{}
	rec := &fakeReconciler{log: log}
	b := newEventBot(t, config.DefaultConfig(), rec,
		&fakeJoin{name: "welcome", log: log, result: true},
		&fakeJoin{name: "auto_role", log: log, result: true})

	b.onGuildMemberAdd(nil, memberJoin("g1", "u1"))

	assert.Equal(t, []string{"sweep", "welcome", "auto_role"}, log.snapshot())
}

func TestMemberJoinActionsAreIndependent(t *testing.T) {
	tests := []struct {
		name     string
		welcome  fakeJoin
		autorole fakeJoin
	}{
		{name: "welcome panics", welcome: fakeJoin{panics: true}, autorole: fakeJoin{result: true}},
		{name: "welcome fails", welcome: fakeJoin{result: false}, autorole: fakeJoin{result: true}},
		{name: "auto role panics", welcome: fakeJoin{result: true}, autorole: fakeJoin{panics: true}},
		{name: "both panic", welcome: fakeJoin{panics: true}, autorole: fakeJoin{panics: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := &callLog{}
			welcome, autorole := tt.welcome, tt.autorole
			welcome.name, welcome.log = "welcome", log
			autorole.name, autorole.log = "auto_role", log
			b := newEventBot(t, config.DefaultConfig(), &fakeReconciler{log: log}, &welcome, &autorole)

			assert.NotPanics(t, func() { b.onGuildMemberAdd(nil, memberJoin("g1", "u1")) })
			assert.Equal(t, []string{"sweep", "welcome", "auto_role"}, log.snapshot())
		})
	}
}

func TestMemberJoinSkipsMissingHandler(t *testing.T) {
	log := &callLog{}
	b := newEventBot(t, config.DefaultConfig(), &fakeReconciler{log: log}, nil,
		&fakeJoin{name: "auto_role", log: log, result: true})

	b.onGuildMemberAdd(nil, memberJoin("g1", "u1"))
	assert.Equal(t, []string{"sweep", "auto_role"}, log.snapshot())

	b.onGuildMemberAdd(nil, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: "g1"}})
	assert.Len(t, log.snapshot(), 2, "event without a user is ignored")
}

func TestStartupWaitsForAnnouncedGuilds(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Reconcile.StartupWaitSeconds = 3600
	rec := &fakeReconciler{log: &callLog{}}
	b := newEventBot(t, cfg, rec, nil, nil)

	b.onReady(nil, ready("g1", "g2"))
	assert.Zero(t, rec.runs.Load())

	b.onGuildCreate(nil, guildCreate("g1"))
	assert.Zero(t, rec.runs.Load())

	b.onGuildCreate(nil, guildCreate("g2"))
	assert.EqualValues(t, 1, rec.runs.Load())

	b.onGuildCreate(nil, guildCreate("g1"))
	assert.EqualValues(t, 1, rec.runs.Load(), "a known guild becoming available does not sweep")

	b.onGuildCreate(nil, guildCreate("g3"))
	assert.EqualValues(t, 2, rec.runs.Load(), "joining a new guild sweeps")
}

func TestStartupWaitElapses(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Reconcile.StartupWaitSeconds = 0
	rec := &fakeReconciler{log: &callLog{}}
	b := newEventBot(t, cfg, rec, nil, nil)

	b.onReady(nil, ready("g1", "g2"))

	assert.Eventually(t, func() bool { return rec.runs.Load() == 1 }, time.Second, 10*time.Millisecond)
}

func TestStartupWithoutGuildsSweepsAtOnce(t *testing.T) {
	rec := &fakeReconciler{log: &callLog{}}
	b := newEventBot(t, config.DefaultConfig(), rec, nil, nil)

	b.onReady(nil, ready())
	assert.EqualValues(t, 1, rec.runs.Load())

	b.onReady(nil, ready("g1"))
	assert.EqualValues(t, 2, rec.runs.Load(), "a reconnect sweeps")
}

func TestGuildDelete(t *testing.T) {
	rec := &fakeReconciler{log: &callLog{}}
	b := newEventBot(t, config.DefaultConfig(), rec, nil, nil)
	b.onReady(nil, ready())
	require.EqualValues(t, 1, rec.runs.Load())

	b.onGuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g1", Unavailable: true}})
	assert.EqualValues(t, 1, rec.runs.Load(), "an outage is not a leave")

	b.onGuildDelete(nil, &discordgo.GuildDelete{Guild: &discordgo.Guild{ID: "g1"}})
	assert.EqualValues(t, 2, rec.runs.Load())
}

func TestCloseWaitsForRunningHandlers(t *testing.T) {
	log := &callLog{}
	rec := &fakeReconciler{log: log, started: make(chan struct{}, 1), release: make(chan struct{})}
	b := newEventBot(t, config.DefaultConfig(), rec,
		&fakeJoin{name: "welcome", log: log, result: true},
		&fakeJoin{name: "auto_role", log: log, result: true})

	go b.onGuildMemberAdd(nil, memberJoin("g1", "u1"))
	<-rec.started

	closed := make(chan struct{})
	go func() {
		b.Close(context.Background())
		close(closed)
	}()
	isClosed := func() bool {
		select {
		case <-closed:
			return true
		default:
			return false
		}
	}

	assert.Never(t, isClosed, 100*time.Millisecond, 10*time.Millisecond)
	close(rec.release)
	assert.Eventually(t, isClosed, time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"sweep", "welcome", "auto_role"}, log.snapshot())
	assert.False(t, rec.cancelled.Load())
}

func TestCloseCancelsHandlersPastDeadline(t *testing.T) {
	rec := &fakeReconciler{log: &callLog{}, started: make(chan struct{}, 1), release: make(chan struct{})}
	b := newEventBot(t, config.DefaultConfig(), rec, nil, nil)

	finished := make(chan struct{})
	go func() {
		b.onGuildMemberAdd(nil, memberJoin("g1", "u1"))
		close(finished)
	}()
	<-rec.started

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	b.Close(ctx)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("handler kept running after close")
	}
	assert.True(t, rec.cancelled.Load())
}

func TestEventsAfterCloseAreDropped(t *testing.T) {
	log := &callLog{}
	rec := &fakeReconciler{log: log}
	b := newEventBot(t, config.DefaultConfig(), rec, nil, &fakeJoin{name: "auto_role", log: log, result: true})

	b.Close(context.Background())

	b.onReady(nil, ready())
	b.onGuildMemberAdd(nil, memberJoin("g1", "u1"))
	assert.Empty(t, log.snapshot())
	assert.Error(t, b.ctx.Err())
}
