package tasks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task is a named job run on a cron schedule.
type Task struct {
	Name string
	Spec string
	Run  func(ctx context.Context)
}

// Manager owns the cron scheduler for the bot's periodic jobs. Jobs receive a
// context that is cancelled when the manager stops.
type Manager struct {
	cron    *cron.Cron
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewManager(logger *zap.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	adapter := cronLogger{logger.Sugar()}
	return &Manager{
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[string]cron.EntryID),
	}
}

func (m *Manager) Register(task Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[task.Name]; exists {
		return fmt.Errorf("task %q already registered", task.Name)
	}
	id, err := m.cron.AddFunc(task.Spec, func() {
		if m.ctx.Err() != nil {
			return
		}
		m.logger.Debug("task started", zap.String("task", task.Name))
		task.Run(m.ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule task %q: %w", task.Name, err)
	}
	m.entries[task.Name] = id
	m.logger.Info("task scheduled", zap.String("task", task.Name), zap.String("spec", task.Spec))
	return nil
}

func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.entries))
	for name := range m.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Manager) Start() {
	m.cron.Start()
}

// Stop cancels running jobs and waits for them to return, or for ctx.
func (m *Manager) Stop(ctx context.Context) error {
	m.cancel()
	done := m.cron.Stop()
	select {
	case <-done.Done():
		m.logger.Info("tasks stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes the scheduler's own logs through zap.
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
