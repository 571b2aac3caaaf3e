package extensions

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("extension not found")
	ErrAlreadyLoaded = errors.New("extension already loaded")
	ErrNotLoaded     = errors.New("extension not loaded")
	ErrInternal      = errors.New("extension is internal")
)

// Extension is a named group of slash commands that can be switched on and
// off at runtime.
type Extension struct {
	Name     string
	Commands []*discordgo.ApplicationCommand
}

type Status struct {
	Name     string
	Loaded   bool
	Internal bool
}

type Manager struct {
	mu       sync.RWMutex
	order    []string
	byName   map[string]Extension
	internal map[string]bool
	loaded   map[string]bool
	owners   map[string]string
	logger   *zap.Logger
}

// New registers the extensions in order and loads every one not listed in
// disabled. Internal extensions are always loaded.
func New(exts []Extension, internal, disabled []string, logger *zap.Logger) *Manager {
	m := &Manager{
		byName:   make(map[string]Extension, len(exts)),
		internal: make(map[string]bool, len(internal)),
		loaded:   make(map[string]bool, len(exts)),
		owners:   make(map[string]string),
		logger:   logger,
	}
	for _, name := range internal {
		m.internal[name] = true
	}
	for _, ext := range exts {
		m.order = append(m.order, ext.Name)
		m.byName[ext.Name] = ext
		for _, cmd := range ext.Commands {
			m.owners[cmd.Name] = ext.Name
		}
		if m.internal[ext.Name] || !slices.Contains(disabled, ext.Name) {
			m.loaded[ext.Name] = true
		} else {
			logger.Info("extension disabled by configuration", zap.String("extension", ext.Name))
		}
	}
	return m
}

func (m *Manager) List() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Status, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, Status{Name: name, Loaded: m.loaded[name], Internal: m.internal[name]})
	}
	return out
}

func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.order)
}

func (m *Manager) Load(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.mutable(name); err != nil {
		return err
	}
	if m.loaded[name] {
		return fmt.Errorf("%w: %s", ErrAlreadyLoaded, name)
	}
	m.loaded[name] = true
	m.logger.Info("extension loaded", zap.String("extension", name))
	return nil
}

func (m *Manager) Unload(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.mutable(name); err != nil {
		return err
	}
	if !m.loaded[name] {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}
	m.loaded[name] = false
	m.logger.Info("extension unloaded", zap.String("extension", name))
	return nil
}

// Reload keeps a loaded extension loaded; the caller re-syncs its commands.
func (m *Manager) Reload(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.mutable(name); err != nil {
		return err
	}
	if !m.loaded[name] {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}
	m.logger.Info("extension reloaded", zap.String("extension", name))
	return nil
}

// Enabled reports whether the extension owning the command is loaded.
// Commands no extension owns are never enabled.
func (m *Manager) Enabled(command string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.owners[command]
	return ok && m.loaded[owner]
}

// Commands returns the definitions of every loaded extension, in
// registration order.
func (m *Manager) Commands() []*discordgo.ApplicationCommand {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*discordgo.ApplicationCommand
	for _, name := range m.order {
		if m.loaded[name] {
			out = append(out, m.byName[name].Commands...)
		}
	}
	return out
}

func (m *Manager) mutable(name string) error {
	if _, ok := m.byName[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if m.internal[name] {
		return fmt.Errorf("%w: %s", ErrInternal, name)
	}
	return nil
}
