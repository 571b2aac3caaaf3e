package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

// view is a message with components waiting for its invoker to act on it.
type view struct {
	owner    string
	original *discordgo.Interaction
	timer    *time.Timer
	onAction func(ctx context.Context, i *discordgo.InteractionCreate, action string)
}

type views struct {
	mu      sync.Mutex
	timeout time.Duration
	byID    map[string]*view
}

func newViews(timeout time.Duration) *views {
	return &views{timeout: timeout, byID: make(map[string]*view)}
}

// open registers a view and returns its id. onTimeout runs if nobody acts on
// the view before the timeout.
func (v *views) open(original *discordgo.Interaction, owner string, onAction func(context.Context, *discordgo.InteractionCreate, string), onTimeout func()) string {
	id := uuid.NewString()
	pending := &view{owner: owner, original: original, onAction: onAction}

	v.mu.Lock()
	defer v.mu.Unlock()
	pending.timer = time.AfterFunc(v.timeout, func() {
		if v.take(id) != nil && onTimeout != nil {
			onTimeout()
		}
	})
	v.byID[id] = pending
	return id
}

func (v *views) peek(id string) *view {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.byID[id]
}

// take removes the view so that only one action or the timeout handles it.
func (v *views) take(id string) *view {
	v.mu.Lock()
	defer v.mu.Unlock()
	pending, ok := v.byID[id]
	if !ok {
		return nil
	}
	delete(v.byID, id)
	pending.timer.Stop()
	return pending
}

func (v *views) stopAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, pending := range v.byID {
		pending.timer.Stop()
		delete(v.byID, id)
	}
}

func (v *views) len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.byID)
}

func customID(viewID, action string) string {
	return viewID + ":" + action
}

func splitCustomID(id string) (string, string) {
	viewID, action, _ := strings.Cut(id, ":")
	return viewID, action
}
