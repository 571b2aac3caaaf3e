package tasks

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"rinbot/internal/locale"
	"rinbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	StatusLoop    = "status_loop"
	BirthdayCheck = "birthday_check"
	SpamPrune     = "spam_prune"
)

type Strings interface {
	Text(code, key string, args locale.Args) (string, bool)
	List(code, key string) ([]string, bool)
}

type Presence interface {
	Guilds() []*discordgo.Guild
	UpdateStatus(name string) error
}

type BirthdaySource interface {
	BirthdaysOn(ctx context.Context, day, month int) ([]storage.Birthday, error)
}

type DMSender interface {
	SendDM(ctx context.Context, userID string, msg *discordgo.MessageSend) (*discordgo.Message, error)
}

type Pruner interface {
	Prune() int
}

// StatusRotation sets a random status from the locale's list every interval.
// In maintenance mode the maintenance status is shown instead.
func StatusRotation(strings Strings, presence Presence, code string, interval time.Duration, maintenance bool, logger *zap.Logger) Task {
	return Task{
		Name: StatusLoop,
		Spec: fmt.Sprintf("@every %s", interval),
		Run: func(context.Context) {
			status, ok := pickStatus(strings, presence, code, maintenance, rand.IntN)
			if !ok {
				logger.Warn("no status available", zap.String("locale", code))
				return
			}
			if err := presence.UpdateStatus(status); err != nil {
				logger.Warn("failed to update status", zap.Error(err))
				return
			}
			logger.Info("status updated", zap.String("status", status))
		},
	}
}

func pickStatus(strings Strings, presence Presence, code string, maintenance bool, intN func(int) int) (string, bool) {
	if maintenance {
		return strings.Text(code, "maintenance_status", nil)
	}
	statuses, ok := strings.List(code, "statuses")
	if !ok || len(statuses) == 0 {
		return "", false
	}
	status, err := locale.Format(statuses[intN(len(statuses))], locale.Args{"guilds": len(presence.Guilds())})
	if err != nil {
		return "", false
	}
	return status, true
}

// BirthdayReminders messages every user who saved a birthday falling today,
// in the locale they saved it with.
func BirthdayReminders(source BirthdaySource, sender DMSender, strings Strings, now func() time.Time, logger *zap.Logger) Task {
	return Task{
		Name: BirthdayCheck,
		Spec: "0 0 * * *",
		Run: func(ctx context.Context) {
			sent := SendBirthdayReminders(ctx, source, sender, strings, now(), logger)
			logger.Info("birthday reminders sent", zap.Int("count", sent))
		},
	}
}

func SendBirthdayReminders(ctx context.Context, source BirthdaySource, sender DMSender, strings Strings, today time.Time, logger *zap.Logger) int {
	birthdays, err := source.BirthdaysOn(ctx, today.Day(), int(today.Month()))
	if err != nil {
		logger.Error("failed to load birthdays", zap.Error(err))
		return 0
	}

	sent := 0
	for _, birthday := range birthdays {
		title, okTitle := strings.Text(birthday.Locale, "birthday_title", nil)
		description, okDesc := strings.Text(birthday.Locale, "birthday_description", locale.Args{"name": birthday.Name})
		if !okTitle || !okDesc {
			logger.Warn("birthday text unavailable", zap.String("locale", birthday.Locale))
			continue
		}
		msg := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: description,
			Color:       0xF1C40F,
		}}}
		if _, err := sender.SendDM(ctx, birthday.UserID, msg); err != nil {
			logger.Warn("failed to send birthday reminder", zap.String("user_id", birthday.UserID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent
}

// SpamWindowPrune evicts idle users from the spam detector.
func SpamWindowPrune(pruner Pruner, logger *zap.Logger) Task {
	return Task{
		Name: SpamPrune,
		Spec: "@every 1m",
		Run: func(context.Context) {
			if evicted := pruner.Prune(); evicted > 0 {
				logger.Debug("spam windows pruned", zap.Int("evicted", evicted))
			}
		},
	}
}
