package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"rinbot/internal/checks"
	"rinbot/internal/locale"
	"rinbot/internal/responder"
	"rinbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// maxSelectOptions is Discord's limit on options in one select menu.
const maxSelectOptions = 25

func (b *Bot) handleBirthdayAdd(ctx context.Context, i *discordgo.InteractionCreate, opts options) {
	day, _ := opts.Int("day")
	month, _ := opts.Int("month")
	name := opts.String("name")
	args := locale.Args{"name": name, "day": day, "month": month}

	if !validDate(int(day), int(month)) {
		b.responder.Failure(ctx, i.Interaction, "birthday_add_invalid_date", args, true)
		return
	}

	added, err := b.store.AddBirthday(ctx, storage.Birthday{
		Day:      int(day),
		Month:    int(month),
		UserID:   checks.InvokerID(i.Interaction),
		Name:     name,
		UserName: checks.InvokerName(i.Interaction),
		Locale:   b.strings.Normalize(string(i.Locale)),
	})
	if err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	if !added {
		b.responder.Failure(ctx, i.Interaction, "birthday_add_exists", args, true)
		return
	}
	b.responder.Success(ctx, i.Interaction, "birthday_add_success", args, true)
}

// validDate accepts 29 February.
func validDate(day, month int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	date := time.Date(2024, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return date.Day() == day && int(date.Month()) == month
}

// handleBirthdayRemove offers the user's birthdays in a select menu and
// removes the ones picked.
func (b *Bot) handleBirthdayRemove(ctx context.Context, i *discordgo.InteractionCreate, _ options) {
	userID := checks.InvokerID(i.Interaction)
	birthdays, err := b.store.BirthdaysForUser(ctx, userID)
	if err != nil {
		b.fail(ctx, i.Interaction, "DBError", err)
		return
	}
	if len(birthdays) == 0 {
		b.responder.Failure(ctx, i.Interaction, "birthday_remove_no_birthdays", nil, true)
		return
	}
	if len(birthdays) > maxSelectOptions {
		birthdays = birthdays[:maxSelectOptions]
	}

	names := make(map[string]string, len(birthdays))
	menuOptions := make([]discordgo.SelectMenuOption, 0, len(birthdays))
	for _, birthday := range birthdays {
		value := birthdayKey(birthday.Day, birthday.Month)
		names[value] = birthday.Name
		menuOptions = append(menuOptions, discordgo.SelectMenuOption{
			Label:       birthday.Name,
			Description: value,
			Value:       value,
		})
	}
	placeholder, _ := b.responder.Text(i.Interaction, "ui_birthday_remove_placeholder", nil)
	minValues := 1

	original := i.Interaction
	viewID := b.views.open(original, userID,
		func(ctx context.Context, pick *discordgo.InteractionCreate, _ string) {
			b.removeBirthdays(ctx, pick, userID, names)
		},
		func() { b.responder.Timeout(context.Background(), original) })

	b.responder.Send(ctx, original, responder.Message{
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.SelectMenu{
				CustomID:    customID(viewID, "remove"),
				Placeholder: placeholder,
				MinValues:   &minValues,
				MaxValues:   len(menuOptions),
				Options:     menuOptions,
			},
		}}},
		Ephemeral: true,
	}, responder.ModePrimary)
}

func (b *Bot) removeBirthdays(ctx context.Context, pick *discordgo.InteractionCreate, userID string, names map[string]string) {
	var removed []string
	for _, value := range pick.MessageComponentData().Values {
		var day, month int
		if _, err := fmt.Sscanf(value, "%d/%d", &day, &month); err != nil {
			b.logger.Warn("unexpected birthday option", zap.String("value", value))
			continue
		}
		ok, err := b.store.RemoveBirthday(ctx, userID, day, month)
		if err != nil {
			b.fail(ctx, pick.Interaction, "DBError", err)
			return
		}
		if ok {
			removed = append(removed, names[value])
		}
	}
	b.logger.Info("birthdays removed", zap.String("user_id", userID), zap.Int("count", len(removed)))
	b.responder.Dispatcher().Update(ctx, pick.Interaction,
		b.notice(pick.Interaction, "ui_birthday_remove_selected", locale.Args{"name": strings.Join(removed, ", ")}, responder.ColourSuccess))
}

func birthdayKey(day, month int) string {
	return fmt.Sprintf("%d/%d", day, month)
}
