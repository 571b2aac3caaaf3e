package responder

import (
	"context"

	"rinbot/internal/locale"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

const (
	ColourSuccess = 0x2ECC71
	ColourFailure = 0xE74C3C
	ColourTimeout = 0xF1C40F
	ColourDefault = 0x5865F2
)

type Strings interface {
	Text(code, key string, args locale.Args) (string, bool)
}

// Responder answers interactions with localized embeds.
type Responder struct {
	dispatcher *Dispatcher
	strings    Strings
	logger     *zap.Logger
}

func New(dispatcher *Dispatcher, strings Strings, logger *zap.Logger) *Responder {
	return &Responder{dispatcher: dispatcher, strings: strings, logger: logger}
}

func (r *Responder) Dispatcher() *Dispatcher {
	return r.dispatcher
}

// Text resolves key in the invoking user's locale.
func (r *Responder) Text(i *discordgo.Interaction, key string, args locale.Args) (string, bool) {
	return r.strings.Text(string(i.Locale), key, args)
}

func (r *Responder) Success(ctx context.Context, i *discordgo.Interaction, key string, args locale.Args, hidden bool) *Delivery {
	return r.embed(ctx, i, key, args, ColourSuccess, hidden, ModePrimary)
}

func (r *Responder) Failure(ctx context.Context, i *discordgo.Interaction, key string, args locale.Args, hidden bool) *Delivery {
	return r.embed(ctx, i, key, args, ColourFailure, hidden, ModePrimary)
}

func (r *Responder) Defaults(ctx context.Context, i *discordgo.Interaction, key string, args locale.Args, hidden bool) *Delivery {
	return r.embed(ctx, i, key, args, ColourDefault, hidden, ModePrimary)
}

// UnknownFailure tells the user something unexpected went wrong. If the
// interaction was already answered the chain moves on to a followup.
func (r *Responder) UnknownFailure(ctx context.Context, i *discordgo.Interaction) *Delivery {
	return r.embed(ctx, i, "error_unknown", nil, ColourFailure, true, ModePrimary)
}

func (r *Responder) InvalidArguments(ctx context.Context, i *discordgo.Interaction, detail string) *Delivery {
	return r.Failure(ctx, i, "invalid_arguments", locale.Args{"args": detail}, true)
}

// Timeout replaces the original response with a timeout notice and removes its components.
func (r *Responder) Timeout(ctx context.Context, i *discordgo.Interaction) *Delivery {
	text, ok := r.Text(i, "error_timeout", nil)
	if !ok {
		return nil
	}
	return r.dispatcher.Edit(ctx, i, Message{
		Embed: &discordgo.MessageEmbed{Description: text, Color: ColourTimeout},
	})
}

// Send forwards a prepared message to the dispatcher.
func (r *Responder) Send(ctx context.Context, i *discordgo.Interaction, msg Message, mode Mode) *Delivery {
	return r.dispatcher.Send(ctx, i, msg, mode)
}

func (r *Responder) embed(ctx context.Context, i *discordgo.Interaction, key string, args locale.Args, colour int, hidden bool, mode Mode) *Delivery {
	text, ok := r.Text(i, key, args)
	if !ok {
		r.logger.Warn("response text unavailable", zap.String("key", key), zap.String("locale", string(i.Locale)))
		return nil
	}
	return r.dispatcher.Send(ctx, i, Message{
		Embed:     &discordgo.MessageEmbed{Description: text, Color: colour},
		Ephemeral: hidden,
	}, mode)
}
