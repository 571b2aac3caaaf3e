package responder

import (
	"context"
	"errors"
	"net/http"

	"rinbot/internal/utils"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// Mode is a delivery method for an interaction response. Modes form a chain:
// a failed Primary falls back to Followup, which falls back to Channel.
type Mode int

const (
	ModePrimary Mode = iota
	ModeFollowup
	ModeChannel
)

func (m Mode) String() string {
	switch m {
	case ModePrimary:
		return "primary"
	case ModeFollowup:
		return "followup"
	case ModeChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Discord JSON error codes that mean the interaction token can no longer be
// answered through the requested route.
const (
	codeUnknownWebhook          = 10015
	codeUnknownInteraction      = 10062
	codeInteractionAcknowledged = 40060
)

const previewLength = 100

// Transport is the subset of *discordgo.Session used to deliver responses.
type Transport interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type Message struct {
	Content    string
	Embed      *discordgo.MessageEmbed
	Components []discordgo.MessageComponent
	Ephemeral  bool
	// Silent skips the delivery log line.
	Silent bool
}

// Delivery describes a message that reached Discord. Message is nil for
// primary responses, which return no body.
type Delivery struct {
	Mode    Mode
	Message *discordgo.Message
}

type Dispatcher struct {
	transport Transport
	logger    *zap.Logger
}

func NewDispatcher(transport Transport, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{transport: transport, logger: logger}
}

// Send delivers msg starting at mode and walking the fallback chain. It never
// returns an error: failures are logged and reported as a nil Delivery.
func (d *Dispatcher) Send(ctx context.Context, i *discordgo.Interaction, msg Message, mode Mode) *Delivery {
	for current := mode; current <= ModeChannel; current++ {
		sent, err := d.sendOnce(ctx, i, msg, current)
		if err == nil {
			delivery := &Delivery{Mode: current, Message: sent}
			if !msg.Silent {
				d.logDelivery(i, msg, current)
			}
			return delivery
		}
		if !IsFallbackError(err) {
			d.logFailure(i, current, err)
			return nil
		}
		d.logger.Debug("delivery method unavailable, falling back",
			zap.String("mode", current.String()),
			zap.String("interaction_id", i.ID),
			zap.Error(err))
	}

	d.logger.Error("all delivery methods failed",
		zap.String("interaction_id", i.ID),
		zap.String("guild_id", i.GuildID),
		zap.String("channel_id", i.ChannelID))
	return nil
}

// Update replaces the message a component interaction is attached to.
func (d *Dispatcher) Update(ctx context.Context, i *discordgo.Interaction, msg Message) *Delivery {
	err := d.transport.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: responseData(msg),
	}, discordgo.WithContext(ctx))
	if err == nil {
		if !msg.Silent {
			d.logDelivery(i, msg, ModePrimary)
		}
		return &Delivery{Mode: ModePrimary}
	}
	if !IsFallbackError(err) {
		d.logFailure(i, ModePrimary, err)
		return nil
	}
	return d.Edit(ctx, i, msg)
}

// Edit rewrites the original response of an interaction.
func (d *Dispatcher) Edit(ctx context.Context, i *discordgo.Interaction, msg Message) *Delivery {
	edit := &discordgo.WebhookEdit{Content: &msg.Content}
	embeds := []*discordgo.MessageEmbed{}
	if msg.Embed != nil {
		embeds = append(embeds, msg.Embed)
	}
	edit.Embeds = &embeds
	components := msg.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	edit.Components = &components

	sent, err := d.transport.InteractionResponseEdit(i, edit, discordgo.WithContext(ctx))
	if err != nil {
		d.logFailure(i, ModePrimary, err)
		return nil
	}
	if !msg.Silent {
		d.logDelivery(i, msg, ModePrimary)
	}
	return &Delivery{Mode: ModePrimary, Message: sent}
}

func (d *Dispatcher) sendOnce(ctx context.Context, i *discordgo.Interaction, msg Message, mode Mode) (*discordgo.Message, error) {
	switch mode {
	case ModePrimary:
		return nil, d.transport.InteractionRespond(i, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: responseData(msg),
		}, discordgo.WithContext(ctx))
	case ModeFollowup:
		params := &discordgo.WebhookParams{
			Content:    msg.Content,
			Components: msg.Components,
		}
		if msg.Embed != nil {
			params.Embeds = []*discordgo.MessageEmbed{msg.Embed}
		}
		if msg.Ephemeral {
			params.Flags = discordgo.MessageFlagsEphemeral
		}
		return d.transport.FollowupMessageCreate(i, true, params, discordgo.WithContext(ctx))
	default:
		// channel posts cannot be ephemeral and carry no components
		send := &discordgo.MessageSend{Content: msg.Content}
		if msg.Embed != nil {
			send.Embeds = []*discordgo.MessageEmbed{msg.Embed}
		}
		return d.transport.ChannelMessageSendComplex(i.ChannelID, send, discordgo.WithContext(ctx))
	}
}

func responseData(msg Message) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:    msg.Content,
		Components: msg.Components,
	}
	if msg.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{msg.Embed}
	}
	if msg.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

// IsFallbackError reports whether err means the route is gone (not found or
// already answered) rather than that Discord refused the message.
func IsFallbackError(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Message != nil {
		switch restErr.Message.Code {
		case codeUnknownWebhook, codeUnknownInteraction, codeInteractionAcknowledged:
			return true
		}
	}
	return restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound
}

func (d *Dispatcher) logDelivery(i *discordgo.Interaction, msg Message, mode Mode) {
	d.logger.Info("response sent",
		zap.String("type", Classify(msg)),
		zap.String("mode", mode.String()),
		zap.String("guild_id", i.GuildID),
		zap.String("channel_id", i.ChannelID),
		zap.String("author_id", authorID(i)),
		zap.String("preview", Preview(msg)))
}

func (d *Dispatcher) logFailure(i *discordgo.Interaction, mode Mode, err error) {
	fields := []zap.Field{
		zap.String("mode", mode.String()),
		zap.String("interaction_id", i.ID),
		zap.String("guild_id", i.GuildID),
		zap.Error(err),
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Response != nil {
			fields = append(fields, zap.Int("status", restErr.Response.StatusCode))
		}
		if restErr.Message != nil {
			fields = append(fields, zap.Int("code", restErr.Message.Code))
		}
	}
	d.logger.Error("failed to send response", fields...)
}

// Classify names the shape of a message for delivery logs.
func Classify(msg Message) string {
	hasEmbed := msg.Embed != nil
	hasView := len(msg.Components) > 0
	switch {
	case hasEmbed && hasView:
		return "Embed + View"
	case hasEmbed:
		return "Embed"
	case hasView:
		return "View"
	default:
		return "Content only"
	}
}

// Preview is the embed description, else the embed title, else the content.
func Preview(msg Message) string {
	var text string
	if msg.Embed != nil {
		text = msg.Embed.Description
		if text == "" {
			text = msg.Embed.Title
		}
	}
	if text == "" {
		text = msg.Content
	}
	if text == "" {
		return "[No content]"
	}
	return utils.Truncate(text, previewLength)
}

func authorID(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
