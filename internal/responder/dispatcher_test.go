package responder

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"rinbot/internal/locale"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeTransport struct {
	respondErr  error
	followupErr error
	channelErr  error
	editErr     error

	responded []*discordgo.InteractionResponse
	followups []*discordgo.WebhookParams
	channel   []*discordgo.MessageSend
	edits     []*discordgo.WebhookEdit
}

func (f *fakeTransport) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	if f.respondErr != nil {
		return f.respondErr
	}
	f.responded = append(f.responded, resp)
	return nil
}

func (f *fakeTransport) FollowupMessageCreate(_ *discordgo.Interaction, _ bool, data *discordgo.WebhookParams, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.followupErr != nil {
		return nil, f.followupErr
	}
	f.followups = append(f.followups, data)
	return &discordgo.Message{ID: "followup", Content: data.Content}, nil
}

func (f *fakeTransport) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.channelErr != nil {
		return nil, f.channelErr
	}
	f.channel = append(f.channel, data)
	return &discordgo.Message{ID: "channel", ChannelID: channelID}, nil
}

func (f *fakeTransport) InteractionResponseEdit(_ *discordgo.Interaction, edit *discordgo.WebhookEdit, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edits = append(f.edits, edit)
	return &discordgo.Message{ID: "original"}, nil
}

func (f *fakeTransport) delivered() int {
	return len(f.responded) + len(f.followups) + len(f.channel)
}

func restError(status, code int) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: "error"},
	}
}

func interaction() *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:        "i1",
		GuildID:   "g1",
		ChannelID: "c1",
		Locale:    discordgo.EnglishUS,
		Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}},
	}
}

func newDispatcher(transport Transport) (*Dispatcher, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return NewDispatcher(transport, zap.New(core)), logs
}

func TestPrimaryNotFoundFallsBackToFollowupOnce(t *testing.T) {
	transport := &fakeTransport{respondErr: restError(http.StatusNotFound, codeUnknownInteraction)}
	d, logs := newDispatcher(transport)

	delivery := d.Send(context.Background(), interaction(), Message{Content: "hello", Ephemeral: true}, ModePrimary)

	require.NotNil(t, delivery)
	assert.Equal(t, ModeFollowup, delivery.Mode)
	assert.Equal(t, 1, transport.delivered())
	require.Len(t, transport.followups, 1)
	assert.Equal(t, discordgo.MessageFlagsEphemeral, transport.followups[0].Flags)

	sent := logs.FilterMessage("response sent").All()
	require.Len(t, sent, 1)
	assert.Equal(t, "followup", sent[0].ContextMap()["mode"])
	assert.Equal(t, "Content only", sent[0].ContextMap()["type"])
}

func TestAlreadyAcknowledgedFallsBack(t *testing.T) {
	transport := &fakeTransport{respondErr: restError(http.StatusBadRequest, codeInteractionAcknowledged)}
	d, _ := newDispatcher(transport)

	delivery := d.Send(context.Background(), interaction(), Message{Content: "hi"}, ModePrimary)
	require.NotNil(t, delivery)
	assert.Equal(t, ModeFollowup, delivery.Mode)
}

func TestChannelFallbackDropsEphemeralAndView(t *testing.T) {
	transport := &fakeTransport{
		respondErr:  restError(http.StatusNotFound, codeUnknownInteraction),
		followupErr: restError(http.StatusNotFound, codeUnknownWebhook),
	}
	d, _ := newDispatcher(transport)

	msg := Message{
		Embed:      &discordgo.MessageEmbed{Description: "d"},
		Components: []discordgo.MessageComponent{discordgo.ActionsRow{}},
		Ephemeral:  true,
	}
	delivery := d.Send(context.Background(), interaction(), msg, ModePrimary)

	require.NotNil(t, delivery)
	assert.Equal(t, ModeChannel, delivery.Mode)
	require.Len(t, transport.channel, 1)
	assert.Empty(t, transport.channel[0].Components)
	assert.Len(t, transport.channel[0].Embeds, 1)
}

func TestExhaustedChainReturnsNil(t *testing.T) {
	notFound := restError(http.StatusNotFound, 0)
	transport := &fakeTransport{respondErr: notFound, followupErr: notFound, channelErr: notFound}
	d, logs := newDispatcher(transport)

	assert.Nil(t, d.Send(context.Background(), interaction(), Message{Content: "x"}, ModePrimary))
	assert.Equal(t, 1, logs.FilterMessage("all delivery methods failed").Len())
}

func TestTransportErrorIsTerminal(t *testing.T) {
	transport := &fakeTransport{respondErr: restError(http.StatusForbidden, discordgo.ErrCodeMissingPermissions)}
	d, logs := newDispatcher(transport)

	assert.Nil(t, d.Send(context.Background(), interaction(), Message{Content: "x"}, ModePrimary))
	assert.Zero(t, transport.delivered())

	failures := logs.FilterMessage("failed to send response").All()
	require.Len(t, failures, 1)
	fields := failures[0].ContextMap()
	assert.EqualValues(t, http.StatusForbidden, fields["status"])
	assert.EqualValues(t, discordgo.ErrCodeMissingPermissions, fields["code"])
}

func TestNonRESTErrorIsTerminal(t *testing.T) {
	transport := &fakeTransport{respondErr: errors.New("connection reset")}
	d, _ := newDispatcher(transport)
	assert.Nil(t, d.Send(context.Background(), interaction(), Message{Content: "x"}, ModePrimary))
	assert.Zero(t, transport.delivered())
}

func TestSilentSkipsLog(t *testing.T) {
	d, logs := newDispatcher(&fakeTransport{})
	require.NotNil(t, d.Send(context.Background(), interaction(), Message{Content: "x", Silent: true}, ModePrimary))
	assert.Zero(t, logs.FilterMessage("response sent").Len())
}

func TestClassifyAndPreview(t *testing.T) {
	embed := &discordgo.MessageEmbed{Title: "title"}
	view := []discordgo.MessageComponent{discordgo.ActionsRow{}}

	assert.Equal(t, "Embed + View", Classify(Message{Embed: embed, Components: view}))
	assert.Equal(t, "Embed", Classify(Message{Embed: embed}))
	assert.Equal(t, "View", Classify(Message{Components: view}))
	assert.Equal(t, "Content only", Classify(Message{Content: "x"}))

	assert.Equal(t, "title", Preview(Message{Embed: embed, Content: "content"}))
	assert.Equal(t, "desc", Preview(Message{Embed: &discordgo.MessageEmbed{Title: "t", Description: "desc"}}))
	assert.Equal(t, "content", Preview(Message{Content: "content"}))
	assert.Equal(t, "[No content]", Preview(Message{}))
}

type staticStrings map[string]string

func (s staticStrings) Text(_ string, key string, _ locale.Args) (string, bool) {
	text, ok := s[key]
	return text, ok
}

func TestResponderTimeoutEditsOriginal(t *testing.T) {
	transport := &fakeTransport{}
	d, _ := newDispatcher(transport)
	r := New(d, staticStrings{"error_timeout": "Timed out."}, zap.NewNop())

	require.NotNil(t, r.Timeout(context.Background(), interaction()))
	require.Len(t, transport.edits, 1)
	edit := transport.edits[0]
	require.NotNil(t, edit.Embeds)
	assert.Equal(t, "Timed out.", (*edit.Embeds)[0].Description)
	assert.Equal(t, ColourTimeout, (*edit.Embeds)[0].Color)
	require.NotNil(t, edit.Components)
	assert.Empty(t, *edit.Components)
}

func TestResponderFailureIsEphemeralEmbed(t *testing.T) {
	transport := &fakeTransport{}
	d, _ := newDispatcher(transport)
	r := New(d, staticStrings{"error_not_owner": "Owners only."}, zap.NewNop())

	require.NotNil(t, r.Failure(context.Background(), interaction(), "error_not_owner", nil, true))
	require.Len(t, transport.responded, 1)
	data := transport.responded[0].Data
	assert.Equal(t, discordgo.MessageFlagsEphemeral, data.Flags)
	assert.Equal(t, "Owners only.", data.Embeds[0].Description)
	assert.Equal(t, ColourFailure, data.Embeds[0].Color)

	assert.Nil(t, r.Success(context.Background(), interaction(), "missing_key", nil, true))
	assert.Len(t, transport.responded, 1)
}
