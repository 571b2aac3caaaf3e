package welcome

import (
	"context"
	"errors"
	"testing"

	"rinbot/internal/gateway"
	"rinbot/internal/storage"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeConfigs map[string]storage.WelcomeChannel

func (f fakeConfigs) WelcomeChannel(_ context.Context, guildID string) (storage.WelcomeChannel, error) {
	cfg, ok := f[guildID]
	if !ok {
		return storage.WelcomeChannel{}, storage.ErrNotFound
	}
	return cfg, nil
}

type fakeGateway struct {
	channels map[string]*discordgo.Channel
	sendErr  error
	sent     []*discordgo.MessageSend
}

func (g *fakeGateway) Channel(_ context.Context, channelID string) (*discordgo.Channel, error) {
	channel, ok := g.channels[channelID]
	if !ok {
		return nil, gateway.ErrNotFound
	}
	return channel, nil
}

func (g *fakeGateway) Send(_ context.Context, channelID string, msg *discordgo.MessageSend) (*discordgo.Message, error) {
	if g.sendErr != nil {
		return nil, g.sendErr
	}
	g.sent = append(g.sent, msg)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func ann() *discordgo.Member {
	return &discordgo.Member{GuildID: "g1", User: &discordgo.User{ID: "42", Username: "ann", GlobalName: "Ann"}}
}

func textChannels() *fakeGateway {
	return &fakeGateway{channels: map[string]*discordgo.Channel{
		"c1":    {ID: "c1", Type: discordgo.ChannelTypeGuildText},
		"forum": {ID: "forum", Type: discordgo.ChannelTypeGuildForum},
	}}
}

func TestWelcomeRendersEachFieldIndependently(t *testing.T) {
	configs := fakeConfigs{"g1": {
		GuildID: "g1", ChannelID: "c1", Active: true,
		Title: "Hi <username>", Description: "Welcome <mention>", Colour: "#FF66AA",
		AvatarMode: storage.AvatarThumbnail,
	}}
	gw := textChannels()

	require.True(t, New(configs, gw, zap.NewNop()).HandleJoin(context.Background(), ann()))
	require.Len(t, gw.sent, 1)
	embed := gw.sent[0].Embeds[0]
	assert.Equal(t, "Hi Ann", embed.Title)
	assert.Equal(t, "Welcome <@42>", embed.Description)
	assert.Equal(t, 0xFF66AA, embed.Color)
	require.NotNil(t, embed.Thumbnail)
	assert.NotEmpty(t, embed.Thumbnail.URL)
	assert.Nil(t, embed.Image)
}

func TestRenderUsernameWinsOverMention(t *testing.T) {
	cfg := storage.WelcomeChannel{Description: "<username> is <mention>", AvatarMode: storage.AvatarImage}
	embed := Render(cfg, ann(), zap.NewNop())
	assert.Equal(t, "Ann is <mention>", embed.Description)
	require.NotNil(t, embed.Image)
	assert.Nil(t, embed.Thumbnail)
}

func TestRenderIgnoresBadColour(t *testing.T) {
	embed := Render(storage.WelcomeChannel{Colour: "not-a-colour"}, ann(), zap.NewNop())
	assert.Zero(t, embed.Color)
}

func TestWelcomeNoOps(t *testing.T) {
	cases := map[string]fakeConfigs{
		"absent":       {},
		"inactive":     {"g1": {GuildID: "g1", ChannelID: "c1", Active: false}},
		"no channel":   {"g1": {GuildID: "g1", Active: true}},
		"unresolvable": {"g1": {GuildID: "g1", ChannelID: "gone", Active: true}},
		"unsupported":  {"g1": {GuildID: "g1", ChannelID: "forum", Active: true}},
	}
	for name, configs := range cases {
		t.Run(name, func(t *testing.T) {
			gw := textChannels()
			assert.False(t, New(configs, gw, zap.NewNop()).HandleJoin(context.Background(), ann()))
			assert.Empty(t, gw.sent)
		})
	}
}

func TestWelcomeSendFailureIsSwallowed(t *testing.T) {
	configs := fakeConfigs{"g1": {GuildID: "g1", ChannelID: "c1", Active: true, Title: "hi"}}
	gw := textChannels()
	gw.sendErr = errors.New("missing access")
	assert.False(t, New(configs, gw, zap.NewNop()).HandleJoin(context.Background(), ann()))
}

func TestPostable(t *testing.T) {
	assert.True(t, Postable(discordgo.ChannelTypeGuildText))
	assert.True(t, Postable(discordgo.ChannelTypeGuildNews))
	assert.False(t, Postable(discordgo.ChannelTypeGuildCategory))
	assert.False(t, Postable(discordgo.ChannelTypeGuildVoice))
}
