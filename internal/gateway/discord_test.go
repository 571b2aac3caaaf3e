package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestGuildPermissions(t *testing.T) {
	guild := &discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g1", Permissions: discordgo.PermissionSendMessages},
			{ID: "mods", Permissions: discordgo.PermissionManageMessages | discordgo.PermissionKickMembers},
			{ID: "admins", Permissions: discordgo.PermissionAdministrator},
		},
	}

	member := &discordgo.Member{User: &discordgo.User{ID: "u1"}, Roles: []string{"mods"}}
	perms := GuildPermissions(guild, member)
	assert.NotZero(t, perms&discordgo.PermissionSendMessages, "everyone role applies")
	assert.NotZero(t, perms&discordgo.PermissionKickMembers)
	assert.Zero(t, perms&discordgo.PermissionAdministrator)

	admin := &discordgo.Member{User: &discordgo.User{ID: "u2"}, Roles: []string{"admins"}}
	assert.Equal(t, int64(discordgo.PermissionAll), GuildPermissions(guild, admin))

	owner := &discordgo.Member{User: &discordgo.User{ID: "owner"}}
	assert.Equal(t, int64(discordgo.PermissionAll), GuildPermissions(guild, owner))

	assert.Zero(t, GuildPermissions(nil, member))
}

func TestClassify(t *testing.T) {
	unknownRole := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownRole},
	}
	assert.ErrorIs(t, classify(unknownRole), ErrNotFound)

	var restErr *discordgo.RESTError
	assert.True(t, errors.As(classify(unknownRole), &restErr), "original error stays reachable")

	missingAccess := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingAccess},
	}
	assert.ErrorIs(t, classify(missingAccess), ErrForbidden)

	bare404 := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound}}
	assert.ErrorIs(t, classify(bare404), ErrNotFound)

	rateLimited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	err := classify(rateLimited)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrForbidden)

	plain := fmt.Errorf("dial tcp: timeout")
	assert.Equal(t, plain, classify(plain))
	assert.NoError(t, classify(nil))
}
