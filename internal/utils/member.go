package utils

import "github.com/bwmarrin/discordgo"

// MemberDisplayName is the member's nickname, else global name, else username.
func MemberDisplayName(member *discordgo.Member) string {
	if member == nil || member.User == nil {
		return ""
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}
