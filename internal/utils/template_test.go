package utils

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestRenderMemberTemplatePrefersUsername(t *testing.T) {
	got := RenderMemberTemplate("Hi <username>, meet <mention>", "Ann", "<@1>")
	if got != "Hi Ann, meet <mention>" {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestRenderMemberTemplateMention(t *testing.T) {
	got := RenderMemberTemplate("Welcome <mention>! <mention>", "Ann", "<@1>")
	if got != "Welcome <@1>! <@1>" {
		t.Fatalf("unexpected render %q", got)
	}
	if got := RenderMemberTemplate("plain", "Ann", "<@1>"); got != "plain" {
		t.Fatalf("unexpected render %q", got)
	}
}

func TestParseHexColour(t *testing.T) {
	cases := map[string]int{
		"#FF0000": 0xFF0000,
		"00ff7f":  0x00FF7F,
		"#000000": 0,
	}
	for in, want := range cases {
		got, err := ParseHexColour(in)
		if err != nil {
			t.Fatalf("parse %q: %v", in, err)
		}
		if got != want {
			t.Fatalf("parse %q: expected %06x, got %06x", in, want, got)
		}
	}
	if _, err := ParseHexColour("#GG0000"); err == nil {
		t.Fatalf("expected error for invalid hex")
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Fatalf("unexpected %q", got)
	}
	if got := Truncate("hello world", 5); got != "hell…" {
		t.Fatalf("unexpected %q", got)
	}
}

func TestMemberDisplayName(t *testing.T) {
	member := &discordgo.Member{User: &discordgo.User{Username: "ann"}}
	if got := MemberDisplayName(member); got != "ann" {
		t.Fatalf("unexpected %q", got)
	}
	member.User.GlobalName = "Ann"
	if got := MemberDisplayName(member); got != "Ann" {
		t.Fatalf("unexpected %q", got)
	}
	member.Nick = "Annie"
	if got := MemberDisplayName(member); got != "Annie" {
		t.Fatalf("unexpected %q", got)
	}
	if got := MemberDisplayName(nil); got != "" {
		t.Fatalf("unexpected %q", got)
	}
}
