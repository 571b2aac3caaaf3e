package bot

import (
	"rinbot/internal/checks"
	"rinbot/internal/extensions"
	"rinbot/internal/locale"
	"rinbot/internal/utils"

	"github.com/bwmarrin/discordgo"
)

const (
	extCore     = "core"
	extConfig   = "config"
	extBirthday = "birthday"
)

const descriptionLimit = 100

// commandTable maps every invocable path to its checks and handler.
func (b *Bot) commandTable() map[string]command {
	notBlacklisted := checks.NotBlacklisted(b.store)
	owner := checks.All(notBlacklisted, checks.OwnersRegistered(b.store), checks.Owner(b.store))
	admin := checks.All(checks.Guild(), notBlacklisted, checks.Admin(b.gateway, b.logger))
	guild := checks.All(checks.Guild(), notBlacklisted)
	manage := func(perms int64) checks.Check {
		return checks.All(guild, checks.Permissions(perms, b.gateway, b.logger))
	}

	return map[string]command{
		"ping":              {check: notBlacklisted, handler: b.handlePing},
		"shutdown":          {check: owner, handler: b.handleShutdown},
		"extensions list":   {check: owner, handler: b.handleExtensionsList},
		"extensions load":   {check: owner, handler: b.handleExtensionChange(opLoad)},
		"extensions unload": {check: owner, handler: b.handleExtensionChange(opUnload)},
		"extensions reload": {check: owner, handler: b.handleExtensionChange(opReload)},
		"admins me":         {check: guild, handler: b.handleAdminsMe},
		"admins add":        {check: admin, handler: b.handleAdminsAdd},
		"admins remove":     {check: admin, handler: b.handleAdminsRemove},
		"owners me":         {check: notBlacklisted, handler: b.handleOwnersMe},
		"owners add":        {check: owner, handler: b.handleOwnersAdd},
		"owners remove":     {check: owner, handler: b.handleOwnersRemove},

		"configure-guild auto-role":         {check: manage(discordgo.PermissionManageRoles), handler: b.handleConfigureAutoRole},
		"configure-guild spam-filter":       {check: manage(discordgo.PermissionManageMessages), handler: b.handleConfigureSpamFilter},
		"configure-guild welcome-channel":   {check: manage(discordgo.PermissionManageServer), handler: b.handleConfigureWelcome},
		"configure-user translate-private":  {check: guild, handler: b.handleConfigureUser(prefTranslate)},
		"configure-user fact-check-private": {check: guild, handler: b.handleConfigureUser(prefFactCheck)},
		"toggle auto-role":                  {check: manage(discordgo.PermissionManageRoles), handler: b.handleToggleAutoRole},
		"toggle spam-filter":                {check: manage(discordgo.PermissionManageMessages), handler: b.handleToggleSpamFilter},
		"toggle welcome-channel":            {check: manage(discordgo.PermissionManageServer), handler: b.handleToggleWelcome},

		"birthday add":    {check: notBlacklisted, handler: b.handleBirthdayAdd},
		"birthday remove": {check: notBlacklisted, handler: b.handleBirthdayRemove},
	}
}

// definitions builds the slash commands of every extension. Names are fixed;
// descriptions come from the locale tables.
func (b *Bot) definitions() []extensions.Extension {
	manageGuild := int64(discordgo.PermissionManageServer)
	guildOnly := false
	minDay, minMonth := 1.0, 1.0

	extensionChoices := []*discordgo.ApplicationCommandOptionChoice{
		{Name: extCore, Value: extCore},
		{Name: extConfig, Value: extConfig},
		{Name: extBirthday, Value: extBirthday},
	}
	extensionOption := b.option(discordgo.ApplicationCommandOptionString, "extension", "extension_option_desc", true)
	extensionOption.Choices = extensionChoices

	return []extensions.Extension{
		{Name: extCore, Commands: []*discordgo.ApplicationCommand{
			b.command("ping", "ping_desc"),
			b.command("shutdown", "shutdown_desc"),
			b.command("extensions", "extensions_desc",
				b.subcommand("list", "extensions_list_desc"),
				b.subcommand("load", "extensions_load_desc", extensionOption),
				b.subcommand("unload", "extensions_unload_desc", extensionOption),
				b.subcommand("reload", "extensions_reload_desc", extensionOption),
			),
			withDM(b.command("admins", "admins_desc",
				b.subcommand("me", "admins_me_desc"),
				b.subcommand("add", "admins_add_desc", b.option(discordgo.ApplicationCommandOptionUser, "member", "member_option_desc", true)),
				b.subcommand("remove", "admins_remove_desc", b.option(discordgo.ApplicationCommandOptionUser, "member", "member_option_desc", true)),
			), &guildOnly),
			b.command("owners", "owners_desc",
				b.subcommand("me", "owners_me_desc", b.option(discordgo.ApplicationCommandOptionString, "token", "token_option_desc", true)),
				b.subcommand("add", "owners_add_desc", b.option(discordgo.ApplicationCommandOptionUser, "user", "member_option_desc", true)),
				b.subcommand("remove", "owners_remove_desc", b.option(discordgo.ApplicationCommandOptionUser, "user", "member_option_desc", true)),
			),
		}},
		{Name: extConfig, Commands: []*discordgo.ApplicationCommand{
			withPermissions(withDM(b.command("configure-guild", "configure_guild_desc",
				b.subcommand("auto-role", "configure_guild_auto_role_desc",
					b.option(discordgo.ApplicationCommandOptionRole, "role", "role_option_desc", true)),
				b.subcommand("spam-filter", "configure_guild_spam_filter_desc",
					b.choices(b.option(discordgo.ApplicationCommandOptionInteger, "action", "spam_action_option_desc", true),
						choice{"spam_action_disabled", 0}, choice{"spam_action_delete", 1}, choice{"spam_action_kick", 2}),
					b.option(discordgo.ApplicationCommandOptionString, "message", "spam_message_option_desc", false)),
				b.subcommand("welcome-channel", "configure_guild_welcome_channel_desc",
					withChannelTypes(b.option(discordgo.ApplicationCommandOptionChannel, "channel", "channel_option_desc", true),
						discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews),
					b.option(discordgo.ApplicationCommandOptionString, "title", "title_option_desc", false),
					b.option(discordgo.ApplicationCommandOptionString, "description", "description_option_desc", false),
					b.option(discordgo.ApplicationCommandOptionString, "colour", "colour_option_desc", false),
					b.choices(b.option(discordgo.ApplicationCommandOptionInteger, "avatar", "avatar_option_desc", false),
						choice{"avatar_none", 0}, choice{"avatar_thumbnail", 1}, choice{"avatar_image", 2})),
			), &guildOnly), &manageGuild),
			withDM(b.command("configure-user", "configure_user_desc",
				b.subcommand("translate-private", "configure_user_translate_private_desc",
					b.option(discordgo.ApplicationCommandOptionBoolean, "enabled", "enabled_option_desc", true)),
				b.subcommand("fact-check-private", "configure_user_fact_check_private_desc",
					b.option(discordgo.ApplicationCommandOptionBoolean, "enabled", "enabled_option_desc", true)),
			), &guildOnly),
			withPermissions(withDM(b.command("toggle", "toggle_desc",
				b.subcommand("auto-role", "toggle_auto_role_desc"),
				b.subcommand("spam-filter", "toggle_spam_filter_desc"),
				b.subcommand("welcome-channel", "toggle_welcome_channel_desc"),
			), &guildOnly), &manageGuild),
		}},
		{Name: extBirthday, Commands: []*discordgo.ApplicationCommand{
			b.command("birthday", "birthday_desc",
				b.subcommand("add", "birthday_add_desc",
					withRange(b.option(discordgo.ApplicationCommandOptionInteger, "day", "day_option_desc", true), &minDay, 31),
					withRange(b.option(discordgo.ApplicationCommandOptionInteger, "month", "month_option_desc", true), &minMonth, 12),
					b.option(discordgo.ApplicationCommandOptionString, "name", "name_option_desc", true)),
				b.subcommand("remove", "birthday_remove_desc"),
			),
		}},
	}
}

type choice struct {
	key   string
	value int
}

func (b *Bot) describe(key string) (string, map[discordgo.Locale]string) {
	text, ok := b.strings.Text(locale.Base, key, nil)
	if !ok {
		text = key
	}
	localized := b.strings.Localizations(key)
	for code, value := range localized {
		localized[code] = utils.Truncate(value, descriptionLimit)
	}
	return utils.Truncate(text, descriptionLimit), localized
}

func (b *Bot) command(name, key string, subcommands ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommand {
	description, localized := b.describe(key)
	return &discordgo.ApplicationCommand{
		Name:                     name,
		Description:              description,
		DescriptionLocalizations: &localized,
		Options:                  subcommands,
	}
}

func (b *Bot) subcommand(name, key string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
	description, localized := b.describe(key)
	return &discordgo.ApplicationCommandOption{
		Type:                     discordgo.ApplicationCommandOptionSubCommand,
		Name:                     name,
		Description:              description,
		DescriptionLocalizations: localized,
		Options:                  opts,
	}
}

func (b *Bot) option(kind discordgo.ApplicationCommandOptionType, name, key string, required bool) *discordgo.ApplicationCommandOption {
	description, localized := b.describe(key)
	return &discordgo.ApplicationCommandOption{
		Type:                     kind,
		Name:                     name,
		Description:              description,
		DescriptionLocalizations: localized,
		Required:                 required,
	}
}

func (b *Bot) choices(opt *discordgo.ApplicationCommandOption, choices ...choice) *discordgo.ApplicationCommandOption {
	for _, c := range choices {
		name, localized := b.describe(c.key)
		opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{
			Name:              name,
			NameLocalizations: localized,
			Value:             c.value,
		})
	}
	return opt
}

func withDM(cmd *discordgo.ApplicationCommand, allowed *bool) *discordgo.ApplicationCommand {
	cmd.DMPermission = allowed
	return cmd
}

func withPermissions(cmd *discordgo.ApplicationCommand, perms *int64) *discordgo.ApplicationCommand {
	cmd.DefaultMemberPermissions = perms
	return cmd
}

func withChannelTypes(opt *discordgo.ApplicationCommandOption, types ...discordgo.ChannelType) *discordgo.ApplicationCommandOption {
	opt.ChannelTypes = types
	return opt
}

func withRange(opt *discordgo.ApplicationCommandOption, min *float64, max float64) *discordgo.ApplicationCommandOption {
	opt.MinValue = min
	opt.MaxValue = max
	return opt
}
