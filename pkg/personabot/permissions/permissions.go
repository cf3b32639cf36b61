// Package permissions maps Discord role attributes to an ordered permission
// level and gates privileged commands against a required level.
package permissions

import (
	"github.com/bwmarrin/discordgo"
)

// Level is an ordered permission level. Higher values grant more.
type Level int

const (
	Everyone Level = iota
	Moderator
	Admin
	Owner
)

// String returns the level name for logs and denial notices.
func (l Level) String() string {
	switch l {
	case Everyone:
		return "everyone"
	case Moderator:
		return "moderator"
	case Admin:
		return "admin"
	case Owner:
		return "owner"
	default:
		return "unknown"
	}
}

// RoleAttributes are the guild-scoped attributes a level is derived from.
type RoleAttributes struct {
	IsOwner        bool
	Administrator  bool
	ManageMessages bool
	BanMembers     bool
	KickMembers    bool
	ManageChannels bool
}

// LevelFor classifies attributes into the highest level any attribute
// qualifies for. A member with only moderation flags is Moderator, never
// Admin, regardless of how many such flags they hold.
func LevelFor(attrs RoleAttributes) Level {
	switch {
	case attrs.IsOwner:
		return Owner
	case attrs.Administrator:
		return Admin
	case attrs.ManageMessages || attrs.BanMembers || attrs.KickMembers || attrs.ManageChannels:
		return Moderator
	default:
		return Everyone
	}
}

// Allows reports whether the attributes meet the required level.
func Allows(attrs RoleAttributes, required Level) bool {
	return LevelFor(attrs) >= required
}

// FromInteraction derives role attributes for the member behind a slash
// command. Returns ok=false when the interaction has no guild context
// (direct messages); privileged checks must treat that as a denial, since
// role attributes only exist inside a guild.
func FromInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) (RoleAttributes, bool) {
	if i.GuildID == "" || i.Member == nil || i.Member.User == nil {
		return RoleAttributes{}, false
	}

	attrs := RoleAttributes{
		Administrator:  i.Member.Permissions&discordgo.PermissionAdministrator != 0,
		ManageMessages: i.Member.Permissions&discordgo.PermissionManageMessages != 0,
		BanMembers:     i.Member.Permissions&discordgo.PermissionBanMembers != 0,
		KickMembers:    i.Member.Permissions&discordgo.PermissionKickMembers != 0,
		ManageChannels: i.Member.Permissions&discordgo.PermissionManageChannels != 0,
	}

	if guild, err := s.State.Guild(i.GuildID); err == nil && guild != nil {
		attrs.IsOwner = guild.OwnerID == i.Member.User.ID
	} else if guild, err := s.Guild(i.GuildID); err == nil {
		attrs.IsOwner = guild.OwnerID == i.Member.User.ID
	}

	return attrs, true
}

// Check is the gate used by command handlers: it resolves the invoker's
// attributes and compares against the required level in one call.
func Check(s *discordgo.Session, i *discordgo.InteractionCreate, required Level) bool {
	attrs, ok := FromInteraction(s, i)
	if !ok {
		return false
	}
	return Allows(attrs, required)
}
