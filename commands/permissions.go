package commands

import (
	"github.com/EasterCompany/dex-transcribe-service/config"
	"github.com/bwmarrin/discordgo"
)

// GuildLookup is the part of the Discord session used for permission checks.
type GuildLookup interface {
	Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// PermissionChecker decides who may run admin commands.
type PermissionChecker struct {
	adminRoles    []string
	userWhitelist []string
}

// NewPermissionChecker creates a new permission checker
func NewPermissionChecker(cfg *config.DiscordConfig) *PermissionChecker {
	return &PermissionChecker{
		adminRoles:    cfg.Roles.Admin,
		userWhitelist: cfg.UserWhitelist,
	}
}

// CanExecuteCommand reports whether the author of m is an admin: whitelisted, the guild
// owner, holding a configured admin role or the Administrator permission.
func (pc *PermissionChecker) CanExecuteCommand(s GuildLookup, m *discordgo.Message) bool {
	userID := m.Author.ID
	if contains(pc.userWhitelist, userID) {
		return true
	}

	// Outside a guild only the whitelist applies.
	if m.GuildID == "" {
		return false
	}

	guild, err := s.Guild(m.GuildID)
	if err != nil {
		return false
	}
	if userID == guild.OwnerID {
		return true
	}

	member := m.Member
	if member == nil {
		member, err = s.GuildMember(m.GuildID, userID)
		if err != nil {
			return false
		}
	}
	if pc.hasAdminRole(member.Roles) {
		return true
	}

	perms, err := s.UserChannelPermissions(userID, m.ChannelID)
	if err != nil {
		return false
	}
	return perms&discordgo.PermissionAdministrator != 0
}

func (pc *PermissionChecker) hasAdminRole(userRoles []string) bool {
	for _, role := range userRoles {
		if contains(pc.adminRoles, role) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
