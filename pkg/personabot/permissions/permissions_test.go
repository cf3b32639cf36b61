package permissions

import "testing"

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name  string
		attrs RoleAttributes
		want  Level
	}{
		{"no flags", RoleAttributes{}, Everyone},
		{"manage channels only", RoleAttributes{ManageChannels: true}, Moderator},
		{"manage messages only", RoleAttributes{ManageMessages: true}, Moderator},
		{"ban only", RoleAttributes{BanMembers: true}, Moderator},
		{"kick only", RoleAttributes{KickMembers: true}, Moderator},
		{"all moderation flags stay moderator", RoleAttributes{
			ManageMessages: true,
			BanMembers:     true,
			KickMembers:    true,
			ManageChannels: true,
		}, Moderator},
		{"administrator", RoleAttributes{Administrator: true}, Admin},
		{"admin beats moderation flags", RoleAttributes{Administrator: true, ManageMessages: true}, Admin},
		{"owner", RoleAttributes{IsOwner: true}, Owner},
		{"owner beats admin", RoleAttributes{IsOwner: true, Administrator: true}, Owner},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LevelFor(tt.attrs); got != tt.want {
				t.Errorf("LevelFor(%+v) = %v, want %v", tt.attrs, got, tt.want)
			}
		})
	}
}

func TestAllows(t *testing.T) {
	modOnly := RoleAttributes{ManageChannels: true}

	if !Allows(modOnly, Moderator) {
		t.Error("moderator should pass a moderator requirement")
	}
	if Allows(modOnly, Admin) {
		t.Error("manage-channels alone must not pass an admin requirement")
	}
	if !Allows(RoleAttributes{IsOwner: true}, Admin) {
		t.Error("owner should pass an admin requirement")
	}
	if !Allows(RoleAttributes{}, Everyone) {
		t.Error("everyone level should always pass an everyone requirement")
	}
}

func TestLevelOrdering(t *testing.T) {
	if !(Everyone < Moderator && Moderator < Admin && Admin < Owner) {
		t.Fatal("levels are not strictly ordered")
	}
}
