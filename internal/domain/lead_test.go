package domain

import "testing"

func TestIsTerminalStage(t *testing.T) {
	tests := []struct {
		stage string
		want  bool
	}{
		{"License Granted", true},
		{"placed", true},
		{"NOT A FIT", true},
		{"Approved", true},
		{" Denied ", true},
		{"New Lead", false},
		{"Home Study", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			if got := IsTerminalStage(tt.stage); got != tt.want {
				t.Errorf("IsTerminalStage(%q) = %v, want %v", tt.stage, got, tt.want)
			}
		})
	}
}

func TestTerminalStagesListMatchesSet(t *testing.T) {
	for _, s := range TerminalStages() {
		if !IsTerminalStage(s) {
			t.Errorf("%q listed as terminal but IsTerminalStage is false", s)
		}
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleSuperAdmin.AtLeast(RoleAgencyAdmin) {
		t.Error("super_admin should outrank agency_admin")
	}
	if !RoleAgencyAdmin.AtLeast(RoleAgencyAdmin) {
		t.Error("agency_admin should satisfy agency_admin")
	}
	if RoleAgencyUser.AtLeast(RoleAgencyAdmin) {
		t.Error("agency_user should not satisfy agency_admin")
	}
	if Role("bogus").AtLeast(RoleAgencyUser) {
		t.Error("unknown role should never satisfy a requirement")
	}
}

func TestChannelDefaultSource(t *testing.T) {
	cases := map[Channel]string{
		ChannelWebsite:  "website",
		ChannelGoogle:   "google",
		ChannelFacebook: "facebook",
		ChannelManual:   "manual",
		Channel(""):     "website",
	}
	for ch, want := range cases {
		if got := ch.DefaultSource(); got != want {
			t.Errorf("%q.DefaultSource() = %q, want %q", ch, got, want)
		}
	}
}
