package domain

import "testing"

func TestTenantConfigWithDefaults(t *testing.T) {
	c := TenantConfig{}.WithDefaults()
	if len(c.Stages) != len(DefaultStages) {
		t.Fatalf("expected %d default stages, got %d", len(DefaultStages), len(c.Stages))
	}
	if c.SLAHours != DefaultSLAHours {
		t.Fatalf("expected sla %d, got %d", DefaultSLAHours, c.SLAHours)
	}

	c.Stages[0] = "Changed"
	if DefaultStages[0] == "Changed" {
		t.Fatal("WithDefaults must copy the default stage slice")
	}

	custom := TenantConfig{Stages: []string{"Inquiry"}, SLAHours: 48}.WithDefaults()
	if custom.Stages[0] != "Inquiry" || custom.SLAHours != 48 {
		t.Fatalf("configured values should be kept, got %+v", custom)
	}
}

func TestTenantHasStageAndInitialStage(t *testing.T) {
	tn := &Tenant{Config: TenantConfig{Stages: []string{"Inquiry", "Orientation"}}}
	if tn.InitialStage() != "Inquiry" {
		t.Errorf("expected Inquiry, got %s", tn.InitialStage())
	}
	if !tn.HasStage("Orientation") {
		t.Error("expected Orientation to be a stage")
	}
	if tn.HasStage("New Lead") {
		t.Error("default stages should not apply when stages are configured")
	}

	empty := &Tenant{}
	if empty.InitialStage() != DefaultStages[0] || !empty.HasStage("Placed") {
		t.Error("tenant without stages should fall back to defaults")
	}
}

func TestTenantOriginAllowed(t *testing.T) {
	tn := &Tenant{Config: TenantConfig{AllowedOrigins: []string{"https://agency.org/"}}}
	if !tn.OriginAllowed("https://Agency.org") {
		t.Error("origin match should ignore case and trailing slash")
	}
	if tn.OriginAllowed("https://evil.example") {
		t.Error("unexpected origin allowed")
	}
	if !tn.OriginAllowed("") {
		t.Error("server-to-server posts without Origin should pass")
	}
	if !(&Tenant{}).OriginAllowed("https://anything.example") {
		t.Error("empty allow-list should accept any origin")
	}
}

func TestTenantConfigRedacted(t *testing.T) {
	c := TenantConfig{FacebookAccessToken: "EAAB-secret"}
	if c.Redacted().FacebookAccessToken == "EAAB-secret" {
		t.Fatal("token should be masked")
	}
	if c.FacebookAccessToken != "EAAB-secret" {
		t.Fatal("Redacted must not mutate the receiver")
	}
}
