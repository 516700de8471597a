package gatewayconfig

import "testing"

func validConfig() *Config {
	return &Config{
		Lights: map[string]map[string][]Channel{
			"veg": {
				"bar1": {{Ch: 1, Color: "red"}, {Ch: 2, Color: "blue"}},
			},
		},
	}
}

func TestValidateRejectsEmptyLights(t *testing.T) {
	c := &Config{}
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for empty lights")
	}
}

func TestValidateRejectsOutOfRangeChannel(t *testing.T) {
	c := validConfig()
	c.Lights["veg"]["bar1"][0].Ch = 513
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for out-of-range channel")
	}
}

func TestValidateRejectsDuplicateChannel(t *testing.T) {
	c := validConfig()
	c.Lights["veg"]["bar2"] = []Channel{{Ch: 1, Color: "green"}}
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for a channel used twice")
	}
}

func TestValidateRejectsEmptyGroup(t *testing.T) {
	c := validConfig()
	c.Lights["empty"] = map[string][]Channel{}
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for an empty group")
	}
}

func TestValidateAccepts(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestResolveColorKnown(t *testing.T) {
	if got := ResolveColor("red"); got != "#FF2400" {
		t.Errorf("got %q, want #FF2400", got)
	}
}

func TestResolveColorHexPassthrough(t *testing.T) {
	if got := ResolveColor("#123456"); got != "#123456" {
		t.Errorf("got %q, want passthrough", got)
	}
}

func TestResolveColorUnknownFallsBackToWhite(t *testing.T) {
	if got := ResolveColor("nonexistent"); got != "#FFFFFF" {
		t.Errorf("got %q, want #FFFFFF", got)
	}
}

func TestApplyDefaults(t *testing.T) {
	c := validConfig()
	c.applyDefaults()
	if c.Server.HTTP != ":8080" {
		t.Errorf("Server.HTTP = %q, want :8080", c.Server.HTTP)
	}
	if c.DMX.ThrottleMs != 25 {
		t.Errorf("DMX.ThrottleMs = %d, want 25", c.DMX.ThrottleMs)
	}
}
