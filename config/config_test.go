package config

import (
	"os"
	"path/filepath"
	"testing"
)

func validConfig() *Config {
	return &Config{
		BotToken:       "123:abc",
		ChatIDs:        []int64{42},
		FetchBackend:   "chrome",
		CatalogBackend: "csv",
		MinSize:        56,
		MaxRent:        800,
		PollMinMinutes: 28,
		PollMaxMinutes: 142,
	}
}

func TestValidateAcceptsGoodConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadConfigs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.BotToken = "" }},
		{"no recipients", func(c *Config) { c.ChatIDs = nil }},
		{"unknown fetch backend", func(c *Config) { c.FetchBackend = "carrier-pigeon" }},
		{"unknown catalog backend", func(c *Config) { c.CatalogBackend = "stone-tablet" }},
		{"negative threshold", func(c *Config) { c.MaxRent = -1 }},
		{"inverted poll range", func(c *Config) { c.PollMinMinutes = 100; c.PollMaxMinutes = 10 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestChatIDsFromEnv(t *testing.T) {
	t.Setenv("CHAT_IDS", "100, 200,not-a-number, 300")

	ids := getEnvInt64List("CHAT_IDS")
	if len(ids) != 3 {
		t.Fatalf("got %v, want the three numeric entries", ids)
	}
	if ids[0] != 100 || ids[1] != 200 || ids[2] != 300 {
		t.Errorf("got %v", ids)
	}
}

func TestLoadExcludedDistricts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "excluded_districts.yaml")
	doc := "excluded_districts:\n  - Marzahn\n  - Hellersdorf\n  - \"  \"\n"
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	set, err := LoadExcludedDistricts(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(set) != 2 {
		t.Errorf("got %d districts, want 2 (blank entries dropped)", len(set))
	}
	if _, ok := set["Marzahn"]; !ok {
		t.Error("Marzahn missing from set")
	}
}

func TestLoadExcludedDistrictsMissingFile(t *testing.T) {
	set, err := LoadExcludedDistricts(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Errorf("missing file is not an error, got %v", err)
	}
	if len(set) != 0 {
		t.Errorf("got %d districts, want empty set", len(set))
	}
}

func TestLoadExcludedDistrictsMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{not yaml: ["), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	set, err := LoadExcludedDistricts(path)
	if err == nil {
		t.Error("malformed document should report an error")
	}
	if set == nil {
		t.Error("even on error the caller gets a usable empty set")
	}
}
