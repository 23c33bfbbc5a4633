package embed

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestLookupTheme(t *testing.T) {
	if cfg := LookupTheme("dark"); cfg["algorithm"] != "dark" {
		t.Errorf("unexpected dark preset: %#v", cfg)
	}
	if cfg := LookupTheme("no-such-theme"); cfg == nil || len(cfg) != 0 {
		t.Errorf("unknown themes must map to an empty config, got %#v", cfg)
	}
}

func TestThemesListsPresets(t *testing.T) {
	names := Themes()
	if len(names) != len(presetThemes) || names[0] != "default" {
		t.Errorf("unexpected theme names %v", names)
	}
}

func TestApplyThemeWithoutHandle(t *testing.T) {
	if err := ApplyTheme(zerolog.Nop(), "dark", nil); err != nil {
		t.Fatalf("nil handle must be a silent no-op, got %v", err)
	}
}

func TestApplyThemeForwardsConfig(t *testing.T) {
	h := &fakeHandle{}
	if err := ApplyTheme(zerolog.Nop(), "unknown", h); err != nil {
		t.Fatalf("ApplyTheme failed: %v", err)
	}
	if h.themeCount() != 1 || len(h.themes[0]) != 0 {
		t.Errorf("expected one empty theme config, got %#v", h.themes)
	}
}
