package embed

import "github.com/rs/zerolog"

// ThemeConfig is passed as is to the dashboard's setThemeConfig.
type ThemeConfig map[string]interface{}

type Theme struct {
	Name   string      `json:"name"`
	Config ThemeConfig `json:"config"`
}

//nolint:gochecknoglobals
var presetThemes = []Theme{
	{Name: "default", Config: ThemeConfig{}},
	{Name: "light", Config: ThemeConfig{
		"algorithm": "default",
		"token": map[string]interface{}{
			"colorPrimary": "#20a7c9",
			"colorBgBase":  "#ffffff",
		},
	}},
	{Name: "dark", Config: ThemeConfig{
		"algorithm": "dark",
		"token": map[string]interface{}{
			"colorPrimary": "#2893b3",
			"colorBgBase":  "#141414",
		},
	}},
	{Name: "ocean", Config: ThemeConfig{
		"algorithm": "default",
		"token": map[string]interface{}{
			"colorPrimary": "#0b6e99",
			"colorBgBase":  "#f0f7fb",
			"borderRadius": 6,
		},
	}},
	{Name: "forest", Config: ThemeConfig{
		"algorithm": "default",
		"token": map[string]interface{}{
			"colorPrimary": "#2f7d32",
			"colorBgBase":  "#f4f8f1",
			"borderRadius": 2,
		},
	}},
}

func Themes() []string {
	names := make([]string, 0, len(presetThemes))
	for _, t := range presetThemes {
		names = append(names, t.Name)
	}
	return names
}

// LookupTheme returns the preset config for name, or an empty config.
func LookupTheme(name string) ThemeConfig {
	for _, t := range presetThemes {
		if t.Name == name {
			return t.Config
		}
	}
	return ThemeConfig{}
}

// ApplyTheme forwards a preset to the handle. A nil handle means no dashboard
// is live yet and the call is dropped.
func ApplyTheme(logger zerolog.Logger, name string, handle Handle) error {
	if handle == nil {
		logger.Debug().Str("theme", name).Msg("no live dashboard, theme dropped")
		return nil
	}
	return handle.SetThemeConfig(LookupTheme(name))
}
