// Package settings holds user preferences and the confirmation gate for
// destructive operations.
package settings

import (
	"context"
	"errors"
	"strings"

	"github.com/warp/cabinet-estimator/estimate"
)

// Keys of the settings table.
const (
	KeyDefaultMarkup       = "default_markup"
	KeyDefaultInstallPrice = "default_install_price"
	KeyTheme               = "theme"
	KeyShowConfirmations   = "show_confirmations"
)

const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// ErrConfirmationRequired is returned by a destructive operation that was
// not confirmed.
var ErrConfirmationRequired = errors.New("confirmation required")

// ErrInvalidTheme is returned when saving an unknown theme.
var ErrInvalidTheme = errors.New("theme must be dark or light")

// KV is key/value persistence for settings.
type KV interface {
	GetSetting(ctx context.Context, key string) (string, bool, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Settings are the user preferences. Default fields keep the text the user
// typed; they are parsed leniently when a new estimate is started.
type Settings struct {
	DefaultMarkup       string `json:"default_markup"`
	DefaultInstallPrice string `json:"default_install_price"`
	Theme               string `json:"theme"`
	ShowConfirmations   bool   `json:"show_confirmations"`
}

// Default returns the settings of a fresh install.
func Default() Settings {
	return Settings{Theme: ThemeDark, ShowConfirmations: true}
}

// Load reads every setting, falling back to defaults for missing keys.
func Load(ctx context.Context, kv KV) (Settings, error) {
	s := Default()

	get := func(key string, dst *string) error {
		v, ok, err := kv.GetSetting(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			*dst = v
		}
		return nil
	}

	if err := get(KeyDefaultMarkup, &s.DefaultMarkup); err != nil {
		return s, err
	}
	if err := get(KeyDefaultInstallPrice, &s.DefaultInstallPrice); err != nil {
		return s, err
	}
	if err := get(KeyTheme, &s.Theme); err != nil {
		return s, err
	}
	confirm := formatBool(s.ShowConfirmations)
	if err := get(KeyShowConfirmations, &confirm); err != nil {
		return s, err
	}
	s.ShowConfirmations = parseBool(confirm)
	return s, nil
}

// Save writes every setting.
func Save(ctx context.Context, kv KV, s Settings) error {
	theme := strings.ToLower(strings.TrimSpace(s.Theme))
	if theme != ThemeDark && theme != ThemeLight {
		return ErrInvalidTheme
	}
	pairs := [][2]string{
		{KeyDefaultMarkup, strings.TrimSpace(s.DefaultMarkup)},
		{KeyDefaultInstallPrice, strings.TrimSpace(s.DefaultInstallPrice)},
		{KeyTheme, theme},
		{KeyShowConfirmations, formatBool(s.ShowConfirmations)},
	}
	for _, p := range pairs {
		if err := kv.SetSetting(ctx, p[0], p[1]); err != nil {
			return err
		}
	}
	return nil
}

// EstimateDefaults converts the default fields for a new estimate.
func (s Settings) EstimateDefaults() estimate.Defaults {
	return estimate.Defaults{
		MarkupPercent:    estimate.ParseOrZero(s.DefaultMarkup),
		InstallUnitPrice: estimate.ParseOrZero(s.DefaultInstallPrice),
	}
}

// Confirm gates a destructive operation. Operations marked always need an
// explicit confirmation; others skip the prompt when confirmations are off.
func (s Settings) Confirm(confirmed, always bool) error {
	if confirmed {
		return nil
	}
	if !always && !s.ShowConfirmations {
		return nil
	}
	return ErrConfirmationRequired
}

// Stored as "True"/"False" for compatibility with existing databases.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func parseBool(v string) bool {
	return !strings.EqualFold(strings.TrimSpace(v), "false")
}
