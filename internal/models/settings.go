package models

// Site setting keys
const (
	SettingActiveTheme           = "active_theme"
	SettingPublicLoginEnabled    = "public_login_enabled"
	SettingPublicRegisterEnabled = "public_register_enabled"
	SettingSiteTitle             = "site_title"
)

// DefaultSettings are seeded on first start
var DefaultSettings = map[string]string{
	SettingActiveTheme:           "",
	SettingPublicLoginEnabled:    "true",
	SettingPublicRegisterEnabled: "false",
	SettingSiteTitle:             "dz",
}

// EditableSetting reports whether key may be changed through the settings API
func EditableSetting(key string) bool {
	switch key {
	case SettingPublicLoginEnabled, SettingPublicRegisterEnabled, SettingSiteTitle:
		return true
	}
	return false
}
