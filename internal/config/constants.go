package config

import "time"

// Lua schema field names and globals
const (
	luaGlobalSettings    = "dnscryptctl"
	luaFieldFronts       = "fronts"
	luaFieldName         = "name"
	luaFieldPrefix       = "prefix"
	luaFieldProbeURL     = "probe_url"
	luaFieldMirrors      = "mirrors"
	luaFieldListField    = "list_field"
	luaFieldFallback     = "fallback_servers"
	luaFieldAddress      = "address"
	luaFieldRegion       = "region"
	luaFieldReleasesURL  = "releases_url"
	luaFieldCacheDir     = "cache_dir"
	luaFieldInstallDir   = "install_dir"
	luaFieldDaemonConfig = "daemon_configs"
	luaFieldServiceCmd   = "service_command"
	luaFieldKeyring      = "keyring"
	luaFieldUserAgent    = "user_agent"
	luaFieldTimeouts     = "timeouts"
	luaFieldProbe        = "probe"
	luaFieldFetch        = "fetch"
	luaFieldReleases     = "releases"
	luaFieldDownload     = "download"
	luaFieldService      = "service"
)

// Limits applied to settings files.
const (
	// MaxSettingsSize is the largest settings file Load accepts.
	MaxSettingsSize = 1 << 20

	// MaxListLength bounds every list in the settings table.
	MaxListLength = 256

	// DefaultParseTimeout applies when the caller's context has no deadline.
	DefaultParseTimeout = 5 * time.Second
)

// SettingsFileName is the default settings file name under the user's
// config directory.
const SettingsFileName = "settings.lua"
