// Package config loads dnscryptctl settings from a sandboxed Lua file.
//
// Every constant the acquisition pipeline uses (network fronts, probe URL,
// resolver-list mirrors, built-in fallback servers, releases endpoint,
// directories, daemon config candidates, service command, timeouts and the
// signing keyring) has a default in Defaults. A settings file only needs to
// name the values it overrides:
//
//	dnscryptctl = {
//	  fronts = {
//	    { name = "GitHubProxy", prefix = "https://gh-proxy.com/" },
//	    { name = "direct", prefix = "" },
//	  },
//	  mirrors = {
//	    "https://download.dnscrypt.info/resolvers-list/v3/public-resolvers.md",
//	  },
//	  timeouts = { probe = 5, download = 120 },
//	  service_command = platform.is_linux and "systemctl {verb} dnscrypt-proxy" or nil,
//	}
//
// The Lua VM has no os, io, debug or module loading, and a read-only
// platform table (see the platform package) is injected before the file
// runs. On Linux it carries the distribution, so a file can pick the init
// system by family:
//
//	local openrc = platform.distro and
//	  (platform.distro.family == "alpine" or platform.distro.family == "gentoo")
//	dnscryptctl = {
//	  service_command = openrc and "rc-service dnscrypt-proxy {verb}" or nil,
//	}
// Generator writes the defaults back out for `config init`.
package config
