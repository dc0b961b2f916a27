// Package daemonconf locates the dnscrypt-proxy configuration file and
// rewrites its server_names field in place.
//
// The file is treated as opaque text. Only the first line whose trimmed form
// starts with the field keyword is touched; every other line is written back
// byte for byte, line terminators included. The full TOML grammar is only
// decoded read-only by ReadServerNames.
//
// Callers that change a live configuration should use Apply, which takes a
// timestamped backup before writing.
package daemonconf
