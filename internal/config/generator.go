package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Generator renders Settings as a Lua settings file.
type Generator struct {
	indent string // Indentation string (default: two spaces)
	now    func() time.Time
}

// NewGenerator creates a new Lua settings generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ",
		now:    time.Now,
	}
}

// Generate renders s. The output parses back to s with ParseString.
func (g *Generator) Generate(s *Settings) (string, error) {
	if s == nil {
		return "", fmt.Errorf("generate settings: nil settings")
	}

	var buf bytes.Buffer

	buf.WriteString("-- dnscryptctl settings\n")
	buf.WriteString("-- Generated: ")
	buf.WriteString(g.now().Format(time.RFC3339))
	buf.WriteString("\n--\n")
	buf.WriteString("-- A read-only `platform` table is available, e.g.\n")
	buf.WriteString("--   service_command = platform.is_linux and \"sudo systemctl {verb} dnscrypt-proxy\" or nil\n")
	buf.WriteString("-- On OpenRC distributions (platform.distro.family is \"alpine\" or \"gentoo\"):\n")
	buf.WriteString("--   service_command = \"sudo rc-service dnscrypt-proxy {verb}\"\n\n")

	buf.WriteString(luaGlobalSettings)
	buf.WriteString(" = {\n")

	g.line(&buf, 1, "-- Network fronts, tried in order. An empty prefix means direct.")
	g.line(&buf, 1, luaFieldFronts+" = {")
	for _, f := range s.Fronts {
		g.line(&buf, 2, fmt.Sprintf("{ %s = %s, %s = %s },",
			luaFieldName, quoteLuaString(f.Name), luaFieldPrefix, quoteLuaString(f.Prefix)))
	}
	g.line(&buf, 1, "},")
	g.field(&buf, luaFieldProbeURL, s.ProbeURL)
	buf.WriteString("\n")

	g.list(&buf, luaFieldMirrors, s.MirrorURLs)
	g.field(&buf, luaFieldListField, s.ListField)
	g.line(&buf, 1, luaFieldFallback+" = {")
	for _, e := range s.FallbackServers {
		entry := fmt.Sprintf("{ %s = %s, %s = %s", luaFieldName, quoteLuaString(e.Name), luaFieldAddress, quoteLuaString(e.Address))
		if e.Region != "" {
			entry += fmt.Sprintf(", %s = %s", luaFieldRegion, quoteLuaString(e.Region))
		}
		g.line(&buf, 2, entry+" },")
	}
	g.line(&buf, 1, "},")
	buf.WriteString("\n")

	g.field(&buf, luaFieldReleasesURL, s.ReleasesURL)
	g.field(&buf, luaFieldCacheDir, s.CacheDir)
	g.field(&buf, luaFieldInstallDir, s.InstallDir)
	if s.Keyring != "" {
		g.field(&buf, luaFieldKeyring, s.Keyring)
	} else {
		g.line(&buf, 1, "-- "+luaFieldKeyring+" = \"~/.config/dnscryptctl/release-keys.asc\",")
	}
	buf.WriteString("\n")

	g.list(&buf, luaFieldDaemonConfig, s.DaemonConfigCandidates)
	if s.ServiceCommand != "" {
		g.field(&buf, luaFieldServiceCmd, s.ServiceCommand)
	}
	g.field(&buf, luaFieldUserAgent, s.UserAgent)
	buf.WriteString("\n")

	g.line(&buf, 1, "-- Seconds.")
	g.line(&buf, 1, luaFieldTimeouts+" = {")
	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{luaFieldProbe, s.Timeouts.Probe},
		{luaFieldFetch, s.Timeouts.Fetch},
		{luaFieldReleases, s.Timeouts.Releases},
		{luaFieldDownload, s.Timeouts.Download},
		{luaFieldService, s.Timeouts.Service},
	}
	for _, t := range timeouts {
		g.line(&buf, 2, fmt.Sprintf("%s = %s,", t.name, strconv.FormatFloat(t.d.Seconds(), 'f', -1, 64)))
	}
	g.line(&buf, 1, "},")

	buf.WriteString("}\n")
	return buf.String(), nil
}

func (g *Generator) line(buf *bytes.Buffer, depth int, s string) {
	buf.WriteString(strings.Repeat(g.indent, depth))
	buf.WriteString(s)
	buf.WriteString("\n")
}

func (g *Generator) field(buf *bytes.Buffer, name, value string) {
	g.line(buf, 1, fmt.Sprintf("%s = %s,", name, quoteLuaString(value)))
}

func (g *Generator) list(buf *bytes.Buffer, name string, values []string) {
	g.line(buf, 1, name+" = {")
	for _, v := range values {
		g.line(buf, 2, quoteLuaString(v)+",")
	}
	g.line(buf, 1, "},")
}

// quoteLuaString quotes a string for Lua, handling special characters.
func quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
