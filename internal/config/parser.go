package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/platform"
	lua "github.com/yuin/gopher-lua"
)

// Parser evaluates Lua settings on top of the built-in defaults.
type Parser struct {
	detector platform.Detector
	home     string
	logger   model.Logger
}

// NewParser creates a settings parser. home roots the default directories
// and expands "~/" in path settings. detector may be nil, in which case no
// platform table is injected and runtime.GOOS selects the defaults.
func NewParser(detector platform.Detector, home string) *Parser {
	return &Parser{detector: detector, home: home, logger: model.DiscardLogger}
}

// WithLogger sets the logger used while loading settings.
func (p *Parser) WithLogger(logger model.Logger) *Parser {
	p.logger = model.ValidLoggerOrDefault(logger)
	return p
}

// Load reads settings from path. A missing file yields the defaults.
func (p *Parser) Load(ctx context.Context, path string) (*Settings, error) {
	fi, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		p.logger.Debugf("settings: %s not found, using defaults", path)
		return p.ParseString(ctx, "")
	}
	if err != nil {
		return nil, fmt.Errorf("stat settings file: %w", err)
	}
	if fi.Size() > MaxSettingsSize {
		return nil, &ParseError{
			Message: "settings file too large",
			Detail:  fmt.Sprintf("%s is %d bytes, maximum is %d", path, fi.Size(), MaxSettingsSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	p.logger.Debugf("settings: loading %s", path)
	return p.ParseString(ctx, string(data))
}

// ParseString evaluates luaCode and applies the dnscryptctl table it
// defines to the defaults. Empty code yields the defaults.
func (p *Parser) ParseString(ctx context.Context, luaCode string) (*Settings, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultParseTimeout)
		defer cancel()
	}

	L := newSandboxedVM()
	defer L.Close()
	L.SetContext(ctx)

	goos := runtime.GOOS
	if p.detector != nil {
		info, err := p.detector.Detect(ctx)
		if err != nil {
			return nil, fmt.Errorf("platform detection failed: %w", err)
		}
		if err := platform.InjectPlatformTable(L, info); err != nil {
			return nil, fmt.Errorf("inject platform table: %w", err)
		}
		goos = info.OS
	}

	settings := Defaults(goos, p.home)

	if strings.TrimSpace(luaCode) != "" {
		if err := L.DoString(luaCode); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("settings evaluation aborted: %w", ctxErr)
			}
			return nil, &ParseError{
				Message: "Lua syntax error",
				Detail:  err.Error(),
			}
		}
		if err := p.extractSettings(L, settings); err != nil {
			return nil, err
		}
	}

	if err := settings.Validate(); err != nil {
		return nil, &ParseError{
			Message: "settings validation failed",
			Detail:  err.Error(),
		}
	}
	return settings, nil
}

// ParseError represents a settings parsing error with friendly message.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw Lua error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// extractSettings copies every field present in the dnscryptctl global
// onto s. Absent fields keep their defaults.
func (p *Parser) extractSettings(L *lua.LState, s *Settings) error {
	value := L.GetGlobal(luaGlobalSettings)
	if value.Type() == lua.LTNil {
		return &ParseError{
			Message: fmt.Sprintf("missing '%s' table", luaGlobalSettings),
			Detail:  "settings file must assign a global table",
		}
	}
	table, ok := value.(*lua.LTable)
	if !ok {
		return &ParseError{
			Message: fmt.Sprintf("invalid '%s' table", luaGlobalSettings),
			Detail:  fmt.Sprintf("expected table, got %s", value.Type()),
		}
	}

	if t, err := optTable(table, luaFieldFronts); err != nil {
		return err
	} else if t != nil {
		fronts, err := extractFronts(t)
		if err != nil {
			return err
		}
		s.Fronts = fronts
	}

	if t, err := optTable(table, luaFieldFallback); err != nil {
		return err
	} else if t != nil {
		servers, err := extractServers(t)
		if err != nil {
			return err
		}
		s.FallbackServers = servers
	}

	lists := []struct {
		field string
		dst   *[]string
	}{
		{luaFieldMirrors, &s.MirrorURLs},
		{luaFieldDaemonConfig, &s.DaemonConfigCandidates},
	}
	for _, l := range lists {
		t, err := optTable(table, l.field)
		if err != nil {
			return err
		}
		if t == nil {
			continue
		}
		values, err := extractStrings(t, l.field)
		if err != nil {
			return err
		}
		*l.dst = values
	}

	strs := []struct {
		field string
		dst   *string
		path  bool
	}{
		{luaFieldProbeURL, &s.ProbeURL, false},
		{luaFieldListField, &s.ListField, false},
		{luaFieldReleasesURL, &s.ReleasesURL, false},
		{luaFieldCacheDir, &s.CacheDir, true},
		{luaFieldInstallDir, &s.InstallDir, true},
		{luaFieldServiceCmd, &s.ServiceCommand, false},
		{luaFieldKeyring, &s.Keyring, true},
		{luaFieldUserAgent, &s.UserAgent, false},
	}
	for _, f := range strs {
		v, ok, err := optString(table, f.field)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if f.path {
			v = ExpandHome(v, p.home)
		}
		*f.dst = v
	}
	for i, c := range s.DaemonConfigCandidates {
		s.DaemonConfigCandidates[i] = ExpandHome(c, p.home)
	}

	if t, err := optTable(table, luaFieldTimeouts); err != nil {
		return err
	} else if t != nil {
		if err := extractTimeouts(t, &s.Timeouts); err != nil {
			return err
		}
	}

	return nil
}

func optTable(table *lua.LTable, field string) (*lua.LTable, error) {
	v := table.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return nil, nil
	case lua.LTTable:
		return v.(*lua.LTable), nil
	default:
		return nil, typeError(field, "table", v)
	}
}

func optString(table *lua.LTable, field string) (string, bool, error) {
	v := table.RawGetString(field)
	switch v.Type() {
	case lua.LTNil:
		return "", false, nil
	case lua.LTString:
		return v.String(), true, nil
	default:
		return "", false, typeError(field, "string", v)
	}
}

func typeError(field, want string, got lua.LValue) error {
	return &ParseError{
		Message: fmt.Sprintf("invalid value for '%s'", field),
		Detail:  fmt.Sprintf("expected %s, got %s", want, got.Type()),
	}
}

// forEachElem visits the array part of table in index order, skipping the
// nil holes left by platform conditionals.
func forEachElem(table *lua.LTable, field string, fn func(i int, v lua.LValue) error) error {
	n := table.MaxN()
	if n > MaxListLength {
		return &ParseError{
			Message: fmt.Sprintf("too many entries in '%s'", field),
			Detail:  fmt.Sprintf("%d entries, maximum is %d", n, MaxListLength),
		}
	}
	for i := 1; i <= n; i++ {
		v := table.RawGetInt(i)
		if v.Type() == lua.LTNil {
			continue
		}
		if err := fn(i, v); err != nil {
			return err
		}
	}
	return nil
}

func extractStrings(table *lua.LTable, field string) ([]string, error) {
	values := []string{}
	err := forEachElem(table, field, func(i int, v lua.LValue) error {
		if v.Type() != lua.LTString {
			return typeError(fmt.Sprintf("%s[%d]", field, i), "string", v)
		}
		values = append(values, v.String())
		return nil
	})
	return values, err
}

// extractFronts accepts either {name=..., prefix=...} tables or bare
// prefix strings, which are named after their position.
func extractFronts(table *lua.LTable) ([]model.Front, error) {
	fronts := []model.Front{}
	err := forEachElem(table, luaFieldFronts, func(i int, v lua.LValue) error {
		switch v.Type() {
		case lua.LTString:
			fronts = append(fronts, model.Front{Name: fmt.Sprintf("front-%d", i), Prefix: v.String()})
			return nil
		case lua.LTTable:
			t := v.(*lua.LTable)
			name, _, err := optString(t, luaFieldName)
			if err != nil {
				return err
			}
			prefix, _, err := optString(t, luaFieldPrefix)
			if err != nil {
				return err
			}
			fronts = append(fronts, model.Front{Name: name, Prefix: prefix})
			return nil
		default:
			return typeError(fmt.Sprintf("fronts[%d]", i), "table or string", v)
		}
	})
	return fronts, err
}

func extractServers(table *lua.LTable) ([]model.ServerEntry, error) {
	servers := []model.ServerEntry{}
	err := forEachElem(table, luaFieldFallback, func(i int, v lua.LValue) error {
		t, ok := v.(*lua.LTable)
		if !ok {
			return typeError(fmt.Sprintf("fallback_servers[%d]", i), "table", v)
		}
		var entry model.ServerEntry
		fields := []struct {
			name string
			dst  *string
		}{
			{luaFieldName, &entry.Name},
			{luaFieldAddress, &entry.Address},
			{luaFieldRegion, &entry.Region},
		}
		for _, f := range fields {
			s, _, err := optString(t, f.name)
			if err != nil {
				return err
			}
			*f.dst = s
		}
		servers = append(servers, entry)
		return nil
	})
	return servers, err
}

// extractTimeouts reads timeouts expressed in seconds.
func extractTimeouts(table *lua.LTable, dst *Timeouts) error {
	fields := []struct {
		name string
		dst  *time.Duration
	}{
		{luaFieldProbe, &dst.Probe},
		{luaFieldFetch, &dst.Fetch},
		{luaFieldReleases, &dst.Releases},
		{luaFieldDownload, &dst.Download},
		{luaFieldService, &dst.Service},
	}
	for _, f := range fields {
		v := table.RawGetString(f.name)
		switch v.Type() {
		case lua.LTNil:
			continue
		case lua.LTNumber:
			*f.dst = time.Duration(float64(lua.LVAsNumber(v)) * float64(time.Second))
		default:
			return typeError("timeouts."+f.name, "number", v)
		}
	}
	return nil
}

// FormatError formats a ParseError for user display.
// In verbose mode, show the raw Lua error. Otherwise, show friendly message.
func FormatError(err error, verbose bool) string {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
