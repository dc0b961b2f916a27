package platform

import (
	"strings"
	"testing"

	lua "github.com/yuin/gopher-lua"
)

func TestInjectPlatformTable_Linux(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	info := &Info{
		OS:       "linux",
		Arch:     "arm",
		Machine:  "armv7l",
		Platform: "ubuntu",
		Family:   "debian",
		Version:  "22.04",
	}

	if err := InjectPlatformTable(L, info); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	tests := []struct {
		name string
		code string
		want lua.LValue
	}{
		{"os", `return platform.os`, lua.LString("linux")},
		{"arch", `return platform.arch`, lua.LString("arm")},
		{"machine", `return platform.machine`, lua.LString("armv7l")},
		{"key", `return platform.key`, lua.LString("linux_arm")},
		{"is_linux", `return platform.is_linux`, lua.LTrue},
		{"is_windows", `return platform.is_windows`, lua.LFalse},
		{"distro.id", `return platform.distro.id`, lua.LString("ubuntu")},
		{"distro.family", `return platform.distro.family`, lua.LString("debian")},
		{"when true", `return platform.when(true, "x")`, lua.LString("x")},
		{"when false", `return platform.when(false, "x")`, lua.LNil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := L.DoString(tt.code); err != nil {
				t.Fatalf("failed to execute code: %v", err)
			}
			got := L.Get(-1)
			L.Pop(1)

			if got.Type() != tt.want.Type() {
				t.Errorf("type mismatch: got %v, want %v", got.Type(), tt.want.Type())
				return
			}
			if got.String() != tt.want.String() {
				t.Errorf("value mismatch: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInjectPlatformTable_UnsupportedKey(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, &Info{OS: "linux", Machine: "i386"}); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}
	if err := L.DoString(`assert(platform.key == nil)`); err != nil {
		t.Errorf("key should be nil on unsupported platforms: %v", err)
	}
	if err := L.DoString(`assert(platform.distro == nil)`); err != nil {
		t.Errorf("distro should be nil without distro info: %v", err)
	}
}

func TestInjectPlatformTable_ReadOnly(t *testing.T) {
	L := lua.NewState()
	defer L.Close()

	if err := InjectPlatformTable(L, &Info{OS: "darwin", Machine: "arm64", Arch: "arm64"}); err != nil {
		t.Fatalf("InjectPlatformTable() error = %v", err)
	}

	err := L.DoString(`platform.os = "windows"`)
	if err == nil {
		t.Fatal("expected write to platform table to fail")
	}
	if !strings.Contains(err.Error(), "read-only") {
		t.Errorf("error = %v, want read-only", err)
	}

	if err := L.DoString(`return getmetatable(platform)`); err != nil {
		t.Fatalf("getmetatable failed: %v", err)
	}
	got := L.Get(-1)
	L.Pop(1)
	if got.String() != "protected" {
		t.Errorf("getmetatable(platform) = %v, want protected", got)
	}
}
