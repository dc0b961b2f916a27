package source

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{"dns.quad9.net:443", false},
		{"one.one.one.one:53", false},
		{"9.9.9.9:8443", false},
		{"[2620:fe::fe]:443", false},
		{"dns.quad9.net", true},
		{":443", true},
		{"host:0", true},
		{"host:70000", true},
		{"host:https", true},
		{"a..b:53", true},
		{strings.Repeat("x", 64) + ".example:53", true},
	}

	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateAddress(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidAddress) {
				t.Errorf("error = %v, want ErrInvalidAddress", err)
			}
		})
	}
}
