package daemonconf

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// fileView is the read-only slice of the daemon config that we report on.
type fileView struct {
	ServerNames     []string `toml:"server_names"`
	ListenAddresses []string `toml:"listen_addresses"`
}

// Summary describes the current state of a daemon config file.
type Summary struct {
	Path            string
	ServerNames     []string
	ListenAddresses []string
}

// ReadServerNames decodes the config file at path as TOML and returns its
// server_names. A file without the field yields an empty list.
func ReadServerNames(path string) ([]string, error) {
	s, err := ReadSummary(path)
	if err != nil {
		return nil, err
	}
	return s.ServerNames, nil
}

// ReadSummary decodes the fields of the config file shown to users.
func ReadSummary(path string) (*Summary, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Op: "read", Err: err}
	}

	var view fileView
	if _, err := toml.Decode(string(content), &view); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if view.ServerNames == nil {
		view.ServerNames = []string{}
	}
	return &Summary{
		Path:            path,
		ServerNames:     view.ServerNames,
		ListenAddresses: view.ListenAddresses,
	}, nil
}
