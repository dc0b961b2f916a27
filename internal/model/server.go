package model

// ServerEntry is a resolver the daemon can be configured to use.
type ServerEntry struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Region  string `json:"region,omitempty"`
}

// ServerNames returns the names of entries in order.
func ServerNames(entries []ServerEntry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names
}
