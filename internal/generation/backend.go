package generation

import "sort"

// BackendConfig configures an SDK-backed backend.
type BackendConfig struct {
	// Name is the identifier the backend is registered under.
	Name         string
	APIKey       string
	BaseURL      string
	DefaultModel string
	MaxTokens    int64
}

// sortedKeys returns the keys of m in lexical order.
func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c BackendConfig) model(requested string) string {
	if requested != "" {
		return requested
	}
	return c.DefaultModel
}
