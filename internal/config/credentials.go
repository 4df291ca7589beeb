package config

import "strings"

// ResolveAPIKey returns the first non-blank candidate, trimmed. A key supplied
// with a request comes first, then the server-side fallback.
func ResolveAPIKey(candidates ...string) string {
	for _, c := range candidates {
		if k := strings.TrimSpace(c); k != "" {
			return k
		}
	}
	return ""
}
