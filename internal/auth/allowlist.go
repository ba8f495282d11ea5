package auth

import "strings"

// Allowlist is the fixed set of primary administrators. Entries are
// numeric ids or handles; handles compare case-insensitively without "@".
type Allowlist struct {
	entries map[string]struct{}
}

func NewAllowlist(entries []string) Allowlist {
	a := Allowlist{entries: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		if n := Normalize(e); n != "" {
			a.entries[n] = struct{}{}
		}
	}
	return a
}

// Contains reports whether identity is a primary administrator.
func (a Allowlist) Contains(identity string) bool {
	_, ok := a.entries[Normalize(identity)]
	return ok
}

// Members returns the normalized entries.
func (a Allowlist) Members() []string {
	out := make([]string, 0, len(a.entries))
	for e := range a.entries {
		out = append(out, e)
	}
	return out
}

// Normalize trims whitespace and a leading "@" and lowercases the rest.
func Normalize(identity string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(identity), "@"))
}
