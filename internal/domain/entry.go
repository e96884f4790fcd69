package domain

import "strings"

// Entry is a single resolved catalog record.
type Entry struct {
	Name     string   `json:"name"`
	Types    []string `json:"types"`           // API order
	Image    string   `json:"image,omitempty"` // empty when the remote has no sprite
	Position int      `json:"position"`        // 0-based, remote id - 1
}

// ID returns the remote identifier of the entry.
func (e Entry) ID() int {
	return e.Position + 1
}

// NormalizeName lower-cases a name for matching.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// PositionFromID maps a 1-based remote id to a catalog position.
func PositionFromID(id int) int {
	return id - 1
}
