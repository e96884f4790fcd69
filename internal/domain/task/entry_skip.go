package task

import "time"

type EntrySkipTask struct {
	Position  int       `json:"position"`   // 0-based catalog position
	Attempts  int       `json:"attempts"`   // Fetch attempts made before giving up
	Error     string    `json:"error"`      // Last error seen
	SkippedAt time.Time `json:"skipped_at"` // When the loader gave up
}

func (t *EntrySkipTask) TaskType() string {
	return "EntrySkipTask"
}

func (t *EntrySkipTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
