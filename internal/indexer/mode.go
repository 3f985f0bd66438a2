package indexer

import (
	"errors"
	"fmt"
	"strings"
)

// Mode selects how a refresh computes embeddings
type Mode string

const (
	// ModeBulk computes every pending embedding concurrently and writes them in one transaction
	ModeBulk Mode = "bulk"
	// ModeIncremental walks pending entities in order, retrying transient failures
	ModeIncremental Mode = "incremental"
	// ModeSkip does nothing
	ModeSkip Mode = "skip"
)

// ErrUnknownMode is returned for mode names other than bulk, incremental and skip
var ErrUnknownMode = errors.New("unknown refresh mode")

// ParseMode converts a mode name, case-insensitively
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeBulk, ModeIncremental, ModeSkip:
		return m, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

func (m Mode) String() string {
	return string(m)
}
