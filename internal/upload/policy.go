// Package upload implements the PUT data path: modifier parsing, the
// policy deciding open mode and lock discipline, and the executor that
// streams framed chunks into the target file.
package upload

import (
	"errors"
	"net/url"
	"os"
	"strings"
)

// ErrConflict reports a PUT to an existing file without ?overwrite or
// ?append.
var ErrConflict = errors.New("file exists")

// Modifiers is the set of client-supplied upload switches from the
// query string.
type Modifiers struct {
	Append    bool
	Overwrite bool
	NoLock    bool
	Flush     bool
}

// ParseModifiers extracts modifier tokens from a query string. Tokens
// may arrive as repeated blank-valued keys (?append&flush) or
// comma-joined within one key (?append,flush); both normalize to the
// same set. Matching is case-insensitive, duplicates collapse, and
// unrecognized tokens are ignored.
func ParseModifiers(q url.Values) Modifiers {
	var m Modifiers
	for key := range q {
		for _, tok := range strings.Split(key, ",") {
			switch strings.ToLower(strings.TrimSpace(tok)) {
			case "append":
				m.Append = true
			case "overwrite":
				m.Overwrite = true
			case "nolock":
				m.NoLock = true
			case "flush":
				m.Flush = true
			}
		}
	}
	return m
}

// Decision is the policy outcome for one upload: how to open the file,
// which lock scope protects each write, and what to call the result.
type Decision struct {
	OpenFlags    int
	LockWhole    bool   // hold the path lock for the entire request
	LockPerChunk bool   // take and drop the path lock around each chunk
	Flush        bool   // fsync after each protected write
	Action       string // "created", "updated", or "replaced"
}

// Decide evaluates the modifier set against the target's current
// existence. It runs before any directory or file is touched, so a
// rejected request has no side effects.
//
// nolock demotes the whole-request lock to per-chunk granularity,
// leaving chunk writes as the only protection; append mode already
// locks per chunk, so there nolock changes nothing. This deliberately
// lets concurrent readers observe a half-written file.
func Decide(mods Modifiers, exists bool) (Decision, error) {
	var d Decision
	switch {
	case mods.Append:
		d.OpenFlags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
		d.LockPerChunk = true
		// Interleaved appenders must see whole chunks, so every
		// chunk is flushed before its lock is dropped.
		d.Flush = true
		d.Action = "updated"
	case exists && !mods.Overwrite:
		return Decision{}, ErrConflict
	default:
		d.OpenFlags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		d.LockWhole = true
		d.Action = "replaced"
	}
	if !exists {
		d.Action = "created"
	}
	if mods.NoLock && d.LockWhole {
		d.LockWhole = false
		d.LockPerChunk = true
	}
	if mods.Flush {
		d.Flush = true
	}
	return d, nil
}
