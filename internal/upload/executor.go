package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"putbox/internal/framing"
	"putbox/internal/locktab"
)

// Executor drives one upload end to end: lock-table bookkeeping,
// policy evaluation, directory creation, and the chunk write loop.
type Executor struct {
	locks *locktab.Table
}

func NewExecutor(locks *locktab.Table) *Executor {
	return &Executor{locks: locks}
}

// Do streams the framed request body into the file at abs (an already
// confined absolute path) under the lock discipline the policy picks.
// It returns the action taken ("created", "updated", "replaced").
//
// The lock-table entry is released on every exit path. A failure mid
// stream leaves the partial file on disk; nothing is rolled back.
func (e *Executor) Do(ctx context.Context, abs string, mods Modifiers, fr framing.Framer) (action string, err error) {
	h := e.locks.Acquire(abs)
	defer h.Release()

	_, statErr := os.Stat(abs)
	dec, err := Decide(mods, statErr == nil)
	if err != nil {
		return "", err
	}

	if dec.LockWhole {
		h.Lock()
		defer h.Unlock()
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("create parent dirs: %w", err)
	}
	f, err := os.OpenFile(abs, dec.OpenFlags, 0o644)
	if err != nil {
		return "", fmt.Errorf("open target: %w", err)
	}
	defer f.Close()

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		chunk, err := fr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if err := e.writeChunk(f, h, dec, chunk); err != nil {
			return "", err
		}
	}
	return dec.Action, nil
}

// writeChunk writes one chunk under the per-chunk lock scope when the
// policy asks for it. Flushing happens before the lock is dropped so a
// competing appender never observes a buffered half-chunk.
func (e *Executor) writeChunk(f *os.File, h *locktab.Handle, dec Decision, chunk []byte) error {
	if dec.LockPerChunk {
		h.Lock()
		defer h.Unlock()
	}
	if _, err := f.Write(chunk); err != nil {
		return fmt.Errorf("write chunk: %w", err)
	}
	if dec.Flush {
		if err := f.Sync(); err != nil {
			return fmt.Errorf("flush chunk: %w", err)
		}
	}
	return nil
}
