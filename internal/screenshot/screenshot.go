// Package screenshot stores captured page images and hands back opaque
// references. Capture is always best-effort: it documents a step, it never
// participates in the booking action itself.
package screenshot

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/court-booker/internal/types"
)

// Store writes PNG captures under a base directory, one file per request,
// named by session id and step.
type Store struct {
	mu  sync.Mutex
	dir string
}

// NewStore creates the base directory if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create screenshot dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save persists one capture and returns its reference.
func (s *Store) Save(sessionID uuid.UUID, step string, png []byte) (types.ScreenshotRef, error) {
	now := time.Now()
	name := fmt.Sprintf("%s_%s_%s.png", now.Format("20060102_150405"), sessionID, sanitize(step))
	path := filepath.Join(s.dir, name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return types.ScreenshotRef{}, fmt.Errorf("failed to write screenshot %s: %w", path, err)
	}

	return types.ScreenshotRef{
		SessionID: sessionID,
		Step:      step,
		Path:      path,
		TakenAt:   now,
	}, nil
}

func sanitize(step string) string {
	step = strings.ToLower(strings.TrimSpace(step))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, step)
}
