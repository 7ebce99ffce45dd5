package content

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/folio/internal/logger"
)

const reloadDebounce = 200 * time.Millisecond

// Store holds the current document and swaps it atomically on reload.
type Store struct {
	path string

	mu   sync.RWMutex
	site *Site
}

// NewStore loads path (or the embedded default when empty).
func NewStore(path string) (*Store, error) {
	site, err := Load(path)
	if err != nil {
		return nil, err
	}
	return &Store{path: path, site: site}, nil
}

// Site returns the current document. Callers must not modify it.
func (s *Store) Site() *Site {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.site
}

// Reload re-reads the file. On failure the previous document stays active.
func (s *Store) Reload() error {
	site, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.site = site
	s.mu.Unlock()
	return nil
}

// Watch reloads the document whenever its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file by rename
// are picked up too.
func (s *Store) Watch(ctx context.Context) error {
	if s.path == "" {
		return errors.New("content store has no file to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	target := filepath.Clean(s.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return err
	}

	log := logger.Component("content")
	log.Info().Str("path", target).Msg("watching content file")

	var (
		timer   *time.Timer
		pending <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			pending = timer.C
		case <-pending:
			pending = nil
			if err := s.Reload(); err != nil {
				log.Warn().Err(err).Msg("content reload failed, keeping previous document")
				continue
			}
			log.Info().Msg("content reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("content watcher error")
		}
	}
}
