package settings

import (
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Store owns the on-disk settings file and the in-memory snapshot the
// planner reads from. Reads are lock-protected because a reload can
// race an append from the host's request-handling goroutine; the
// planner itself still only ever sees a fully-formed, validated
// Settings value, never a partially-written one.
type Store struct {
	path string
	log  *zap.SugaredLogger

	mu   sync.RWMutex
	cur  Settings
	gen  uint64 // bumped on every successful reload; exposed for status/logging

	watcher *fsnotify.Watcher
	closeCh chan struct{}
}

// Open loads settings from path, creating it with defaults if absent.
func Open(path string, log *zap.SugaredLogger) (*Store, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Store{path: path, log: log, closeCh: make(chan struct{})}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		s.log.Infow("settings file missing, writing defaults", "path", path)
		if err := s.save(Default()); err != nil {
			return nil, fmt.Errorf("settings: writing default file: %w", err)
		}
	}

	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the current settings snapshot. Safe to call from any
// goroutine; never called from the dispatcher's pulse-completion path.
func (s *Store) Get() Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur
}

// Generation returns a counter incremented on every successful reload,
// so callers (e.g. the executor adopting a block) can log when the
// settings under a running program changed mid-stream.
func (s *Store) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

func (s *Store) reload() error {
	var f file
	if _, err := toml.DecodeFile(s.path, &f); err != nil {
		return fmt.Errorf("settings: decoding %s: %w", s.path, err)
	}
	next := fromFile(f)
	if err := next.Validate(); err != nil {
		return multierr.Append(fmt.Errorf("settings: %s failed validation", s.path), err)
	}

	s.mu.Lock()
	s.cur = next
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	s.log.Infow("settings reloaded", "path", s.path, "generation", gen)
	return nil
}

func (s *Store) save(v Settings) error {
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(toFile(v))
}

// Watch starts an fsnotify watch on the settings file and reloads on
// every write. Reload errors are logged and the prior snapshot is kept
// — a bad edit never corrupts the in-flight settings. Call Close to
// stop watching.
func (s *Store) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: creating watcher: %w", err)
	}
	if err := w.Add(s.path); err != nil {
		w.Close()
		return fmt.Errorf("settings: watching %s: %w", s.path, err)
	}
	s.watcher = w

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := s.reload(); err != nil {
					s.log.Warnw("settings reload failed, keeping previous snapshot", "error", err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				s.log.Warnw("settings watcher error", "error", err)
			case <-s.closeCh:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher goroutine, if one was started.
func (s *Store) Close() error {
	close(s.closeCh)
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
