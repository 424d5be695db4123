package mappingfile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/verte-zerg/smartchr/internal/model"
)

const reloadDebounce = 100 * time.Millisecond

// Source serves the mappings of one file and reloads them when it changes.
// A missing or broken file leaves the previous set in place; a file that never
// loaded serves no mappings.
type Source struct {
	path string
	log  *slog.Logger

	mu       sync.RWMutex
	mappings []model.Mapping
	onReload []func([]model.Mapping)

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	errChan chan error
}

// OpenSource loads path. A missing file is not an error.
func OpenSource(path string, log *slog.Logger) (*Source, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Source{
		path:    path,
		log:     log,
		ctx:     ctx,
		cancel:  cancel,
		errChan: make(chan error, 1),
	}
	if err := s.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		cancel()
		return nil, err
	}
	return s, nil
}

// Path returns the watched file path.
func (s *Source) Path() string { return s.path }

// Mappings implements cycle.MappingProvider.
func (s *Source) Mappings() []model.Mapping {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mappings
}

// Reload reads the file again. On failure the current set is kept.
func (s *Source) Reload() error {
	mappings, err := Load(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.mappings = mappings
	callbacks := append([]func([]model.Mapping){}, s.onReload...)
	s.mu.Unlock()

	s.log.Debug("mappings loaded", "path", s.path, "count", len(mappings))
	for _, cb := range callbacks {
		cb(mappings)
	}
	return nil
}

// OnReload registers a callback invoked after each successful load.
func (s *Source) OnReload(cb func([]model.Mapping)) {
	s.mu.Lock()
	s.onReload = append(s.onReload, cb)
	s.mu.Unlock()
}

// Errors returns reload failures seen while watching.
func (s *Source) Errors() <-chan error {
	return s.errChan
}

// Watch starts reloading the file whenever it is written or replaced.
func (s *Source) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// Watch the directory so atomic renames are seen.
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to create mapping directory: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch directory: %w", err)
	}
	s.watcher = watcher
	go s.watchLoop()
	return nil
}

func (s *Source) watchLoop() {
	var debounce *time.Timer
	name := filepath.Base(s.path)
	for {
		select {
		case <-s.ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, s.reloadFromWatch)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.report(err)
		}
	}
}

func (s *Source) reloadFromWatch() {
	if s.ctx.Err() != nil {
		return
	}
	if err := s.Reload(); err != nil {
		s.log.Warn("mapping reload failed, keeping previous mappings", "path", s.path, "err", err)
		s.report(fmt.Errorf("reload mappings: %w", err))
	}
}

func (s *Source) report(err error) {
	select {
	case s.errChan <- err:
	default:
	}
}

// Close stops watching.
func (s *Source) Close() error {
	s.cancel()
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
