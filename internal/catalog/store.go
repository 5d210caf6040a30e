package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/kapu/netfolio/internal/metrics"
)

const reloadDebounce = 300 * time.Millisecond

// Store holds the active catalog. Reads never block; a reload swaps the whole catalog.
type Store struct {
	current  atomic.Pointer[Catalog]
	onReload func(*Catalog)
	logger   *zap.Logger
}

func NewStore(initial *Catalog, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{logger: logger}
	s.current.Store(initial)
	return s
}

// OnReload registers fn to run after each successful file reload. Call before Watch.
func (s *Store) OnReload(fn func(*Catalog)) {
	s.onReload = fn
}

func (s *Store) Current() *Catalog {
	return s.current.Load()
}

func (s *Store) Replace(c *Catalog) {
	s.current.Store(c)
}

// LoadFile parses path and, if valid, makes it the active catalog. On error the
// previous catalog stays in place.
func (s *Store) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return err
	}
	s.Replace(c)
	return nil
}

// Watch reloads path whenever it changes until ctx is cancelled. The parent
// directory is watched so editors that replace the file by rename are seen too.
func (s *Store) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch catalog dir: %w", err)
	}

	s.logger.Info("Catalog watcher started", zap.String("path", target))

	var debounce *time.Timer
	reload := make(chan struct{}, 1)
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Catalog watcher stopped")
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
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(reloadDebounce, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := s.LoadFile(target); err != nil {
				metrics.RecordCatalogReload(false)
				s.logger.Warn("Catalog reload failed, keeping previous catalog",
					zap.String("path", target),
					zap.Error(err),
				)
				continue
			}
			metrics.RecordCatalogReload(true)
			s.logger.Info("Catalog reloaded", zap.String("path", target))
			if s.onReload != nil {
				s.onReload(s.Current())
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("Catalog watcher error", zap.Error(err))
		}
	}
}
