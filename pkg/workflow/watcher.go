package workflow

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CardWatcher watches a card directory and reloads the catalog when card
// files change. Reloads are debounced because editors often emit several
// events per save.
type CardWatcher struct {
	dir          string
	catalog      *CardCatalog
	watcher      *fsnotify.Watcher
	logger       *slog.Logger
	mu           sync.RWMutex
	running      bool
	stopCh       chan struct{}
	debounceTime time.Duration
}

// NewCardWatcher creates a watcher over a card directory.
func NewCardWatcher(dir string, catalog *CardCatalog, logger *slog.Logger) (*CardWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CardWatcher{
		dir:          dir,
		catalog:      catalog,
		watcher:      watcher,
		logger:       logger,
		stopCh:       make(chan struct{}),
		debounceTime: time.Second,
	}, nil
}

// Start begins watching the card directory.
func (cw *CardWatcher) Start(ctx context.Context) error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = true
	cw.mu.Unlock()

	if err := cw.watcher.Add(cw.dir); err != nil {
		cw.mu.Lock()
		cw.running = false
		cw.mu.Unlock()
		return err
	}

	cw.logger.Info("card watcher started", "dir", cw.dir)
	go cw.watchLoop(ctx)
	return nil
}

// Stop stops the watcher.
func (cw *CardWatcher) Stop() error {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.stopCh)
	return cw.watcher.Close()
}

// IsRunning reports whether the watcher is active.
func (cw *CardWatcher) IsRunning() bool {
	cw.mu.RLock()
	defer cw.mu.RUnlock()
	return cw.running
}

func (cw *CardWatcher) watchLoop(ctx context.Context) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if !isCardFileEvent(event) {
				continue
			}
			cw.logger.Debug("card file event", "event", event.Op.String(), "file", event.Name)

			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(cw.debounceTime, cw.reload)

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("card watcher error", "error", err)

		case <-cw.stopCh:
			cw.logger.Info("card watcher stopped")
			return

		case <-ctx.Done():
			cw.logger.Info("card watcher context cancelled")
			return
		}
	}
}

func isCardFileEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	ext := strings.ToLower(filepath.Ext(event.Name))
	return ext == ".yaml" || ext == ".yml"
}

func (cw *CardWatcher) reload() {
	start := time.Now()
	count, err := LoadDir(cw.catalog, cw.dir)
	if err != nil {
		cw.logger.Error("card reload failed", "error", err, "duration", time.Since(start))
		return
	}
	cw.logger.Info("card reload completed", "cards", count, "duration", time.Since(start))
}
