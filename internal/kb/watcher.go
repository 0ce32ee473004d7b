package kb

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kotileipomo/faq-engine/internal/observability"
)

// DefaultDebounce is how long the watcher waits for a burst of file events to settle.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls OnChange after files in the watched directories change. Bursts of
// events (editors often write a file several times) collapse into one call.
type Watcher struct {
	dirs     []string
	debounce time.Duration
	onChange func(ctx context.Context)
	logger   *observability.Logger
}

// NewWatcher creates a watcher over dirs. Empty dir names are ignored.
func NewWatcher(onChange func(ctx context.Context), debounce time.Duration, logger *observability.Logger, dirs ...string) *Watcher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	var kept []string
	for _, d := range dirs {
		if d != "" {
			kept = append(kept, d)
		}
	}
	return &Watcher{
		dirs:     kept,
		debounce: debounce,
		onChange: onChange,
		logger:   logger.WithComponent("kb-watcher"),
	}
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	for _, d := range w.dirs {
		if err := fw.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
		w.logger.Info().Str("dir", d).Msg("Watching for changes")
	}

	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	fire := func() {
		w.logger.Info().Msg("Data changed, reloading")
		w.onChange(ctx)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(ev) {
				continue
			}
			w.logger.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("File event")
			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, fire)
			mu.Unlock()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

// relevantEvent reports whether ev touches a visible data file in a way that changes content.
func relevantEvent(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) &&
		!ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(ev.Name)
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}
