package skills

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/pkg/errors"
)

// DefaultDebounce is how long the watcher waits for changes to settle.
const DefaultDebounce = 500 * time.Millisecond

// Reloader is the part of Store the watcher drives.
type Reloader interface {
	Reload(ctx context.Context) (*Registry, error)
}

// fileEvent is a filtered filesystem change.
type fileEvent struct {
	Path string
	Op   fsnotify.Op
	Time time.Time
}

// Watch reloads the store whenever files under the source's watch paths
// change. Bursts of events are coalesced into a single reload once they
// settle for delay. Reload failures are logged; the previous snapshot keeps
// serving. Watch blocks until ctx is cancelled.
func Watch(ctx context.Context, store Reloader, source Watchable, delay time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create skill watcher")
	}
	defer watcher.Close()

	if delay <= 0 {
		delay = DefaultDebounce
	}

	addPaths(ctx, watcher, source.WatchPaths())

	events := make(chan fileEvent)
	settled := make(chan fileEvent)
	go debounceFileEvents(ctx, events, settled, delay)

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				select {
				case events <- fileEvent{Path: event.Name, Op: event.Op, Time: time.Now()}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.G(ctx).WithError(err).Error("error watching skill files")
			case <-ctx.Done():
				return
			}
		}
	}()

	logger.G(ctx).WithField("delay", delay).Info("watching skill sources for changes")

	for {
		select {
		case event := <-settled:
			logger.G(ctx).WithFields(map[string]any{
				"file":      event.Path,
				"operation": event.Op.String(),
			}).Debug("skill source change detected")

			if _, err := store.Reload(ctx); err != nil {
				logger.G(ctx).WithError(err).Warn("skill reload after change failed")
			}
			// new skill directories appear after creation events
			addPaths(ctx, watcher, source.WatchPaths())
		case <-ctx.Done():
			return nil
		}
	}
}

func addPaths(ctx context.Context, watcher *fsnotify.Watcher, paths []string) {
	for _, path := range paths {
		if err := watcher.Add(path); err != nil {
			logger.G(ctx).WithError(err).WithField("directory", path).Debug("cannot watch directory")
		}
	}
}

// debounceFileEvents forwards the last event of a burst once no further event
// arrived for delay.
func debounceFileEvents(ctx context.Context, input <-chan fileEvent, output chan<- fileEvent, delay time.Duration) {
	var timer *time.Timer
	var fire <-chan time.Time
	var last fileEvent

	for {
		select {
		case event, ok := <-input:
			if !ok {
				if timer != nil {
					timer.Stop()
				}
				return
			}
			last = event
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(delay)
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case output <- last:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
