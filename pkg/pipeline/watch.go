package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/fsnotify.v1"
)

// DefaultDebounce is how long the records must stay quiet before a re-run.
const DefaultDebounce = 2 * time.Second

// Watch runs the pipeline once, then again each time record files under the
// records directory change. Changes arriving within the debounce window are
// folded into a single run. Runs never overlap. Watch returns when ctx is
// done; failed runs are reported to onRun and do not stop watching.
func Watch(ctx context.Context, opts Options, debounce time.Duration, onRun func(Summary, error)) error {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	extension := opts.Config.Records.Extension

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := addTree(watcher, opts.RecordsDir, logger); err != nil {
		return fmt.Errorf("watching directory %s: %w", opts.RecordsDir, err)
	}

	onRun(Run(ctx, opts))

	var (
		timer *time.Timer
		fire  <-chan time.Time
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

			// A directory moved in may already hold records.
			newDir := false
			if event.Op&fsnotify.Create == fsnotify.Create {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name, logger); err != nil {
						logger.Printf("warning: cannot watch %s: %v", event.Name, err)
					}
					newDir = true
				}
			}

			if !newDir && !isRecordEvent(event, extension) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			onRun(Run(ctx, opts))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Printf("warning: watch error: %v", err)
		}
	}
}

// addTree watches root and every directory below it.
func addTree(watcher *fsnotify.Watcher, root string, logger *log.Logger) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			logger.Printf("warning: skipping %s: %v", path, err)
			return nil
		}
		if !entry.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}

// isRecordEvent reports whether an event changes the set of claim records.
func isRecordEvent(event fsnotify.Event, extension string) bool {
	if extension == "" || !strings.HasSuffix(event.Name, extension) {
		return false
	}
	return event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0
}
