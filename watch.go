package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"fortio.org/log"
	"github.com/fsnotify/fsnotify"
)

// watch calls rebuild, debounced, whenever one of paths is written, created or
// renamed, until ctx is done. The parent directories are watched rather than the
// files so editors that replace files on save are still seen. Rebuilds run on
// this goroutine and therefore never overlap. The paths rebuild returns replace
// the watched set.
func watch(ctx context.Context, paths []string, debounce time.Duration, rebuild func(context.Context) ([]string, error)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer w.Close()

	var files map[string]bool
	dirs := make(map[string]bool)
	track := func(paths []string) error {
		next := make(map[string]bool, len(paths))
		for _, p := range paths {
			abs, err := filepath.Abs(p)
			if err != nil {
				return fmt.Errorf("failed to resolve %s: %w", p, err)
			}
			next[abs] = true
			dir := filepath.Dir(abs)
			if dirs[dir] {
				continue
			}
			if err := w.Add(dir); err != nil {
				return fmt.Errorf("failed to watch directory %s: %w", dir, err)
			}
			dirs[dir] = true
		}
		files = next
		log.Infof("Watching %d files in %d directories", len(files), len(dirs))
		return nil
	}
	if err := track(paths); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			log.Infof("Stopping watcher")
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			name, err := filepath.Abs(event.Name)
			if err != nil || !files[name] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.LogVf("Change detected: %s", event)
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(debounce)
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Errf("Watcher error: %v", err)
		case <-fire:
			fire = nil
			next, err := rebuild(ctx)
			if err != nil {
				log.Errf("Rebuild failed: %v", err)
			}
			if terr := track(next); terr != nil {
				log.Errf("Keeping the previous watch list: %v", terr)
			}
		}
	}
}
