package report

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"capybara/logging"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Settle is how long the inputs have to stay quiet before a rebuild.
const Settle = 500 * time.Millisecond

// Watch calls rebuild whenever one of files is written, created or replaced,
// until ctx is cancelled. Rebuild errors are logged, not returned.
func Watch(ctx context.Context, files []string, settle time.Duration, rebuild func(ctx context.Context) error) error {
	log := logging.FromContext(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// editors and downloads often replace a file, so watch its directory
	wanted := map[string]bool{}
	dirs := map[string]bool{}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		wanted[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
	}

	timer := time.NewTimer(settle)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !wanted[abs] {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				log.Debug("input changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
				timer.Reset(settle)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", zap.Error(err))

		case <-timer.C:
			log.Info("rebuilding report")
			if err := rebuild(ctx); err != nil {
				log.Error("rebuild failed", zap.Error(err))
			}
		}
	}
}
