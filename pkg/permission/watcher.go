package permission

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/unicef-drp/geosight/pkg/observability"
)

// WatchPolicyFile hot-reloads the policy catalog when the override file
// changes on disk. A file that fails validation is logged and skipped;
// the previous catalog stays active. onReload, if non-nil, receives the
// outcome of every reload attempt. Blocks until ctx is cancelled.
func WatchPolicyFile(ctx context.Context, policy *Policy, path string, logger *observability.Logger, onReload func(err error)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Watch the directory, not the file: editors replace files by
	// rename, which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			err := policy.LoadFile(path)
			if onReload != nil {
				onReload(err)
			}
			if err != nil {
				logger.WithError(err).WithField("path", path).Error("Failed to reload permission policy file")
				continue
			}
			logger.WithField("path", path).Info("Reloaded permission policy file")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WithError(err).Warn("Permission policy watcher error")
		}
	}
}
