package sheet

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/okian/pbspread/pkg/logger"
)

// Watch calls onChange each time the file is written or replaced. It runs
// until ctx is cancelled.
//
// The parent directory is watched rather than the file: a save that renames
// a temporary file over the path replaces the inode, and a watch on the old
// inode would go quiet.
func (s *FileSource) Watch(ctx context.Context, onChange func()) error {
	if s.path == "" {
		return ErrNoLocation
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("sheet watcher: %w", err)
	}
	defer w.Close()

	dir, name := filepath.Dir(s.path), filepath.Base(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("sheet watcher: %w", err)
	}
	log := logger.Get().Named("sheet")
	log.Info(ctx, "watching sheet file", logger.String("path", s.path))

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != name {
				continue
			}
			// A rename onto the path arrives as Create.
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn(ctx, "sheet watcher error", logger.Error(err))
		}
	}
}
