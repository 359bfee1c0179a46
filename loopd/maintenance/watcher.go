package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"git.unix.lgbt/diamondburned/loopd/loopd"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// DownFile is a loopd.Host that is down for maintenance while its file exists.
// Without a watcher, every query stats the file.
type DownFile struct {
	path     string
	down     atomic.Bool
	watching atomic.Bool
}

var _ loopd.Host = (*DownFile)(nil)

// NewDownFile creates a new DownFile that isn't watched yet.
func NewDownFile(path string) *DownFile {
	return &DownFile{path: filepath.Clean(path)}
}

// TryWatch attempts to watch the down file, but it will log into the
// journaler and fall back to stat'ing if, for some reason, it fails to watch.
func TryWatch(ctx context.Context, path string, j loopd.Journaler) *DownFile {
	d := NewDownFile(path)

	if err := d.Watch(ctx, j); err != nil {
		j.Write(&loopd.EventWarning{
			Component: "maintenance",
			Error:     "not watching down file because: " + err.Error(),
		})
	}

	return d
}

// Path returns the path of the down file.
func (d *DownFile) Path() string { return d.path }

// IsDownForMaintenance returns true if the down file exists.
func (d *DownFile) IsDownForMaintenance() bool {
	if d.watching.Load() {
		return d.down.Load()
	}
	return d.stat()
}

func (d *DownFile) stat() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// Watch caches the state of the down file and keeps it updated in the
// background until ctx is canceled. State changes are logged into j.
func (d *DownFile) Watch(ctx context.Context, j loopd.Journaler) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}

	// Watch the directory, since the file comes and goes.
	if err := w.Add(filepath.Dir(d.path)); err != nil {
		w.Close()
		return errors.Wrap(err, "failed to watch dir")
	}

	// Only stat after the watch is set up so no change is missed.
	d.down.Store(d.stat())
	d.watching.Store(true)

	go d.watch(ctx, w, j)
	return nil
}

func (d *DownFile) watch(ctx context.Context, w *fsnotify.Watcher, j loopd.Journaler) {
	defer w.Close()
	defer d.watching.Store(false)

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-w.Errors:
			if !ok {
				return
			}

			j.Write(&loopd.EventWarning{
				Component: "maintenance",
				Error:     "inotify error: " + err.Error(),
			})

		case ev, ok := <-w.Events:
			if !ok {
				return
			}

			if filepath.Clean(ev.Name) != d.path {
				continue
			}

			// Don't trust the event's op; renames and editors that replace
			// files make it unreliable. Just look again.
			down := d.stat()
			if d.down.Swap(down) != down {
				j.Write(&loopd.EventMaintenance{
					Path: d.path,
					Down: down,
				})
			}
		}
	}
}
