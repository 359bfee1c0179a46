package marker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
)

// File is a marker store that keeps each key in its own file inside a
// directory. Writes replace the file atomically, so readers never need the
// lock.
type File struct {
	dir string
}

// NewFile creates a new file store in the given directory. The directory is
// created on the first write.
func NewFile(dir string) *File {
	return &File{dir}
}

var keyReplacer = strings.NewReplacer(":", "_", "/", "_", `\`, "_")

// Path returns the path of the file holding the key.
func (f *File) Path(key string) string {
	return filepath.Join(f.dir, keyReplacer.Replace(key))
}

// LastRestart reads the restart time of the key. A zero time is returned if
// the file does not exist.
func (f *File) LastRestart(ctx context.Context, key string) (time.Time, error) {
	b, err := os.ReadFile(f.Path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return time.Time{}, nil
		}
		return time.Time{}, errors.Wrap(err, "failed to read marker file")
	}

	return parseTime(string(b))
}

// SetRestart writes the restart time of the key. Concurrent writers are
// serialized with a flock on a sibling lock file.
func (f *File) SetRestart(ctx context.Context, key string, t time.Time) error {
	if err := os.MkdirAll(f.dir, 0750); err != nil {
		return errors.Wrap(err, "failed to create marker directory")
	}

	path := f.Path(key)

	l := flock.New(path + ".lock")

	locked, err := l.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return errors.Wrap(err, "failed to acquire lock")
	}
	if !locked {
		return errors.New("lock not acquired")
	}
	defer l.Unlock()

	tmp, err := os.CreateTemp(f.dir, ".marker-*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary file")
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.WriteString(formatTime(t) + "\n")
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return errors.Wrap(err, "failed to write marker")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "failed to replace marker file")
	}

	return nil
}
