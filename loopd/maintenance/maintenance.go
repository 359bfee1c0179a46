// Package maintenance implements loopd's maintenance mode: the host is down
// for as long as a "down file" exists.
package maintenance

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
)

// DownInfo is the content of a down file.
type DownInfo struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message,omitempty"`
}

// Down puts the host into maintenance mode by writing the down file.
func Down(path, message string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return errors.Wrap(err, "failed to create down file directory")
	}

	b, err := json.Marshal(DownInfo{
		Time:    time.Now(),
		Message: message,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal down info")
	}

	if err := os.WriteFile(path, append(b, '\n'), 0640); err != nil {
		return errors.Wrap(err, "failed to write down file")
	}

	return nil
}

// Up takes the host out of maintenance mode. It is not an error if the host is
// already up.
func Up(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "failed to remove down file")
	}
	return nil
}

// ReadDownInfo reads the down file. Nil is returned if the host is up. Down
// files that aren't JSON are still considered down, with an empty DownInfo.
func ReadDownInfo(path string) (*DownInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to read down file")
	}

	var info DownInfo
	// Anything can create the file, so don't insist on the format.
	json.Unmarshal(b, &info)

	return &info, nil
}
