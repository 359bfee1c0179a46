// Package marker provides durable stores for loopd's restart marker. Every
// store here keeps one unix nanosecond timestamp per key, without expiry.
package marker

import (
	"strconv"
	"strings"
	"time"

	"git.unix.lgbt/diamondburned/loopd/loopd"
	"github.com/pkg/errors"
)

var (
	_ loopd.Marker = (*File)(nil)
	_ loopd.Marker = (*Redis)(nil)
)

func formatTime(t time.Time) string {
	return strconv.FormatInt(t.UnixNano(), 10)
}

func parseTime(s string) (time.Time, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return time.Time{}, errors.Wrap(err, "malformed restart marker")
	}
	return time.Unix(0, n), nil
}
