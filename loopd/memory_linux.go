package loopd

import (
	"bytes"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// residentMemory reads the resident set size from /proc/self/statm, whose
// second field is the number of resident pages.
func residentMemory() (uint64, error) {
	b, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0, errors.Wrap(err, "failed to read statm")
	}

	fields := bytes.Fields(b)
	if len(fields) < 2 {
		return 0, errors.Errorf("malformed statm %q", b)
	}

	pages, err := strconv.ParseUint(string(fields[1]), 10, 64)
	if err != nil {
		return 0, errors.Wrap(err, "failed to parse resident pages")
	}

	return pages * uint64(unix.Getpagesize()), nil
}
