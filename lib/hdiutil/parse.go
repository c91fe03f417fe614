package hdiutil

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoMountPoint is returned when the attach output names no mounted volume.
var ErrNoMountPoint = errors.New("no mount point in attach output")

// ParseAttachMount scans hdiutil attach output for the mount path: the first
// line whose final tab-separated field begins with the mount prefix.
func ParseAttachMount(output, mountPrefix string) (string, error) {
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(line, "\t")
		last := strings.TrimSpace(fields[len(fields)-1])
		if last != "" && strings.HasPrefix(last, mountPrefix) {
			return last, nil
		}
	}
	return "", fmt.Errorf("%w (prefix %q)", ErrNoMountPoint, mountPrefix)
}
