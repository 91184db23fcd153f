// Package runnersize provides a human-readable byte-count type, used by
// rlimit.RLimit.String to render byte-valued limits.
package runnersize

import (
	"fmt"
	"strconv"
)

// Size stores a byte count, bounded by the 64-bit range.
type Size uint64

func (s Size) String() string {
	t := uint64(s)
	switch {
	case t < 1<<10:
		return fmt.Sprintf("%d B", t)
	case t < 1<<20:
		return fmt.Sprintf("%.1f KiB", float64(t)/float64(1<<10))
	case t < 1<<30:
		return fmt.Sprintf("%.1f MiB", float64(t)/float64(1<<20))
	default:
		return fmt.Sprintf("%.1f GiB", float64(t)/float64(1<<30))
	}
}

// Set parses a size value with an optional k/m/g suffix, e.g. "256m".
func (s *Size) Set(str string) error {
	switch str[len(str)-1] {
	case 'b', 'B':
		str = str[:len(str)-1]
	}

	factor := 0
	switch str[len(str)-1] {
	case 'k', 'K':
		factor = 10
		str = str[:len(str)-1]
	case 'm', 'M':
		factor = 20
		str = str[:len(str)-1]
	case 'g', 'G':
		factor = 30
		str = str[:len(str)-1]
	}

	t, err := strconv.Atoi(str)
	if err != nil {
		return err
	}
	*s = Size(t << factor)
	return nil
}

func (s Size) Byte() uint64 { return uint64(s) }
func (s Size) KiB() uint64  { return uint64(s) >> 10 }
func (s Size) MiB() uint64  { return uint64(s) >> 20 }
func (s Size) GiB() uint64  { return uint64(s) >> 30 }
