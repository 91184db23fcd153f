package cgroup

import (
	"errors"
	"strconv"
	"strings"
)

// Parse error kinds, kept distinct (rather than collapsed into one
// "invalid" value) because they point at different kernel-side causes when
// debugging a cgroup file format change: ErrEmpty usually means the file
// was truncated mid-write, ErrTrailingGarbage means a format the parser
// doesn't understand yet, ErrNegative and ErrOutOfRange mean the kernel
// handed back a value outside what a byte/pid/time count can be.
var (
	ErrEmpty           = errors.New("cgroup: empty value")
	ErrNotNumeric      = errors.New("cgroup: no numeric prefix")
	ErrTrailingGarbage = errors.New("cgroup: trailing non-whitespace after number")
	ErrNegative        = errors.New("cgroup: negative value")
	ErrOutOfRange      = errors.New("cgroup: value out of range")
)

// ParseNonNegativeDecimal parses a single non-negative decimal integer,
// tolerating a trailing newline (as written by the kernel) but rejecting
// anything else after the digits. On any non-conformant input it returns
// -1 alongside the specific error so the caller can log at warning level
// and still proceed with -1 as the "unknown" accounting value.
func ParseNonNegativeDecimal(b []byte) (int64, error) {
	s := strings.TrimRight(string(b), "\n")
	if s == "" {
		return -1, ErrEmpty
	}

	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		if len(s) > 1 && s[0] == '-' && s[1] >= '0' && s[1] <= '9' {
			return -1, ErrNegative
		}
		return -1, ErrNotNumeric
	}

	rest := strings.TrimSpace(s[end:])
	if rest != "" {
		return -1, ErrTrailingGarbage
	}

	v, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return -1, ErrOutOfRange
		}
		return -1, ErrNotNumeric
	}
	if v < 0 {
		return -1, ErrNegative
	}
	return v, nil
}

// ParseCPUStatUsage scans a cpu.stat file for user_usec and system_usec and
// returns their sum. Either field missing or malformed makes the whole
// read "unknown" (-1), matching the reference driver's all-or-nothing
// accounting: a partial CPU time is worse than no CPU time, since it would
// silently under-report usage to a caller enforcing a hard limit.
func ParseCPUStatUsage(b []byte) (int64, error) {
	var userUsec, systemUsec int64 = -1, -1
	for _, line := range strings.Split(string(b), "\n") {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		switch fields[0] {
		case "user_usec":
			v, err := ParseNonNegativeDecimal([]byte(fields[1]))
			if err != nil {
				return -1, err
			}
			userUsec = v
		case "system_usec":
			v, err := ParseNonNegativeDecimal([]byte(fields[1]))
			if err != nil {
				return -1, err
			}
			systemUsec = v
		}
		if userUsec >= 0 && systemUsec >= 0 {
			break
		}
	}
	if userUsec < 0 || systemUsec < 0 {
		return -1, ErrNotNumeric
	}
	return userUsec + systemUsec, nil
}
