package cgroup

import (
	"errors"
	"testing"
)

func TestParseNonNegativeDecimal(t *testing.T) {
	cases := []struct {
		name    string
		in      string
		want    int64
		wantErr error
	}{
		{"plain", "1234\n", 1234, nil},
		{"no newline", "0", 0, nil},
		{"empty", "", -1, ErrEmpty},
		{"only newline", "\n", -1, ErrEmpty},
		{"not numeric", "max\n", -1, ErrNotNumeric},
		{"trailing garbage", "123x\n", -1, ErrTrailingGarbage},
		{"negative", "-5\n", -1, ErrNegative},
		{"out of range", "99999999999999999999999\n", -1, ErrOutOfRange},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := ParseNonNegativeDecimal([]byte(c.in))
			if got != c.want {
				t.Errorf("value = %d, want %d", got, c.want)
			}
			if !errors.Is(err, c.wantErr) {
				t.Errorf("err = %v, want %v", err, c.wantErr)
			}
		})
	}
}

func TestParseCPUStatUsage(t *testing.T) {
	ok := "usage_usec 100\nuser_usec 30\nsystem_usec 70\nnr_periods 0\n"
	v, err := ParseCPUStatUsage([]byte(ok))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 100 {
		t.Errorf("usage = %d, want 100", v)
	}

	missing := "usage_usec 100\nuser_usec 30\n"
	if _, err := ParseCPUStatUsage([]byte(missing)); err == nil {
		t.Error("expected error for missing system_usec")
	}
}
