package main

import (
	"fmt"
	"strconv"
	"strings"
)

// frameCount is a pflag.Value accepting a plain integer or a
// Ki/Mi-suffixed frame count (e.g. "64Ki"), so an operator can write
// --frames=256Mi instead of computing the raw frame count by hand.
type frameCount int

func (f *frameCount) String() string { return strconv.Itoa(int(*f)) }

func (f *frameCount) Type() string { return "frameCount" }

func (f *frameCount) Set(s string) error {
	mult := 1
	switch {
	case strings.HasSuffix(s, "Ki"):
		mult = 1 << 10
		s = strings.TrimSuffix(s, "Ki")
	case strings.HasSuffix(s, "Mi"):
		mult = 1 << 20
		s = strings.TrimSuffix(s, "Mi")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid frame count %q: %w", s, err)
	}
	*f = frameCount(n * mult)
	return nil
}
