package ports

import (
	"fmt"
	"strconv"
	"strings"
)

// Validate checks that n is a usable port number.
func Validate(n int) error {
	if n < 1 || n > 65535 {
		return fmt.Errorf("port %d out of range (1-65535)", n)
	}
	return nil
}

// Parse converts a single port string like "8080" into a port number.
func Parse(s string) (uint16, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", s, err)
	}
	if err := Validate(n); err != nil {
		return 0, err
	}
	return uint16(n), nil
}

// ParseList converts specs like "8080,443" into port numbers. Empty
// elements are rejected; duplicates are collapsed, preserving first
// occurrence order.
func ParseList(spec string) ([]uint16, error) {
	if strings.TrimSpace(spec) == "" {
		return nil, nil
	}

	seen := make(map[uint16]struct{})
	var out []uint16
	for _, part := range strings.Split(spec, ",") {
		p, err := Parse(part)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// FromInts validates a config-sourced int slice into port numbers.
func FromInts(ns []int) ([]uint16, error) {
	out := make([]uint16, 0, len(ns))
	for _, n := range ns {
		if err := Validate(n); err != nil {
			return nil, err
		}
		out = append(out, uint16(n))
	}
	return out, nil
}
