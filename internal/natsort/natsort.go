// Package natsort orders strings so that embedded decimal numbers compare by
// value: "layers.2.mlp" sorts before "layers.10.mlp".
package natsort

import (
	"slices"
	"strings"
)

// Compare returns -1, 0 or +1. Runs of ASCII digits compare numerically,
// every other byte compares by value. Strings that are numerically equal
// but spelled differently ("a01", "a1") fall back to a plain comparison so
// the order is total.
func Compare(a, b string) int {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			ei, ej := digitsEnd(a, i), digitsEnd(b, j)
			if c := compareNumbers(a[i:ei], b[j:ej]); c != 0 {
				return c
			}
			i, j = ei, ej
			continue
		}
		if a[i] != b[j] {
			if a[i] < b[j] {
				return -1
			}
			return 1
		}
		i++
		j++
	}

	switch {
	case len(a)-i < len(b)-j:
		return -1
	case len(a)-i > len(b)-j:
		return 1
	}
	return strings.Compare(a, b)
}

// Less reports whether a sorts before b.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

// Sort sorts s in place.
func Sort(s []string) {
	slices.SortFunc(s, Compare)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func digitsEnd(s string, i int) int {
	for i < len(s) && isDigit(s[i]) {
		i++
	}
	return i
}

// compareNumbers compares two digit runs of arbitrary length by value.
func compareNumbers(x, y string) int {
	x = strings.TrimLeft(x, "0")
	y = strings.TrimLeft(y, "0")
	if len(x) != len(y) {
		if len(x) < len(y) {
			return -1
		}
		return 1
	}
	return strings.Compare(x, y)
}
