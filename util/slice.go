package util

import (
	"golang.org/x/exp/slices"
)

func Contains(src []string, v string) bool {
	return slices.Contains(src, v)
}

func IndexOf(src []string, v string) int {
	return slices.Index(src, v)
}

// Wrap maps any index onto [0, n) circularly, so -1 is the last element.
func Wrap(index int, n int) int {
	if n <= 0 {
		return 0
	}
	index %= n
	if index < 0 {
		index += n
	}
	return index
}
