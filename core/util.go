package core

import (
	"os"
	"path/filepath"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// Getwd tries to find the project root, the closest parent holding a go.mod.
// go-test changes the working directory to the package being tested, so the config dir cannot be resolved from
// the working directory alone. Deployed binaries have no go.mod around them and get the working directory.
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}

// RoundHalfUp returns num/den rounded to the nearest integer, halves rounding up.
// Both operands must be non-negative; a zero denominator yields 0.
func RoundHalfUp(num, den int) int {
	if den <= 0 || num <= 0 {
		return 0
	}
	return (2*num + den) / (2 * den)
}
