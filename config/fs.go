package config

import "strings"

// CleanFileName removes characters the target filesystem does not allow in a
// single path segment. The allowed set differs per OS, see invalidNameRunes.
func CleanFileName(in string) string {
	out := strings.TrimLeft(strings.Map(func(sym rune) rune {
		if sym == 0 || strings.ContainsRune(invalidNameRunes, sym) {
			return -1
		}
		return sym
	}, in), ".")
	if len(out) == 0 {
		out = "_bad_file_name_"
	}
	return out
}
