package maxlines

import "strings"

// CountLines returns the number of non-empty lines in text.
//
// The text is split on '\n' and every segment longer than zero bytes counts.
// A trailing newline yields an empty final segment, which does not count.
// Carriage returns are kept, so a line holding only "\r" is non-empty.
func CountLines(text string) int {
	n := 0
	for _, line := range strings.Split(text, "\n") {
		if len(line) > 0 {
			n++
		}
	}
	return n
}
