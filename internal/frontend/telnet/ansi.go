// Package telnet serves the arena's plain-text line protocol over Telnet,
// with ANSI colors for game output.
package telnet

import "fmt"

// ANSI styles used by the text renderer.
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red          = "\033[31m"
	Green        = "\033[32m"
	Yellow       = "\033[33m"
	Cyan         = "\033[36m"
	BrightRed    = "\033[91m"
	BrightGreen  = "\033[92m"
	BrightYellow = "\033[93m"
	BrightBlue   = "\033[94m"
	BrightCyan   = "\033[96m"
)

// Colorize wraps text with the given ANSI style and a reset suffix.
func Colorize(style, text string) string {
	return style + text + Reset
}

// Colorf wraps a formatted string with the given ANSI style.
func Colorf(style, format string, args ...any) string {
	return style + fmt.Sprintf(format, args...) + Reset
}

// StripANSI removes every \033[...m sequence from s.
//
// Postcondition: Returns s with only its printable text.
func StripANSI(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\033' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && s[j] != 'm' {
				j++
			}
			if j < len(s) {
				i = j
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}
