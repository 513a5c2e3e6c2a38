// Package ircformat builds IRC formatted reply text.
//
// IRC formatting uses control characters: 0x02 toggles bold, 0x03 starts a
// colour code followed by one or two digit colour numbers.
package ircformat

import (
	"strings"

	"github.com/ergochat/irc-go/ircfmt"
)

// IRC control characters
const (
	Bold      = "\x02"
	Italic    = "\x1D"
	Underline = "\x1F"
	Color     = "\x03"
	Reverse   = "\x16"
	Reset     = "\x0F"
)

// Standard IRC color codes (00-15)
const (
	ColorWhite      = "00"
	ColorBlack      = "01"
	ColorBlue       = "02"
	ColorGreen      = "03"
	ColorRed        = "04"
	ColorBrown      = "05"
	ColorMagenta    = "06"
	ColorOrange     = "07"
	ColorYellow     = "08"
	ColorLightGreen = "09"
	ColorCyan       = "10"
	ColorLightCyan  = "11"
	ColorLightBlue  = "12"
	ColorPink       = "13"
	ColorGrey       = "14"
	ColorLightGrey  = "15"
)

// Bolded wraps s in bold toggles
func Bolded(s string) string {
	if s == "" {
		return s
	}
	return Bold + s + Bold
}

// Colored wraps s in a foreground colour. The closing code resets the colour
// only, so surrounding bold state is kept.
func Colored(fg, s string) string {
	if s == "" {
		return s
	}
	// A leading comma or digit would be read as part of the colour code
	if c := s[0]; c == ',' || (c >= '0' && c <= '9') {
		s = Bold + Bold + s
	}
	return Color + fg + s + Color
}

// Change colours a signed change green when it is zero or positive, red
// otherwise.
func Change(positive bool, s string) string {
	if positive {
		return Colored(ColorLightGreen, s)
	}
	return Colored(ColorRed, s)
}

// Strip removes all formatting codes from s
func Strip(s string) string {
	return ircfmt.Strip(s)
}

// Plain reports whether s carries no formatting codes
func Plain(s string) bool {
	return !strings.ContainsAny(s, Bold+Italic+Underline+Color+Reverse+Reset)
}
