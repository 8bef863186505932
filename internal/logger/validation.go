package logger

import (
	"fmt"
	"runtime"
	"strings"
)

// FilenameValidationError reports a log filename pattern that cannot be used on this platform
type FilenameValidationError struct {
	Pattern      string
	InvalidChars []rune
	Platform     string
	Suggestion   string
}

func (e *FilenameValidationError) Error() string {
	quoted := make([]string, len(e.InvalidChars))
	for i, r := range e.InvalidChars {
		quoted[i] = fmt.Sprintf("'%s' (%s)", string(r), describeRune(r))
	}

	msg := fmt.Sprintf("invalid filename pattern %q: contains %s not allowed on %s",
		e.Pattern, strings.Join(quoted, ", "), e.Platform)
	if e.Suggestion != "" {
		msg += fmt.Sprintf("; try %q", e.Suggestion)
	}
	return msg
}

var windowsReserved = map[rune]string{
	':':  "colon",
	'|':  "pipe",
	'*':  "asterisk",
	'?':  "question mark",
	'<':  "angle brackets",
	'>':  "angle brackets",
	'"':  "quotes",
	'/':  "slash",
	'\\': "backslash",
}

func describeRune(r rune) string {
	if name, ok := windowsReserved[r]; ok {
		return name
	}
	if r == 0 {
		return "null byte"
	}
	return "reserved"
}

// ValidateFilenamePattern checks that a log filename pattern is a bare filename
// that the current platform accepts. An empty pattern falls back to the default.
func ValidateFilenamePattern(pattern string) error {
	if pattern == "" {
		return nil
	}

	invalid := findInvalidCharsInFilename(pattern)
	if len(invalid) == 0 {
		return nil
	}

	return &FilenameValidationError{
		Pattern:      pattern,
		InvalidChars: invalid,
		Platform:     platformName(),
		Suggestion:   suggestFilename(pattern, invalid),
	}
}

// findInvalidCharsInFilename returns the unique disallowed runes in order of appearance
func findInvalidCharsInFilename(filename string) []rune {
	seen := make(map[rune]bool)
	var invalid []rune

	for _, r := range filename {
		bad := r == 0 || r == '/' || r == '\\'
		if runtime.GOOS == "windows" {
			_, reserved := windowsReserved[r]
			bad = bad || reserved || r < 32
		}
		if bad && !seen[r] {
			seen[r] = true
			invalid = append(invalid, r)
		}
	}
	return invalid
}

func suggestFilename(pattern string, invalid []rune) string {
	out := pattern
	for _, r := range invalid {
		out = strings.ReplaceAll(out, string(r), "-")
	}
	return out
}

func platformName() string {
	switch runtime.GOOS {
	case "windows":
		return "Windows"
	case "darwin":
		return "macOS"
	default:
		return "Linux"
	}
}

// SafeFilenamePatterns lists patterns that validate on every platform
func SafeFilenamePatterns() []string {
	return []string{
		"gardencast-YYYYMMDD.log",
		"gardencast-YYYY-MM-DD.log",
		"gardencast_YYYY_MM_DD.log",
		"gardencast.YYYYMMDD-HH.log",
	}
}
