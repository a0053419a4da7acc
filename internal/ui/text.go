package ui

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// Formatter renders one kind of CLI content. Without color it falls back to
// a plain prefix and suffix.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

func newFormatter(prefix, suffix string, attrs ...color.Attribute) Formatter {
	return Formatter{color: color.New(attrs...), prefix: prefix, suffix: suffix}
}

// Sprint formats the arguments like fmt.Sprint.
func (f Formatter) Sprint(a ...any) string {
	return f.render(fmt.Sprint(a...))
}

// Sprintf formats like fmt.Sprintf.
func (f Formatter) Sprintf(format string, a ...any) string {
	return f.render(fmt.Sprintf(format, a...))
}

func (f Formatter) render(text string) string {
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// EnsureNewline appends a newline unless s already ends with one.
func EnsureNewline(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}

// noColor reports whether NO_COLOR is set or fatih/color disabled output
// (not a TTY, TERM=dumb).
func noColor() bool {
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}

var (
	// Code is for commands the user can run: yellow, or `backticks`.
	Code = newFormatter("`", "`", color.FgYellow)

	// Path is for config and store locations.
	Path = newFormatter("", "", color.FgYellow)

	// Flag is for CLI flags.
	Flag = newFormatter("", "", color.FgYellow)

	Success = newFormatter("", "", color.FgGreen)
	Error   = newFormatter("", "", color.FgRed)
	Warning = newFormatter("", "", color.FgYellow)
	Info    = newFormatter("", "", color.FgCyan)

	// Highlight is for account names, record ids and curves: cyan, or
	// 'single quotes'.
	Highlight = newFormatter("'", "'", color.FgCyan)

	// Muted is for secondary details such as timestamps.
	Muted = newFormatter("(", ")", color.FgHiBlack)

	// KeyMaterial is for public keys and fingerprints.
	KeyMaterial = newFormatter("", "", color.Bold)

	// Secret is for revealed private keys and shared secrets. The <angle
	// brackets> keep them visible in uncolored logs.
	Secret = newFormatter("<", ">", color.FgRed, color.Bold)
)

// Status marks that start a line of CLI output.
func CheckMark() string { return Success.Sprint("✓") }
func CrossMark() string { return Error.Sprint("✗") }
func WarnMark() string  { return Warning.Sprint("⚠") }
func HintMark() string  { return Info.Sprint("→") }
func InfoMark() string  { return Info.Sprint("ℹ") }
