package ui

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
)

// Formatter applies semantic formatting to text.
type Formatter struct {
	color  *color.Color
	prefix string
	suffix string
}

func (f Formatter) Sprint(a ...interface{}) string {
	return f.render(fmt.Sprint(a...))
}

func (f Formatter) Sprintf(format string, a ...interface{}) string {
	return f.render(fmt.Sprintf(format, a...))
}

func (f Formatter) render(text string) string {
	if noColor() {
		return f.prefix + text + f.suffix
	}
	return f.color.Sprint(text)
}

// EnsureNewline ensures the string ends with a newline character.
func EnsureNewline(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}

// maskRune replaces every character of a hidden value.
const maskRune = "•"

// Mask hides a secret value, keeping only its length visible. Values longer
// than 12 characters are shown as 12 mask characters.
func Mask(secret string) string {
	n := utf8.RuneCountInString(secret)
	if n > 12 {
		n = 12
	}
	return Secret.Sprint(strings.Repeat(maskRune, n))
}

// RotationLabel renders a key rotation as "rotation N".
func RotationLabel(rotation int64) string {
	return Rotation.Sprintf("rotation %d", rotation)
}

func noColor() bool {
	// https://no-color.org/
	if _, exists := os.LookupEnv("NO_COLOR"); exists {
		return true
	}
	return color.NoColor
}

// Semantic formatters for different types of CLI output.
var (
	// Code formats runnable commands. Yellow, or `backticks` without color.
	Code = Formatter{color.New(color.FgYellow), "`", "`"}

	// Path formats file or directory paths.
	Path = Formatter{color.New(color.FgYellow), "", ""}

	// Flag formats CLI flags like --verbose.
	Flag = Formatter{color.New(color.FgYellow), "", ""}

	Success = Formatter{color.New(color.FgGreen), "", ""}
	Error   = Formatter{color.New(color.FgRed), "", ""}
	Warning = Formatter{color.New(color.FgYellow), "", ""}
	Info    = Formatter{color.New(color.FgCyan), "", ""}

	// Highlight formats user values such as vault names and emails.
	// Cyan, or 'single quotes' without color.
	Highlight = Formatter{color.New(color.FgCyan), "'", "'"}

	// Muted formats secondary text. Gray, or (parentheses) without color.
	Muted = Formatter{color.New(color.FgHiBlack), "(", ")"}

	// Secret formats masked values.
	Secret = Formatter{color.New(color.FgHiBlack), "", ""}

	// Rotation formats key rotations. Magenta, or [brackets] without color.
	Rotation = Formatter{color.New(color.FgMagenta), "[", "]"}

	// Security formats security warnings such as untrusted content.
	Security = Formatter{color.New(color.FgHiRed, color.Bold), "!! ", " !!"}
)
