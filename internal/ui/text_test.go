package ui

import (
	"os"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestFormatterWithColor(t *testing.T) {
	os.Unsetenv("NO_COLOR")
	color.NoColor = false

	result := Code.Sprint("vaultkey vault create")
	if strings.Contains(result, "`") {
		t.Errorf("Code.Sprint should not contain backticks when color is enabled, got: %s", result)
	}
	if !strings.Contains(result, "\x1b[") {
		t.Errorf("Code.Sprint should contain ANSI escape codes when color is enabled, got: %s", result)
	}
}

func TestFormatterWithNoColor(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	tests := []struct {
		name      string
		formatter Formatter
		input     string
		want      string
	}{
		{"Code adds backticks", Code, "vaultkey item open", "`vaultkey item open`"},
		{"Path has no decoration", Path, ".vaultkey/items", ".vaultkey/items"},
		{"Flag has no decoration", Flag, "--vault", "--vault"},
		{"Success has no decoration", Success, "✓", "✓"},
		{"Error has no decoration", Error, "✗", "✗"},
		{"Highlight adds quotes", Highlight, "Finance", "'Finance'"},
		{"Muted adds parentheses", Muted, "no note", "(no note)"},
		{"Rotation adds brackets", Rotation, "rotation 2", "[rotation 2]"},
		{"Security adds markers", Security, "untrusted", "!! untrusted !!"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.formatter.Sprint(tt.input)
			if got != tt.want {
				t.Errorf("%s.Sprint(%q) = %q, want %q", tt.name, tt.input, got, tt.want)
			}
		})
	}
}

func TestMask(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"abc", 3},
		{"pässwörd", 8},
		{"a-very-long-password-indeed", 12},
	}
	for _, tt := range tests {
		got := Mask(tt.in)
		if strings.Contains(got, tt.in) && tt.in != "" {
			t.Errorf("Mask(%q) leaked the secret: %q", tt.in, got)
		}
		if n := strings.Count(got, maskRune); n != tt.want {
			t.Errorf("Mask(%q) has %d mask characters, want %d", tt.in, n, tt.want)
		}
	}
}

func TestRotationLabel(t *testing.T) {
	os.Setenv("NO_COLOR", "1")
	defer os.Unsetenv("NO_COLOR")

	if got := RotationLabel(3); got != "[rotation 3]" {
		t.Errorf("RotationLabel(3) = %q", got)
	}
}

func TestEnsureNewline(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "\n"},
		{"a", "a\n"},
		{"a\n", "a\n"},
	}
	for _, tt := range tests {
		if got := EnsureNewline(tt.in); got != tt.want {
			t.Errorf("EnsureNewline(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
