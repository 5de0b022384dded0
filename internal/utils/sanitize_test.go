package utils

import "testing"

func TestCleanFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"forest.mp3", "forest"},
		{"the_brave-knight.mp3", "the brave knight"},
		{"lost__treasure.flac", "lost treasure"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := CleanFilename(tt.in); got != tt.want {
			t.Errorf("CleanFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		in, def, want string
	}{
		{"The Magical Forest", "x", "The_Magical_Forest"},
		{"  Space: Adventure!  ", "x", "Space_Adventure"},
		{"", "Untitled", "Untitled"},
		{"!!!", "Untitled", "Untitled"},
	}
	for _, tt := range tests {
		if got := Sanitize(tt.in, tt.def); got != tt.want {
			t.Errorf("Sanitize(%q, %q) = %q, want %q", tt.in, tt.def, got, tt.want)
		}
	}
}
