package pathutil

import (
	"path/filepath"
	"testing"
)

func TestExpandHomePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/cache", want: filepath.Join(home, "cache")},
		{in: "/var/cache/x", want: "/var/cache/x"},
		{in: "~other/x", want: "~other/x"},
	}
	for _, tt := range tests {
		if got := ExpandHomePath(tt.in); got != tt.want {
			t.Fatalf("ExpandHomePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
