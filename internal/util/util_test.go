// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestWriteFileAtomic_CreatesAndReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "history.txt")

	if err := WriteFileAtomic(path, []byte("first"), 0600); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second"), 0600); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "second" {
		t.Errorf("content = %q, want %q", got, "second")
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("perm = %o, want 0600", info.Mode().Perm())
		}
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestWriteFileAtomic_EmptyData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := WriteFileAtomic(path, nil, 0600); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() != 0 {
		t.Errorf("size = %d, want 0", info.Size())
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	if got := ExpandHome("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("ExpandHome(~/x) = %q", got)
	}
	if got := ExpandHome("/abs/~x"); got != "/abs/~x" {
		t.Errorf("ExpandHome changed absolute path: %q", got)
	}
}

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 6, "hello…"},
		{"日本語テキスト", 5, "日本…"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := TruncateWidth(tt.in, tt.width); got != tt.want {
			t.Errorf("TruncateWidth(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestStringWidth(t *testing.T) {
	if w := StringWidth("日本"); w != 4 {
		t.Errorf("StringWidth = %d, want 4", w)
	}
	if w := PadWidth("ab", 4); w != "ab  " {
		t.Errorf("PadWidth = %q", w)
	}
}

func TestSanitizeTerminal(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain text", "plain text"},
		{"keep\nnewline\tand tab", "keep\nnewline\tand tab"},
		{"esc \x1b[31mred", "esc ?[31mred"},
		{"bell\x07", "bell?"},
		{"del\x7f", "del?"},
		{"c1 \u009b", "c1 ?"},
		{"héllo", "héllo"},
	}
	for _, tt := range tests {
		if got := SanitizeTerminal(tt.in); got != tt.want {
			t.Errorf("SanitizeTerminal(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
