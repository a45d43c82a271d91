package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteTempFile(t *testing.T) {
	path, cleanup, err := WriteTempFile("<html></html>", "html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading temp file: %v", err)
	}
	if string(data) != "<html></html>" {
		t.Errorf("content = %q, want %q", data, "<html></html>")
	}
	if !strings.HasSuffix(path, ".html") {
		t.Errorf("path = %q, want .html suffix", path)
	}

	cleanup()
	if FileExists(path) {
		t.Error("cleanup did not remove the file")
	}
}

func TestValidateExtension(t *testing.T) {
	tests := []struct {
		name      string
		extension string
		wantErr   error
	}{
		{"valid", "html", nil},
		{"empty", "", ErrExtensionEmpty},
		{"forward slash", "a/b", ErrExtensionPathTraversal},
		{"backslash", `a\b`, ErrExtensionPathTraversal},
		{"null byte", "a\x00b", ErrExtensionPathTraversal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExtension(tt.extension)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if !FileExists(file) {
		t.Error("FileExists(file) = false")
	}
	if FileExists(dir) {
		t.Error("FileExists(dir) = true, directories are not files")
	}
	if FileExists(filepath.Join(dir, "missing")) {
		t.Error("FileExists(missing) = true")
	}
}

func TestHasTempSuffix(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"doc.pdf.tmp", true},
		{"doc.temp", true},
		{"doc.pdf", false},
		{"tmp", false},
	}

	for _, tt := range tests {
		if got := HasTempSuffix(tt.name); got != tt.want {
			t.Errorf("HasTempSuffix(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestIsFilePath(t *testing.T) {
	if !IsFilePath("docs/style.css") {
		t.Error("IsFilePath with slash = false")
	}
	if !IsFilePath(`docs\style.css`) {
		t.Error("IsFilePath with backslash = false")
	}
	if IsFilePath("style.css") {
		t.Error("IsFilePath without separator = true")
	}
}
