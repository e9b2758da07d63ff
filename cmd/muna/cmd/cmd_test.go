package cmd

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadSourcePrefersEvalOverFile(t *testing.T) {
	src, filename, err := loadSource("print(1)", nil)
	if err != nil {
		t.Fatalf("loadSource: %v", err)
	}
	if string(src) != "print(1)" || filename != "<eval>" {
		t.Fatalf("got (%q, %q), want (\"print(1)\", \"<eval>\")", src, filename)
	}
}

func TestLoadSourceStripsUTF8BOM(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.mu")
	bom := []byte{0xEF, 0xBB, 0xBF}
	body := "local x = 1;\n"
	if err := os.WriteFile(path, append(bom, body...), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, filename, err := loadSource("", []string{path})
	if err != nil {
		t.Fatalf("loadSource: %v", err)
	}
	if filename != path {
		t.Fatalf("filename = %q, want %q", filename, path)
	}
	if string(src) != body {
		t.Fatalf("source = %q, want BOM stripped to %q", src, body)
	}
}

func TestLoadSourceRequiresExactlyOneArgWithoutEval(t *testing.T) {
	if _, _, err := loadSource("", nil); err == nil {
		t.Fatal("expected an error with neither -e nor a file argument")
	}
	if _, _, err := loadSource("", []string{"a.mu", "b.mu"}); err == nil {
		t.Fatal("expected an error with more than one file argument")
	}
}

func TestOutputPathReplacesExtension(t *testing.T) {
	cases := map[string]string{
		"main.mu":    "main.munac",
		"dir/sub.mu": "dir/sub.munac",
		"noext":      "noext.munac",
		"<eval>":     "out.munac",
	}
	for in, want := range cases {
		if got := outputPath(in); got != want {
			t.Errorf("outputPath(%q) = %q, want %q", in, got, want)
		}
	}
}
